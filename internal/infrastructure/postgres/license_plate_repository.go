package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

var _ repository.LicensePlateRepository = (*LicensePlateRepo)(nil)

const licensePlateColumns = `id, lp_number, product_id, warehouse_id, COALESCE(location_id, ''), quantity,
		uom, status, qa_status, COALESCE(batch_number, ''), expiry_date, created_at, updated_at`

// LicensePlateRepo implementación de LicensePlateRepository sobre PostgreSQL (usable con pool o tx).
type LicensePlateRepo struct {
	q Querier
}

// NewLicensePlateRepository construye el adaptador de LPs. Pasar pool o tx (Querier).
func NewLicensePlateRepository(q Querier) *LicensePlateRepo {
	return &LicensePlateRepo{q: q}
}

func scanLicensePlate(row pgx.Row) (*entity.LicensePlate, error) {
	var (
		lp               entity.LicensePlate
		status, qaStatus string
		expiry           *time.Time
	)
	err := row.Scan(
		&lp.ID, &lp.LPNumber, &lp.ProductID, &lp.WarehouseID, &lp.LocationID, &lp.Quantity,
		&lp.UOM, &status, &qaStatus, &lp.BatchNumber, &expiry, &lp.CreatedAt, &lp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lp.Status = entity.LPStatus(status)
	lp.QAStatus = entity.QAStatus(qaStatus)
	lp.ExpiryDate = expiry
	return &lp, nil
}

// GetByID obtiene una LP por ID; nil, nil si no existe.
func (r *LicensePlateRepo) GetByID(ctx context.Context, id string) (*entity.LicensePlate, error) {
	query := `SELECT ` + licensePlateColumns + ` FROM license_plates WHERE id = $1`
	lp, err := scanLicensePlate(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoMatch(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get license plate: %w", err)
	}
	return lp, nil
}

// GetForUpdate obtiene la LP y bloquea la fila hasta el fin de la transacción (SELECT FOR UPDATE).
func (r *LicensePlateRepo) GetForUpdate(ctx context.Context, id string) (*entity.LicensePlate, error) {
	query := `SELECT ` + licensePlateColumns + ` FROM license_plates WHERE id = $1 FOR UPDATE`
	lp, err := scanLicensePlate(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoMatch(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get license plate for update: %w", err)
	}
	return lp, nil
}

// orderBy cláusula ORDER BY por estrategia. Con StrategyNone se ordena por id sólo para que la
// paginación sea estable.
func orderBy(s picking.Strategy) string {
	switch s {
	case picking.StrategyFEFO:
		return "expiry_date ASC NULLS LAST, created_at ASC, id ASC"
	case picking.StrategyFIFO:
		return "created_at ASC, id ASC"
	default:
		return "id ASC"
	}
}

// FindAvailable LPs elegibles del producto ordenadas por estrategia.
func (r *LicensePlateRepo) FindAvailable(
	ctx context.Context,
	productID string,
	filter repository.LicensePlateFilter,
	strategy picking.Strategy,
) ([]*entity.LicensePlate, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + licensePlateColumns + ` FROM license_plates
		WHERE product_id = $1 AND status = 'available' AND qa_status = 'passed'
		AND (expiry_date IS NULL OR expiry_date >= $2)`)
	args := []any{productID, entity.DateOf(filter.Today)}

	if filter.WarehouseID != "" {
		args = append(args, filter.WarehouseID)
		fmt.Fprintf(&sb, " AND warehouse_id = $%d", len(args))
	}
	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		fmt.Fprintf(&sb, " AND location_id = $%d", len(args))
	}
	sb.WriteString(" ORDER BY " + orderBy(strategy))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		if isInvalidTextRepresentation(err) {
			return []*entity.LicensePlate{}, nil
		}
		return nil, fmt.Errorf("find available license plates: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.LicensePlate, 0)
	for rows.Next() {
		lp, err := scanLicensePlate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license plate: %w", err)
		}
		out = append(out, lp)
	}
	if err := rows.Err(); err != nil {
		if isInvalidTextRepresentation(err) {
			return []*entity.LicensePlate{}, nil
		}
		return nil, fmt.Errorf("find available license plates: %w", err)
	}
	return out, nil
}

// UpdateState persiste status y quantity.
func (r *LicensePlateRepo) UpdateState(ctx context.Context, lp *entity.LicensePlate) error {
	query := `UPDATE license_plates SET status = $2, quantity = $3, updated_at = now() WHERE id = $1`
	_, err := r.q.Exec(ctx, query, lp.ID, string(lp.Status), lp.Quantity)
	if err != nil {
		return fmt.Errorf("update license plate state: %w", err)
	}
	return nil
}

// ListOverReserved LPs cuya suma de pendientes activos supera la cantidad física.
func (r *LicensePlateRepo) ListOverReserved(ctx context.Context) ([]repository.OverReservedUnit, error) {
	query := `
		SELECT lp.id, lp.quantity, SUM(r.reserved_qty - r.consumed_qty) AS reserved
		FROM license_plates lp
		JOIN lp_reservations r ON r.license_plate_id = lp.id AND r.status = 'active'
		GROUP BY lp.id, lp.quantity
		HAVING SUM(r.reserved_qty - r.consumed_qty) > lp.quantity
		ORDER BY lp.id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list over-reserved: %w", err)
	}
	defer rows.Close()

	var out []repository.OverReservedUnit
	for rows.Next() {
		var u repository.OverReservedUnit
		if err := rows.Scan(&u.LicensePlateID, &u.Quantity, &u.Reserved); err != nil {
			return nil, fmt.Errorf("scan over-reserved: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
