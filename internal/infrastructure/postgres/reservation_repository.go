package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

const reservationColumns = `id, license_plate_id, work_order_id, transfer_order_id, COALESCE(material_id, ''),
		reserved_qty, consumed_qty, status, reserved_at, released_at, COALESCE(reserved_by, '')`

// ReservationRepo implementación de ReservationRepository sobre PostgreSQL (tabla lp_reservations).
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador de reservas. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

func scanReservation(row pgx.Row) (*entity.Reservation, error) {
	var (
		res             entity.Reservation
		workOrderID     *string
		transferOrderID *string
		status          string
		releasedAt      *time.Time
	)
	err := row.Scan(
		&res.ID, &res.LicensePlateID, &workOrderID, &transferOrderID, &res.MaterialID,
		&res.ReservedQty, &res.ConsumedQty, &status, &res.ReservedAt, &releasedAt, &res.ReservedBy,
	)
	if err != nil {
		return nil, err
	}
	consumer, err := entity.ConsumerFromColumns(workOrderID, transferOrderID)
	if err != nil {
		return nil, fmt.Errorf("reserva %s: %w", res.ID, err)
	}
	res.Consumer = consumer
	res.Status = entity.ReservationStatus(status)
	res.ReleasedAt = releasedAt
	return &res, nil
}

// Create inserta la reserva.
func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	workOrderID, transferOrderID := res.Consumer.Columns()
	query := `
		INSERT INTO lp_reservations (id, license_plate_id, work_order_id, transfer_order_id, material_id,
			reserved_qty, consumed_qty, status, reserved_at, reserved_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''))`
	_, err := r.q.Exec(ctx, query,
		res.ID, res.LicensePlateID, workOrderID, transferOrderID, res.MaterialID,
		res.ReservedQty, res.ConsumedQty, string(res.Status), res.ReservedAt, res.ReservedBy,
	)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return fmt.Errorf("%w: LP %s", domain.ErrNotFound, res.LicensePlateID)
		case isCheckViolation(err):
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetByID obtiene una reserva; nil, nil si no existe.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM lp_reservations WHERE id = $1`
	res, err := scanReservation(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoMatch(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// GetForUpdate obtiene la reserva y bloquea la fila (SELECT FOR UPDATE).
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM lp_reservations WHERE id = $1 FOR UPDATE`
	res, err := scanReservation(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoMatch(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation for update: %w", err)
	}
	return res, nil
}

// Update persiste cantidades, estado y fecha de liberación.
func (r *ReservationRepo) Update(ctx context.Context, res *entity.Reservation) error {
	query := `
		UPDATE lp_reservations
		SET reserved_qty = $2, consumed_qty = $3, status = $4, released_at = $5
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, res.ID, res.ReservedQty, res.ConsumedQty, string(res.Status), res.ReleasedAt)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return nil
}

// SumActiveRemaining Σ(reserved_qty - consumed_qty) y cantidad de reservas activas de la LP.
func (r *ReservationRepo) SumActiveRemaining(ctx context.Context, licensePlateID string) (decimal.Decimal, int, error) {
	query := `
		SELECT COALESCE(SUM(reserved_qty - consumed_qty), 0), COUNT(*)
		FROM lp_reservations
		WHERE license_plate_id = $1 AND status = 'active'`
	var (
		sum   decimal.Decimal
		count int64
	)
	if err := r.q.QueryRow(ctx, query, licensePlateID).Scan(&sum, &count); err != nil {
		if isInvalidTextRepresentation(err) {
			return decimal.Zero, 0, nil
		}
		return decimal.Zero, 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return sum, int(count), nil
}

// ListByConsumer reservas del consumidor ordenadas por reserved_at.
func (r *ReservationRepo) ListByConsumer(ctx context.Context, consumer entity.ConsumerRef, activeOnly bool) ([]*entity.Reservation, error) {
	column := "work_order_id"
	if consumer.Kind() == entity.ConsumerTransferOrder {
		column = "transfer_order_id"
	}
	query := `SELECT ` + reservationColumns + ` FROM lp_reservations WHERE ` + column + ` = $1`
	if activeOnly {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY reserved_at ASC, id ASC`

	rows, err := r.q.Query(ctx, query, consumer.ID())
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}
