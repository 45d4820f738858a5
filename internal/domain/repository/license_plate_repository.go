package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
)

// LicensePlateFilter restringe la búsqueda de LPs candidatas. Campos vacíos no filtran.
type LicensePlateFilter struct {
	WarehouseID string
	LocationID  string
	// Today fecha de referencia para excluir LPs vencidas.
	Today time.Time
	// Limit 0 = sin límite.
	Limit int
}

// OverReservedUnit LP cuya suma de pendientes activos supera su cantidad física.
type OverReservedUnit struct {
	LicensePlateID string
	Quantity       decimal.Decimal
	Reserved       decimal.Decimal
}

// LicensePlateRepository puerto de persistencia de LPs. Las implementaciones pueden atarse a una
// transacción (ver TxRunner de la capa de aplicación).
type LicensePlateRepository interface {
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.LicensePlate, error)
	// GetForUpdate como GetByID pero bloquea la fila hasta el fin de la transacción (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.LicensePlate, error)
	// FindAvailable devuelve las LPs del producto elegibles (available, QA passed, no vencidas)
	// ordenadas según la estrategia.
	FindAvailable(ctx context.Context, productID string, filter LicensePlateFilter, strategy picking.Strategy) ([]*entity.LicensePlate, error)
	// UpdateState persiste status y quantity de la LP.
	UpdateState(ctx context.Context, lp *entity.LicensePlate) error
	// ListOverReserved detecta LPs sobre-reservadas (auditoría de integridad).
	ListOverReserved(ctx context.Context) ([]OverReservedUnit, error)
}
