package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
)

// ReservationRepository puerto del libro de reservas.
type ReservationRepository interface {
	Create(ctx context.Context, r *entity.Reservation) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	// GetForUpdate bloquea la fila de la reserva (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error)
	// Update persiste consumed_qty, reserved_qty, status y released_at.
	Update(ctx context.Context, r *entity.Reservation) error
	// SumActiveRemaining suma (reservado - consumido) de las reservas activas de la LP y cuántas son.
	SumActiveRemaining(ctx context.Context, licensePlateID string) (decimal.Decimal, int, error)
	// ListByConsumer reservas del consumidor ordenadas por reserved_at.
	ListByConsumer(ctx context.Context, consumer entity.ConsumerRef, activeOnly bool) ([]*entity.Reservation, error)
}
