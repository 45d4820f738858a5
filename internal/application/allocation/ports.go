// Package allocation implementa el libro de reservas sobre LPs y la asignación multi-LP
// siguiendo la estrategia de picking de la bodega.
package allocation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción, pasando repositorios atados a esa tx.
// Commit si fn retorna nil; Rollback en cualquier otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		units repository.LicensePlateRepository,
		reservations repository.ReservationRepository,
	) error) error
}

// AvailabilityCache caché de datos derivados (disponible por LP, reservado por consumidor).
// Las entradas expiran por TTL y se invalidan explícitamente tras cada escritura.
// Un miss se reporta con ok=false y err=nil, junto con el FillToken que debe acompañar al Set
// posterior. El Set se descarta si hubo una invalidación entre el Get y el Set.
type AvailabilityCache interface {
	GetAvailable(ctx context.Context, lpID string) (qty decimal.Decimal, ok bool, token FillToken, err error)
	SetAvailable(ctx context.Context, lpID string, qty decimal.Decimal, token FillToken) error
	GetConsumerReserved(ctx context.Context, consumer entity.ConsumerRef) (qty decimal.Decimal, ok bool, token FillToken, err error)
	SetConsumerReserved(ctx context.Context, consumer entity.ConsumerRef, qty decimal.Decimal, token FillToken) error
	Invalidate(ctx context.Context, lpIDs []string, consumers []entity.ConsumerRef) error
}

// FillToken generación de una entrada de caché observada en un miss.
type FillToken string

// NoopCache no guarda nada; toda lectura es un miss.
type NoopCache struct{}

var _ AvailabilityCache = NoopCache{}

func (NoopCache) GetAvailable(context.Context, string) (decimal.Decimal, bool, FillToken, error) {
	return decimal.Zero, false, "", nil
}
func (NoopCache) SetAvailable(context.Context, string, decimal.Decimal, FillToken) error { return nil }
func (NoopCache) GetConsumerReserved(context.Context, entity.ConsumerRef) (decimal.Decimal, bool, FillToken, error) {
	return decimal.Zero, false, "", nil
}
func (NoopCache) SetConsumerReserved(context.Context, entity.ConsumerRef, decimal.Decimal, FillToken) error {
	return nil
}
func (NoopCache) Invalidate(context.Context, []string, []entity.ConsumerRef) error { return nil }

// PickListLine una reserva activa con los datos de la LP a recoger. LicensePlate puede ser nil
// si la LP ya no existe.
type PickListLine struct {
	Reservation  *entity.Reservation
	LicensePlate *entity.LicensePlate
}

// PickListDocument datos de la hoja de picking de un consumidor.
type PickListDocument struct {
	Consumer    entity.ConsumerRef
	GeneratedAt time.Time
	Lines       []PickListLine
}

// PickListGenerator genera la representación PDF de la hoja de picking.
type PickListGenerator interface {
	GeneratePickList(ctx context.Context, doc PickListDocument) ([]byte, error)
}
