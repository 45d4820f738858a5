package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain"
)

// ReservationStatus estado de una reserva. active → released | consumed (ambos terminales).
type ReservationStatus string

// Estados de reserva.
const (
	ReservationActive   ReservationStatus = "active"
	ReservationReleased ReservationStatus = "released"
	ReservationConsumed ReservationStatus = "consumed"
)

// ConsumerKind tipo de documento que consume una reserva.
type ConsumerKind string

// Tipos de consumidor.
const (
	ConsumerWorkOrder     ConsumerKind = "work_order"
	ConsumerTransferOrder ConsumerKind = "transfer_order"
)

// ConsumerRef referencia a exactamente un consumidor: una orden de trabajo o una orden de traslado.
// Los campos no se exportan: sólo puede construirse con WorkOrder, TransferOrder o ParseConsumerRef.
type ConsumerRef struct {
	kind ConsumerKind
	id   string
}

// WorkOrder crea la referencia a una orden de trabajo.
func WorkOrder(id string) ConsumerRef { return ConsumerRef{kind: ConsumerWorkOrder, id: id} }

// TransferOrder crea la referencia a una orden de traslado.
func TransferOrder(id string) ConsumerRef { return ConsumerRef{kind: ConsumerTransferOrder, id: id} }

// ParseConsumerRef valida tipo e ID (ej. desde query params o body JSON).
func ParseConsumerRef(kind, id string) (ConsumerRef, error) {
	if id == "" {
		return ConsumerRef{}, fmt.Errorf("%w: consumer id requerido", domain.ErrInvalidInput)
	}
	switch ConsumerKind(kind) {
	case ConsumerWorkOrder:
		return WorkOrder(id), nil
	case ConsumerTransferOrder:
		return TransferOrder(id), nil
	}
	return ConsumerRef{}, fmt.Errorf("%w: consumer type %q no soportado", domain.ErrInvalidInput, kind)
}

// ConsumerFromColumns reconstruye la referencia desde las dos columnas nulas de la tabla.
// Exige que exactamente una esté definida.
func ConsumerFromColumns(workOrderID, transferOrderID *string) (ConsumerRef, error) {
	switch {
	case workOrderID != nil && transferOrderID == nil:
		return WorkOrder(*workOrderID), nil
	case transferOrderID != nil && workOrderID == nil:
		return TransferOrder(*transferOrderID), nil
	}
	return ConsumerRef{}, fmt.Errorf("%w: la reserva debe referenciar exactamente un consumidor", domain.ErrInvalidInput)
}

func (c ConsumerRef) Kind() ConsumerKind { return c.kind }
func (c ConsumerRef) ID() string         { return c.id }
func (c ConsumerRef) IsZero() bool       { return c.id == "" }

// Columns devuelve (work_order_id, transfer_order_id) para persistencia; uno de los dos es nil.
func (c ConsumerRef) Columns() (workOrderID, transferOrderID *string) {
	id := c.id
	if c.kind == ConsumerWorkOrder {
		return &id, nil
	}
	return nil, &id
}

func (c ConsumerRef) String() string { return string(c.kind) + ":" + c.id }

// Reservation compromiso de una cantidad de una LP hacia un consumidor, previo al consumo físico.
type Reservation struct {
	ID             string
	LicensePlateID string
	Consumer       ConsumerRef
	MaterialID     string // línea de material del consumidor (ej. wo_materials.id)
	ReservedQty    decimal.Decimal
	ConsumedQty    decimal.Decimal
	Status         ReservationStatus
	ReservedAt     time.Time
	ReleasedAt     *time.Time
	ReservedBy     string
}

// RemainingQty cantidad reservada pendiente de consumir.
func (r *Reservation) RemainingQty() decimal.Decimal {
	return r.ReservedQty.Sub(r.ConsumedQty)
}

// IsActive indica si la reserva sigue comprometiendo capacidad de la LP.
func (r *Reservation) IsActive() bool { return r.Status == ReservationActive }

// Release marca la reserva como liberada. Sólo válido desde active.
func (r *Reservation) Release(now time.Time) error {
	if r.Status != ReservationActive {
		return fmt.Errorf("%w: la reserva %s está %s", domain.ErrInvalidState, r.ID, r.Status)
	}
	r.Status = ReservationReleased
	r.ReleasedAt = &now
	return nil
}

// Consume registra qty como consumido; pasa a consumed cuando consumido = reservado.
func (r *Reservation) Consume(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: cantidad a consumir debe ser positiva", domain.ErrInvalidInput)
	}
	if r.ConsumedQty.Add(qty).GreaterThan(r.ReservedQty) {
		return fmt.Errorf("%w: pendiente %s, solicitado %s", domain.ErrOverConsumption, r.RemainingQty(), qty)
	}
	if r.Status != ReservationActive {
		return fmt.Errorf("%w: la reserva %s está %s", domain.ErrInvalidState, r.ID, r.Status)
	}
	r.ConsumedQty = r.ConsumedQty.Add(qty)
	if r.ConsumedQty.Equal(r.ReservedQty) {
		r.Status = ReservationConsumed
	}
	return nil
}
