package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LPStatus estado físico/logístico de una LP.
type LPStatus string

// Estados de LP.
const (
	LPStatusAvailable LPStatus = "available"
	LPStatusReserved  LPStatus = "reserved"
	LPStatusConsumed  LPStatus = "consumed"
	LPStatusBlocked   LPStatus = "blocked"
)

// QAStatus resultado de calidad de una LP.
type QAStatus string

// Estados de QA.
const (
	QAStatusPending QAStatus = "pending"
	QAStatusPassed  QAStatus = "passed"
	QAStatusFailed  QAStatus = "failed"
)

// LicensePlate (LP) representa una unidad de almacenamiento trazable: una cantidad de un único
// producto en una única ubicación de una bodega (pallet o lote).
type LicensePlate struct {
	ID          string
	LPNumber    string
	ProductID   string
	WarehouseID string
	LocationID  string
	Quantity    decimal.Decimal // cantidad física actual (>= 0)
	UOM         string
	Status      LPStatus
	QAStatus    QAStatus
	BatchNumber string
	ExpiryDate  *time.Time // nil = no perecedero
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsExpired indica si la fecha de vencimiento es anterior al día de referencia.
// La comparación es por fecha calendario (UTC); una LP que vence hoy sigue vigente.
func (lp *LicensePlate) IsExpired(today time.Time) bool {
	if lp.ExpiryDate == nil {
		return false
	}
	return DateOf(*lp.ExpiryDate).Before(DateOf(today))
}

// IsEligible indica si la LP puede asignarse: available, QA passed y no vencida.
func (lp *LicensePlate) IsEligible(today time.Time) bool {
	return lp.Status == LPStatusAvailable && lp.QAStatus == QAStatusPassed && !lp.IsExpired(today)
}

// CanExtendReservation indica si una reserva existente puede crecer sobre la LP. Admite reserved
// porque la propia reserva ocupa parte de la cantidad.
func (lp *LicensePlate) CanExtendReservation(today time.Time) bool {
	return (lp.Status == LPStatusAvailable || lp.Status == LPStatusReserved) &&
		lp.QAStatus == QAStatusPassed && !lp.IsExpired(today)
}

// DateOf trunca t a medianoche UTC (fecha calendario).
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
