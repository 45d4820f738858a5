package picking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
)

// CoverageStatus grado de cobertura de una necesidad de material por sus reservas.
type CoverageStatus string

// Estados de cobertura.
const (
	CoverageNone    CoverageStatus = "none"
	CoveragePartial CoverageStatus = "partial"
	CoverageFull    CoverageStatus = "full"
	CoverageOver    CoverageStatus = "over"
)

// Coverage porcentaje (redondeado a entero), faltante y estado.
type Coverage struct {
	Percent  int64
	Shortage decimal.Decimal
	Status   CoverageStatus
}

var hundred = decimal.NewFromInt(100)

// CalculateCoverage calcula la cobertura de required por reserved.
// Con required = 0 cualquier reserva se considera sobre-cobertura.
func CalculateCoverage(required, reserved decimal.Decimal) Coverage {
	if required.IsZero() {
		if reserved.IsPositive() {
			return Coverage{Percent: 100, Shortage: decimal.Zero, Status: CoverageOver}
		}
		return Coverage{Percent: 0, Shortage: decimal.Zero, Status: CoverageNone}
	}

	shortage := required.Sub(reserved)
	if shortage.IsNegative() {
		shortage = decimal.Zero
	}
	c := Coverage{
		Percent:  reserved.Div(required).Mul(hundred).Round(0).IntPart(),
		Shortage: shortage,
	}
	switch {
	case reserved.IsZero():
		c.Status = CoverageNone
	case reserved.GreaterThan(required):
		c.Status = CoverageOver
	case reserved.Equal(required):
		c.Status = CoverageFull
	default:
		c.Status = CoveragePartial
	}
	return c
}

// ExpiryDaysRemaining días calendario hasta el vencimiento (negativo si ya venció); nil si no vence.
func ExpiryDaysRemaining(expiry *time.Time, today time.Time) *int {
	if expiry == nil {
		return nil
	}
	days := int(entity.DateOf(*expiry).Sub(entity.DateOf(today)).Hours() / 24)
	return &days
}
