package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
	"github.com/jhoicas/lp-engine/pkg/logger"
)

// Allocation cantidad reservada sobre una LP dentro de una asignación.
type Allocation struct {
	LicensePlateID string
	ReservationID  string
	Quantity       decimal.Decimal
	ExpiryDate     *time.Time
}

// AllocationResult resultado de Allocate. TotalAllocated + Shortfall = demanda.
// Un faltante no es un error: el llamador decide si espera, alerta o continúa parcial.
type AllocationResult struct {
	Strategy                picking.Strategy
	Allocations             []Allocation
	TotalAllocated          decimal.Decimal
	Shortfall               decimal.Decimal
	SuggestedLicensePlateID string
	Warnings                []string
}

// AllocateInput demanda de un producto para un consumidor.
type AllocateInput struct {
	ProductID   string
	DemandQty   decimal.Decimal
	Consumer    entity.ConsumerRef
	MaterialID  string
	RequestedBy string
	Filter      repository.LicensePlateFilter
	// Strategy opcional; vacío = la de la bodega de Filter.WarehouseID.
	Strategy picking.Strategy
}

// Allocator reparte una demanda entre varias LPs en orden de estrategia.
type Allocator struct {
	locator *Locator
	ledger  *Ledger
	log     *logger.Logger
}

// NewAllocator construye el asignador.
func NewAllocator(locator *Locator, ledger *Ledger, log *logger.Logger) *Allocator {
	if log == nil {
		log = logger.Nop()
	}
	return &Allocator{locator: locator, ledger: ledger, log: log.Component("allocator")}
}

// Allocate recorre las LPs elegibles y reserva min(disponible, pendiente) en cada una, cada LP en su
// propia transacción con la fila bloqueada. Las reservas ya confirmadas no se revierten si una LP
// posterior falla; el llamador que necesite todo-o-nada debe liberar con ReleaseAllReservations.
func (a *Allocator) Allocate(ctx context.Context, in AllocateInput) (*AllocationResult, error) {
	if in.ProductID == "" {
		return nil, fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	if in.Consumer.IsZero() {
		return nil, fmt.Errorf("%w: consumidor requerido", domain.ErrInvalidInput)
	}
	if !in.DemandQty.IsPositive() {
		return nil, fmt.Errorf("%w: la demanda debe ser positiva", domain.ErrInvalidInput)
	}

	settings, err := a.locator.Settings(ctx, in.Filter.WarehouseID)
	if err != nil {
		return nil, err
	}
	strategy := in.Strategy
	if strategy == "" {
		strategy = picking.ResolveStrategy(settings)
	}

	today := a.ledger.now()
	in.Filter.Today = today
	candidates, err := a.locator.FindAvailableUnits(ctx, in.ProductID, in.Filter, strategy)
	if err != nil {
		return nil, err
	}

	result := &AllocationResult{Strategy: strategy, Allocations: []Allocation{}, TotalAllocated: decimal.Zero}
	remaining := in.DemandQty
	var touched []string

	for _, candidate := range candidates {
		if !remaining.IsPositive() {
			break
		}
		alloc, err := a.allocateFrom(ctx, candidate.ID, remaining, in, today)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			a.ledger.invalidate(ctx, touched, []entity.ConsumerRef{in.Consumer})
			return nil, err
		}
		if alloc == nil {
			continue
		}
		if result.SuggestedLicensePlateID == "" {
			result.SuggestedLicensePlateID = alloc.LicensePlateID
		}
		result.Allocations = append(result.Allocations, *alloc)
		result.TotalAllocated = result.TotalAllocated.Add(alloc.Quantity)
		remaining = remaining.Sub(alloc.Quantity)
		touched = append(touched, alloc.LicensePlateID)
	}
	result.Shortfall = in.DemandQty.Sub(result.TotalAllocated)

	if len(touched) > 0 {
		a.ledger.invalidate(ctx, touched, []entity.ConsumerRef{in.Consumer})
	}

	if strategy == picking.StrategyFEFO {
		result.Warnings = append(result.Warnings, nearExpiryWarnings(result.Allocations, today, settings.WarningDays())...)
	}
	if result.Shortfall.IsPositive() {
		result.Warnings = append(result.Warnings, fmt.Sprintf("sólo %s de %s reservado; faltan %s",
			result.TotalAllocated, in.DemandQty, result.Shortfall))
		a.log.Warn().
			Str("product_id", in.ProductID).
			Str("consumer", in.Consumer.String()).
			Str("demand", in.DemandQty.String()).
			Str("shortfall", result.Shortfall.String()).
			Msg("asignación parcial")
	}
	a.log.Debug().
		Str("product_id", in.ProductID).
		Str("strategy", strategy.String()).
		Int("units", len(result.Allocations)).
		Str("allocated", result.TotalAllocated.String()).
		Msg("asignación completada")
	return result, nil
}

// allocateFrom reserva sobre una LP bajo bloqueo. Retorna nil, nil si la LP dejó de ser elegible o
// ya no tiene disponible desde que se listó.
func (a *Allocator) allocateFrom(
	ctx context.Context,
	lpID string,
	remaining decimal.Decimal,
	in AllocateInput,
	today time.Time,
) (*Allocation, error) {
	var out *Allocation
	err := a.ledger.txRunner.Run(ctx, func(units repository.LicensePlateRepository, reservations repository.ReservationRepository) error {
		lp, available, _, err := lockAvailable(ctx, units, reservations, lpID)
		if err != nil {
			return err
		}
		if !lp.IsEligible(today) || !available.IsPositive() {
			return nil
		}
		qty := decimal.Min(available, remaining)
		r, err := reserveLocked(ctx, units, reservations, lp, available, CreateReservationInput{
			LicensePlateID: lp.ID,
			Consumer:       in.Consumer,
			MaterialID:     in.MaterialID,
			Quantity:       qty,
			RequestedBy:    in.RequestedBy,
		}, today)
		if err != nil {
			return err
		}
		out = &Allocation{LicensePlateID: lp.ID, ReservationID: r.ID, Quantity: qty, ExpiryDate: lp.ExpiryDate}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func nearExpiryWarnings(allocs []Allocation, today time.Time, warningDays int) []string {
	var out []string
	for _, al := range allocs {
		days := picking.ExpiryDaysRemaining(al.ExpiryDate, today)
		if days == nil || *days > warningDays {
			continue
		}
		out = append(out, fmt.Sprintf("LP %s vence en %d días (%s)", al.LicensePlateID, *days, al.ExpiryDate.Format("2006-01-02")))
	}
	return out
}
