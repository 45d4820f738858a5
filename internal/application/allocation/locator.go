package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/lp-engine/internal/domain"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

// Locator consulta LPs elegibles de un producto en el orden de la estrategia de picking.
type Locator struct {
	units    repository.LicensePlateRepository
	settings repository.WarehouseSettingsRepository
	defaults entity.WarehouseSettings
	now      func() time.Time
}

// NewLocator construye el localizador. defaults aplica a bodegas sin configuración propia.
func NewLocator(
	units repository.LicensePlateRepository,
	settings repository.WarehouseSettingsRepository,
	defaults entity.WarehouseSettings,
) *Locator {
	return &Locator{units: units, settings: settings, defaults: defaults, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (l *Locator) WithClock(now func() time.Time) *Locator {
	l.now = now
	return l
}

// Settings configuración de picking de la bodega, o los valores por defecto.
func (l *Locator) Settings(ctx context.Context, warehouseID string) (entity.WarehouseSettings, error) {
	s := l.defaults
	s.WarehouseID = warehouseID
	if warehouseID == "" || l.settings == nil {
		return s, nil
	}
	found, err := l.settings.Get(ctx, warehouseID)
	if err != nil {
		return entity.WarehouseSettings{}, err
	}
	if found == nil {
		return s, nil
	}
	if found.FEFOWarningDays == nil {
		found.FEFOWarningDays = l.defaults.FEFOWarningDays
	}
	return *found, nil
}

// ResolveStrategy estrategia vigente para la bodega.
func (l *Locator) ResolveStrategy(ctx context.Context, warehouseID string) (picking.Strategy, error) {
	s, err := l.Settings(ctx, warehouseID)
	if err != nil {
		return "", err
	}
	return picking.ResolveStrategy(s), nil
}

// FindAvailableUnits LPs available, con QA passed y no vencidas del producto, ordenadas según
// strategy. Cada llamada consulta el estado actual y devuelve un slice nuevo.
func (l *Locator) FindAvailableUnits(
	ctx context.Context,
	productID string,
	filter repository.LicensePlateFilter,
	strategy picking.Strategy,
) ([]*entity.LicensePlate, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit no puede ser negativo", domain.ErrInvalidInput)
	}
	if strategy == "" {
		strategy = picking.StrategyNone
	}
	if filter.Today.IsZero() {
		filter.Today = l.now()
	}
	filter.Today = entity.DateOf(filter.Today)
	return l.units.FindAvailable(ctx, productID, filter, strategy)
}

// FindForWarehouse como FindAvailableUnits pero con la estrategia de filter.WarehouseID.
func (l *Locator) FindForWarehouse(
	ctx context.Context,
	productID string,
	filter repository.LicensePlateFilter,
) ([]*entity.LicensePlate, picking.Strategy, error) {
	strategy, err := l.ResolveStrategy(ctx, filter.WarehouseID)
	if err != nil {
		return nil, "", err
	}
	lps, err := l.FindAvailableUnits(ctx, productID, filter, strategy)
	if err != nil {
		return nil, "", err
	}
	return lps, strategy, nil
}
