package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

var _ repository.WarehouseSettingsRepository = (*WarehouseSettingsRepo)(nil)

// WarehouseSettingsRepo lectura de warehouse_settings. La tabla se administra fuera de este servicio.
type WarehouseSettingsRepo struct {
	q Querier
}

// NewWarehouseSettingsRepository construye el adaptador.
func NewWarehouseSettingsRepository(q Querier) *WarehouseSettingsRepo {
	return &WarehouseSettingsRepo{q: q}
}

// Get configuración de la bodega; nil, nil si no tiene.
func (r *WarehouseSettingsRepo) Get(ctx context.Context, warehouseID string) (*entity.WarehouseSettings, error) {
	query := `
		SELECT warehouse_id, enable_fifo, enable_fefo, fefo_warning_days
		FROM warehouse_settings WHERE warehouse_id = $1`
	var ws entity.WarehouseSettings
	err := r.q.QueryRow(ctx, query, warehouseID).Scan(&ws.WarehouseID, &ws.EnableFIFO, &ws.EnableFEFO, &ws.FEFOWarningDays)
	if err != nil {
		if isNoMatch(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get warehouse settings: %w", err)
	}
	return &ws, nil
}
