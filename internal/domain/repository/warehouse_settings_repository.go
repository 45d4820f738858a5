package repository

import (
	"context"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
)

// WarehouseSettingsRepository lectura de la configuración de picking por bodega.
type WarehouseSettingsRepository interface {
	// Get devuelve nil, nil si la bodega no tiene configuración propia.
	Get(ctx context.Context, warehouseID string) (*entity.WarehouseSettings, error)
}
