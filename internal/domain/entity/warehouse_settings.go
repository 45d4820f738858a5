package entity

// WarehouseSettings configuración de picking de una bodega (sólo lectura para el motor).
type WarehouseSettings struct {
	WarehouseID     string
	EnableFIFO      bool
	EnableFEFO      bool
	FEFOWarningDays *int // días antes del vencimiento para advertir en asignaciones FEFO; nil usa el valor por defecto
}

// WarningDays días de advertencia FEFO; 0 si no están definidos.
func (ws WarehouseSettings) WarningDays() int {
	if ws.FEFOWarningDays == nil {
		return 0
	}
	return *ws.FEFOWarningDays
}
