package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/application/dto"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
)

// PickingHandler estrategia de bodega y verificación de violaciones.
type PickingHandler struct {
	locator *allocation.Locator
}

// NewPickingHandler construye el handler.
func NewPickingHandler(locator *allocation.Locator) *PickingHandler {
	return &PickingHandler{locator: locator}
}

// Strategy estrategia efectiva de la bodega.
// GET /api/picking/strategy?warehouse_id=
func (h *PickingHandler) Strategy(c *fiber.Ctx) error {
	warehouseID := c.Query("warehouse_id")
	if warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "warehouse_id requerido"})
	}
	settings, err := h.locator.Settings(c.Context(), warehouseID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.StrategyResponse{
		WarehouseID:     warehouseID,
		Strategy:        string(picking.ResolveStrategy(settings)),
		EnableFIFO:      settings.EnableFIFO,
		EnableFEFO:      settings.EnableFEFO,
		FEFOWarningDays: settings.WarningDays(),
	})
}

// CheckViolation compara la LP elegida por el operador con la sugerida.
// POST /api/picking/violations/check
func (h *PickingHandler) CheckViolation(c *fiber.Ctx) error {
	var in dto.CheckViolationRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := in.Validate(); err != nil {
		return respondError(c, err)
	}
	strategy, err := picking.ParseStrategy(in.Strategy)
	if err != nil {
		return respondError(c, err)
	}
	v := picking.CheckViolation(in.SelectedLicensePlateID, in.SuggestedLicensePlateID, strategy)
	return c.JSON(dto.ViolationResponse{Violated: v.Violated, Type: string(v.Kind), Message: v.Message})
}
