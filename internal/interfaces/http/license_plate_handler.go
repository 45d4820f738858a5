package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/application/dto"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

// LicensePlateHandler consultas de LPs disponibles.
type LicensePlateHandler struct {
	locator *allocation.Locator
	ledger  *allocation.Ledger
	now     func() time.Time
}

// NewLicensePlateHandler construye el handler.
func NewLicensePlateHandler(locator *allocation.Locator, ledger *allocation.Ledger) *LicensePlateHandler {
	return &LicensePlateHandler{locator: locator, ledger: ledger, now: time.Now}
}

// Available LPs elegibles del producto en orden de estrategia. Sin ?strategy= se usa la de la bodega.
// GET /api/license-plates/available?product_id=&warehouse_id=&location_id=&limit=&strategy=
func (h *LicensePlateHandler) Available(c *fiber.Ctx) error {
	var q dto.AvailableUnitsQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parámetros de consulta inválidos"})
	}
	if err := q.Validate(); err != nil {
		return respondError(c, err)
	}
	filter := repository.LicensePlateFilter{
		WarehouseID: q.WarehouseID,
		LocationID:  q.LocationID,
		Limit:       q.Limit,
	}
	productID := q.ProductID

	var strategy picking.Strategy
	if s := q.Strategy; s != "" {
		parsed, err := picking.ParseStrategy(s)
		if err != nil {
			return respondError(c, err)
		}
		strategy = parsed
	} else {
		resolved, err := h.locator.ResolveStrategy(c.Context(), filter.WarehouseID)
		if err != nil {
			return respondError(c, err)
		}
		strategy = resolved
	}

	lps, err := h.locator.FindAvailableUnits(c.Context(), productID, filter, strategy)
	if err != nil {
		return respondError(c, err)
	}
	today := h.now()
	out := dto.AvailableUnitsResponse{Strategy: string(strategy), LicensePlates: make([]dto.LicensePlateDTO, 0, len(lps))}
	for _, lp := range lps {
		out.LicensePlates = append(out.LicensePlates, dto.ToLicensePlateDTO(lp, today))
	}
	return c.JSON(out)
}

// AvailableQty cantidad libre de una LP (cantidad física menos pendiente activo).
// GET /api/license-plates/:id/available-qty
func (h *LicensePlateHandler) AvailableQty(c *fiber.Ctx) error {
	id := c.Params("id")
	qty, err := h.ledger.GetAvailableQuantity(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.AvailableQtyResponse{LicensePlateID: id, Available: qty})
}
