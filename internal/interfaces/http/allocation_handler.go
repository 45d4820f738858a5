package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/application/dto"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

// AllocationHandler asignación multi-LP de una demanda.
type AllocationHandler struct {
	allocator *allocation.Allocator
}

// NewAllocationHandler construye el handler.
func NewAllocationHandler(allocator *allocation.Allocator) *AllocationHandler {
	return &AllocationHandler{allocator: allocator}
}

// Allocate reparte la demanda entre LPs elegibles. Un faltante responde 201 con shortfall > 0.
// POST /api/allocations
func (h *AllocationHandler) Allocate(c *fiber.Ctx) error {
	var in dto.AllocateRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := in.Validate(); err != nil {
		return respondError(c, err)
	}
	consumer, err := entity.ParseConsumerRef(in.ConsumerType, in.ConsumerID)
	if err != nil {
		return respondError(c, err)
	}
	var strategy picking.Strategy
	if in.Strategy != "" {
		if strategy, err = picking.ParseStrategy(in.Strategy); err != nil {
			return respondError(c, err)
		}
	}

	res, err := h.allocator.Allocate(c.Context(), allocation.AllocateInput{
		ProductID:   in.ProductID,
		DemandQty:   in.Quantity,
		Consumer:    consumer,
		MaterialID:  in.MaterialID,
		RequestedBy: GetUserID(c),
		Filter:      repository.LicensePlateFilter{WarehouseID: in.WarehouseID, LocationID: in.LocationID},
		Strategy:    strategy,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toAllocationResponse(res))
}

func toAllocationResponse(res *allocation.AllocationResult) dto.AllocationResponse {
	out := dto.AllocationResponse{
		Strategy:                string(res.Strategy),
		Allocations:             make([]dto.AllocationDTO, 0, len(res.Allocations)),
		TotalAllocated:          res.TotalAllocated,
		Shortfall:               res.Shortfall,
		SuggestedLicensePlateID: res.SuggestedLicensePlateID,
		Warnings:                res.Warnings,
	}
	for _, a := range res.Allocations {
		var expiry *string
		if a.ExpiryDate != nil {
			s := a.ExpiryDate.Format("2006-01-02")
			expiry = &s
		}
		out.Allocations = append(out.Allocations, dto.AllocationDTO{
			LicensePlateID: a.LicensePlateID,
			ReservationID:  a.ReservationID,
			Quantity:       a.Quantity,
			ExpiryDate:     expiry,
		})
	}
	return out
}
