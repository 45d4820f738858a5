package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/application/dto"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
)

// ReservationHandler ciclo de vida de reservas sobre LPs (protegido).
type ReservationHandler struct {
	ledger *allocation.Ledger
}

// NewReservationHandler construye el handler.
func NewReservationHandler(ledger *allocation.Ledger) *ReservationHandler {
	return &ReservationHandler{ledger: ledger}
}

func consumerFromQuery(c *fiber.Ctx) (entity.ConsumerRef, error) {
	q := dto.ConsumerQuery{ConsumerType: c.Query("consumer_type"), ConsumerID: c.Query("consumer_id")}
	if err := q.Validate(); err != nil {
		return entity.ConsumerRef{}, err
	}
	return q.Ref()
}

// Create reserva una cantidad de una LP.
// POST /api/reservations
func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateReservationRequest
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
	res, err := h.ledger.CreateReservation(c.Context(), allocation.CreateReservationInput{
		LicensePlateID: in.LicensePlateID,
		Consumer:       consumer,
		MaterialID:     in.MaterialID,
		Quantity:       in.Quantity,
		RequestedBy:    GetUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToReservationDTO(res))
}

// List reservas del consumidor en cualquier estado.
// GET /api/reservations?consumer_type=&consumer_id=
func (h *ReservationHandler) List(c *fiber.Ctx) error {
	consumer, err := consumerFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	list, err := h.ledger.GetReservations(c.Context(), consumer)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToReservationDTOs(list))
}

// Coverage cobertura de una cantidad requerida por las reservas del consumidor.
// GET /api/reservations/coverage?consumer_type=&consumer_id=&required_qty=&material_id=
func (h *ReservationHandler) Coverage(c *fiber.Ctx) error {
	consumer, err := consumerFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	required, err := decimal.NewFromString(c.Query("required_qty"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "required_qty inválido"})
	}
	cov, err := h.ledger.GetCoverage(c.Context(), consumer, c.Query("material_id"), required)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToCoverageResponse(required, cov))
}

// PickList hoja de picking en PDF con las reservas activas del consumidor.
// GET /api/reservations/pick-list?consumer_type=&consumer_id=
func (h *ReservationHandler) PickList(c *fiber.Ctx) error {
	consumer, err := consumerFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	pdf, filename, err := h.ledger.PickList(c.Context(), consumer)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdf)
}

// ReleaseAll libera todas las reservas activas del consumidor.
// POST /api/reservations/release-all
func (h *ReservationHandler) ReleaseAll(c *fiber.Ctx) error {
	var in dto.ReleaseAllRequest
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
	n, err := h.ledger.ReleaseAllReservations(c.Context(), consumer)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ReleaseAllResponse{Released: n})
}

// GetByID obtiene una reserva.
// GET /api/reservations/:id
func (h *ReservationHandler) GetByID(c *fiber.Ctx) error {
	res, err := h.ledger.GetReservation(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToReservationDTO(res))
}

// Update cambia la cantidad reservada.
// PUT /api/reservations/:id
func (h *ReservationHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateReservationRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := in.Validate(); err != nil {
		return respondError(c, err)
	}
	res, err := h.ledger.UpdateReservation(c.Context(), c.Params("id"), in.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToReservationDTO(res))
}

// Release libera una reserva activa.
// POST /api/reservations/:id/release
func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	res, err := h.ledger.ReleaseReservation(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToReservationDTO(res))
}

// Consume registra consumo físico contra la reserva.
// POST /api/reservations/:id/consume
func (h *ReservationHandler) Consume(c *fiber.Ctx) error {
	var in dto.ConsumeReservationRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := in.Validate(); err != nil {
		return respondError(c, err)
	}
	res, err := h.ledger.ConsumeReservation(c.Context(), c.Params("id"), in.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToReservationDTO(res))
}
