package dto

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
)

var consumerTypes = []interface{}{string(entity.ConsumerWorkOrder), string(entity.ConsumerTransferOrder)}

// positiveDecimal regla ozzo: la cantidad debe ser > 0.
func positiveDecimal(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok || !d.IsPositive() {
		return errors.New("debe ser mayor que cero")
	}
	return nil
}

// strategyRule regla ozzo: vacío o una estrategia que picking.ParseStrategy acepte (sin distinguir mayúsculas).
func strategyRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := picking.ParseStrategy(s); err != nil {
		return errors.New("strategy debe ser fifo, fefo o none")
	}
	return nil
}

// ConsumerQuery consumidor en query params (?consumer_type=&consumer_id=).
type ConsumerQuery struct {
	ConsumerType string `query:"consumer_type" json:"consumer_type"`
	ConsumerID   string `query:"consumer_id" json:"consumer_id"`
}

func (r ConsumerQuery) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ConsumerType,
			validation.Required.Error("consumer_type requerido"),
			validation.In(consumerTypes...).Error("consumer_type debe ser work_order o transfer_order"),
		),
		validation.Field(&r.ConsumerID, validation.Required.Error("consumer_id requerido")),
	)
}

// Ref convierte a entity.ConsumerRef (llamar después de Validate).
func (r ConsumerQuery) Ref() (entity.ConsumerRef, error) {
	return entity.ParseConsumerRef(r.ConsumerType, r.ConsumerID)
}

// CreateReservationRequest body para POST /api/reservations.
type CreateReservationRequest struct {
	LicensePlateID string          `json:"license_plate_id"`
	ConsumerType   string          `json:"consumer_type"`
	ConsumerID     string          `json:"consumer_id"`
	MaterialID     string          `json:"material_id,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
}

func (r CreateReservationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.LicensePlateID, validation.Required.Error("license_plate_id requerido")),
		validation.Field(&r.ConsumerType,
			validation.Required.Error("consumer_type requerido"),
			validation.In(consumerTypes...).Error("consumer_type debe ser work_order o transfer_order"),
		),
		validation.Field(&r.ConsumerID, validation.Required.Error("consumer_id requerido")),
		validation.Field(&r.Quantity, validation.By(positiveDecimal)),
	)
}

// UpdateReservationRequest body para PUT /api/reservations/:id.
type UpdateReservationRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func (r UpdateReservationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Quantity, validation.By(positiveDecimal)),
	)
}

// ConsumeReservationRequest body para POST /api/reservations/:id/consume.
type ConsumeReservationRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func (r ConsumeReservationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Quantity, validation.By(positiveDecimal)),
	)
}

// ReleaseAllRequest body para POST /api/reservations/release-all.
type ReleaseAllRequest struct {
	ConsumerType string `json:"consumer_type"`
	ConsumerID   string `json:"consumer_id"`
}

func (r ReleaseAllRequest) Validate() error {
	return ConsumerQuery(r).Validate()
}

// ReleaseAllResponse cantidad de reservas liberadas.
type ReleaseAllResponse struct {
	Released int `json:"released"`
}

// AvailableUnitsQuery query params de GET /api/license-plates/available.
type AvailableUnitsQuery struct {
	ProductID   string `query:"product_id"`
	WarehouseID string `query:"warehouse_id"`
	LocationID  string `query:"location_id"`
	Limit       int    `query:"limit"`
	Strategy    string `query:"strategy"`
}

func (r AvailableUnitsQuery) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required.Error("product_id requerido")),
		validation.Field(&r.Limit, validation.Min(0).Error("limit no puede ser negativo")),
		validation.Field(&r.Strategy, validation.By(strategyRule)),
	)
}

// AllocateRequest body para POST /api/allocations.
type AllocateRequest struct {
	ProductID    string          `json:"product_id"`
	WarehouseID  string          `json:"warehouse_id"`
	LocationID   string          `json:"location_id,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	ConsumerType string          `json:"consumer_type"`
	ConsumerID   string          `json:"consumer_id"`
	MaterialID   string          `json:"material_id,omitempty"`
	// Strategy opcional (fifo|fefo|none); vacío usa la configuración de la bodega.
	Strategy string `json:"strategy,omitempty"`
}

func (r AllocateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required.Error("product_id requerido")),
		validation.Field(&r.Quantity, validation.By(positiveDecimal)),
		validation.Field(&r.ConsumerType,
			validation.Required.Error("consumer_type requerido"),
			validation.In(consumerTypes...).Error("consumer_type debe ser work_order o transfer_order"),
		),
		validation.Field(&r.ConsumerID, validation.Required.Error("consumer_id requerido")),
		validation.Field(&r.Strategy, validation.By(strategyRule)),
	)
}

// CheckViolationRequest body para POST /api/picking/violations/check.
type CheckViolationRequest struct {
	SelectedLicensePlateID  string `json:"selected_license_plate_id"`
	SuggestedLicensePlateID string `json:"suggested_license_plate_id"`
	Strategy                string `json:"strategy"`
}

func (r CheckViolationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SelectedLicensePlateID, validation.Required.Error("selected_license_plate_id requerido")),
		validation.Field(&r.SuggestedLicensePlateID, validation.Required.Error("suggested_license_plate_id requerido")),
		validation.Field(&r.Strategy, validation.Required.Error("strategy requerido")),
	)
}

// ViolationResponse resultado de la verificación.
type ViolationResponse struct {
	Violated bool   `json:"violated"`
	Type     string `json:"type,omitempty"`
	Message  string `json:"message,omitempty"`
}

// StrategyResponse estrategia efectiva de una bodega.
type StrategyResponse struct {
	WarehouseID     string `json:"warehouse_id"`
	Strategy        string `json:"strategy"`
	EnableFIFO      bool   `json:"enable_fifo"`
	EnableFEFO      bool   `json:"enable_fefo"`
	FEFOWarningDays int    `json:"fefo_warning_days"`
}

// LicensePlateDTO LP en respuestas de consulta.
type LicensePlateDTO struct {
	ID                  string          `json:"id"`
	LPNumber            string          `json:"lp_number"`
	ProductID           string          `json:"product_id"`
	WarehouseID         string          `json:"warehouse_id"`
	LocationID          string          `json:"location_id,omitempty"`
	Quantity            decimal.Decimal `json:"quantity"`
	UOM                 string          `json:"uom,omitempty"`
	Status              string          `json:"status"`
	QAStatus            string          `json:"qa_status"`
	BatchNumber         string          `json:"batch_number,omitempty"`
	ExpiryDate          *string         `json:"expiry_date,omitempty"`
	ExpiryDaysRemaining *int            `json:"expiry_days_remaining,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// AvailableUnitsResponse respuesta de GET /api/license-plates/available.
type AvailableUnitsResponse struct {
	Strategy      string            `json:"strategy"`
	LicensePlates []LicensePlateDTO `json:"license_plates"`
}

// AvailableQtyResponse cantidad disponible de una LP.
type AvailableQtyResponse struct {
	LicensePlateID string          `json:"license_plate_id"`
	Available      decimal.Decimal `json:"available"`
}

// ReservationDTO reserva con su cantidad pendiente.
type ReservationDTO struct {
	ID             string          `json:"id"`
	LicensePlateID string          `json:"license_plate_id"`
	ConsumerType   string          `json:"consumer_type"`
	ConsumerID     string          `json:"consumer_id"`
	MaterialID     string          `json:"material_id,omitempty"`
	ReservedQty    decimal.Decimal `json:"reserved_qty"`
	ConsumedQty    decimal.Decimal `json:"consumed_qty"`
	RemainingQty   decimal.Decimal `json:"remaining_qty"`
	Status         string          `json:"status"`
	ReservedAt     time.Time       `json:"reserved_at"`
	ReleasedAt     *time.Time      `json:"released_at,omitempty"`
	ReservedBy     string          `json:"reserved_by,omitempty"`
}

// AllocationDTO una línea de la asignación.
type AllocationDTO struct {
	LicensePlateID string          `json:"license_plate_id"`
	ReservationID  string          `json:"reservation_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	ExpiryDate     *string         `json:"expiry_date,omitempty"`
}

// AllocationResponse respuesta de POST /api/allocations. Un faltante se reporta en shortfall,
// no como error.
type AllocationResponse struct {
	Strategy                string          `json:"strategy"`
	Allocations             []AllocationDTO `json:"allocations"`
	TotalAllocated          decimal.Decimal `json:"total_allocated"`
	Shortfall               decimal.Decimal `json:"shortfall"`
	SuggestedLicensePlateID string          `json:"suggested_license_plate_id,omitempty"`
	Warnings                []string        `json:"warnings,omitempty"`
}

// CoverageResponse cobertura de una necesidad de material.
type CoverageResponse struct {
	RequiredQty decimal.Decimal `json:"required_qty"`
	Percent     int64           `json:"coverage_percent"`
	Shortage    decimal.Decimal `json:"shortage"`
	Status      string          `json:"status"`
}

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// ToLicensePlateDTO today se usa para expiry_days_remaining.
func ToLicensePlateDTO(lp *entity.LicensePlate, today time.Time) LicensePlateDTO {
	return LicensePlateDTO{
		ID:                  lp.ID,
		LPNumber:            lp.LPNumber,
		ProductID:           lp.ProductID,
		WarehouseID:         lp.WarehouseID,
		LocationID:          lp.LocationID,
		Quantity:            lp.Quantity,
		UOM:                 lp.UOM,
		Status:              string(lp.Status),
		QAStatus:            string(lp.QAStatus),
		BatchNumber:         lp.BatchNumber,
		ExpiryDate:          formatDate(lp.ExpiryDate),
		ExpiryDaysRemaining: picking.ExpiryDaysRemaining(lp.ExpiryDate, today),
		CreatedAt:           lp.CreatedAt,
	}
}

func ToReservationDTO(r *entity.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:             r.ID,
		LicensePlateID: r.LicensePlateID,
		ConsumerType:   string(r.Consumer.Kind()),
		ConsumerID:     r.Consumer.ID(),
		MaterialID:     r.MaterialID,
		ReservedQty:    r.ReservedQty,
		ConsumedQty:    r.ConsumedQty,
		RemainingQty:   r.RemainingQty(),
		Status:         string(r.Status),
		ReservedAt:     r.ReservedAt,
		ReleasedAt:     r.ReleasedAt,
		ReservedBy:     r.ReservedBy,
	}
}

func ToReservationDTOs(list []*entity.Reservation) []ReservationDTO {
	out := make([]ReservationDTO, 0, len(list))
	for _, r := range list {
		out = append(out, ToReservationDTO(r))
	}
	return out
}

func ToCoverageResponse(required decimal.Decimal, c picking.Coverage) CoverageResponse {
	return CoverageResponse{
		RequiredQty: required,
		Percent:     c.Percent,
		Shortage:    c.Shortage,
		Status:      string(c.Status),
	}
}
