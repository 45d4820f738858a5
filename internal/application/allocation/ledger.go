package allocation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/domain"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
	"github.com/jhoicas/lp-engine/pkg/logger"
)

// Ledger libro de reservas sobre LPs. Toda verificación de disponible + escritura ocurre dentro de
// una transacción con la fila de la LP bloqueada (orden de bloqueo: LP → reserva).
type Ledger struct {
	txRunner     TxRunner
	units        repository.LicensePlateRepository
	reservations repository.ReservationRepository
	cache        AvailabilityCache
	pickList     PickListGenerator
	log          *logger.Logger
	now          func() time.Time
}

// NewLedger construye el libro de reservas. cache y pickList pueden ser nil.
func NewLedger(
	txRunner TxRunner,
	units repository.LicensePlateRepository,
	reservations repository.ReservationRepository,
	cache AvailabilityCache,
	pickList PickListGenerator,
	log *logger.Logger,
) *Ledger {
	if cache == nil {
		cache = NoopCache{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		txRunner:     txRunner,
		units:        units,
		reservations: reservations,
		cache:        cache,
		pickList:     pickList,
		log:          log.Component("ledger"),
		now:          time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// CreateReservationInput datos para reservar una cantidad de una LP.
type CreateReservationInput struct {
	LicensePlateID string
	Consumer       entity.ConsumerRef
	MaterialID     string
	Quantity       decimal.Decimal
	RequestedBy    string
}

func (in CreateReservationInput) validate() error {
	if in.LicensePlateID == "" {
		return fmt.Errorf("%w: license_plate_id requerido", domain.ErrInvalidInput)
	}
	if in.Consumer.IsZero() {
		return fmt.Errorf("%w: consumidor requerido", domain.ErrInvalidInput)
	}
	if !in.Quantity.IsPositive() {
		return fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidInput)
	}
	return nil
}

// CreateReservation reserva Quantity de la LP para el consumidor.
//   - domain.ErrNotFound si la LP no existe.
//   - domain.ErrInvalidState si la LP no está available, no pasó QA o está vencida.
//   - domain.ErrOverReservation si Quantity supera el disponible.
//
// Si la reserva agota el disponible la LP pasa a reserved.
func (l *Ledger) CreateReservation(ctx context.Context, in CreateReservationInput) (*entity.Reservation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := l.now()

	var created *entity.Reservation
	err := l.txRunner.Run(ctx, func(units repository.LicensePlateRepository, reservations repository.ReservationRepository) error {
		lp, available, _, err := lockAvailable(ctx, units, reservations, in.LicensePlateID)
		if err != nil {
			return err
		}
		if !lp.IsEligible(now) {
			return fmt.Errorf("%w: LP %s (status=%s, qa=%s)", domain.ErrInvalidState, lp.ID, lp.Status, lp.QAStatus)
		}
		if in.Quantity.GreaterThan(available) {
			return fmt.Errorf("%w: disponible %s, solicitado %s", domain.ErrOverReservation, available, in.Quantity)
		}
		created, err = reserveLocked(ctx, units, reservations, lp, available, in, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.invalidate(ctx, []string{in.LicensePlateID}, []entity.ConsumerRef{in.Consumer})
	l.log.Debug().
		Str("reservation_id", created.ID).
		Str("lp_id", created.LicensePlateID).
		Str("consumer", created.Consumer.String()).
		Str("qty", created.ReservedQty.String()).
		Msg("reserva creada")
	return created, nil
}

// lockAvailable bloquea la LP y calcula disponible = cantidad - Σ pendiente de reservas activas.
func lockAvailable(
	ctx context.Context,
	units repository.LicensePlateRepository,
	reservations repository.ReservationRepository,
	lpID string,
) (*entity.LicensePlate, decimal.Decimal, int, error) {
	lp, err := units.GetForUpdate(ctx, lpID)
	if err != nil {
		return nil, decimal.Zero, 0, err
	}
	if lp == nil {
		return nil, decimal.Zero, 0, fmt.Errorf("%w: LP %s", domain.ErrNotFound, lpID)
	}
	reserved, active, err := reservations.SumActiveRemaining(ctx, lpID)
	if err != nil {
		return nil, decimal.Zero, 0, err
	}
	return lp, lp.Quantity.Sub(reserved), active, nil
}

// reserveLocked escribe la reserva sobre una LP ya bloqueada y sincroniza su estado.
// El llamador garantiza 0 < in.Quantity <= available.
func reserveLocked(
	ctx context.Context,
	units repository.LicensePlateRepository,
	reservations repository.ReservationRepository,
	lp *entity.LicensePlate,
	available decimal.Decimal,
	in CreateReservationInput,
	now time.Time,
) (*entity.Reservation, error) {
	r := &entity.Reservation{
		ID:             uuid.New().String(),
		LicensePlateID: lp.ID,
		Consumer:       in.Consumer,
		MaterialID:     in.MaterialID,
		ReservedQty:    in.Quantity,
		ConsumedQty:    decimal.Zero,
		Status:         entity.ReservationActive,
		ReservedAt:     now,
		ReservedBy:     in.RequestedBy,
	}
	if err := reservations.Create(ctx, r); err != nil {
		return nil, err
	}
	if available.Sub(in.Quantity).IsZero() {
		lp.Status = entity.LPStatusReserved
		lp.UpdatedAt = now
		if err := units.UpdateState(ctx, lp); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// GetAvailableQuantity cantidad de la LP aún no comprometida por reservas activas.
// Lectura sin bloqueo; el resultado se cachea hasta la próxima escritura sobre la LP o el TTL.
// Si una escritura invalida la entrada mientras se lee la base, el valor leído no se cachea.
func (l *Ledger) GetAvailableQuantity(ctx context.Context, lpID string) (decimal.Decimal, error) {
	if lpID == "" {
		return decimal.Zero, fmt.Errorf("%w: license_plate_id requerido", domain.ErrInvalidInput)
	}
	qty, ok, token, err := l.cache.GetAvailable(ctx, lpID)
	if err != nil {
		l.log.Warn().Err(err).Str("lp_id", lpID).Msg("cache: lectura de disponible fallida")
	} else if ok {
		return qty, nil
	}

	lp, err := l.units.GetByID(ctx, lpID)
	if err != nil {
		return decimal.Zero, err
	}
	if lp == nil {
		return decimal.Zero, fmt.Errorf("%w: LP %s", domain.ErrNotFound, lpID)
	}
	reserved, _, err := l.reservations.SumActiveRemaining(ctx, lpID)
	if err != nil {
		return decimal.Zero, err
	}
	available := lp.Quantity.Sub(reserved)

	if err := l.cache.SetAvailable(ctx, lpID, available, token); err != nil {
		l.log.Warn().Err(err).Str("lp_id", lpID).Msg("cache: escritura de disponible fallida")
	}
	return available, nil
}

// ReleaseReservation libera una reserva activa. La LP vuelve a available sólo cuando no le queda
// ninguna otra reserva activa.
func (l *Ledger) ReleaseReservation(ctx context.Context, id string) (*entity.Reservation, error) {
	var released *entity.Reservation
	err := l.txRunner.Run(ctx, func(units repository.LicensePlateRepository, reservations repository.ReservationRepository) error {
		r, lp, err := l.lockReservation(ctx, units, reservations, id)
		if err != nil {
			return err
		}
		now := l.now()
		if err := r.Release(now); err != nil {
			return err
		}
		if err := reservations.Update(ctx, r); err != nil {
			return err
		}
		if err := syncAfterRelease(ctx, units, reservations, lp, now); err != nil {
			return err
		}
		released = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx, []string{released.LicensePlateID}, []entity.ConsumerRef{released.Consumer})
	return released, nil
}

// ReleaseAllReservations libera todas las reservas activas del consumidor y retorna cuántas liberó.
// Las LPs se bloquean en orden ascendente de ID para no interbloquearse con otra liberación masiva.
func (l *Ledger) ReleaseAllReservations(ctx context.Context, consumer entity.ConsumerRef) (int, error) {
	if consumer.IsZero() {
		return 0, fmt.Errorf("%w: consumidor requerido", domain.ErrInvalidInput)
	}

	var (
		count int
		lpIDs []string
	)
	err := l.txRunner.Run(ctx, func(units repository.LicensePlateRepository, reservations repository.ReservationRepository) error {
		count, lpIDs = 0, nil
		active, err := reservations.ListByConsumer(ctx, consumer, true)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return nil
		}

		byLP := make(map[string][]string)
		for _, r := range active {
			byLP[r.LicensePlateID] = append(byLP[r.LicensePlateID], r.ID)
		}
		for id := range byLP {
			lpIDs = append(lpIDs, id)
		}
		sort.Strings(lpIDs)

		now := l.now()
		locked := make([]*entity.LicensePlate, 0, len(lpIDs))
		for _, lpID := range lpIDs {
			lp, err := units.GetForUpdate(ctx, lpID)
			if err != nil {
				return err
			}
			if lp != nil {
				locked = append(locked, lp)
			}
		}
		for _, lpID := range lpIDs {
			for _, resID := range byLP[lpID] {
				r, err := reservations.GetForUpdate(ctx, resID)
				if err != nil {
					return err
				}
				if r == nil || !r.IsActive() {
					continue
				}
				if err := r.Release(now); err != nil {
					return err
				}
				if err := reservations.Update(ctx, r); err != nil {
					return err
				}
				count++
			}
		}
		for _, lp := range locked {
			if err := syncAfterRelease(ctx, units, reservations, lp, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if count > 0 {
		l.invalidate(ctx, lpIDs, []entity.ConsumerRef{consumer})
		l.log.Info().Str("consumer", consumer.String()).Int("released", count).Msg("reservas liberadas")
	}
	return count, nil
}

func syncAfterRelease(
	ctx context.Context,
	units repository.LicensePlateRepository,
	reservations repository.ReservationRepository,
	lp *entity.LicensePlate,
	now time.Time,
) error {
	if lp.Status != entity.LPStatusReserved {
		return nil
	}
	_, active, err := reservations.SumActiveRemaining(ctx, lp.ID)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	lp.Status = entity.LPStatusAvailable
	lp.UpdatedAt = now
	return units.UpdateState(ctx, lp)
}

// ConsumeReservation registra el consumo físico de qty: incrementa consumed_qty de la reserva y
// descuenta qty de la cantidad de la LP. La LP pasa a consumed cuando su cantidad llega a cero.
func (l *Ledger) ConsumeReservation(ctx context.Context, id string, qty decimal.Decimal) (*entity.Reservation, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: la cantidad a consumir debe ser positiva", domain.ErrInvalidInput)
	}

	var consumed *entity.Reservation
	err := l.txRunner.Run(ctx, func(units repository.LicensePlateRepository, reservations repository.ReservationRepository) error {
		r, lp, err := l.lockReservation(ctx, units, reservations, id)
		if err != nil {
			return err
		}
		if err := r.Consume(qty); err != nil {
			return err
		}
		if lp.Quantity.LessThan(qty) {
			return fmt.Errorf("%w: la LP %s sólo tiene %s", domain.ErrInvalidState, lp.ID, lp.Quantity)
		}
		if err := reservations.Update(ctx, r); err != nil {
			return err
		}

		now := l.now()
		lp.Quantity = lp.Quantity.Sub(qty)
		lp.UpdatedAt = now
		if lp.Quantity.IsZero() {
			lp.Status = entity.LPStatusConsumed
		} else if err := syncStatusAfterChange(ctx, reservations, lp); err != nil {
			return err
		}
		if err := units.UpdateState(ctx, lp); err != nil {
			return err
		}
		consumed = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx, []string{consumed.LicensePlateID}, []entity.ConsumerRef{consumed.Consumer})
	return consumed, nil
}

// syncStatusAfterChange alterna available ↔ reserved según el disponible resultante.
// Otros estados (blocked, consumed) no se tocan.
func syncStatusAfterChange(ctx context.Context, reservations repository.ReservationRepository, lp *entity.LicensePlate) error {
	if lp.Status != entity.LPStatusAvailable && lp.Status != entity.LPStatusReserved {
		return nil
	}
	reserved, _, err := reservations.SumActiveRemaining(ctx, lp.ID)
	if err != nil {
		return err
	}
	if lp.Quantity.Sub(reserved).IsPositive() {
		lp.Status = entity.LPStatusAvailable
	} else {
		lp.Status = entity.LPStatusReserved
	}
	return nil
}

// UpdateReservation cambia la cantidad reservada. El disponible se recalcula excluyendo el pendiente
// actual de esta reserva; newQty no puede ser menor a lo ya consumido.
func (l *Ledger) UpdateReservation(ctx context.Context, id string, newQty decimal.Decimal) (*entity.Reservation, error) {
	if !newQty.IsPositive() {
		return nil, fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidInput)
	}

	var updated *entity.Reservation
	err := l.txRunner.Run(ctx, func(units repository.LicensePlateRepository, reservations repository.ReservationRepository) error {
		r, lp, err := l.lockReservation(ctx, units, reservations, id)
		if err != nil {
			return err
		}
		if !r.IsActive() {
			return fmt.Errorf("%w: la reserva %s está %s", domain.ErrInvalidState, r.ID, r.Status)
		}
		if newQty.LessThan(r.ConsumedQty) {
			return fmt.Errorf("%w: la cantidad no puede ser menor a lo consumido (%s)", domain.ErrInvalidInput, r.ConsumedQty)
		}
		if newQty.GreaterThan(r.ReservedQty) && !lp.CanExtendReservation(l.now()) {
			return fmt.Errorf("%w: LP %s (status=%s, qa=%s)", domain.ErrInvalidState, lp.ID, lp.Status, lp.QAStatus)
		}

		reserved, _, err := reservations.SumActiveRemaining(ctx, lp.ID)
		if err != nil {
			return err
		}
		availableExcl := lp.Quantity.Sub(reserved.Sub(r.RemainingQty()))
		newRemaining := newQty.Sub(r.ConsumedQty)
		if newRemaining.GreaterThan(availableExcl) {
			return fmt.Errorf("%w: disponible %s, solicitado %s", domain.ErrOverReservation, availableExcl, newRemaining)
		}

		r.ReservedQty = newQty
		if r.ReservedQty.Equal(r.ConsumedQty) {
			r.Status = entity.ReservationConsumed
		}
		if err := reservations.Update(ctx, r); err != nil {
			return err
		}

		prev := lp.Status
		if err := syncStatusAfterChange(ctx, reservations, lp); err != nil {
			return err
		}
		if lp.Status != prev {
			lp.UpdatedAt = l.now()
			if err := units.UpdateState(ctx, lp); err != nil {
				return err
			}
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx, []string{updated.LicensePlateID}, []entity.ConsumerRef{updated.Consumer})
	return updated, nil
}

// lockReservation resuelve la LP de la reserva y bloquea primero la LP y luego la reserva.
func (l *Ledger) lockReservation(
	ctx context.Context,
	units repository.LicensePlateRepository,
	reservations repository.ReservationRepository,
	id string,
) (*entity.Reservation, *entity.LicensePlate, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("%w: reservation id requerido", domain.ErrInvalidInput)
	}
	peek, err := reservations.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if peek == nil {
		return nil, nil, fmt.Errorf("%w: reserva %s", domain.ErrNotFound, id)
	}
	lp, err := units.GetForUpdate(ctx, peek.LicensePlateID)
	if err != nil {
		return nil, nil, err
	}
	if lp == nil {
		return nil, nil, fmt.Errorf("%w: LP %s", domain.ErrNotFound, peek.LicensePlateID)
	}
	r, err := reservations.GetForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if r == nil {
		return nil, nil, fmt.Errorf("%w: reserva %s", domain.ErrNotFound, id)
	}
	return r, lp, nil
}

// GetReservation retorna domain.ErrNotFound si no existe.
func (l *Ledger) GetReservation(ctx context.Context, id string) (*entity.Reservation, error) {
	r, err := l.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: reserva %s", domain.ErrNotFound, id)
	}
	return r, nil
}

// GetReservations todas las reservas del consumidor, en cualquier estado.
func (l *Ledger) GetReservations(ctx context.Context, consumer entity.ConsumerRef) ([]*entity.Reservation, error) {
	if consumer.IsZero() {
		return nil, fmt.Errorf("%w: consumidor requerido", domain.ErrInvalidInput)
	}
	return l.reservations.ListByConsumer(ctx, consumer, false)
}

// GetCoverage cobertura de requiredQty por las reservas del consumidor. Cuentan las reservas activas
// y las consumidas; las liberadas no. Con materialID vacío se consideran todas las líneas.
func (l *Ledger) GetCoverage(ctx context.Context, consumer entity.ConsumerRef, materialID string, requiredQty decimal.Decimal) (picking.Coverage, error) {
	if consumer.IsZero() {
		return picking.Coverage{}, fmt.Errorf("%w: consumidor requerido", domain.ErrInvalidInput)
	}
	if requiredQty.IsNegative() {
		return picking.Coverage{}, fmt.Errorf("%w: required_qty no puede ser negativo", domain.ErrInvalidInput)
	}

	var token FillToken
	if materialID == "" {
		qty, ok, tk, err := l.cache.GetConsumerReserved(ctx, consumer)
		if err != nil {
			l.log.Warn().Err(err).Str("consumer", consumer.String()).Msg("cache: lectura de reservado fallida")
		} else if ok {
			return picking.CalculateCoverage(requiredQty, qty), nil
		}
		token = tk
	}

	list, err := l.reservations.ListByConsumer(ctx, consumer, false)
	if err != nil {
		return picking.Coverage{}, err
	}
	reserved := decimal.Zero
	for _, r := range list {
		if r.Status == entity.ReservationReleased {
			continue
		}
		if materialID != "" && r.MaterialID != materialID {
			continue
		}
		reserved = reserved.Add(r.ReservedQty)
	}

	if materialID == "" {
		if err := l.cache.SetConsumerReserved(ctx, consumer, reserved, token); err != nil {
			l.log.Warn().Err(err).Str("consumer", consumer.String()).Msg("cache: escritura de reservado fallida")
		}
	}
	return picking.CalculateCoverage(requiredQty, reserved), nil
}

// PickList genera el PDF de picking con las reservas activas del consumidor.
// Retorna domain.ErrNotFound si no hay reservas activas.
func (l *Ledger) PickList(ctx context.Context, consumer entity.ConsumerRef) ([]byte, string, error) {
	if l.pickList == nil {
		return nil, "", fmt.Errorf("pick list: generador no configurado")
	}
	if consumer.IsZero() {
		return nil, "", fmt.Errorf("%w: consumidor requerido", domain.ErrInvalidInput)
	}
	active, err := l.reservations.ListByConsumer(ctx, consumer, true)
	if err != nil {
		return nil, "", err
	}
	if len(active) == 0 {
		return nil, "", fmt.Errorf("%w: %s no tiene reservas activas", domain.ErrNotFound, consumer)
	}

	doc := PickListDocument{Consumer: consumer, GeneratedAt: l.now(), Lines: make([]PickListLine, 0, len(active))}
	for _, r := range active {
		lp, err := l.units.GetByID(ctx, r.LicensePlateID)
		if err != nil {
			return nil, "", err
		}
		doc.Lines = append(doc.Lines, PickListLine{Reservation: r, LicensePlate: lp})
	}

	pdf, err := l.pickList.GeneratePickList(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("pick list: %w", err)
	}
	filename := fmt.Sprintf("picking_%s_%s.pdf", consumer.Kind(), consumer.ID())
	return pdf, filename, nil
}

// invalidate se llama después del commit; un fallo del caché sólo se registra.
func (l *Ledger) invalidate(ctx context.Context, lpIDs []string, consumers []entity.ConsumerRef) {
	if err := l.cache.Invalidate(ctx, lpIDs, consumers); err != nil {
		l.log.Warn().Err(err).Strs("lp_ids", lpIDs).Msg("cache: invalidación fallida")
	}
}
