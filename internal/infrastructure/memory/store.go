// Package memory implementa los repositorios de LPs y reservas en memoria, para tests y
// ejecuciones locales sin PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

var (
	_ repository.LicensePlateRepository      = (*LicensePlateRepo)(nil)
	_ repository.ReservationRepository       = (*ReservationRepo)(nil)
	_ repository.WarehouseSettingsRepository = (*WarehouseSettingsRepo)(nil)
	_ allocation.TxRunner                    = (*TxRunner)(nil)
)

type state struct {
	units        map[string]entity.LicensePlate
	reservations map[string]entity.Reservation
	settings     map[string]entity.WarehouseSettings
}

func (s state) clone() state {
	c := state{
		units:        make(map[string]entity.LicensePlate, len(s.units)),
		reservations: make(map[string]entity.Reservation, len(s.reservations)),
		settings:     make(map[string]entity.WarehouseSettings, len(s.settings)),
	}
	for k, v := range s.units {
		c.units[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	return c
}

// Store estado compartido. mu protege los mapas; txMu serializa las transacciones, que es el
// equivalente en memoria de SELECT ... FOR UPDATE.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data state
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{data: state{
		units:        map[string]entity.LicensePlate{},
		reservations: map[string]entity.Reservation{},
		settings:     map[string]entity.WarehouseSettings{},
	}}
}

// PutLicensePlate inserta o reemplaza una LP (carga de datos).
func (s *Store) PutLicensePlate(lp entity.LicensePlate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.units[lp.ID] = lp
}

// PutReservation inserta o reemplaza una reserva (carga de datos).
func (s *Store) PutReservation(r entity.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.reservations[r.ID] = r
}

// PutSettings registra la configuración de una bodega.
func (s *Store) PutSettings(ws entity.WarehouseSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.settings[ws.WarehouseID] = ws
}

// LicensePlates repositorio de LPs sobre el store.
func (s *Store) LicensePlates() *LicensePlateRepo { return &LicensePlateRepo{s: s} }

// Reservations repositorio de reservas sobre el store.
func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{s: s} }

// Settings repositorio de configuración de bodegas.
func (s *Store) Settings() *WarehouseSettingsRepo { return &WarehouseSettingsRepo{s: s} }

// TxRunner ejecuta transacciones de una en una; si fn falla restaura el estado previo.
type TxRunner struct {
	s *Store
}

// NewTxRunner construye el runner sobre el store.
func NewTxRunner(s *Store) *TxRunner { return &TxRunner{s: s} }

func (t *TxRunner) Run(ctx context.Context, fn func(
	units repository.LicensePlateRepository,
	reservations repository.ReservationRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.RLock()
	snapshot := t.s.data.clone()
	t.s.mu.RUnlock()

	if err := fn(t.s.LicensePlates(), t.s.Reservations()); err != nil {
		t.s.mu.Lock()
		t.s.data = snapshot
		t.s.mu.Unlock()
		return err
	}
	return nil
}

// LicensePlateRepo implementación en memoria de repository.LicensePlateRepository.
type LicensePlateRepo struct {
	s *Store
}

func (r *LicensePlateRepo) GetByID(_ context.Context, id string) (*entity.LicensePlate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	lp, ok := r.s.data.units[id]
	if !ok {
		return nil, nil
	}
	return &lp, nil
}

// GetForUpdate igual a GetByID: el bloqueo lo da TxRunner.
func (r *LicensePlateRepo) GetForUpdate(ctx context.Context, id string) (*entity.LicensePlate, error) {
	return r.GetByID(ctx, id)
}

func (r *LicensePlateRepo) FindAvailable(
	_ context.Context,
	productID string,
	filter repository.LicensePlateFilter,
	strategy picking.Strategy,
) ([]*entity.LicensePlate, error) {
	r.s.mu.RLock()
	out := make([]*entity.LicensePlate, 0)
	for _, lp := range r.s.data.units {
		if lp.ProductID != productID || !lp.IsEligible(filter.Today) {
			continue
		}
		if filter.WarehouseID != "" && lp.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.LocationID != "" && lp.LocationID != filter.LocationID {
			continue
		}
		c := lp
		out = append(out, &c)
	}
	r.s.mu.RUnlock()

	picking.SortLicensePlates(out, strategy)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *LicensePlateRepo) UpdateState(_ context.Context, lp *entity.LicensePlate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.units[lp.ID]
	if !ok {
		return nil
	}
	cur.Status = lp.Status
	cur.Quantity = lp.Quantity
	cur.UpdatedAt = lp.UpdatedAt
	r.s.data.units[lp.ID] = cur
	return nil
}

func (r *LicensePlateRepo) ListOverReserved(_ context.Context) ([]repository.OverReservedUnit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	reserved := map[string]decimal.Decimal{}
	for _, res := range r.s.data.reservations {
		if res.IsActive() {
			reserved[res.LicensePlateID] = reserved[res.LicensePlateID].Add(res.RemainingQty())
		}
	}
	var out []repository.OverReservedUnit
	for id, sum := range reserved {
		lp, ok := r.s.data.units[id]
		if !ok || sum.LessThanOrEqual(lp.Quantity) {
			continue
		}
		out = append(out, repository.OverReservedUnit{LicensePlateID: id, Quantity: lp.Quantity, Reserved: sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicensePlateID < out[j].LicensePlateID })
	return out, nil
}

// ReservationRepo implementación en memoria de repository.ReservationRepository.
type ReservationRepo struct {
	s *Store
}

func (r *ReservationRepo) Create(_ context.Context, res *entity.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.reservations[res.ID] = *res
	return nil
}

func (r *ReservationRepo) GetByID(_ context.Context, id string) (*entity.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.data.reservations[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (r *ReservationRepo) GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *ReservationRepo) Update(_ context.Context, res *entity.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.reservations[res.ID]; !ok {
		return nil
	}
	r.s.data.reservations[res.ID] = *res
	return nil
}

func (r *ReservationRepo) SumActiveRemaining(_ context.Context, licensePlateID string) (decimal.Decimal, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum, n := decimal.Zero, 0
	for _, res := range r.s.data.reservations {
		if res.LicensePlateID == licensePlateID && res.IsActive() {
			sum = sum.Add(res.RemainingQty())
			n++
		}
	}
	return sum, n, nil
}

func (r *ReservationRepo) ListByConsumer(_ context.Context, consumer entity.ConsumerRef, activeOnly bool) ([]*entity.Reservation, error) {
	r.s.mu.RLock()
	out := make([]*entity.Reservation, 0)
	for _, res := range r.s.data.reservations {
		if res.Consumer != consumer || (activeOnly && !res.IsActive()) {
			continue
		}
		c := res
		out = append(out, &c)
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReservedAt.Equal(out[j].ReservedAt) {
			return out[i].ReservedAt.Before(out[j].ReservedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// WarehouseSettingsRepo implementación en memoria de repository.WarehouseSettingsRepository.
type WarehouseSettingsRepo struct {
	s *Store
}

func (r *WarehouseSettingsRepo) Get(_ context.Context, warehouseID string) (*entity.WarehouseSettings, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ws, ok := r.s.data.settings[warehouseID]
	if !ok {
		return nil, nil
	}
	return &ws, nil
}
