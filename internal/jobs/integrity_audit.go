// Package jobs tareas periódicas del motor (gocron).
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/jhoicas/lp-engine/internal/domain/repository"
	"github.com/jhoicas/lp-engine/pkg/logger"
)

// OverReservedLister la parte del repositorio de LPs que usa la auditoría.
type OverReservedLister interface {
	ListOverReserved(ctx context.Context) ([]repository.OverReservedUnit, error)
}

// IntegrityAuditor revisa que ninguna LP tenga más pendiente activo que su cantidad física.
// Cualquier hallazgo es un bug o una escritura fuera del motor; sólo se registra.
type IntegrityAuditor struct {
	units   OverReservedLister
	log     *logger.Logger
	timeout time.Duration
}

// NewIntegrityAuditor construye el auditor.
func NewIntegrityAuditor(units OverReservedLister, log *logger.Logger) *IntegrityAuditor {
	if log == nil {
		log = logger.Nop()
	}
	return &IntegrityAuditor{units: units, log: log.Component("audit"), timeout: time.Minute}
}

// Run ejecuta una pasada y devuelve las LPs sobre-reservadas encontradas.
func (a *IntegrityAuditor) Run(ctx context.Context) ([]repository.OverReservedUnit, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	found, err := a.units.ListOverReserved(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("auditoría de reservas falló")
		return nil, fmt.Errorf("integrity audit: %w", err)
	}
	for _, u := range found {
		a.log.Error().
			Str("license_plate_id", u.LicensePlateID).
			Str("quantity", u.Quantity.String()).
			Str("reserved", u.Reserved.String()).
			Msg("LP sobre-reservada")
	}
	a.log.Debug().Int("over_reserved", len(found)).Msg("auditoría de reservas completada")
	return found, nil
}

// Scheduler envoltorio de gocron con las tareas del motor.
type Scheduler struct {
	scheduler gocron.Scheduler
	log       *logger.Logger
}

// NewScheduler registra la auditoría cada interval. interval <= 0 no registra tareas.
func NewScheduler(auditor *IntegrityAuditor, interval time.Duration, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if interval > 0 {
		_, err = s.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				_, _ = auditor.Run(context.Background())
			}),
			gocron.WithName("reservation-integrity-audit"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("register integrity audit: %w", err)
		}
	}
	return &Scheduler{scheduler: s, log: log.Component("scheduler")}, nil
}

// Start arranca las tareas en segundo plano.
func (s *Scheduler) Start() {
	s.log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("scheduler iniciado")
	s.scheduler.Start()
}

// Stop detiene el scheduler y espera las tareas en curso.
func (s *Scheduler) Stop() error {
	s.log.Info().Msg("scheduler detenido")
	return s.scheduler.Shutdown()
}

// Jobs nombres de las tareas registradas.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Name())
	}
	return out
}
