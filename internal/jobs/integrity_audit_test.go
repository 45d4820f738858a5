package jobs

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
	"github.com/jhoicas/lp-engine/internal/infrastructure/memory"
	"github.com/jhoicas/lp-engine/pkg/logger"
)

func TestIntegrityAuditor_RegistraLPsSobreReservadas(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.PutLicensePlate(entity.LicensePlate{
		ID: "lp-ok", ProductID: "p", Quantity: decimal.NewFromInt(100),
		Status: entity.LPStatusAvailable, QAStatus: entity.QAStatusPassed, CreatedAt: now,
	})
	store.PutLicensePlate(entity.LicensePlate{
		ID: "lp-mal", ProductID: "p", Quantity: decimal.NewFromInt(10),
		Status: entity.LPStatusReserved, QAStatus: entity.QAStatusPassed, CreatedAt: now,
	})
	// Escrituras directas que saltan el libro de reservas.
	store.PutReservation(entity.Reservation{
		ID: "r1", LicensePlateID: "lp-mal", Consumer: entity.WorkOrder("wo1"),
		ReservedQty: decimal.NewFromInt(15), Status: entity.ReservationActive, ReservedAt: now,
	})
	store.PutReservation(entity.Reservation{
		ID: "r2", LicensePlateID: "lp-ok", Consumer: entity.WorkOrder("wo1"),
		ReservedQty: decimal.NewFromInt(30), Status: entity.ReservationActive, ReservedAt: now,
	})

	var buf bytes.Buffer
	auditor := NewIntegrityAuditor(store.LicensePlates(), logger.NewWithWriter(&buf, "info"))

	found, err := auditor.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "lp-mal", found[0].LicensePlateID)
	assert.True(t, found[0].Reserved.Equal(decimal.NewFromInt(15)))

	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"license_plate_id":"lp-mal"`)
	assert.Contains(t, out, `"component":"audit"`)
	assert.NotContains(t, out, "lp-ok")
}

func TestIntegrityAuditor_SinHallazgos(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewIntegrityAuditor(memory.NewStore().LicensePlates(), logger.NewWithWriter(&buf, "info"))

	found, err := auditor.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Empty(t, buf.String())
}

type failingLister struct{}

func (failingLister) ListOverReserved(context.Context) ([]repository.OverReservedUnit, error) {
	return nil, errors.New("conexión perdida")
}

func TestIntegrityAuditor_ErrorDelRepositorio(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewIntegrityAuditor(failingLister{}, logger.NewWithWriter(&buf, "info"))

	_, err := auditor.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conexión perdida")
	assert.Contains(t, buf.String(), "auditoría de reservas falló")
}

func TestScheduler_RegistraAuditoria(t *testing.T) {
	auditor := NewIntegrityAuditor(memory.NewStore().LicensePlates(), nil)

	s, err := NewScheduler(auditor, time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"reservation-integrity-audit"}, s.Jobs())
	s.Start()
	require.NoError(t, s.Stop())

	idle, err := NewScheduler(auditor, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, idle.Jobs())
	require.NoError(t, idle.Stop())
}
