package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jhoicas/lp-engine/internal/domain"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/domain/picking"
	"github.com/jhoicas/lp-engine/internal/domain/repository"
)

var lpCols = []string{"id", "lp_number", "product_id", "warehouse_id", "location_id", "quantity",
	"uom", "status", "qa_status", "batch_number", "expiry_date", "created_at", "updated_at"}

var resCols = []string{"id", "license_plate_id", "work_order_id", "transfer_order_id", "material_id",
	"reserved_qty", "consumed_qty", "status", "reserved_at", "released_at", "reserved_by"}

type RepositoryTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	ctx     context.Context
	created time.Time
}

func (s *RepositoryTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(s.T(), err)
	s.mock = mock
	s.ctx = context.Background()
	s.created = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
}

func (s *RepositoryTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func (s *RepositoryTestSuite) lpRow(rows *pgxmock.Rows, id string, expiry *time.Time) *pgxmock.Rows {
	return rows.AddRow(id, "LP-"+id, "prod-1", "wh-1", "loc-1", decimal.NewFromInt(100),
		"kg", "available", "passed", "B-01", expiry, s.created, s.created)
}

func (s *RepositoryTestSuite) TestLicensePlate_GetForUpdate() {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery(`SELECT .* FROM license_plates WHERE id = \$1 FOR UPDATE`).
		WithArgs("lp-1").
		WillReturnRows(s.lpRow(pgxmock.NewRows(lpCols), "lp-1", &expiry))

	lp, err := NewLicensePlateRepository(s.mock).GetForUpdate(s.ctx, "lp-1")
	s.Require().NoError(err)
	s.Require().NotNil(lp)
	s.Equal(entity.LPStatusAvailable, lp.Status)
	s.Equal(entity.QAStatusPassed, lp.QAStatus)
	s.True(lp.Quantity.Equal(decimal.NewFromInt(100)))
	s.Require().NotNil(lp.ExpiryDate)
	s.Equal(expiry, *lp.ExpiryDate)
}

func (s *RepositoryTestSuite) TestLicensePlate_GetByIDNoExiste() {
	s.mock.ExpectQuery(`SELECT .* FROM license_plates WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(lpCols))

	lp, err := NewLicensePlateRepository(s.mock).GetByID(s.ctx, "nope")
	s.NoError(err)
	s.Nil(lp)
}

func (s *RepositoryTestSuite) TestIDNoUUIDEquivaleANoExiste() {
	invalid := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}
	s.mock.ExpectQuery(`FROM license_plates WHERE id = \$1$`).WithArgs("abc").WillReturnError(invalid)
	s.mock.ExpectQuery(`FROM license_plates WHERE id = \$1 FOR UPDATE`).WithArgs("abc").WillReturnError(invalid)
	s.mock.ExpectQuery(`FROM lp_reservations WHERE id = \$1$`).WithArgs("abc").WillReturnError(invalid)
	s.mock.ExpectQuery(`FROM lp_reservations WHERE id = \$1 FOR UPDATE`).WithArgs("abc").WillReturnError(invalid)
	s.mock.ExpectQuery(`FROM license_plates WHERE product_id = \$1`).
		WithArgs("abc", pgxmock.AnyArg()).WillReturnError(invalid)
	s.mock.ExpectQuery(`FROM warehouse_settings WHERE warehouse_id = \$1`).WithArgs("abc").WillReturnError(invalid)

	lps := NewLicensePlateRepository(s.mock)
	reservations := NewReservationRepository(s.mock)

	lp, err := lps.GetByID(s.ctx, "abc")
	s.NoError(err)
	s.Nil(lp)
	lp, err = lps.GetForUpdate(s.ctx, "abc")
	s.NoError(err)
	s.Nil(lp)
	r, err := reservations.GetByID(s.ctx, "abc")
	s.NoError(err)
	s.Nil(r)
	r, err = reservations.GetForUpdate(s.ctx, "abc")
	s.NoError(err)
	s.Nil(r)
	list, err := lps.FindAvailable(s.ctx, "abc", repository.LicensePlateFilter{}, picking.StrategyFIFO)
	s.NoError(err)
	s.NotNil(list)
	s.Empty(list)
	ws, err := NewWarehouseSettingsRepository(s.mock).Get(s.ctx, "abc")
	s.NoError(err)
	s.Nil(ws)
}

func (s *RepositoryTestSuite) TestLicensePlate_GetByIDOtroErrorSePropaga() {
	s.mock.ExpectQuery(`FROM license_plates WHERE id = \$1`).
		WithArgs("lp-1").
		WillReturnError(&pgconn.PgError{Code: "57014"})

	_, err := NewLicensePlateRepository(s.mock).GetByID(s.ctx, "lp-1")
	s.Require().Error(err)
	s.NotErrorIs(err, domain.ErrNotFound)
}

func (s *RepositoryTestSuite) TestLicensePlate_FindAvailableFEFO() {
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := s.lpRow(pgxmock.NewRows(lpCols), "b", &expiry)
	rows = s.lpRow(rows, "n", nil)

	s.mock.ExpectQuery(`FROM license_plates WHERE product_id = \$1 AND status = 'available' AND qa_status = 'passed' `+
		`AND \(expiry_date IS NULL OR expiry_date >= \$2\) AND warehouse_id = \$3 `+
		`ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC LIMIT \$4`).
		WithArgs("prod-1", pgxmock.AnyArg(), "wh-1", 10).
		WillReturnRows(rows)

	lps, err := NewLicensePlateRepository(s.mock).FindAvailable(s.ctx, "prod-1", repository.LicensePlateFilter{
		WarehouseID: "wh-1",
		Limit:       10,
		Today:       time.Date(2026, 2, 20, 15, 0, 0, 0, time.UTC),
	}, picking.StrategyFEFO)
	s.Require().NoError(err)
	s.Require().Len(lps, 2)
	s.Equal("b", lps[0].ID)
	s.Nil(lps[1].ExpiryDate)
}

func (s *RepositoryTestSuite) TestLicensePlate_FindAvailableFIFOSinFiltros() {
	s.mock.ExpectQuery(`AND \(expiry_date IS NULL OR expiry_date >= \$2\) ORDER BY created_at ASC, id ASC$`).
		WithArgs("prod-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(lpCols))

	lps, err := NewLicensePlateRepository(s.mock).FindAvailable(s.ctx, "prod-1", repository.LicensePlateFilter{}, picking.StrategyFIFO)
	s.NoError(err)
	s.NotNil(lps)
	s.Empty(lps)
}

func (s *RepositoryTestSuite) TestLicensePlate_UpdateState() {
	s.mock.ExpectExec(`UPDATE license_plates SET status = \$2, quantity = \$3`).
		WithArgs("lp-1", "reserved", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := NewLicensePlateRepository(s.mock).UpdateState(s.ctx, &entity.LicensePlate{
		ID: "lp-1", Status: entity.LPStatusReserved, Quantity: decimal.NewFromInt(5),
	})
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestLicensePlate_ListOverReserved() {
	s.mock.ExpectQuery(`HAVING SUM\(r.reserved_qty - r.consumed_qty\) > lp.quantity`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "quantity", "reserved"}).
			AddRow("lp-9", decimal.NewFromInt(10), decimal.NewFromInt(12)))

	units, err := NewLicensePlateRepository(s.mock).ListOverReserved(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(units, 1)
	s.Equal("lp-9", units[0].LicensePlateID)
	s.True(units[0].Reserved.Equal(decimal.NewFromInt(12)))
}

func (s *RepositoryTestSuite) TestReservation_CreateLPInexistente() {
	s.mock.ExpectExec(`INSERT INTO lp_reservations`).
		WithArgs("r-1", "lp-x", pgxmock.AnyArg(), pgxmock.AnyArg(), "mat-1",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "active", pgxmock.AnyArg(), "user-1").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := NewReservationRepository(s.mock).Create(s.ctx, &entity.Reservation{
		ID: "r-1", LicensePlateID: "lp-x", Consumer: entity.WorkOrder("wo-1"), MaterialID: "mat-1",
		ReservedQty: decimal.NewFromInt(3), Status: entity.ReservationActive, ReservedAt: s.created, ReservedBy: "user-1",
	})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositoryTestSuite) TestReservation_GetByIDReconstruyeConsumidor() {
	s.mock.ExpectQuery(`SELECT .* FROM lp_reservations WHERE id = \$1`).
		WithArgs("r-1").
		WillReturnRows(pgxmock.NewRows(resCols).AddRow(
			"r-1", "lp-1", nil, strPtr("to-7"), "mat-1",
			decimal.NewFromInt(10), decimal.NewFromInt(4), "active", s.created, nil, "user-1"))

	r, err := NewReservationRepository(s.mock).GetByID(s.ctx, "r-1")
	s.Require().NoError(err)
	s.Require().NotNil(r)
	s.Equal(entity.TransferOrder("to-7"), r.Consumer)
	s.Equal("6", r.RemainingQty().String())
	s.Nil(r.ReleasedAt)
}

func (s *RepositoryTestSuite) TestReservation_FilaSinConsumidorEsInvalida() {
	s.mock.ExpectQuery(`FROM lp_reservations WHERE id = \$1 FOR UPDATE`).
		WithArgs("r-2").
		WillReturnRows(pgxmock.NewRows(resCols).AddRow(
			"r-2", "lp-1", nil, nil, "",
			decimal.NewFromInt(10), decimal.Zero, "active", s.created, nil, ""))

	_, err := NewReservationRepository(s.mock).GetForUpdate(s.ctx, "r-2")
	s.ErrorIs(err, domain.ErrInvalidInput)
}

func (s *RepositoryTestSuite) TestReservation_SumActiveRemaining() {
	s.mock.ExpectQuery(`SELECT COALESCE\(SUM\(reserved_qty - consumed_qty\), 0\), COUNT\(\*\) FROM lp_reservations`).
		WithArgs("lp-1").
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(decimal.RequireFromString("12.5"), int64(2)))

	sum, n, err := NewReservationRepository(s.mock).SumActiveRemaining(s.ctx, "lp-1")
	s.Require().NoError(err)
	s.Equal("12.5", sum.String())
	s.Equal(2, n)
}

func (s *RepositoryTestSuite) TestReservation_ListByConsumerTransferActivas() {
	s.mock.ExpectQuery(`WHERE transfer_order_id = \$1 AND status = 'active' ORDER BY reserved_at ASC, id ASC`).
		WithArgs("to-1").
		WillReturnRows(pgxmock.NewRows(resCols).AddRow(
			"r-1", "lp-1", nil, strPtr("to-1"), "mat-1",
			decimal.NewFromInt(5), decimal.Zero, "active", s.created, nil, "user-1"))

	list, err := NewReservationRepository(s.mock).ListByConsumer(s.ctx, entity.TransferOrder("to-1"), true)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *RepositoryTestSuite) TestReservation_Update() {
	now := s.created.Add(time.Hour)
	s.mock.ExpectExec(`UPDATE lp_reservations SET reserved_qty = \$2, consumed_qty = \$3, status = \$4, released_at = \$5`).
		WithArgs("r-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "released", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := NewReservationRepository(s.mock).Update(s.ctx, &entity.Reservation{
		ID: "r-1", ReservedQty: decimal.NewFromInt(5), Status: entity.ReservationReleased, ReleasedAt: &now,
	})
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestWarehouseSettings_Get() {
	s.mock.ExpectQuery(`FROM warehouse_settings WHERE warehouse_id = \$1`).
		WithArgs("wh-1").
		WillReturnRows(pgxmock.NewRows([]string{"warehouse_id", "enable_fifo", "enable_fefo", "fefo_warning_days"}).
			AddRow("wh-1", true, true, intPtr(10)))
	s.mock.ExpectQuery(`FROM warehouse_settings WHERE warehouse_id = \$1`).
		WithArgs("wh-2").
		WillReturnRows(pgxmock.NewRows([]string{"warehouse_id", "enable_fifo", "enable_fefo", "fefo_warning_days"}))
	s.mock.ExpectQuery(`FROM warehouse_settings WHERE warehouse_id = \$1`).
		WithArgs("wh-3").
		WillReturnRows(pgxmock.NewRows([]string{"warehouse_id", "enable_fifo", "enable_fefo", "fefo_warning_days"}).
			AddRow("wh-3", true, false, nil))

	repo := NewWarehouseSettingsRepository(s.mock)
	ws, err := repo.Get(s.ctx, "wh-1")
	s.Require().NoError(err)
	s.Require().NotNil(ws)
	s.Equal(picking.StrategyFEFO, picking.ResolveStrategy(*ws))
	s.Equal(10, ws.WarningDays())

	ws, err = repo.Get(s.ctx, "wh-2")
	s.NoError(err)
	s.Nil(ws)

	ws, err = repo.Get(s.ctx, "wh-3")
	s.Require().NoError(err)
	s.Require().NotNil(ws)
	s.Nil(ws.FEFOWarningDays, "NULL queda sin definir")
}

func (s *RepositoryTestSuite) TestTxRunner_CommitYRollback() {
	runner := NewTxRunner(s.mock)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE license_plates`).
		WithArgs("lp-1", "reserved", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectCommit()

	err := runner.Run(s.ctx, func(units repository.LicensePlateRepository, _ repository.ReservationRepository) error {
		return units.UpdateState(s.ctx, &entity.LicensePlate{ID: "lp-1", Status: entity.LPStatusReserved, Quantity: decimal.NewFromInt(1)})
	})
	s.NoError(err)

	s.mock.ExpectBegin()
	s.mock.ExpectRollback()
	boom := errors.New("boom")
	err = runner.Run(s.ctx, func(repository.LicensePlateRepository, repository.ReservationRepository) error {
		return boom
	})
	s.ErrorIs(err, boom)
}
