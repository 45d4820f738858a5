package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
	"github.com/jhoicas/lp-engine/internal/infrastructure/memory"
	"github.com/jhoicas/lp-engine/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/lp-engine/internal/interfaces/http"
)

type apiFixture struct {
	app   *fiber.App
	store *memory.Store
	t     *testing.T
}

func days(n int) *int { return &n }

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	ledger := allocation.NewLedger(memory.NewTxRunner(store), store.LicensePlates(), store.Reservations(),
		nil, pdf.NewMarotoPickListGenerator(), nil)
	locator := allocation.NewLocator(store.LicensePlates(), store.Settings(), entity.WarehouseSettings{
		EnableFIFO: true, FEFOWarningDays: days(7),
	})
	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler})
	apphttp.Router(app, apphttp.RouterDeps{
		Locator:   locator,
		Ledger:    ledger,
		Allocator: allocation.NewAllocator(locator, ledger, nil),
		JWTSecret: testJWTSecret,
	})
	return &apiFixture{app: app, store: store, t: t}
}

// addLP carga una LP sin vencimiento; age ordena FIFO (más viejo primero).
func (f *apiFixture) addLP(id, quantity string, age time.Duration) {
	f.store.PutLicensePlate(entity.LicensePlate{
		ID: id, LPNumber: "LP-" + id, ProductID: "prod-1", WarehouseID: "wh-1", LocationID: "A-01",
		Quantity: decimal.RequireFromString(quantity), UOM: "un",
		Status: entity.LPStatusAvailable, QAStatus: entity.QAStatusPassed,
		CreatedAt: time.Now().Add(-age),
	})
}

func (f *apiFixture) do(method, path, role, body string) (*http.Response, []byte) {
	f.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(f.t, role))
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	return resp, raw
}

func decode(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m), string(raw))
	return m
}

func (f *apiFixture) reserve(lpID, consumerID, q string) map[string]interface{} {
	f.t.Helper()
	resp, raw := f.do(http.MethodPost, "/api/reservations", "bodeguero",
		`{"license_plate_id":"`+lpID+`","consumer_type":"work_order","consumer_id":"`+consumerID+`","material_id":"mat-1","quantity":"`+q+`"}`)
	require.Equal(f.t, http.StatusCreated, resp.StatusCode, string(raw))
	return decode(f.t, raw)
}

func TestAPI_SinToken(t *testing.T) {
	f := newAPI(t)
	resp, raw := f.do(http.MethodGet, "/api/reservations?consumer_type=work_order&consumer_id=wo1", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(raw), "MISSING_TOKEN")

	resp, _ = f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_CrearReservaYSobreReserva(t *testing.T) {
	f := newAPI(t)
	f.addLP("u1", "100", time.Hour)

	body := f.reserve("u1", "wo1", "60")
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "60", body["remaining_qty"])
	assert.Equal(t, testUserID, body["reserved_by"])

	resp, raw := f.do(http.MethodGet, "/api/license-plates/u1/available-qty", "vendedor", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "40", decode(t, raw)["available"])

	resp, raw = f.do(http.MethodPost, "/api/reservations", "admin",
		`{"license_plate_id":"u1","consumer_type":"work_order","consumer_id":"wo2","quantity":50}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "OVER_RESERVATION", decode(t, raw)["code"])
}

func TestAPI_CrearReserva_Validacion(t *testing.T) {
	f := newAPI(t)
	f.addLP("u1", "100", time.Hour)

	cases := []string{
		`{"license_plate_id":"u1","consumer_id":"wo1","quantity":"5"}`,
		`{"license_plate_id":"u1","consumer_type":"sales_order","consumer_id":"wo1","quantity":"5"}`,
		`{"license_plate_id":"u1","consumer_type":"work_order","consumer_id":"wo1","quantity":"0"}`,
		`{"consumer_type":"work_order","consumer_id":"wo1","quantity":"5"}`,
	}
	for _, body := range cases {
		resp, raw := f.do(http.MethodPost, "/api/reservations", "admin", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, "VALIDATION", decode(t, raw)["code"], body)
	}

	resp, _ := f.do(http.MethodPost, "/api/reservations", "admin", `{no es json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_LPInexistenteYReservaInexistente(t *testing.T) {
	f := newAPI(t)
	resp, raw := f.do(http.MethodPost, "/api/reservations", "admin",
		`{"license_plate_id":"nada","consumer_type":"work_order","consumer_id":"wo1","quantity":"1"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(raw))

	resp, raw = f.do(http.MethodGet, "/api/reservations/no-existe", "admin", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode(t, raw)["code"])
}

func TestAPI_VendedorNoPuedeEscribir(t *testing.T) {
	f := newAPI(t)
	f.addLP("u1", "100", time.Hour)

	resp, raw := f.do(http.MethodPost, "/api/reservations", "vendedor",
		`{"license_plate_id":"u1","consumer_type":"work_order","consumer_id":"wo1","quantity":"5"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(raw), "FORBIDDEN")

	resp, _ = f.do(http.MethodGet, "/api/reservations?consumer_type=work_order&consumer_id=wo1", "vendedor", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_ConsumirLiberarYActualizar(t *testing.T) {
	f := newAPI(t)
	f.addLP("u1", "100", time.Hour)
	id := f.reserve("u1", "wo1", "40")["id"].(string)

	resp, raw := f.do(http.MethodPost, "/api/reservations/"+id+"/consume", "bodeguero", `{"quantity":"41"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "OVER_CONSUMPTION", decode(t, raw)["code"])

	resp, raw = f.do(http.MethodPost, "/api/reservations/"+id+"/consume", "bodeguero", `{"quantity":"10"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	body := decode(t, raw)
	assert.Equal(t, "10", body["consumed_qty"])
	assert.Equal(t, "30", body["remaining_qty"])

	resp, raw = f.do(http.MethodPut, "/api/reservations/"+id, "bodeguero", `{"quantity":"5"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "no puede quedar por debajo de lo consumido: %s", raw)

	resp, raw = f.do(http.MethodPut, "/api/reservations/"+id, "bodeguero", `{"quantity":"20"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "20", decode(t, raw)["reserved_qty"])

	resp, raw = f.do(http.MethodPost, "/api/reservations/"+id+"/release", "bodeguero", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	body = decode(t, raw)
	assert.Equal(t, "released", body["status"])
	assert.NotEmpty(t, body["released_at"])

	resp, raw = f.do(http.MethodPost, "/api/reservations/"+id+"/release", "bodeguero", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", decode(t, raw)["code"])
}

func TestAPI_ListarYLiberarTodas(t *testing.T) {
	f := newAPI(t)
	f.addLP("u1", "100", 2*time.Hour)
	f.addLP("u2", "100", time.Hour)
	f.reserve("u1", "wo1", "10")
	f.reserve("u2", "wo1", "20")
	f.reserve("u2", "wo2", "5")

	resp, raw := f.do(http.MethodGet, "/api/reservations?consumer_type=work_order&consumer_id=wo1", "admin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 2)

	resp, _ = f.do(http.MethodGet, "/api/reservations?consumer_type=work_order", "admin", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = f.do(http.MethodPost, "/api/reservations/release-all", "admin",
		`{"consumer_type":"work_order","consumer_id":"wo1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, float64(2), decode(t, raw)["released"])

	resp, raw = f.do(http.MethodGet, "/api/license-plates/u2/available-qty", "admin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "95", decode(t, raw)["available"])
}

func TestAPI_Cobertura(t *testing.T) {
	f := newAPI(t)
	f.addLP("u1", "100", time.Hour)
	f.reserve("u1", "wo1", "80")

	resp, raw := f.do(http.MethodGet,
		"/api/reservations/coverage?consumer_type=work_order&consumer_id=wo1&required_qty=100", "admin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	body := decode(t, raw)
	assert.Equal(t, "partial", body["status"])
	assert.Equal(t, float64(80), body["coverage_percent"])
	assert.Equal(t, "20", body["shortage"])

	resp, _ = f.do(http.MethodGet,
		"/api/reservations/coverage?consumer_type=work_order&consumer_id=wo1&required_qty=abc", "admin", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_HojaDePicking(t *testing.T) {
	f := newAPI(t)
	f.addLP("u1", "100", time.Hour)

	resp, _ := f.do(http.MethodGet, "/api/reservations/pick-list?consumer_type=work_order&consumer_id=wo1", "admin", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "sin reservas activas")

	f.reserve("u1", "wo1", "25")
	resp, raw := f.do(http.MethodGet, "/api/reservations/pick-list?consumer_type=work_order&consumer_id=wo1", "admin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "picking_work_order_wo1.pdf")
	assert.True(t, strings.HasPrefix(string(raw), "%PDF"))
}

func TestAPI_AsignacionConFaltante(t *testing.T) {
	f := newAPI(t)
	f.addLP("unit1", "50", 3*time.Hour)
	f.addLP("unit2", "60", 2*time.Hour)
	f.addLP("unit3", "100", time.Hour)

	resp, raw := f.do(http.MethodPost, "/api/allocations", "bodeguero",
		`{"product_id":"prod-1","warehouse_id":"wh-1","quantity":"300","consumer_type":"work_order","consumer_id":"wo1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var body struct {
		Strategy    string `json:"strategy"`
		Allocations []struct {
			LicensePlateID string `json:"license_plate_id"`
			Quantity       string `json:"quantity"`
		} `json:"allocations"`
		TotalAllocated string   `json:"total_allocated"`
		Shortfall      string   `json:"shortfall"`
		Suggested      string   `json:"suggested_license_plate_id"`
		Warnings       []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "fifo", body.Strategy)
	require.Len(t, body.Allocations, 3)
	assert.Equal(t, "unit1", body.Allocations[0].LicensePlateID)
	assert.Equal(t, "50", body.Allocations[0].Quantity)
	assert.Equal(t, "210", body.TotalAllocated)
	assert.Equal(t, "90", body.Shortfall)
	assert.Equal(t, "unit1", body.Suggested)
	assert.Len(t, body.Warnings, 1)

	resp, _ = f.do(http.MethodPost, "/api/allocations", "bodeguero",
		`{"product_id":"prod-1","quantity":"10","consumer_type":"work_order","consumer_id":"wo1","strategy":"lifo"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = f.do(http.MethodPost, "/api/allocations", "bodeguero",
		`{"product_id":"prod-1","quantity":"10","consumer_type":"work_order","consumer_id":"wo2","strategy":"FEFO"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	assert.Equal(t, "fefo", decode(t, raw)["strategy"])
}

func TestAPI_LPsDisponiblesYEstrategia(t *testing.T) {
	f := newAPI(t)
	f.addLP("nuevo", "10", time.Hour)
	f.addLP("viejo", "10", 5*time.Hour)
	f.store.PutSettings(entity.WarehouseSettings{WarehouseID: "wh-2", EnableFIFO: true, EnableFEFO: true, FEFOWarningDays: days(3)})

	resp, raw := f.do(http.MethodGet, "/api/license-plates/available?product_id=prod-1&warehouse_id=wh-1", "vendedor", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var body struct {
		Strategy      string `json:"strategy"`
		LicensePlates []struct {
			ID string `json:"id"`
		} `json:"license_plates"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "fifo", body.Strategy)
	require.Len(t, body.LicensePlates, 2)
	assert.Equal(t, "viejo", body.LicensePlates[0].ID)

	resp, _ = f.do(http.MethodGet, "/api/license-plates/available?warehouse_id=wh-1", "vendedor", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = f.do(http.MethodGet, "/api/license-plates/available?product_id=prod-1&limit=abc", "vendedor", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", decode(t, raw)["code"])
	resp, _ = f.do(http.MethodGet, "/api/license-plates/available?product_id=prod-1&limit=-1", "vendedor", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = f.do(http.MethodGet, "/api/license-plates/available?product_id=prod-1&limit=1&strategy=FIFO", "vendedor", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.LicensePlates, 1)
	assert.Equal(t, "viejo", body.LicensePlates[0].ID)

	resp, raw = f.do(http.MethodGet, "/api/picking/strategy?warehouse_id=wh-2", "vendedor", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode(t, raw)
	assert.Equal(t, "fefo", st["strategy"])
	assert.Equal(t, float64(3), st["fefo_warning_days"])

	resp, _ = f.do(http.MethodGet, "/api/picking/strategy", "vendedor", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_VerificarViolacion(t *testing.T) {
	f := newAPI(t)

	resp, raw := f.do(http.MethodPost, "/api/picking/violations/check", "vendedor",
		`{"selected_license_plate_id":"b","suggested_license_plate_id":"a","strategy":"FEFO"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	body := decode(t, raw)
	assert.Equal(t, true, body["violated"])
	assert.Equal(t, "fefo_violation", body["type"])

	resp, raw = f.do(http.MethodPost, "/api/picking/violations/check", "vendedor",
		`{"selected_license_plate_id":"a","suggested_license_plate_id":"a","strategy":"fifo"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode(t, raw)["violated"])
}
