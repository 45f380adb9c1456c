package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmastock/stock-system/internal/core/domain"
	"github.com/pharmastock/stock-system/internal/core/service"
	"github.com/pharmastock/stock-system/internal/infrastructure/db/memory"
)

type medicationFixture struct {
	e       *echo.Echo
	repo    *memory.MedicationRepository
	handler *MedicationHandler
}

func newMedicationFixture(t *testing.T) *medicationFixture {
	t.Helper()
	repo := memory.NewMedicationRepository()
	inventory := service.NewInventoryService(repo, zerolog.Nop())
	return &medicationFixture{
		e:       newTestEcho(),
		repo:    repo,
		handler: NewMedicationHandler(inventory, memory.NewIdempotencyStore(), zerolog.Nop()),
	}
}

func (f *medicationFixture) seed(t *testing.T, name, expiry, manufacturer string, qty int) int64 {
	t.Helper()
	m, err := domain.ImportMedication(domain.MedicationFields{
		Name: name, Batch: "L1", Expiry: expiry, Manufacturer: manufacturer, Quantity: qty,
	})
	if err != nil {
		t.Fatalf("ImportMedication: %v", err)
	}
	stored, err := f.repo.Add(context.Background(), m)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return stored.ID()
}

func (f *medicationFixture) context(req *http.Request, id int64) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if id != 0 {
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatInt(id, 10))
	}
	return c, rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) domain.Snapshot {
	t.Helper()
	var s domain.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return s
}

func TestMedicationHandler_Create(t *testing.T) {
	f := newMedicationFixture(t)
	c, rec := f.context(jsonRequest(http.MethodPost, "/v1/medications",
		`{"name":"Paracetamol 750mg","batch":"B3040","expiry":"01/05/2099","manufacturer":"EMS","quantity":150}`), 0)

	if err := f.handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	s := decodeSnapshot(t, rec)
	if s.ID != 1 || s.Name != "Paracetamol 750mg" || s.Quantity != 150 || s.Expired {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/v1/medications/1" {
		t.Fatalf("unexpected location: %q", loc)
	}
}

func TestMedicationHandler_Create_Validation(t *testing.T) {
	f := newMedicationFixture(t)
	bodies := map[string]string{
		"bad date":       `{"name":"a","batch":"b","expiry":"2099-01-01","manufacturer":"m"}`,
		"past date":      `{"name":"a","batch":"b","expiry":"15/01/2024","manufacturer":"m"}`,
		"missing batch":  `{"name":"a","expiry":"01/01/2099","manufacturer":"m"}`,
		"negative stock": `{"name":"a","batch":"b","expiry":"01/01/2099","manufacturer":"m","quantity":-2}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c, _ := f.context(jsonRequest(http.MethodPost, "/v1/medications", body), 0)
			if err := f.handler.Create(c); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestMedicationHandler_Create_IdempotencyKey(t *testing.T) {
	f := newMedicationFixture(t)
	body := `{"name":"Dorflex","batch":"E9010","expiry":"30/08/2099","manufacturer":"Sanofi","quantity":5}`

	for i, want := range []int{http.StatusCreated, http.StatusOK} {
		req := jsonRequest(http.MethodPost, "/v1/medications", body)
		req.Header.Set("Idempotency-Key", "abc-123")
		c, rec := f.context(req, 0)
		if err := f.handler.Create(c); err != nil {
			t.Fatalf("call %d: handler error: %v", i, err)
		}
		if rec.Code != want {
			t.Fatalf("call %d: expected %d, got %d", i, want, rec.Code)
		}
		if s := decodeSnapshot(t, rec); s.ID != 1 {
			t.Fatalf("call %d: expected id 1, got %d", i, s.ID)
		}
	}

	all, _ := f.repo.FindAll(context.Background())
	if len(all) != 1 {
		t.Fatalf("replayed request must not insert again, have %d", len(all))
	}
}

// slowAddRepo widens the window between claiming a key and binding it.
type slowAddRepo struct {
	*memory.MedicationRepository
	delay time.Duration
}

func (r slowAddRepo) Add(ctx context.Context, m *domain.Medication) (*domain.Medication, error) {
	time.Sleep(r.delay)
	return r.MedicationRepository.Add(ctx, m)
}

func TestMedicationHandler_Create_ConcurrentIdempotencyKey(t *testing.T) {
	repo := memory.NewMedicationRepository()
	inventory := service.NewInventoryService(slowAddRepo{MedicationRepository: repo, delay: 5 * time.Millisecond}, zerolog.Nop())
	h := NewMedicationHandler(inventory, memory.NewIdempotencyStore(), zerolog.Nop())
	e := newTestEcho()
	body := `{"name":"Dorflex","batch":"E9010","expiry":"30/08/2099","manufacturer":"Sanofi","quantity":5}`

	const n = 5
	codes := make([]int, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := jsonRequest(http.MethodPost, "/v1/medications", body)
			req.Header.Set("Idempotency-Key", "same-key")
			rec := httptest.NewRecorder()
			errs[i] = h.Create(e.NewContext(req, rec))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < n; i++ {
		switch {
		case errs[i] == nil && codes[i] == http.StatusCreated:
			created++
		case errs[i] == nil && codes[i] == http.StatusOK:
		case errors.Is(errs[i], domain.ErrIdempotencyInUse):
		default:
			t.Fatalf("request %d: unexpected result code=%d err=%v", i, codes[i], errs[i])
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one 201, got %d", created)
	}

	all, _ := repo.FindAll(context.Background())
	if len(all) != 1 {
		t.Fatalf("expected 1 medication stored, have %d", len(all))
	}
}

func TestMedicationHandler_Create_FailedRegistrationFreesKey(t *testing.T) {
	f := newMedicationFixture(t)

	req := jsonRequest(http.MethodPost, "/v1/medications",
		`{"name":"Dorflex","batch":"E9010","expiry":"15/01/2024","manufacturer":"Sanofi"}`)
	req.Header.Set("Idempotency-Key", "retry-me")
	c, _ := f.context(req, 0)
	if err := f.handler.Create(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	req = jsonRequest(http.MethodPost, "/v1/medications",
		`{"name":"Dorflex","batch":"E9010","expiry":"30/08/2099","manufacturer":"Sanofi"}`)
	req.Header.Set("Idempotency-Key", "retry-me")
	c, rec := f.context(req, 0)
	if err := f.handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 after retry, got %d", rec.Code)
	}
}

func TestMedicationHandler_Get(t *testing.T) {
	f := newMedicationFixture(t)
	id := f.seed(t, "Ibuprofeno 600mg", "15/01/2024", "Teuto", 12)

	c, rec := f.context(httptest.NewRequest(http.MethodGet, "/", nil), id)
	if err := f.handler.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	s := decodeSnapshot(t, rec)
	if !s.Expired || s.ExpiryStatus != domain.ExpiryExpired {
		t.Fatalf("expected expired snapshot: %+v", s)
	}

	c, _ = f.context(httptest.NewRequest(http.MethodGet, "/", nil), 99)
	if err := f.handler.Get(c); !errors.Is(err, domain.ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}

	c, _ = f.context(httptest.NewRequest(http.MethodGet, "/", nil), 0)
	c.SetParamNames("id")
	c.SetParamValues("abc")
	var he *echo.HTTPError
	if err := f.handler.Get(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestMedicationHandler_List(t *testing.T) {
	f := newMedicationFixture(t)
	f.seed(t, "Dipirona Monoidratada 500mg", "10/12/2099", "Medley", 200)
	f.seed(t, "Ibuprofeno 600mg", "15/01/2024", "Teuto", 12)
	f.seed(t, "Clonazepam 0.5mg", "22/07/2099", "Medley", 90)

	cases := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?active=true", 2},
		{"?active=false", 3},
		{"?name=DIPIRONA", 1},
		{"?manufacturer=medley", 2},
		{"?name=o&manufacturer=teuto", 0},
		{"?name=o&manufacturer=teuto&active=false", 1},
	}
	for _, tc := range cases {
		c, rec := f.context(httptest.NewRequest(http.MethodGet, "/v1/medications"+tc.query, nil), 0)
		if err := f.handler.List(c); err != nil {
			t.Fatalf("%s: handler error: %v", tc.query, err)
		}
		var resp medicationListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: invalid json: %v", tc.query, err)
		}
		if resp.Count != tc.want || len(resp.Items) != tc.want {
			t.Fatalf("%s: expected %d items, got %d", tc.query, tc.want, resp.Count)
		}
	}

	c, _ := f.context(httptest.NewRequest(http.MethodGet, "/v1/medications?active=maybe", nil), 0)
	if err := f.handler.List(c); err == nil {
		t.Fatalf("expected error for malformed active flag")
	}
}

func TestMedicationHandler_AdjustStock(t *testing.T) {
	f := newMedicationFixture(t)
	id := f.seed(t, "Omeprazol 20mg", "12/12/2099", "Eurofarma", 10)

	c, rec := f.context(jsonRequest(http.MethodPost, "/", `{"amount":4,"direction":"decrease"}`), id)
	if err := f.handler.AdjustStock(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if s := decodeSnapshot(t, rec); s.Quantity != 6 {
		t.Fatalf("expected 6, got %d", s.Quantity)
	}

	c, _ = f.context(jsonRequest(http.MethodPost, "/", `{"amount":7,"direction":"decrease"}`), id)
	if err := f.handler.AdjustStock(c); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	c, _ = f.context(jsonRequest(http.MethodPost, "/", `{"amount":1,"direction":"increase"}`), 404)
	if err := f.handler.AdjustStock(c); !errors.Is(err, domain.ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}

	c, _ = f.context(jsonRequest(http.MethodPost, "/", `{"amount":1,"direction":"up"}`), id)
	if err := f.handler.AdjustStock(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMedicationHandler_UpdateAndSetQuantity(t *testing.T) {
	f := newMedicationFixture(t)
	id := f.seed(t, "Vitamina C 1g", "05/02/2099", "Cimed", 30)

	c, rec := f.context(jsonRequest(http.MethodPatch, "/", `{"manufacturer":"Cimed Genéricos"}`), id)
	if err := f.handler.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if s := decodeSnapshot(t, rec); s.Manufacturer != "Cimed Genéricos" || s.Name != "Vitamina C 1g" {
		t.Fatalf("unexpected snapshot: %+v", s)
	}

	c, _ = f.context(jsonRequest(http.MethodPatch, "/", `{"name":""}`), id)
	if err := f.handler.Update(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	c, rec = f.context(jsonRequest(http.MethodPut, "/", `{"quantity":0}`), id)
	if err := f.handler.SetQuantity(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if s := decodeSnapshot(t, rec); s.Quantity != 0 {
		t.Fatalf("expected 0, got %d", s.Quantity)
	}

	c, _ = f.context(jsonRequest(http.MethodPut, "/", `{}`), id)
	if err := f.handler.SetQuantity(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing quantity, got %v", err)
	}

	c, _ = f.context(jsonRequest(http.MethodPatch, "/", `{"batch":"x"}`), 404)
	if err := f.handler.Update(c); !errors.Is(err, domain.ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}
}

func TestMedicationHandler_DeleteAndReport(t *testing.T) {
	f := newMedicationFixture(t)
	keep := f.seed(t, "Azitromicina 500mg", "18/09/2099", "Pfizer", 60)
	drop := f.seed(t, "Ibuprofeno 600mg", "15/01/2024", "Teuto", 12)
	_ = keep

	c, rec := f.context(httptest.NewRequest(http.MethodDelete, "/", nil), drop)
	if err := f.handler.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	c, _ = f.context(httptest.NewRequest(http.MethodDelete, "/", nil), drop)
	if err := f.handler.Delete(c); !errors.Is(err, domain.ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}

	c, rec = f.context(httptest.NewRequest(http.MethodGet, "/", nil), 0)
	if err := f.handler.Report(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var report struct {
		Total   int `json:"total_medications"`
		Expired int `json:"expired_medications"`
		Qty     int `json:"total_quantity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if report.Total != 1 || report.Expired != 0 || report.Qty != 60 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
