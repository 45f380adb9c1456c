package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmastock/stock-system/internal/api/handler"
	"github.com/pharmastock/stock-system/internal/core/service"
	"github.com/pharmastock/stock-system/internal/infrastructure/db/memory"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T, checks map[string]handler.Check) *echo.Echo {
	t.Helper()

	authService := service.NewAuthService(memory.NewUserRepository(), testSecret, time.Hour, zerolog.Nop())
	if _, err := authService.EnsureDefaultAdmin(context.Background(), "admin", "admin123"); err != nil {
		t.Fatalf("EnsureDefaultAdmin: %v", err)
	}

	return NewRouter(Dependencies{
		Inventory:   service.NewInventoryService(memory.NewMedicationRepository(), zerolog.Nop()),
		Auth:        authService,
		Idempotency: memory.NewIdempotencyStore(),
		JWTSecret:   testSecret,
		Checks:      checks,
		Logger:      zerolog.Nop(),
	})
}

func do(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, e *echo.Echo, username, password string) string {
	t.Helper()
	rec := do(e, http.MethodPost, "/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (%s)", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login %s: no token in %s", username, rec.Body.String())
	}
	return resp.Token
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error envelope: %s", rec.Body.String())
	}
	return resp.Error
}

func TestRouter_InventoryFlow(t *testing.T) {
	e := newTestRouter(t, nil)
	admin := login(t, e, "admin", "admin123")

	rec := do(e, http.MethodPost, "/v1/users", admin, `{"username":"pharmacist","password":"secret1","role":"user"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	user := login(t, e, "pharmacist", "secret1")

	rec = do(e, http.MethodPost, "/v1/medications", user,
		`{"name":"Dipirona Monoidratada 500mg","batch":"A1020","expiry":"10/12/2099","manufacturer":"Medley","quantity":20}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create medication: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/v1/medications/1/stock", user, `{"amount":25,"direction":"decrease"}`)
	if rec.Code != http.StatusConflict || errorBody(t, rec) != "insufficient stock" {
		t.Fatalf("over-decrease: expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/v1/medications/1/stock", user, `{"amount":5,"direction":"decrease"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("decrease: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/v1/medications/expired", user, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Fatalf("expired: unexpected response %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/v1/reports/inventory", user, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_quantity":15`) {
		t.Fatalf("report: unexpected response %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodDelete, "/v1/medications/1", user, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/v1/medications/1", user, "")
	if rec.Code != http.StatusNotFound || errorBody(t, rec) != "medication not found" {
		t.Fatalf("get deleted: expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	e := newTestRouter(t, nil)
	admin := login(t, e, "admin", "admin123")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		code   int
	}{
		{"no token", http.MethodGet, "/v1/medications", "", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/v1/medications", "garbage", "", http.StatusUnauthorized},
		{"validation", http.MethodPost, "/v1/medications", admin, `{"name":"x","batch":"b","expiry":"2099-01-01","manufacturer":"m"}`, http.StatusUnprocessableEntity},
		{"bad id", http.MethodGet, "/v1/medications/abc", admin, "", http.StatusBadRequest},
		{"unknown id", http.MethodPatch, "/v1/medications/9", admin, `{"batch":"x"}`, http.StatusNotFound},
		{"duplicate user", http.MethodPost, "/v1/users", admin, `{"username":"admin","password":"whatever","role":"admin"}`, http.StatusConflict},
		{"unknown route", http.MethodGet, "/nope", "", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(e, tc.method, tc.path, tc.token, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d (%s)", tc.code, rec.Code, rec.Body.String())
			}
			if errorBody(t, rec) == "" {
				t.Fatalf("expected an error message")
			}
		})
	}
}

func TestRouter_LoginFailuresLookAlike(t *testing.T) {
	e := newTestRouter(t, nil)

	wrong := do(e, http.MethodPost, "/auth/login", "", `{"username":"admin","password":"wrong"}`)
	ghost := do(e, http.MethodPost, "/auth/login", "", `{"username":"ghost","password":"x"}`)
	if wrong.Code != http.StatusUnauthorized || ghost.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d / %d", wrong.Code, ghost.Code)
	}
	if wrong.Body.String() != ghost.Body.String() {
		t.Fatalf("responses differ: %s vs %s", wrong.Body.String(), ghost.Body.String())
	}
}

func TestRouter_UserCannotCreateUsers(t *testing.T) {
	e := newTestRouter(t, nil)
	admin := login(t, e, "admin", "admin123")
	if rec := do(e, http.MethodPost, "/v1/users", admin, `{"username":"clerk","password":"pass1","role":"user"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d", rec.Code)
	}
	clerk := login(t, e, "clerk", "pass1")

	rec := do(e, http.MethodPost, "/v1/users", clerk, `{"username":"x","password":"pass1","role":"admin"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_Probes(t *testing.T) {
	e := newTestRouter(t, map[string]handler.Check{
		"database": func(context.Context) error { return errors.New("down") },
	})

	if rec := do(e, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readiness: expected 503, got %d", rec.Code)
	}
	rec := do(e, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "pharmastock_http_request_duration_seconds") {
		t.Fatalf("metrics: unexpected response %d", rec.Code)
	}
}
