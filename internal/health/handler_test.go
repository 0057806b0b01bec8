package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type fixedCounter int

func (c fixedCounter) Count() int { return int(c) }

func TestLiveness(t *testing.T) {
	h := NewHandler(nil, fixedCounter(0), "1.0.0")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	if err := h.Liveness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("liveness: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q", body["status"])
	}
}

func TestReadiness_DegradedWithoutRedis(t *testing.T) {
	h := NewHandler(nil, fixedCounter(2), "1.0.0")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz/ready", nil)
	rec := httptest.NewRecorder()
	if err := h.Readiness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("readiness: %v", err)
	}

	var resp ReadinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusDegraded {
		t.Fatalf("status = %s", resp.Status)
	}
	if resp.Sessions != 2 {
		t.Fatalf("sessions = %d", resp.Sessions)
	}
	if resp.Components["redis"].Status != StatusDegraded {
		t.Fatalf("redis component = %+v", resp.Components["redis"])
	}
	if resp.Version != "1.0.0" {
		t.Fatalf("version = %q", resp.Version)
	}
}
