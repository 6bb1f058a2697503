package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func resetHealth() {
	health = &healthState{
		reports:  make(map[string]report),
		critical: map[string]bool{"router": true, "store": true},
		started:  time.Now(),
	}
}

func TestReportHealth(t *testing.T) {
	resetHealth()

	ReportHealth("router", true, "")

	rep, ok := health.reports["router"]
	if !ok {
		t.Fatal("expected router report to be recorded")
	}
	if !rep.healthy {
		t.Error("router should be healthy")
	}
	if rep.updated.IsZero() {
		t.Error("report should carry an update timestamp")
	}
}

func TestHealth_AllHealthy(t *testing.T) {
	resetHealth()
	SetVersion("1.0.0")

	ReportHealth("router", true, "")
	ReportHealth("store", true, "")

	s := Health()
	if s.Status != StatusHealthy {
		t.Errorf("expected status %q, got %q", StatusHealthy, s.Status)
	}
	if len(s.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(s.Components))
	}
	if s.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", s.Version)
	}
}

func TestHealth_NonCriticalFailureDegrades(t *testing.T) {
	resetHealth()

	ReportHealth("router", true, "")
	ReportHealth("store", true, "")
	ReportHealth("peer-transport", false, "dial timeout")

	s := Health()
	if s.Status != StatusDegraded {
		t.Errorf("expected status %q, got %q", StatusDegraded, s.Status)
	}
	if s.Components["peer-transport"] != "unhealthy: dial timeout" {
		t.Errorf("unexpected peer-transport status: %s", s.Components["peer-transport"])
	}
}

func TestHealth_CriticalFailureIsUnhealthy(t *testing.T) {
	resetHealth()

	ReportHealth("router", false, "no actors spawned")
	ReportHealth("peer-transport", false, "dial timeout")

	s := Health()
	if s.Status != StatusUnhealthy {
		t.Errorf("expected status %q, got %q", StatusUnhealthy, s.Status)
	}
}

func TestReadiness_AllReported(t *testing.T) {
	resetHealth()

	ReportHealth("router", true, "")
	ReportHealth("store", true, "")

	s := Readiness()
	if s.Status != StatusHealthy {
		t.Errorf("expected status %q, got %q", StatusHealthy, s.Status)
	}
	if len(s.Waiting) != 0 {
		t.Errorf("expected nothing waiting, got %v", s.Waiting)
	}
}

func TestReadiness_UnreportedCriticalIsWaiting(t *testing.T) {
	resetHealth()

	ReportHealth("router", true, "")
	// store has not reported in yet.

	s := Readiness()
	if s.Status != StatusUnhealthy {
		t.Errorf("expected status %q, got %q", StatusUnhealthy, s.Status)
	}
	if len(s.Waiting) != 1 || s.Waiting[0] != "store" {
		t.Errorf("expected waiting=[store], got %v", s.Waiting)
	}
	if s.Components["store"] != "not reported" {
		t.Errorf("unexpected store status: %s", s.Components["store"])
	}
}

func TestReadiness_CriticalUnhealthyIsNotReady(t *testing.T) {
	resetHealth()

	ReportHealth("router", false, "no actors spawned")
	ReportHealth("store", true, "")

	s := Readiness()
	if s.Status != StatusUnhealthy {
		t.Errorf("expected status %q, got %q", StatusUnhealthy, s.Status)
	}
	if s.Components["router"] != "unhealthy: no actors spawned" {
		t.Errorf("unexpected router status: %s", s.Components["router"])
	}
}

func TestReadiness_NonCriticalFailureIsIgnored(t *testing.T) {
	resetHealth()

	ReportHealth("router", true, "")
	ReportHealth("store", true, "")
	ReportHealth("peer-transport", false, "dial timeout")

	s := Readiness()
	if s.Status != StatusHealthy {
		t.Errorf("non-critical failure must not gate readiness, got %q", s.Status)
	}
}

func TestMarkCritical(t *testing.T) {
	resetHealth()
	MarkCritical("router")

	ReportHealth("router", true, "")
	// store never reports, but it is no longer critical.

	s := Readiness()
	if s.Status != StatusHealthy {
		t.Errorf("expected status %q, got %q", StatusHealthy, s.Status)
	}
}

func TestHealthHandler(t *testing.T) {
	resetHealth()

	ReportHealth("router", true, "")
	ReportHealth("store", true, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	HealthHandler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var s Summary
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if s.Status != StatusHealthy {
		t.Errorf("expected status %q, got %q", StatusHealthy, s.Status)
	}
}

func TestHealthHandler_DegradedStillAnswers200(t *testing.T) {
	resetHealth()

	ReportHealth("router", true, "")
	ReportHealth("store", true, "")
	ReportHealth("peer-transport", false, "dial timeout")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	HealthHandler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("degraded must still answer 200, got %d", rec.Code)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	resetHealth()

	ReportHealth("router", false, "no actors spawned")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	HealthHandler()(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestReadyHandler_NotReady(t *testing.T) {
	resetHealth()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	ReadyHandler()(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before critical subsystems report, got %d", rec.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	resetHealth()

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "alive" {
		t.Errorf("expected status 'alive', got %q", body["status"])
	}
}
