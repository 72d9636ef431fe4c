package health

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/fusioninventory/netdiscovery/internal/workerpool"
)

type fakeDepth struct {
	n   int
	err error
}

func (f fakeDepth) Depth() (int, error) { return f.n, f.err }

func TestHealthHandlerReportsHealthyWithNoJobYet(t *testing.T) {
	s := NewServer(0, fakeDepth{n: 3})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.healthHandler(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.LastJob != nil {
		t.Fatalf("got status=%q last_job=%+v, want healthy with no job", resp.Status, resp.LastJob)
	}
}

func TestHealthHandlerDegradedWhenSpoolFails(t *testing.T) {
	s := NewServer(0, fakeDepth{err: errBoom})
	resp := s.metrics()
	if resp.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", resp.Status)
	}
	if resp.SpoolOK {
		t.Fatalf("expected SpoolOK=false")
	}
}

func TestMetricsReflectsWorkerStatesAndLastJob(t *testing.T) {
	s := NewServer(0, fakeDepth{n: 0})
	w := workerpool.NewWorker(1, &workerpool.Block{}, nil, nil, "1.0", "001")
	s.SetWorkers([]*workerpool.Worker{w})
	s.SetLastSummary(model.JobSummary{ProcessNumber: "001", DeviceCount: 5})

	resp := s.metrics()
	if len(resp.WorkerStates) != 1 || resp.WorkerStates[0] != "PAUSE" {
		t.Fatalf("worker states = %v, want [PAUSE]", resp.WorkerStates)
	}
	if resp.LastJob == nil || resp.LastJob.DeviceCount != 5 {
		t.Fatalf("last job = %+v, want DeviceCount=5", resp.LastJob)
	}
}

func TestReadinessAndLivenessHandlers(t *testing.T) {
	s := NewServer(0, fakeDepth{n: 0})

	live := httptest.NewRecorder()
	s.livenessHandler(live, httptest.NewRequest("GET", "/health/live", nil))
	if live.Code != 200 {
		t.Fatalf("liveness status = %d, want 200", live.Code)
	}

	ready := httptest.NewRecorder()
	s.readinessHandler(ready, httptest.NewRequest("GET", "/health/ready", nil))
	if ready.Code != 200 {
		t.Fatalf("readiness status = %d, want 200", ready.Code)
	}

	s2 := NewServer(0, fakeDepth{err: errBoom})
	notReady := httptest.NewRecorder()
	s2.readinessHandler(notReady, httptest.NewRequest("GET", "/health/ready", nil))
	if notReady.Code != 503 {
		t.Fatalf("readiness status = %d, want 503", notReady.Code)
	}
}

var errBoom = errDepth("boom")

type errDepth string

func (e errDepth) Error() string { return string(e) }
