package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"panostitch/internal/pipeline"
	"panostitch/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	pipe := pipeline.New(context.Background(), 1, log, store, nil)
	t.Cleanup(pipe.Stop)
	return NewServer(":0", store, pipe, log), store
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	s.setupRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body %q", rec.Body.String())
	}
}

func TestHandleSubmit(t *testing.T) {
	s, store := newTestServer(t)
	body := `{"type": "stitch", "input": "/sets/alps", "options": {"blend": "linear"}}`
	rec := serve(s, httptest.NewRequest("POST", "/jobs", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	id := resp["id"]
	if !strings.HasPrefix(id, "stitch-") {
		t.Fatalf("job id %q", id)
	}
	// Submission is recorded before processing starts.
	jobs, err := store.RecentJobs(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Fatalf("queued job not persisted: %+v", jobs)
	}
}

func TestHandleSubmitDefaultsType(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, httptest.NewRequest("POST", "/jobs", strings.NewReader(`{"input": "/in"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, want 202", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp["id"], "stitch-") {
		t.Fatalf("empty type should default to stitch, got %q", resp["id"])
	}
}

func TestHandleSubmitValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, httptest.NewRequest("POST", "/jobs", strings.NewReader(`{"type": "stitch"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing input: status %d, want 400", rec.Code)
	}
	rec = serve(s, httptest.NewRequest("POST", "/jobs", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status %d, want 400", rec.Code)
	}
}

func TestHandleJobs(t *testing.T) {
	s, store := newTestServer(t)
	if err := store.RecordJobQueued(storage.JobRecord{ID: "j1", JobType: "stitch", Status: "queued"}); err != nil {
		t.Fatal(err)
	}
	rec := serve(s, httptest.NewRequest("GET", "/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var jobs []storage.JobRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Fatalf("jobs %+v", jobs)
	}
}

func TestHandleJobStats(t *testing.T) {
	s, store := newTestServer(t)
	err := store.RecordStats(storage.StatsRecord{
		JobID:           "j2",
		ImageCount:      2,
		AvgFeatureCount: 150,
		AvgMatchCount:   60,
		AvgInlierRatio:  0.88,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := serve(s, httptest.NewRequest("GET", "/jobs/j2/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["jobId"] != "j2" || stats["imageCount"] != float64(2) {
		t.Fatalf("stats %+v", stats)
	}
	if stats["avgInlierRatio"] != 0.88 {
		t.Fatalf("avgInlierRatio %v", stats["avgInlierRatio"])
	}

	rec = serve(s, httptest.NewRequest("GET", "/jobs/absent/stats", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job: status %d, want 404", rec.Code)
	}
}

func TestResultPayload(t *testing.T) {
	res := pipeline.Result{
		Job:  pipeline.Job{ID: "j3", Type: pipeline.JobStitch, InputPath: "/in", Output: "/out.png"},
		Meta: map[string]any{"width": 120},
	}
	p := resultPayload(res)
	if p["id"] != "j3" || p["type"] != "stitch" {
		t.Fatalf("payload %+v", p)
	}
	if _, ok := p["error"]; ok {
		t.Fatalf("success payload must omit error")
	}
}
