package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nodeflow/nodeflow/internal/audit"
	"github.com/nodeflow/nodeflow/internal/node"
)

type stubNode struct{}

func (stubNode) Schema() node.Schema {
	return node.Schema{
		ID:          "stub",
		DisplayName: "Stub",
		Category:    "test",
		Inputs:      []node.Port{{Name: "in", Type: node.PortString}},
		Outputs:     []node.Port{{Name: "out", Type: node.PortString}},
	}
}

func (stubNode) Execute(ctx context.Context, in node.Inputs) (node.Outputs, error) {
	return node.Outputs{"out": ""}, nil
}

func testDashboard(t *testing.T) (*Dashboard, *audit.Log) {
	t.Helper()

	runLog, err := audit.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { runLog.Close() })

	reg, err := node.NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(stubNode{}); err != nil {
		t.Fatal(err)
	}
	reg.RecordRun("stub", 10*time.Microsecond, false)

	return New(Options{RunLog: runLog, Registry: reg, Version: "test"}), runLog
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAPIStatus(t *testing.T) {
	d, _ := testDashboard(t)

	rec := get(t, d.Handler(), "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: %d", rec.Code)
	}

	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status["status"] != "running" || status["version"] != "test" {
		t.Errorf("status body: %v", status)
	}
	if status["nodes"] != float64(1) {
		t.Errorf("node count: %v", status["nodes"])
	}
}

func TestAPINodes(t *testing.T) {
	d, _ := testDashboard(t)

	rec := get(t, d.Handler(), "/api/nodes")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: %d", rec.Code)
	}

	var nodes []nodeJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &nodes); err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 || nodes[0].ID != "stub" {
		t.Fatalf("nodes: %+v", nodes)
	}
	if nodes[0].Stats.Runs != 1 {
		t.Errorf("stats should be included: %+v", nodes[0].Stats)
	}
	if len(nodes[0].Inputs) != 1 || nodes[0].Inputs[0].Name != "in" {
		t.Errorf("inputs: %+v", nodes[0].Inputs)
	}
}

func TestAPIAudit(t *testing.T) {
	d, runLog := testDashboard(t)
	runLog.RecordNodeRun("run-1", "g", "stub-1", "stub", time.Microsecond, nil)

	rec := get(t, d.Handler(), "/api/audit?limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: %d", rec.Code)
	}

	var entries []audit.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Node != "stub-1" {
		t.Errorf("entries: %+v", entries)
	}
}

func TestAPIMethodNotAllowed(t *testing.T) {
	d, _ := testDashboard(t)
	h := d.Handler()

	for _, path := range []string{"/api/status", "/api/nodes", "/api/audit"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", path, rec.Code)
		}
	}
}

func TestIndexServesHTML(t *testing.T) {
	d, _ := testDashboard(t)

	rec := get(t, d.Handler(), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content type: %q", ct)
	}

	if rec := get(t, d.Handler(), "/nonexistent"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", rec.Code)
	}
}
