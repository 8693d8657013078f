package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrobotics/layouttune/internal/config"
	"github.com/docrobotics/layouttune/internal/logging"
	"github.com/docrobotics/layouttune/internal/refstore"
	"github.com/docrobotics/layouttune/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second

	cfg.Refine.MaxIterations = 6
	cfg.Refine.TargetScore = 0.85
	// Plateau detection off so short runs always reach max_iterations.
	cfg.Refine.PlateauThreshold = 0
	cfg.Refine.MinImprovementPercent = 0
	cfg.Refine.MaxHistory = 50
	return cfg
}

func newTestServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	logger := logging.New(logging.ErrorLevel, io.Discard)
	store, err := refstore.NewStore(t.TempDir(), 8)
	require.NoError(t, err)

	srv := NewServer(testConfig(t), logger, store)
	t.Cleanup(func() { _ = srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	r.Handle("/metrics", srv.MetricsHandler())
	return srv, r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func startRun(t *testing.T, r chi.Router, body map[string]interface{}) string {
	t.Helper()
	rr := doJSON(t, r, http.MethodPost, "/api/v1/refine", body)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	id, _ := decodeBody(t, rr)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func getStatus(t *testing.T, r chi.Router, id string) map[string]interface{} {
	t.Helper()
	rr := doJSON(t, r, http.MethodGet, "/api/v1/refine/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	return decodeBody(t, rr)
}

func waitForTerminal(t *testing.T, r chi.Router, id string) map[string]interface{} {
	t.Helper()
	var status map[string]interface{}
	require.Eventually(t, func() bool {
		status = getStatus(t, r, id)
		return status["status"] != string(session.StatusActive)
	}, 10*time.Second, 10*time.Millisecond)
	return status
}

func smallDiagram() map[string]interface{} {
	return map[string]interface{}{
		"diagramType": "network",
		"strategy":    "random",
		"randomSeed":  7,
		"random":      map[string]interface{}{"numSamples": 100},
		"nodes": []map[string]interface{}{
			{"id": "a"}, {"id": "b"}, {"id": "c"}, {"id": "d"},
		},
		"edges": []map[string]interface{}{
			{"id": "e1", "source": "a", "target": "b"},
			{"id": "e2", "source": "b", "target": "c"},
			{"id": "e3", "source": "c", "target": "d"},
		},
	}
}

func TestRefinementRunsToMaxIterations(t *testing.T) {
	_, r := newTestServer(t)

	body := smallDiagram()
	body["maxIterations"] = 5
	body["targetScore"] = 1.0
	id := startRun(t, r, body)

	status := waitForTerminal(t, r, id)
	assert.Equal(t, string(session.StatusMaxIterations), status["status"])
	assert.Equal(t, "max_iterations", status["completionReason"])

	iterations, ok := status["iterations"].([]interface{})
	require.True(t, ok)
	assert.Len(t, iterations, 5)
	assert.Greater(t, status["bestScore"].(float64), 0.0)
	assert.NotNil(t, status["bestParameters"])
}

func TestStartRefinementValidation(t *testing.T) {
	_, r := newTestServer(t)

	rr := doJSON(t, r, http.MethodPost, "/api/v1/refine", map[string]interface{}{
		"diagramType": "network",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "missing nodes")

	body := smallDiagram()
	body["diagramType"] = "gantt"
	rr = doJSON(t, r, http.MethodPost, "/api/v1/refine", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown diagram type")

	body = smallDiagram()
	body["strategy"] = "annealing"
	rr = doJSON(t, r, http.MethodPost, "/api/v1/refine", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown strategy")
}

func TestStatusUnknownID(t *testing.T) {
	_, r := newTestServer(t)
	rr := doJSON(t, r, http.MethodGet, "/api/v1/refine/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelRefinement(t *testing.T) {
	_, r := newTestServer(t)

	body := smallDiagram()
	body["maxIterations"] = 1_000_000
	body["random"] = map[string]interface{}{"numSamples": 1_000_000}
	body["targetScore"] = 1.0
	id := startRun(t, r, body)

	rr := doJSON(t, r, http.MethodDelete, "/api/v1/refine/"+id, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	status := waitForTerminal(t, r, id)
	assert.Equal(t, string(session.StatusAborted), status["status"])
}

func TestApproveActiveRun(t *testing.T) {
	_, r := newTestServer(t)

	body := smallDiagram()
	body["maxIterations"] = 1_000_000
	body["random"] = map[string]interface{}{"numSamples": 1_000_000}
	body["targetScore"] = 1.0
	id := startRun(t, r, body)

	rr := doJSON(t, r, http.MethodPost, "/api/v1/refine/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	status := waitForTerminal(t, r, id)
	assert.Equal(t, string(session.StatusApproved), status["status"])
}

func TestFeedbackAfterCompletionConflicts(t *testing.T) {
	_, r := newTestServer(t)

	body := smallDiagram()
	body["maxIterations"] = 2
	body["targetScore"] = 1.0
	id := startRun(t, r, body)
	waitForTerminal(t, r, id)

	rr := doJSON(t, r, http.MethodPost, "/api/v1/refine/"+id+"/feedback", map[string]interface{}{
		"aspect": "spacing", "direction": "increase", "intensity": "moderate",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestFeedbackOnActiveRun(t *testing.T) {
	_, r := newTestServer(t)

	body := smallDiagram()
	body["maxIterations"] = 1_000_000
	body["random"] = map[string]interface{}{"numSamples": 1_000_000}
	body["targetScore"] = 1.0
	id := startRun(t, r, body)

	rr := doJSON(t, r, http.MethodPost, "/api/v1/refine/"+id+"/feedback", map[string]interface{}{
		"aspect": "spacing", "direction": "increase", "intensity": "moderate",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	translation := decodeBody(t, rr)
	suggestions, ok := translation["suggestions"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, suggestions)

	doJSON(t, r, http.MethodDelete, "/api/v1/refine/"+id, nil)
	waitForTerminal(t, r, id)
}

func TestExportSession(t *testing.T) {
	_, r := newTestServer(t)

	body := smallDiagram()
	body["maxIterations"] = 2
	body["targetScore"] = 1.0
	id := startRun(t, r, body)
	waitForTerminal(t, r, id)

	rr := doJSON(t, r, http.MethodGet, "/api/v1/refine/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	exported := decodeBody(t, rr)
	assert.Equal(t, id, exported["id"])
}

func TestReferenceUploadAndList(t *testing.T) {
	_, r := newTestServer(t)

	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < 32; i++ {
		img.Set(i, i, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/references/baseline", &buf)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	meta := decodeBody(t, rr)
	assert.Equal(t, "baseline", meta["id"])
	assert.Equal(t, float64(32), meta["width"])

	listRR := doJSON(t, r, http.MethodGet, "/api/v1/references", nil)
	require.Equal(t, http.StatusOK, listRR.Code)
	list := decodeBody(t, listRR)
	assert.Contains(t, list["references"], "baseline")
}

func TestRefineWithUnknownReference(t *testing.T) {
	_, r := newTestServer(t)

	body := smallDiagram()
	body["referenceImageId"] = "missing"
	rr := doJSON(t, r, http.MethodPost, "/api/v1/refine", body)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsExposed(t *testing.T) {
	_, r := newTestServer(t)

	body := smallDiagram()
	body["maxIterations"] = 2
	body["targetScore"] = 1.0
	id := startRun(t, r, body)
	waitForTerminal(t, r, id)

	rr := doJSON(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "layouttune_refine_iterations_total")
	assert.Contains(t, rr.Body.String(), "layouttune_refine_runs_total")
}

func TestClose(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NoError(t, srv.Close())
}
