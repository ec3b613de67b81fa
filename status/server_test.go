package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flock/transport"
)

func TestTrackerObserve(t *testing.T) {
	tr := NewTracker("2")

	tr.Observe(transport.Result{Op: transport.OpFit, NumExamples: 100, Metrics: map[string]float64{"loss": 0.8}})
	tr.Observe(transport.Result{Op: transport.OpFit, NumExamples: 100, Metrics: map[string]float64{"loss": 0.6}})
	tr.Observe(transport.Result{Op: transport.OpEvaluate, NumExamples: 50, Loss: 0.55})

	rep := tr.Report()
	assert.Equal(t, "2", rep.ClientID)
	assert.Equal(t, 2, rep.FitRounds)
	assert.Equal(t, 1, rep.EvalRounds)
	assert.Equal(t, 200, rep.SamplesSeen)
	assert.InDelta(t, 0.55, rep.LastLoss, 1e-9)
	assert.Empty(t, rep.LastError)
}

func TestTrackerRecordsErrors(t *testing.T) {
	tr := NewTracker("2")
	tr.Observe(transport.Result{Op: transport.OpFit, Err: "shape mismatch"})
	assert.Equal(t, "shape mismatch", tr.Report().LastError)
}

func TestStatusRoutes(t *testing.T) {
	tr := NewTracker("5")
	tr.Observe(transport.Result{Op: transport.OpEvaluate, NumExamples: 10, Loss: 0.33})
	srv := NewServer(":0", tr, hclog.NewNullLogger())
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "5", rep.ClientID)
	assert.Equal(t, 1, rep.EvalRounds)
	assert.InDelta(t, 0.33, rep.LastLoss, 1e-9)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
