package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regretsim/regretsim/report"
	"github.com/regretsim/regretsim/sim"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	cfg := sim.DefaultConfig()
	cfg.Learner.Rounds = 3
	cfg.Learner.Samples = 1
	srv := NewServer(sim.NewService(cfg, 1), nil, t.TempDir())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)

	out := getJSON(t, ts.URL+"/health")
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, 0.0, out["queue_size"])
}

func TestServer_ProcessScenario_EndToEnd(t *testing.T) {
	ts, _ := newTestServer(t)

	// GIVEN a two-patient narrative with a room layout update
	out := postJSON(t, ts.URL+"/process_scenario", map[string]any{
		"description": "Two patients: one with chest pain, one with a broken arm",
		"rooms": []map[string]any{
			{"name": "TRIAGE", "x": 3.0, "z": 1.0},
		},
	})

	// THEN both patients spawn and a full plan comes back
	require.Equal(t, true, out["success"])
	assert.Equal(t, 2.0, out["patient_count"])

	patients := out["patients"].([]any)
	require.Len(t, patients, 2)
	first := patients[0].(map[string]any)
	assert.Equal(t, "Critical", first["type"])
	assert.Equal(t, true, first["doctor_required"])

	assignment := out["assignment"].(map[string]any)
	assert.NotEmpty(t, assignment["strategy"])
	assert.NotEqual(t, sim.StrategyIdle, assignment["strategy"])

	nursePlan := out["nurse_plan"].(map[string]any)
	assert.NotEmpty(t, nursePlan["commands"])

	stats := out["learning_stats"].(map[string]any)
	assert.Equal(t, 3.0, stats["total_iterations"])

	queue := out["queue_status"].(map[string]any)
	assert.Equal(t, 2.0, queue["queue_size"])
}

func TestServer_ProcessScenario_RejectsMalformedPayload(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing description", `{}`},
		{"empty description", `{"description": ""}`},
		{"wrong description type", `{"description": 42}`},
		{"unknown field", `{"description": "a patient", "patients": []}`},
		{"room without name", `{"description": "a patient", "rooms": [{"x": 1}]}`},
		{"not JSON", `{"description"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/process_scenario", "application/json",
				bytes.NewReader([]byte(tc.body)))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServer_ProcessScenario_NoPatientsFound(t *testing.T) {
	ts, _ := newTestServer(t)

	// A description that parses to zero patients cannot happen through the
	// keyword rules (a lone patient defaults to Minor), but whitespace can.
	out := postJSON(t, ts.URL+"/process_scenario", map[string]any{"description": "   "})

	assert.Equal(t, false, out["success"])
	assert.Equal(t, 0.0, out["parsed_count"])
}

func TestServer_GetPlan_IdleWithoutPatients(t *testing.T) {
	ts, _ := newTestServer(t)

	out := postJSON(t, ts.URL+"/get_plan", map[string]any{})

	require.Equal(t, true, out["success"])
	assignment := out["assignment"].(map[string]any)
	assert.Equal(t, "IDLE", assignment["strategy"])
	assert.Equal(t, 0.0, out["expected_reward"])
}

func TestServer_CompleteStepFlow(t *testing.T) {
	ts, srv := newTestServer(t)
	snap := srv.svc.Spawn(sim.SeverityMinor)

	// First step: not complete yet.
	out := postJSON(t, ts.URL+"/complete_step", map[string]any{"patient_id": snap.ID})
	require.Equal(t, true, out["success"])
	assert.Equal(t, false, out["patient_complete"])

	// Second step finishes the pathway, which also removes the patient.
	out = postJSON(t, ts.URL+"/complete_step", map[string]any{"patient_id": snap.ID})
	assert.Equal(t, true, out["patient_complete"])
	queue := out["queue_status"].(map[string]any)
	assert.Equal(t, 0.0, queue["queue_size"])
}

func TestServer_CompleteStep_RequiresPatientID(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/complete_step", "application/json",
		bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_PatientExit(t *testing.T) {
	ts, srv := newTestServer(t)
	snap := srv.svc.Spawn(sim.SeverityModerate)

	out := postJSON(t, ts.URL+"/patient_exit", map[string]any{"patient_id": snap.ID})

	require.Equal(t, true, out["success"])
	queue := out["queue_status"].(map[string]any)
	assert.Equal(t, 0.0, queue["queue_size"])
}

func TestServer_QueueStatus(t *testing.T) {
	ts, srv := newTestServer(t)
	srv.svc.Spawn(sim.SeverityCritical)

	out := getJSON(t, ts.URL+"/queue_status")

	require.Equal(t, true, out["success"])
	queue := out["queue_status"].(map[string]any)
	assert.Equal(t, 1.0, queue["queue_size"])
	assert.Contains(t, out, "learning_stats")
}

func TestServer_ResetEndpointsAreSeparate(t *testing.T) {
	ts, srv := newTestServer(t)
	srv.svc.Spawn(sim.SeverityMinor)
	postJSON(t, ts.URL+"/get_plan", map[string]any{})
	require.NotZero(t, srv.svc.LearningStats().TotalIterations)

	// Scenario reset keeps the learner.
	out := postJSON(t, ts.URL+"/reset", map[string]any{})
	require.Equal(t, true, out["success"])
	assert.Equal(t, 0, srv.svc.QueueStatus().QueueSize)
	assert.NotZero(t, srv.svc.LearningStats().TotalIterations)

	// Learning reset clears it.
	out = postJSON(t, ts.URL+"/reset_learning", map[string]any{})
	require.Equal(t, true, out["success"])
	assert.Zero(t, srv.svc.LearningStats().TotalIterations)
}

func TestServer_SaveAnalysis(t *testing.T) {
	ts, srv := newTestServer(t)

	// Without learning data there is nothing to save.
	out := postJSON(t, ts.URL+"/save_analysis", map[string]any{})
	assert.Equal(t, false, out["saved"])

	srv.svc.Spawn(sim.SeverityMinor)
	postJSON(t, ts.URL+"/get_plan", map[string]any{})

	dir := t.TempDir()
	out = postJSON(t, ts.URL+"/save_analysis", map[string]any{"output_dir": dir})
	require.Equal(t, true, out["saved"])

	path := out["data_path"].(string)
	assert.Equal(t, dir, filepath.Dir(path))

	archive, err := report.ReadArchive(path)
	require.NoError(t, err)
	assert.Equal(t, 3, archive.TotalIterations)
	assert.Len(t, archive.RegretHistory, 3)
}

func TestServer_PlanRunsAreRecorded(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Learner.Rounds = 3
	cfg.Learner.Samples = 1
	store, err := report.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := NewServer(sim.NewService(cfg, 1), store, t.TempDir())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	srv.svc.Spawn(sim.SeverityCritical)
	postJSON(t, ts.URL+"/get_plan", map[string]any{})

	n, err := store.CountRuns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServer_MethodGuards(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/reset")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
