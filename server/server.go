// Package server exposes the scheduling service over HTTP: JSON endpoints
// mirroring the game client's contract, schema-validated scenario intake
// with a rule-based triage parser, and a websocket stream of learning
// snapshots.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/regretsim/regretsim/report"
	"github.com/regretsim/regretsim/sim"
)

// Server wires the scheduling service to its HTTP surface. The report
// store is optional; without one, planning runs simply are not persisted.
type Server struct {
	svc       *sim.Service
	store     *report.Store
	reportDir string
	hub       *Hub
}

// NewServer builds the transport over a scheduling service. store may be
// nil; reportDir is the default output directory for analysis exports.
func NewServer(svc *sim.Service, store *report.Store, reportDir string) *Server {
	if reportDir == "" {
		reportDir = "output"
	}
	return &Server{
		svc:       svc,
		store:     store,
		reportDir: reportDir,
		hub:       NewHub(),
	}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/process_scenario", s.post(s.handleProcessScenario))
	mux.HandleFunc("/get_plan", s.post(s.handleGetPlan))
	mux.HandleFunc("/complete_step", s.post(s.handleCompleteStep))
	mux.HandleFunc("/patient_exit", s.post(s.handlePatientExit))
	mux.HandleFunc("/queue_status", s.get(s.handleQueueStatus))
	mux.HandleFunc("/reset", s.post(s.handleReset))
	mux.HandleFunc("/reset_learning", s.post(s.handleResetLearning))
	mux.HandleFunc("/save_analysis", s.post(s.handleSaveAnalysis))
	mux.HandleFunc("/health", s.get(s.handleHealth))
	mux.HandleFunc("/ws/learning", s.hub.Handler())
	return logRequests(mux)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.Debugf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) post(h http.HandlerFunc) http.HandlerFunc {
	return methodOnly(http.MethodPost, h)
}

func (s *Server) get(h http.HandlerFunc) http.HandlerFunc {
	return methodOnly(http.MethodGet, h)
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"success": false, "error": message})
}

// roomPayload is one entry of the game client's room-layout update. The
// client's ground plane is x/z; z maps onto the planner's y axis.
type roomPayload struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
}

func roomCoords(rooms []roomPayload) map[string]sim.Point {
	if len(rooms) == 0 {
		return nil
	}
	coords := make(map[string]sim.Point, len(rooms))
	for _, r := range rooms {
		if r.Name == "" {
			continue
		}
		coords[r.Name] = sim.Point{X: r.X, Y: r.Z}
	}
	return coords
}

type scenarioRequest struct {
	Description string        `json:"description"`
	Rooms       []roomPayload `json:"rooms"`
}

type spawnedPatient struct {
	sim.PatientSnapshot
	Description string `json:"description"`
}

// assignment is the chosen-strategy block of a plan response.
type assignment struct {
	Strategy       string             `json:"strategy"`
	Description    string             `json:"description"`
	ExpectedValue  float64            `json:"expected_value"`
	StrategyValues map[string]float64 `json:"all_strategy_values,omitempty"`
}

type agentPlan struct {
	Commands []sim.Command `json:"commands"`
}

type planResponse struct {
	Success        bool              `json:"success"`
	Assignment     assignment        `json:"assignment"`
	NursePlan      agentPlan         `json:"nurse_plan"`
	DoctorPlan     agentPlan         `json:"doctor_plan"`
	LearningStats  sim.LearningStats `json:"learning_stats"`
	ExpectedReward float64           `json:"expected_reward"`
}

func planEnvelope(result sim.PlanResult) planResponse {
	return planResponse{
		Success: true,
		Assignment: assignment{
			Strategy:       result.Strategy,
			Description:    result.Description,
			ExpectedValue:  result.ExpectedValue,
			StrategyValues: result.StrategyValues,
		},
		NursePlan:      agentPlan{Commands: result.NurseCommands},
		DoctorPlan:     agentPlan{Commands: result.DoctorCommands},
		LearningStats:  result.Learning,
		ExpectedReward: result.ExpectedValue,
	}
}

// learningUpdate is the websocket snapshot pushed after each planning call.
type learningUpdate struct {
	Type          string            `json:"type"`
	Strategy      string            `json:"strategy"`
	LearningStats sim.LearningStats `json:"learning_stats"`
}

// finishPlan persists a completed planning call and pushes the learning
// snapshot to websocket subscribers. Both are best-effort side channels;
// neither failure reaches the caller.
func (s *Server) finishPlan(r *http.Request, result sim.PlanResult) {
	s.hub.Broadcast(learningUpdate{
		Type:          "learning_update",
		Strategy:      result.Strategy,
		LearningStats: result.Learning,
	})

	if s.store == nil || result.Idle {
		return
	}
	regret, distance := s.svc.LearningHistory()
	_, err := s.store.RecordRun(r.Context(), report.RunRecord{
		PatientCount:     s.svc.QueueStatus().QueueSize,
		Strategy:         result.Strategy,
		ExpectedValue:    result.ExpectedValue,
		TotalIterations:  result.Learning.TotalIterations,
		CumulativeRegret: result.Learning.CumulativeRegret,
		NashDistance:     result.Learning.NashDistance,
		AveragePolicy:    result.Learning.AveragePolicy,
		RegretHistory:    regret,
		DistanceHistory:  distance,
	})
	if err != nil {
		logrus.Warnf("recording planning run failed: %v", err)
	}
}

func (s *Server) handleProcessScenario(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := validateScenario(body); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	var req scenarioRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if coords := roomCoords(req.Rooms); coords != nil {
		s.svc.SetRooms(coords)
	}

	parsed := ParseScenario(req.Description)
	if len(parsed) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      false,
			"error":        "No patients found in description",
			"parsed_count": 0,
		})
		return
	}

	spawned := make([]spawnedPatient, 0, len(parsed))
	for _, p := range parsed {
		spawned = append(spawned, spawnedPatient{
			PatientSnapshot: s.svc.Spawn(p.Severity),
			Description:     p.Description,
		})
	}

	result := s.svc.Plan()
	s.finishPlan(r, result)

	plan := planEnvelope(result)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"patients":        spawned,
		"patient_count":   len(spawned),
		"assignment":      plan.Assignment,
		"nurse_plan":      plan.NursePlan,
		"doctor_plan":     plan.DoctorPlan,
		"learning_stats":  plan.LearningStats,
		"expected_reward": plan.ExpectedReward,
		"queue_status":    s.svc.QueueStatus(),
	})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rooms          []roomPayload `json:"rooms"`
		NursePosition  string        `json:"nurse_position"`
		DoctorPosition string        `json:"doctor_position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeFailure(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if coords := roomCoords(req.Rooms); coords != nil {
		s.svc.SetRooms(coords)
	}
	if req.NursePosition != "" {
		s.svc.SetAgentPosition(sim.AgentNurse, req.NursePosition)
	}
	if req.DoctorPosition != "" {
		s.svc.SetAgentPosition(sim.AgentDoctor, req.DoctorPosition)
	}

	result := s.svc.Plan()
	s.finishPlan(r, result)
	writeJSON(w, http.StatusOK, planEnvelope(result))
}

type patientIDRequest struct {
	PatientID *int `json:"patient_id"`
}

func decodePatientID(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req patientIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON")
		return 0, false
	}
	if req.PatientID == nil {
		writeFailure(w, http.StatusBadRequest, "No patient_id provided")
		return 0, false
	}
	return *req.PatientID, true
}

func (s *Server) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	id, ok := decodePatientID(w, r)
	if !ok {
		return
	}

	complete := s.svc.StepPatient(id)
	if complete {
		s.svc.RemovePatient(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"patient_complete": complete,
		"queue_status":     s.svc.QueueStatus(),
	})
}

func (s *Server) handlePatientExit(w http.ResponseWriter, r *http.Request) {
	id, ok := decodePatientID(w, r)
	if !ok {
		return
	}

	s.svc.RemovePatient(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"queue_status": s.svc.QueueStatus(),
	})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"queue_status":   s.svc.QueueStatus(),
		"learning_stats": s.svc.LearningStats(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.svc.Reset()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Scheduler reset",
	})
}

func (s *Server) handleResetLearning(w http.ResponseWriter, r *http.Request) {
	s.svc.ResetLearning()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Learning state cleared",
	})
}

func (s *Server) handleSaveAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutputDir string `json:"output_dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeFailure(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	dir := req.OutputDir
	if dir == "" {
		dir = s.reportDir
	}

	stats := s.svc.LearningStats()
	if stats.TotalIterations == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"saved":   false,
			"reason":  "no learning data to save",
		})
		return
	}

	regret, distance := s.svc.LearningHistory()
	cfg := s.svc.Config()
	path, err := report.ExportArchive(dir, report.Archive{
		GameParams: report.GameParams{
			Rounds:  cfg.Learner.Rounds,
			Samples: cfg.Learner.Samples,
			Horizon: cfg.Physics.Horizon,
		},
		TotalIterations:  stats.TotalIterations,
		CumulativeRegret: stats.CumulativeRegret,
		AveragePolicy:    stats.AveragePolicy,
		NashDistance:     stats.NashDistance,
		RegretHistory:    regret,
		DistanceHistory:  distance,
	})
	if err != nil {
		logrus.Warnf("saving analysis failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"saved":   false,
			"reason":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"saved":     true,
		"data_path": path,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"queue_size": s.svc.QueueStatus().QueueSize,
	})
}
