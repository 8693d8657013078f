// Package server exposes the layout refinement engine over HTTP: starting
// refinement runs, polling their progress, feeding back qualitative
// judgments, and managing reference images.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/png"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docrobotics/layouttune/internal/config"
	"github.com/docrobotics/layouttune/internal/feedback"
	"github.com/docrobotics/layouttune/internal/logging"
	"github.com/docrobotics/layouttune/internal/params"
	"github.com/docrobotics/layouttune/internal/refine"
	"github.com/docrobotics/layouttune/internal/refstore"
	"github.com/docrobotics/layouttune/internal/session"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// job tracks one refinement run from request to result. The loop itself is
// cooperative, so cancellation is a flag plus a context cancel.
type job struct {
	sessionID string
	loop      *refine.Loop
	cancel    context.CancelFunc

	mu     sync.Mutex
	done   bool
	result *refine.Result
	err    error
}

// Server wires the session manager, the refinement loop and the reference
// image store behind chi routes.
type Server struct {
	cfg      *config.Config
	logger   Logger
	zlog     *zap.Logger
	sessions *session.Manager
	store    *refstore.Store
	registry *prometheus.Registry
	metrics  *metrics

	jobs   map[string]*job
	jobsMu sync.RWMutex
}

// NewServer creates a server instance. The store may be nil when no
// reference directory is configured; runs then score on readability alone.
func NewServer(cfg *config.Config, logger Logger, store *refstore.Store) *Server {
	registry := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewManager(),
		store:    store,
		registry: registry,
		metrics:  newMetrics(registry),
		jobs:     make(map[string]*job),
	}
	if l, ok := logger.(*logging.Logger); ok {
		s.zlog = logging.NewZapLogger(l)
	} else {
		s.zlog = zap.NewNop()
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/refine", s.handleStartRefinement)
		r.Get("/refine/{id}", s.handleRefinementStatus)
		r.Post("/refine/{id}/feedback", s.handleFeedback)
		r.Post("/refine/{id}/approve", s.handleApprove)
		r.Delete("/refine/{id}", s.handleCancelRefinement)
		r.Get("/refine/{id}/export", s.handleExport)

		r.Get("/references", s.handleListReferences)
		r.Post("/references/{id}", s.handleUploadReference)
	})
}

// MetricsHandler serves this server's prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// refineRequest starts a run. Only diagramType and nodes are required; the
// rest falls back to the configured defaults.
type refineRequest struct {
	DiagramType      string  `json:"diagramType"`
	ReferenceImageID string  `json:"referenceImageId,omitempty"`
	Strategy         string  `json:"strategy,omitempty"`
	MaxIterations    int     `json:"maxIterations,omitempty"`
	TargetScore      float64 `json:"targetScore,omitempty"`
	RandomSeed       int64   `json:"randomSeed,omitempty"`

	Grid         *refine.GridConfig         `json:"grid,omitempty"`
	Random       *refine.RandomConfig       `json:"random,omitempty"`
	HillClimbing *refine.HillClimbingConfig `json:"hillClimbing,omitempty"`

	Nodes []nodeSpec `json:"nodes"`
	Edges []edgeSpec `json:"edges"`
}

func (s *Server) handleStartRefinement(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Nodes) == 0 {
		s.respondError(w, http.StatusBadRequest, "at least one node is required")
		return
	}

	diagram := params.DiagramType(req.DiagramType)
	cfg := s.buildRunConfig(diagram, &req)

	loop, err := refine.NewLoop(cfg)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ReferenceImageID != "" {
		if s.store == nil {
			s.respondError(w, http.StatusBadRequest, "no reference image store configured")
			return
		}
		ref, _, err := s.store.Get(req.ReferenceImageID)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, refstore.ErrNotFound) {
				status = http.StatusNotFound
			}
			s.respondError(w, status, err.Error())
			return
		}
		loop.SetReference(ref)
	}

	sess, err := s.sessions.Start(diagram, req.ReferenceImageID, cfg.TargetScore)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	jb := &job{sessionID: sess.ID, loop: loop, cancel: cancel}
	s.jobsMu.Lock()
	s.jobs[sess.ID] = jb
	s.jobsMu.Unlock()

	applicator := newPlacer(req.Nodes, req.Edges, cfg.LayoutType)
	go s.runRefinement(ctx, jb, applicator)

	s.logger.Info("Refinement run started", map[string]interface{}{
		"session_id": sess.ID,
		"diagram":    string(diagram),
		"strategy":   string(cfg.Strategy),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     sess.ID,
		"status": string(session.StatusActive),
	})
}

// buildRunConfig layers the request over the configured defaults.
func (s *Server) buildRunConfig(diagram params.DiagramType, req *refineRequest) refine.Config {
	cfg := refine.DefaultConfig(diagram)
	cfg.MaxIterations = s.cfg.Refine.MaxIterations
	cfg.TargetScore = s.cfg.Refine.TargetScore
	cfg.PlateauThreshold = s.cfg.Refine.PlateauThreshold
	cfg.MinImprovementPercent = s.cfg.Refine.MinImprovementPercent
	cfg.MaxHistorySize = s.cfg.Refine.MaxHistory

	if req.MaxIterations > 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	if req.TargetScore > 0 {
		cfg.TargetScore = req.TargetScore
	}
	if req.Strategy != "" {
		cfg.Strategy = refine.StrategyKind(req.Strategy)
	}
	cfg.RandomSeed = req.RandomSeed

	switch {
	case req.Grid != nil:
		cfg.Grid = *req.Grid
	case req.Random != nil:
		cfg.Random = *req.Random
	case cfg.Strategy == refine.StrategyRandom && cfg.Random.NumSamples == 0:
		cfg.Random.NumSamples = cfg.MaxIterations
	}
	if req.HillClimbing != nil {
		cfg.HillClimbing = *req.HillClimbing
	}
	return cfg
}

// runRefinement drives the loop to completion and folds the outcome back
// into the session manager and the metrics.
func (s *Server) runRefinement(ctx context.Context, jb *job, applicator refine.LayoutApplicator) {
	zlog := s.zlog.With(zap.String("session_id", jb.sessionID))

	result, err := jb.loop.Run(ctx, applicator, func(iteration, maxIterations int, current, best float64, status string) {
		s.metrics.iterations.Inc()
		zlog.Debug("iteration complete",
			zap.Int("iteration", iteration),
			zap.Int("max_iterations", maxIterations),
			zap.Float64("score", current),
			zap.Float64("best", best))
	})

	jb.mu.Lock()
	jb.done = true
	jb.result = result
	jb.err = err
	jb.mu.Unlock()

	if err != nil {
		zlog.Error("refinement run failed", zap.Error(err))
		_ = s.sessions.Abort(jb.sessionID)
		return
	}

	for _, iter := range result.Iterations {
		if recErr := s.sessions.RecordIteration(jb.sessionID, iter); recErr != nil {
			// The session was approved or aborted while the run finished.
			break
		}
	}
	_ = s.sessions.Complete(jb.sessionID, result.Reason)

	s.metrics.runs.WithLabelValues(string(result.Reason)).Inc()
	s.metrics.bestScore.Observe(result.BestScore)
	zlog.Info("refinement run finished",
		zap.String("reason", string(result.Reason)),
		zap.Float64("best_score", result.BestScore),
		zap.Int("iterations", result.Summary.TotalIterations))
}

func (s *Server) handleRefinementStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	response := map[string]interface{}{
		"id":            sess.ID,
		"status":        string(sess.Status),
		"diagramType":   string(sess.DiagramType),
		"targetScore":   sess.TargetScore,
		"baselineScore": sess.BaselineScore,
		"bestScore":     sess.BestScore,
		"iterations":    sess.Iterations,
	}
	if best := sess.BestIteration(); best != nil {
		response["bestParameters"] = best.Params
	}

	if jb := s.job(id); jb != nil {
		jb.mu.Lock()
		response["loopState"] = string(jb.loop.State())
		if jb.done && jb.result != nil {
			response["completionReason"] = string(jb.result.Reason)
			response["summary"] = jb.result.Summary
		}
		if jb.done && jb.err != nil {
			response["runError"] = jb.err.Error()
		}
		jb.mu.Unlock()
	}

	s.respondJSON(w, http.StatusOK, response)
}

type feedbackRequest struct {
	Aspect    string `json:"aspect"`
	Direction string `json:"direction"`
	Intensity string `json:"intensity"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	fb := feedback.Feedback{
		Aspect:    feedback.Aspect(req.Aspect),
		Direction: feedback.Direction(req.Direction),
		Intensity: feedback.Intensity(req.Intensity),
	}
	if err := s.sessions.SubmitFeedback(id, fb); err != nil {
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	current := params.Defaults(sess.DiagramType)
	if best := sess.BestIteration(); best != nil {
		current = best.Params.Clone()
	}
	translation, err := s.sessions.AccumulatedSuggestions(id, current)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, translation)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Approve(id); err != nil {
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}
	if jb := s.job(id); jb != nil {
		jb.loop.Cancel()
		jb.cancel()
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": string(session.StatusApproved)})
}

func (s *Server) handleCancelRefinement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	jb := s.job(id)
	if jb == nil {
		s.respondError(w, http.StatusNotFound, "refinement not found")
		return
	}

	jb.loop.Cancel()
	jb.cancel()
	// Abort fails when the run already reached a terminal status; the cancel
	// request is still honored.
	_ = s.sessions.Abort(id)

	s.logger.Info("Refinement cancelled", map[string]interface{}{"session_id": id})
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := s.sessions.Export(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"references": []string{}})
		return
	}
	ids, err := s.store.List()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"references": ids})
}

func (s *Server) handleUploadReference(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusBadRequest, "no reference image store configured")
		return
	}
	id := chi.URLParam(r, "id")

	img, _, err := image.Decode(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "decoding image: "+err.Error())
		return
	}
	meta, err := s.store.Put(id, img)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, meta)
}

// Close cancels every in-flight refinement run.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for _, jb := range s.jobs {
		jb.loop.Cancel()
		jb.cancel()
	}
	return nil
}

func (s *Server) job(id string) *job {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	return s.jobs[id]
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  status,
		"message": message,
	})
	s.respondJSON(w, status, map[string]string{"error": message})
}
