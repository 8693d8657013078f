package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/docrobotics/layouttune/internal/errors"
	"github.com/docrobotics/layouttune/internal/feedback"
	"github.com/docrobotics/layouttune/internal/params"
	"github.com/docrobotics/layouttune/internal/refine"
)

// Manager owns all live sessions. Every mutation goes through its lock, which
// serializes iteration recording, feedback submission, revert and completion
// per session, and guarantees at most one in-flight iteration per session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	inFlight map[string]bool
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		inFlight: make(map[string]bool),
	}
}

// Start creates an active session for the diagram type.
func (m *Manager) Start(diagram params.DiagramType, referenceID string, target float64) (*Session, error) {
	if !diagram.Valid() {
		return nil, errors.Errorf("unknown diagram type %q", diagram).WithComponent("session")
	}
	if target < 0 || target > 1 {
		return nil, errors.Errorf("target score %g outside [0, 1]", target).WithComponent("session")
	}

	s := newSession(diagram, referenceID, target)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return m.snapshot(s.ID)
}

// Get returns a copy of the session, so callers can never mutate managed
// state behind the lock's back.
func (m *Manager) Get(id string) (*Session, error) {
	return m.snapshot(id)
}

// BeginIteration marks an iteration as in flight. It fails when the session
// is terminal or already has an iteration in flight.
func (m *Manager) BeginIteration(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return errors.Errorf("session %s not found", id).WithComponent("session")
	}
	if s.Status.Terminal() {
		return errors.Errorf("session %s is %s", id, s.Status).WithComponent("session")
	}
	if m.inFlight[id] {
		return errors.Errorf("session %s already has an iteration in flight", id).WithComponent("session")
	}
	m.inFlight[id] = true
	return nil
}

// RecordIteration appends a completed iteration and releases the in-flight
// slot. The first iteration establishes the baseline score; the best score
// never decreases.
func (m *Manager) RecordIteration(id string, iter refine.Iteration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return errors.Errorf("session %s not found", id).WithComponent("session")
	}
	if s.Status.Terminal() {
		return errors.Errorf("session %s is %s", id, s.Status).WithComponent("session")
	}

	delete(m.inFlight, id)
	if len(s.Iterations) == 0 {
		s.BaselineScore = iter.Quality.Score
	}
	if iter.Quality.Score > s.BestScore {
		for i := range s.Iterations {
			s.Iterations[i].IsBest = false
		}
		iter.IsBest = true
		s.BestScore = iter.Quality.Score
	}
	s.Iterations = append(s.Iterations, iter)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// SubmitFeedback appends a feedback item to the session.
func (m *Manager) SubmitFeedback(id string, fb feedback.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return errors.Errorf("session %s not found", id).WithComponent("session")
	}
	if s.Status.Terminal() {
		return errors.Errorf("session %s is %s", id, s.Status).WithComponent("session")
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}
	s.Feedback = append(s.Feedback, fb)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// AccumulatedSuggestions translates the session's full feedback history
// against the given parameter set.
func (m *Manager) AccumulatedSuggestions(id string, current params.Set) (feedback.Translation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return feedback.Translation{}, errors.Errorf("session %s not found", id).WithComponent("session")
	}
	return feedback.TranslateAccumulated(s.Feedback, current, s.LayoutType), nil
}

// RevertTo drops every iteration after the given index and recomputes the
// best score from what remains.
func (m *Manager) RevertTo(id string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return errors.Errorf("session %s not found", id).WithComponent("session")
	}
	if s.Status.Terminal() {
		return errors.Errorf("session %s is %s", id, s.Status).WithComponent("session")
	}
	if m.inFlight[id] {
		return errors.New("cannot revert with an iteration in flight").WithComponent("session")
	}

	kept := make([]refine.Iteration, 0, len(s.Iterations))
	for _, it := range s.Iterations {
		if it.Index <= index {
			kept = append(kept, it)
		}
	}
	s.Iterations = kept

	s.BestScore = 0
	bestIdx := -1
	for i := range s.Iterations {
		s.Iterations[i].IsBest = false
		if s.Iterations[i].Quality.Score > s.BestScore {
			s.BestScore = s.Iterations[i].Quality.Score
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		s.Iterations[bestIdx].IsBest = true
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Approve marks the session accepted by the person.
func (m *Manager) Approve(id string) error { return m.complete(id, StatusApproved) }

// Abort marks the session abandoned.
func (m *Manager) Abort(id string) error { return m.complete(id, StatusAborted) }

// Complete moves the session to the terminal status matching a run's
// completion reason.
func (m *Manager) Complete(id string, reason refine.CompletionReason) error {
	switch reason {
	case refine.ReasonTargetReached:
		return m.complete(id, StatusTargetReached)
	case refine.ReasonMaxIterations:
		return m.complete(id, StatusMaxIterations)
	case refine.ReasonPlateau:
		return m.complete(id, StatusPlateau)
	case refine.ReasonCancelled, refine.ReasonExhausted:
		return m.complete(id, StatusAborted)
	default:
		return errors.Errorf("unknown completion reason %q", reason).WithComponent("session")
	}
}

func (m *Manager) complete(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return errors.Errorf("session %s not found", id).WithComponent("session")
	}
	if s.Status.Terminal() {
		return errors.Errorf("session %s is already %s", id, s.Status).WithComponent("session")
	}
	delete(m.inFlight, id)
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Export serializes the session for storage or resumption.
func (m *Manager) Export(id string) ([]byte, error) {
	s, err := m.snapshot(id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

// Import restores a previously exported session, keeping its identity.
func (m *Manager) Import(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decoding session").WithComponent("session")
	}
	if s.ID == "" {
		return nil, errors.New("session record has no id").WithComponent("session")
	}
	m.mu.Lock()
	m.sessions[s.ID] = &s
	m.mu.Unlock()
	return m.snapshot(s.ID)
}

func (m *Manager) snapshot(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Errorf("session %s not found", id).WithComponent("session")
	}
	out := *s
	out.Iterations = append([]refine.Iteration(nil), s.Iterations...)
	out.Feedback = append([]feedback.Feedback(nil), s.Feedback...)
	return &out, nil
}
