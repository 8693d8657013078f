// Package session wraps multi-turn refinement state: the ordered iterations
// of a session, its accepted/aborted status, and the feedback accumulated
// while a person steers the search. Sessions serialize to JSON for storage
// and resumption.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/docrobotics/layouttune/internal/feedback"
	"github.com/docrobotics/layouttune/internal/params"
	"github.com/docrobotics/layouttune/internal/refine"
)

// Status is the lifecycle status of a session.
type Status string

const (
	StatusActive        Status = "active"
	StatusApproved      Status = "approved"
	StatusAborted       Status = "aborted"
	StatusTargetReached Status = "target_reached"
	StatusMaxIterations Status = "max_iterations"
	StatusPlateau       Status = "plateau"
)

// Terminal reports whether the session can no longer be mutated.
func (s Status) Terminal() bool { return s != StatusActive }

// Session is the serializable record of one refinement conversation.
type Session struct {
	ID               string              `json:"id"`
	DiagramType      params.DiagramType  `json:"diagramType"`
	LayoutType       params.LayoutType   `json:"layoutType"`
	ReferenceImageID string              `json:"referenceImageId,omitempty"`
	Iterations       []refine.Iteration  `json:"iterations"`
	Status           Status              `json:"status"`
	TargetScore      float64             `json:"targetScore"`
	BaselineScore    float64             `json:"baselineScore"`
	BestScore        float64             `json:"bestScore"`
	Feedback         []feedback.Feedback `json:"feedback,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// BestIteration returns the recorded iteration flagged as best, or nil.
func (s *Session) BestIteration() *refine.Iteration {
	for i := range s.Iterations {
		if s.Iterations[i].IsBest {
			return &s.Iterations[i]
		}
	}
	return nil
}

func newSession(diagram params.DiagramType, referenceID string, target float64) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:               uuid.NewString(),
		DiagramType:      diagram,
		LayoutType:       diagram.Layout(),
		ReferenceImageID: referenceID,
		Status:           StatusActive,
		TargetScore:      target,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
