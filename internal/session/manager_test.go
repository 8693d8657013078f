package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrobotics/layouttune/internal/feedback"
	"github.com/docrobotics/layouttune/internal/params"
	"github.com/docrobotics/layouttune/internal/refine"
	"github.com/docrobotics/layouttune/internal/scoring"
)

func iteration(index int, score float64) refine.Iteration {
	return refine.Iteration{
		Index:   index,
		Params:  params.Defaults(params.DiagramNetwork),
		Quality: scoring.CombinedResult{Score: score, Class: scoring.Classify(score)},
	}
}

func startSession(t *testing.T, m *Manager) *Session {
	t.Helper()
	s, err := m.Start(params.DiagramNetwork, "ref-1", 0.9)
	require.NoError(t, err)
	return s
}

func TestStartValidates(t *testing.T) {
	m := NewManager()
	_, err := m.Start("gantt", "", 0.5)
	assert.Error(t, err)
	_, err = m.Start(params.DiagramNetwork, "", 1.5)
	assert.Error(t, err)
}

func TestSingleInFlightIteration(t *testing.T) {
	m := NewManager()
	s := startSession(t, m)

	require.NoError(t, m.BeginIteration(s.ID))
	assert.Error(t, m.BeginIteration(s.ID), "second in-flight iteration must be rejected")

	require.NoError(t, m.RecordIteration(s.ID, iteration(1, 0.4)))
	assert.NoError(t, m.BeginIteration(s.ID), "slot frees after recording")
}

func TestBestScoreNeverDecreases(t *testing.T) {
	m := NewManager()
	s := startSession(t, m)

	scores := []float64{0.3, 0.7, 0.5, 0.6}
	for i, score := range scores {
		require.NoError(t, m.RecordIteration(s.ID, iteration(i+1, score)))
	}

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got.BestScore, 1e-9)
	assert.InDelta(t, 0.3, got.BaselineScore, 1e-9)

	best := got.BestIteration()
	require.NotNil(t, best)
	assert.Equal(t, 2, best.Index)
}

func TestRevertRecomputesBest(t *testing.T) {
	m := NewManager()
	s := startSession(t, m)

	for i, score := range []float64{0.3, 0.5, 0.8, 0.4} {
		require.NoError(t, m.RecordIteration(s.ID, iteration(i+1, score)))
	}
	require.NoError(t, m.RevertTo(s.ID, 2))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Iterations, 2)
	assert.InDelta(t, 0.5, got.BestScore, 1e-9)
	require.NotNil(t, got.BestIteration())
	assert.Equal(t, 2, got.BestIteration().Index)
}

func TestTerminalStatusRejectsMutation(t *testing.T) {
	m := NewManager()
	s := startSession(t, m)

	require.NoError(t, m.Approve(s.ID))
	assert.Error(t, m.RecordIteration(s.ID, iteration(1, 0.5)))
	assert.Error(t, m.SubmitFeedback(s.ID, feedback.Feedback{Aspect: feedback.AspectSpacing}))
	assert.Error(t, m.RevertTo(s.ID, 0))
	assert.Error(t, m.Abort(s.ID), "completing twice must fail")
}

func TestCompleteMapsReasons(t *testing.T) {
	m := NewManager()
	tests := []struct {
		reason refine.CompletionReason
		want   Status
	}{
		{refine.ReasonTargetReached, StatusTargetReached},
		{refine.ReasonMaxIterations, StatusMaxIterations},
		{refine.ReasonPlateau, StatusPlateau},
		{refine.ReasonCancelled, StatusAborted},
	}
	for _, tt := range tests {
		s := startSession(t, m)
		require.NoError(t, m.Complete(s.ID, tt.reason))
		got, err := m.Get(s.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Status)
	}
}

func TestFeedbackAccumulation(t *testing.T) {
	m := NewManager()
	s := startSession(t, m)

	require.NoError(t, m.SubmitFeedback(s.ID, feedback.Feedback{
		Aspect: feedback.AspectSpacing, Direction: feedback.DirectionIncrease, Intensity: feedback.IntensityModerate,
	}))
	require.NoError(t, m.SubmitFeedback(s.ID, feedback.Feedback{
		Aspect: feedback.AspectSpacing, Direction: feedback.DirectionIncrease, Intensity: feedback.IntensitySlight,
	}))

	translation, err := m.AccumulatedSuggestions(s.ID, params.Defaults(params.DiagramNetwork))
	require.NoError(t, err)
	assert.NotEmpty(t, translation.Suggestions)
}

func TestExportImportRoundTrip(t *testing.T) {
	m := NewManager()
	s := startSession(t, m)
	require.NoError(t, m.RecordIteration(s.ID, iteration(1, 0.6)))
	require.NoError(t, m.Approve(s.ID))

	data, err := m.Export(s.ID)
	require.NoError(t, err)

	restored, err := NewManager().Import(data)
	require.NoError(t, err)
	assert.Equal(t, s.ID, restored.ID)
	assert.Equal(t, StatusApproved, restored.Status)
	assert.Len(t, restored.Iterations, 1)
	assert.InDelta(t, 0.6, restored.BestScore, 1e-9)
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager()
	s := startSession(t, m)
	require.NoError(t, m.RecordIteration(s.ID, iteration(1, 0.6)))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	got.Iterations[0].Quality.Score = 0.0
	got.Status = StatusAborted

	fresh, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, fresh.Iterations[0].Quality.Score, 1e-9)
	assert.Equal(t, StatusActive, fresh.Status)
}
