package refine

import (
	"encoding/json"

	"github.com/docrobotics/layouttune/internal/params"
)

// exportEnvelope is the wire shape of an exported run: a summary block and
// the iteration history, enough to reconstruct the Result.
type exportEnvelope struct {
	Summary struct {
		Summary
		BestParams params.Set       `json:"bestParameters"`
		Reason     CompletionReason `json:"completionReason"`
	} `json:"summary"`
	History []Iteration `json:"history"`
}

// Export serializes the result as indented JSON with a summary block and the
// full history. ParseResult reverses it.
func (r *Result) Export() ([]byte, error) {
	var env exportEnvelope
	env.Summary.Summary = r.Summary
	env.Summary.BestParams = r.BestParams
	env.Summary.Reason = r.Reason
	env.History = r.Iterations
	return json.MarshalIndent(&env, "", "  ")
}

// ParseResult reconstructs a Result from its exported form.
func ParseResult(data []byte) (*Result, error) {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, WrapError(err, "decoding exported result").WithComponent("export")
	}
	return &Result{
		Iterations: env.History,
		BestParams: env.Summary.BestParams,
		BestScore:  env.Summary.BestScore,
		Reason:     env.Summary.Reason,
		Summary:    env.Summary.Summary,
	}, nil
}
