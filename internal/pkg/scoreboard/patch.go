// Package scoreboard checks proposed scoreboard mutations and fan posts against the
// game invariants before anything is persisted or broadcast.
package scoreboard

import (
	"strings"

	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
)

const (
	MinInning  = 1
	MaxInning  = 20
	MaxScore   = 99
	MaxOuts    = 3
	MaxBalls   = 4
	MaxStrikes = 3
)

// ScorePatch is a partial scoreboard update. Nil fields are left untouched.
type ScorePatch struct {
	HomeScore *int              `json:"homeScore,omitempty"`
	AwayScore *int              `json:"awayScore,omitempty"`
	Inning    *int              `json:"inning,omitempty"`
	IsTopHalf *bool             `json:"isTopHalf,omitempty"`
	Outs      *int              `json:"outs,omitempty"`
	Balls     *int              `json:"balls,omitempty"`
	Strikes   *int              `json:"strikes,omitempty"`
	Status    *model.GameStatus `json:"status,omitempty"`
}

func (p ScorePatch) Empty() bool {
	return p.HomeScore == nil && p.AwayScore == nil && p.Inning == nil && p.IsTopHalf == nil &&
		p.Outs == nil && p.Balls == nil && p.Strikes == nil && p.Status == nil
}

func (p ScorePatch) clone() ScorePatch {
	return ScorePatch{
		HomeScore: cloneValue(p.HomeScore),
		AwayScore: cloneValue(p.AwayScore),
		Inning:    cloneValue(p.Inning),
		IsTopHalf: cloneValue(p.IsTopHalf),
		Outs:      cloneValue(p.Outs),
		Balls:     cloneValue(p.Balls),
		Strikes:   cloneValue(p.Strikes),
		Status:    cloneValue(p.Status),
	}
}

func cloneValue[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Violation describes a single rejected field.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError is returned whenever a patch or post breaks an invariant. It is never
// partially applied.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Field != "" {
			messages = append(messages, v.Field+": "+v.Message)
			continue
		}
		messages = append(messages, v.Message)
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// Problem converts the violations into the problem sent to HTTP and socket clients.
func (e *ValidationError) Problem() *reject.ProblemWithTrace {
	details := make([]reject.ProblemDetail, 0, len(e.Violations))
	for _, v := range e.Violations {
		details = append(details, reject.ProblemDetail{
			Property: v.Field,
			Info:     v.Message,
			Code:     v.Code,
		})
	}
	problem := reject.ViolationProblem("Rejected mutation", details)
	return &reject.ProblemWithTrace{Problem: problem, Cause: e}
}
