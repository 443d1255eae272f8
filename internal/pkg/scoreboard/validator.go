package scoreboard

import (
	"fmt"

	"github.com/weplay-app/weplay-backend/internal/pkg/model"
)

var transitions = map[model.GameStatus][]model.GameStatus{
	model.GameWaiting:    {model.GameInProgress},
	model.GameInProgress: {model.GameSuspended, model.GameFinished},
	model.GameSuspended:  {model.GameInProgress, model.GameFinished},
}

// CanTransition reports whether a game may move from one status to another. Finished is
// terminal and staying in the same status is always allowed.
func CanTransition(from, to model.GameStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Validate checks patch against the persisted game and returns the accepted copy.
// Out of range values are rejected rather than clamped.
func Validate(current *model.Game, patch ScorePatch) (ScorePatch, error) {
	if patch.Empty() {
		return ScorePatch{}, &ValidationError{Violations: []Violation{{
			Code:    "score.patch.empty",
			Message: "mutation contains no fields",
		}}}
	}

	if current.Status == model.GameFinished {
		return ScorePatch{}, &ValidationError{Violations: []Violation{{
			Field:   "status",
			Code:    "game.finished",
			Message: "finished games cannot be modified",
		}}}
	}

	var violations []Violation
	checkRange(&violations, "homeScore", patch.HomeScore, 0, MaxScore)
	checkRange(&violations, "awayScore", patch.AwayScore, 0, MaxScore)
	checkRange(&violations, "inning", patch.Inning, MinInning, MaxInning)
	checkRange(&violations, "outs", patch.Outs, 0, MaxOuts)
	checkRange(&violations, "balls", patch.Balls, 0, MaxBalls)
	checkRange(&violations, "strikes", patch.Strikes, 0, MaxStrikes)

	if patch.Status != nil {
		next := *patch.Status
		switch {
		case !next.Valid():
			violations = append(violations, Violation{
				Field:   "status",
				Code:    "game.status.unknown",
				Message: fmt.Sprintf("unknown status %q", next),
			})
		case !CanTransition(current.Status, next):
			violations = append(violations, Violation{
				Field:   "status",
				Code:    "game.status.transition",
				Message: fmt.Sprintf("cannot move from %s to %s", current.Status, next),
			})
		}
	}

	if len(violations) > 0 {
		return ScorePatch{}, &ValidationError{Violations: violations}
	}
	return patch.clone(), nil
}

func checkRange(violations *[]Violation, field string, value *int, min, max int) {
	if value == nil {
		return
	}
	if *value < min || *value > max {
		*violations = append(*violations, Violation{
			Field:   field,
			Code:    "score." + field + ".out-of-range",
			Message: fmt.Sprintf("must be between %d and %d, got %d", min, max, *value),
		})
	}
}

// Apply writes an accepted patch onto the game.
func Apply(game *model.Game, patch ScorePatch) {
	if patch.HomeScore != nil {
		game.HomeScore = *patch.HomeScore
	}
	if patch.AwayScore != nil {
		game.AwayScore = *patch.AwayScore
	}
	if patch.Inning != nil {
		game.Inning = *patch.Inning
	}
	if patch.IsTopHalf != nil {
		game.IsTopHalf = *patch.IsTopHalf
	}
	if patch.Outs != nil {
		game.Outs = *patch.Outs
	}
	if patch.Balls != nil {
		game.Balls = *patch.Balls
	}
	if patch.Strikes != nil {
		game.Strikes = *patch.Strikes
	}
	if patch.Status != nil {
		game.Status = *patch.Status
	}
}

// Columns maps a patch to the column updates used by the store.
func Columns(patch ScorePatch) map[string]any {
	columns := map[string]any{}
	if patch.HomeScore != nil {
		columns["home_score"] = *patch.HomeScore
	}
	if patch.AwayScore != nil {
		columns["away_score"] = *patch.AwayScore
	}
	if patch.Inning != nil {
		columns["inning"] = *patch.Inning
	}
	if patch.IsTopHalf != nil {
		columns["is_top_half"] = *patch.IsTopHalf
	}
	if patch.Outs != nil {
		columns["outs"] = *patch.Outs
	}
	if patch.Balls != nil {
		columns["balls"] = *patch.Balls
	}
	if patch.Strikes != nil {
		columns["strikes"] = *patch.Strikes
	}
	if patch.Status != nil {
		columns["status"] = *patch.Status
	}
	return columns
}
