package game

import (
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/scoreboard"
)

type CreateGameRequest struct {
	Title    string     `json:"title" binding:"required,min=1,max=100"`
	HomeTeam model.Team `json:"homeTeam"`
	AwayTeam model.Team `json:"awayTeam"`
}

// UpdateGameRequest carries optional metadata edits next to a scoreboard patch.
type UpdateGameRequest struct {
	Title    *string     `json:"title" binding:"omitempty,min=1,max=100"`
	HomeTeam *model.Team `json:"homeTeam"`
	AwayTeam *model.Team `json:"awayTeam"`
	scoreboard.ScorePatch
}

func (r UpdateGameRequest) metadata() map[string]any {
	columns := map[string]any{}
	if r.Title != nil {
		columns["title"] = *r.Title
	}
	if r.HomeTeam != nil {
		columns["home_team"] = *r.HomeTeam
	}
	if r.AwayTeam != nil {
		columns["away_team"] = *r.AwayTeam
	}
	return columns
}

type GameFilter struct {
	Status    model.GameStatus
	CreatedBy string
}

func (r UpdateGameRequest) applyMetadata(game *model.Game) {
	if r.Title != nil {
		game.Title = *r.Title
	}
	if r.HomeTeam != nil {
		game.HomeTeam = *r.HomeTeam
	}
	if r.AwayTeam != nil {
		game.AwayTeam = *r.AwayTeam
	}
}
