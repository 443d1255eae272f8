package game

import (
	"time"

	"github.com/weplay-app/weplay-backend/internal/pkg/scoreboard"
)

const scoreUpdatedTopic = "weplay.game.score-updated"

type ScoreUpdated struct {
	GameId    string                `json:"gameId"`
	UserId    string                `json:"userId"`
	Patch     scoreboard.ScorePatch `json:"patch"`
	Version   int64                 `json:"version"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

func (ScoreUpdated) GetEventTopicName() string {
	return scoreUpdatedTopic
}
