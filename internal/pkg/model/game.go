package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Game struct {
	Id        string     `gorm:"primaryKey" json:"id"`
	Title     string     `gorm:"not null" json:"title"`
	HomeTeam  Team       `json:"homeTeam"`
	AwayTeam  Team       `json:"awayTeam"`
	Status    GameStatus `gorm:"index;not null" json:"status"`
	Inning    int        `json:"inning"`
	IsTopHalf bool       `json:"isTopHalf"`
	HomeScore int        `json:"homeScore"`
	AwayScore int        `json:"awayScore"`
	Outs      int        `json:"outs"`
	Balls     int        `json:"balls"`
	Strikes   int        `json:"strikes"`
	CreatedBy string     `gorm:"index;not null" json:"createdBy"`
	Version   int64      `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Game) TableName() string {
	return "game"
}

func (g *Game) BeforeCreate(_ *gorm.DB) error {
	if g.Id == "" {
		g.Id = uuid.NewString()
	}
	return nil
}
