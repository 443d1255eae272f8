package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostType string

const (
	PostText  PostType = "text"
	PostPhoto PostType = "photo"
	PostVideo PostType = "video"
	PostCheer PostType = "cheer"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type Post struct {
	Id        string    `gorm:"primaryKey" json:"id"`
	GameId    string    `gorm:"index:idx_post_game_created,priority:1;not null" json:"gameId"`
	UserId    string    `gorm:"index;not null" json:"userId"`
	Type      PostType  `gorm:"index;not null" json:"type"`
	Content   string    `gorm:"not null" json:"content"`
	MediaUrl  string    `json:"mediaUrl,omitempty"`
	MediaType MediaType `json:"mediaType,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_post_game_created,priority:2" json:"createdAt"`
}

func (Post) TableName() string {
	return "post"
}

func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.Id == "" {
		p.Id = uuid.NewString()
	}
	return nil
}
