package profile

import "time"

// Profile is what a user sees about themselves.
type Profile struct {
	Id        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicProfile hides contact details and adds activity counters.
type PublicProfile struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	GamesCreated int64     `json:"gamesCreated"`
	PostsCreated int64     `json:"postsCreated"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,username"`
	Avatar   *string `json:"avatar" binding:"omitempty,url,max=500"`
}
