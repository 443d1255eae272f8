package ws

import (
	"encoding/json"
	"time"

	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
)

// Client to server events.
const (
	EventJoinGame    = "joinGame"
	EventLeaveGame   = "leaveGame"
	EventUpdateScore = "updateScore"
	EventCreatePost  = "createPost"
)

// Server to client events.
const (
	EventGameUpdate = "gameUpdate"
	EventNewPost    = "newPost"
	EventUserJoined = "userJoined"
	EventUserLeft   = "userLeft"
	EventJoinedGame = "joinedGame"
	EventLeftGame   = "leftGame"
	EventError      = "error"
)

type ClientMessage struct {
	Event   string          `json:"event"`
	GameId  string          `json:"gameId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Event     string    `json:"event"`
	GameId    string    `json:"gameId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Version   int64     `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewServerMessage(event string, gameId string, payload any) ServerMessage {
	return ServerMessage{
		Event:     event,
		GameId:    gameId,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

func (m ServerMessage) WithVersion(version int64) ServerMessage {
	m.Version = version
	return m
}

type MemberPayload struct {
	ConnectionId string `json:"connectionId"`
	UserId       string `json:"userId,omitempty"`
	Username     string `json:"username,omitempty"`
}

func MemberOf(conn *Connection) MemberPayload {
	return MemberPayload{
		ConnectionId: conn.Id,
		UserId:       conn.UserId,
		Username:     conn.Username,
	}
}

type RoomPayload struct {
	Members int `json:"members"`
}

type ErrorPayload struct {
	Kind    reject.Kind            `json:"kind"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message"`
	Errors  []reject.ProblemDetail `json:"errors,omitempty"`
}

// ErrorMessage converts a problem into the error event sent to the originating connection.
func ErrorMessage(gameId string, problem reject.Problem) ServerMessage {
	kind := reject.Kind(problem.Type)
	if kind == "" {
		kind = reject.KindUnexpected
	}
	return NewServerMessage(EventError, gameId, ErrorPayload{
		Kind:    kind,
		Code:    problem.Code,
		Message: problem.Title,
		Errors:  problem.Errors,
	})
}
