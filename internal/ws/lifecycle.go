package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/scoreboard"
	"github.com/weplay-app/weplay-backend/internal/pkg/ws"
)

const (
	errorUnknownEvent  string = "error.ws.unknown-event"
	errorMalformed     string = "error.ws.malformed-message"
	errorGameIdMissing string = "error.ws.game-id-missing"
	errorNotJoined     string = "error.ws.not-joined"
	errorRoomBusy      string = "error.ws.room-busy"
	errorShuttingDown  string = "error.ws.shutting-down"
)

type ScoreUpdater interface {
	ApplyScoreUpdate(
		ctx context.Context,
		gameId string,
		userId string,
		patch scoreboard.ScorePatch,
	) (*model.Game, scoreboard.ScorePatch, *reject.ProblemWithTrace)
}

type PostCreator interface {
	CreatePost(
		ctx context.Context,
		gameId string,
		userId string,
		fields scoreboard.PostFields,
	) (*model.Post, *reject.ProblemWithTrace)
}

type State string

const (
	StateIdle         State = "idle"
	StateJoined       State = "joined"
	StateDisconnected State = "disconnected"
)

type Stats struct {
	Connections int64
	Rooms       int
	Members     int
	ActiveLanes int
	Dispatcher  ws.DispatcherStats
}

// Manager drives every socket through idle, joined and disconnected. Membership edits
// happen inline on the connection's read goroutine; mutations run on the game's lane so
// a slow store call only holds up that game.
type Manager struct {
	ctx        context.Context
	registry   *ws.RoomRegistry
	dispatcher *ws.Dispatcher
	lanes      *ws.Lanes
	scores     ScoreUpdater
	posts      PostCreator

	connections atomic.Int64
	live        sync.Map
}

// NewManager binds lane work to ctx, which should live as long as the server.
func NewManager(
	ctx context.Context,
	registry *ws.RoomRegistry,
	dispatcher *ws.Dispatcher,
	lanes *ws.Lanes,
	scores ScoreUpdater,
	posts PostCreator,
) *Manager {
	return &Manager{
		ctx:        ctx,
		registry:   registry,
		dispatcher: dispatcher,
		lanes:      lanes,
		scores:     scores,
		posts:      posts,
	}
}

// Serve blocks until the connection's transport closes, then cleans up its membership.
func (m *Manager) Serve(conn *ws.Connection) {
	m.live.Store(conn, struct{}{})
	m.connections.Add(1)
	defer func() {
		m.live.Delete(conn)
		m.connections.Add(-1)
	}()

	log.Debug().Str("connectionId", conn.Id).Str("userId", conn.UserId).Msg("Websocket connected")

	go conn.WritePump()
	err := conn.ReadLoop(func(data []byte) {
		m.Handle(conn, data)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		log.Info().Err(err).Str("connectionId", conn.Id).Msg("Websocket closed unexpectedly")
	}

	m.Disconnect(conn)
}

func (m *Manager) Handle(conn *ws.Connection, data []byte) {
	var msg ws.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		m.sendProblem(conn, "", validationProblem("Cannot read message", errorMalformed).Trace(err))
		return
	}

	switch msg.Event {
	case ws.EventJoinGame, ws.EventLeaveGame, ws.EventUpdateScore, ws.EventCreatePost:
	default:
		m.sendProblem(conn, msg.GameId, validationProblem("Unknown event "+msg.Event, errorUnknownEvent).Trace(nil))
		return
	}

	if msg.GameId == "" {
		m.sendProblem(conn, "", validationProblem("gameId is required", errorGameIdMissing).Trace(nil))
		return
	}

	switch msg.Event {
	case ws.EventJoinGame:
		m.join(conn, msg.GameId)
	case ws.EventLeaveGame:
		m.leave(conn, msg.GameId)
	case ws.EventUpdateScore:
		m.updateScore(conn, msg)
	case ws.EventCreatePost:
		m.createPost(conn, msg)
	}
}

func (m *Manager) join(conn *ws.Connection, gameId string) {
	previous := m.registry.Join(conn, gameId)
	if previous != gameId {
		if previous != "" {
			m.dispatcher.PublishOthers(previous, ws.NewServerMessage(ws.EventUserLeft, previous, ws.MemberOf(conn)), conn)
		}
		m.dispatcher.PublishOthers(gameId, ws.NewServerMessage(ws.EventUserJoined, gameId, ws.MemberOf(conn)), conn)
		log.Debug().Str("connectionId", conn.Id).Str("gameId", gameId).Str("previousGameId", previous).Msg("Joined game")
	}

	m.dispatcher.Send(conn, ws.NewServerMessage(ws.EventJoinedGame, gameId, ws.RoomPayload{
		Members: len(m.registry.MembersOf(gameId)),
	}))
}

func (m *Manager) leave(conn *ws.Connection, gameId string) {
	if !m.registry.Leave(conn, gameId) {
		return
	}

	m.dispatcher.PublishOthers(gameId, ws.NewServerMessage(ws.EventUserLeft, gameId, ws.MemberOf(conn)), conn)
	m.dispatcher.Send(conn, ws.NewServerMessage(ws.EventLeftGame, gameId, ws.RoomPayload{
		Members: len(m.registry.MembersOf(gameId)),
	}))
	log.Debug().Str("connectionId", conn.Id).Str("gameId", gameId).Msg("Left game")
}

// Disconnect is idempotent and runs the same cleanup as an explicit leave.
func (m *Manager) Disconnect(conn *ws.Connection) {
	conn.Close()

	gameId, ok := m.registry.LeaveAll(conn)
	if !ok {
		return
	}
	m.dispatcher.PublishOthers(gameId, ws.NewServerMessage(ws.EventUserLeft, gameId, ws.MemberOf(conn)), conn)
	log.Debug().Str("connectionId", conn.Id).Str("gameId", gameId).Msg("Disconnected from game")
}

func (m *Manager) updateScore(conn *ws.Connection, msg ws.ClientMessage) {
	if !m.authorizeMutation(conn, msg.GameId) {
		return
	}

	var patch scoreboard.ScorePatch
	if err := decodeStrict(msg.Payload, &patch); err != nil {
		m.sendProblem(conn, msg.GameId, validationProblem("Invalid score payload", errorMalformed).Trace(err))
		return
	}

	gameId := msg.GameId
	m.submit(conn, gameId, func() {
		game, accepted, problem := m.scores.ApplyScoreUpdate(m.ctx, gameId, conn.UserId, patch)
		if problem != nil {
			log.Info().Err(problem).Str("connectionId", conn.Id).Str("gameId", gameId).Msg("Score update rejected")
			m.sendProblem(conn, gameId, problem)
			return
		}

		update := ws.NewServerMessage(ws.EventGameUpdate, gameId, accepted).WithVersion(game.Version)
		m.dispatcher.Publish(gameId, update, conn)
	})
}

func (m *Manager) createPost(conn *ws.Connection, msg ws.ClientMessage) {
	if !m.authorizeMutation(conn, msg.GameId) {
		return
	}

	var fields scoreboard.PostFields
	if err := decodeStrict(msg.Payload, &fields); err != nil {
		m.sendProblem(conn, msg.GameId, validationProblem("Invalid post payload", errorMalformed).Trace(err))
		return
	}

	gameId := msg.GameId
	m.submit(conn, gameId, func() {
		post, problem := m.posts.CreatePost(m.ctx, gameId, conn.UserId, fields)
		if problem != nil {
			log.Info().Err(problem).Str("connectionId", conn.Id).Str("gameId", gameId).Msg("Post rejected")
			m.sendProblem(conn, gameId, problem)
			return
		}

		m.dispatcher.Publish(gameId, ws.NewServerMessage(ws.EventNewPost, gameId, post), conn)
	})
}

// authorizeMutation requires a signed-in connection that is watching gameId.
func (m *Manager) authorizeMutation(conn *ws.Connection, gameId string) bool {
	if !conn.Authenticated() {
		m.sendProblem(conn, gameId, reject.NewProblem().
			WithTitle("Sign in to update games or post").
			WithStatus(http.StatusUnauthorized).
			WithCode("error.auth.unauthorized").
			WithKind(reject.KindUnauthorized).
			Trace(nil))
		return false
	}

	if room, ok := m.registry.RoomOf(conn); !ok || room != gameId {
		m.sendProblem(conn, gameId, reject.NewProblem().
			WithTitle("Join the game before sending updates").
			WithStatus(http.StatusNotFound).
			WithCode(errorNotJoined).
			WithKind(reject.KindNotFound).
			Trace(nil))
		return false
	}
	return true
}

func (m *Manager) submit(conn *ws.Connection, gameId string, job func()) {
	err := m.lanes.Submit(gameId, job)
	switch {
	case errors.Is(err, ws.ErrLaneFull):
		log.Warn().Str("connectionId", conn.Id).Str("gameId", gameId).Msg("Game lane full, rejecting mutation")
		m.sendProblem(conn, gameId, reject.NewProblem().
			WithTitle("Room busy, try again").
			WithStatus(http.StatusServiceUnavailable).
			WithCode(errorRoomBusy).
			WithKind(reject.KindTransientStore).
			Trace(err))
	case errors.Is(err, ws.ErrLanesClosed):
		m.sendProblem(conn, gameId, reject.NewProblem().
			WithTitle("Server is shutting down").
			WithStatus(http.StatusServiceUnavailable).
			WithCode(errorShuttingDown).
			WithKind(reject.KindTransientStore).
			Trace(err))
	}
}

// Shutdown stops accepting mutations, lets queued ones finish and then closes every
// socket. Hijacked websockets are not closed by http.Server.Shutdown.
func (m *Manager) Shutdown() {
	m.lanes.Shutdown()
	m.live.Range(func(key, _ any) bool {
		key.(*ws.Connection).Close()
		return true
	})
}

func (m *Manager) sendProblem(conn *ws.Connection, gameId string, problem *reject.ProblemWithTrace) {
	m.dispatcher.Send(conn, ws.ErrorMessage(gameId, problem.Problem))
}

func (m *Manager) StateOf(conn *ws.Connection) (State, string) {
	select {
	case <-conn.Done():
		return StateDisconnected, ""
	default:
	}
	if gameId, ok := m.registry.RoomOf(conn); ok {
		return StateJoined, gameId
	}
	return StateIdle, ""
}

func (m *Manager) Stats() Stats {
	return Stats{
		Connections: m.connections.Load(),
		Rooms:       m.registry.RoomCount(),
		Members:     m.registry.ConnectionCount(),
		ActiveLanes: m.lanes.Active(),
		Dispatcher:  m.dispatcher.Stats(),
	}
}

func validationProblem(title string, code string) *reject.Problem {
	return reject.NewProblem().
		WithTitle(title).
		WithStatus(http.StatusBadRequest).
		WithCode(code).
		WithKind(reject.KindValidation)
}

func decodeStrict(payload json.RawMessage, target any) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// LogStats writes one line describing room and delivery state.
func (m *Manager) LogStats() {
	stats := m.Stats()
	log.Info().
		Int64("connections", stats.Connections).
		Int("rooms", stats.Rooms).
		Int("members", stats.Members).
		Int("activeLanes", stats.ActiveLanes).
		Int64("published", stats.Dispatcher.Published).
		Int64("delivered", stats.Dispatcher.Delivered).
		Int64("dropped", stats.Dispatcher.Dropped).
		Msg("Realtime stats")
}
