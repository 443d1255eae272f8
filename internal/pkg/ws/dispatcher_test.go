package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
)

func drain(c *Connection) []ServerMessage {
	var messages []ServerMessage
	for {
		select {
		case data := <-c.send:
			var msg ServerMessage
			if err := json.Unmarshal(data, &msg); err == nil {
				messages = append(messages, msg)
			}
		default:
			return messages
		}
	}
}

func TestPublishExcludesSenderByDefault(t *testing.T) {
	registry := NewRoomRegistry()
	dispatcher := NewDispatcher(registry, ExcludeSender)
	a, b := newTestConnection("a"), newTestConnection("b")
	registry.Join(a, "g1")
	registry.Join(b, "g1")

	delivered := dispatcher.Publish("g1", NewServerMessage(EventGameUpdate, "g1", map[string]int{"homeScore": 3}), a)

	assert.Equal(t, 1, delivered)
	assert.Empty(t, drain(a))
	received := drain(b)
	require.Len(t, received, 1)
	assert.Equal(t, EventGameUpdate, received[0].Event)
}

func TestPublishIncludesSenderWhenConfigured(t *testing.T) {
	registry := NewRoomRegistry()
	dispatcher := NewDispatcher(registry, IncludeSender)
	a, b := newTestConnection("a"), newTestConnection("b")
	registry.Join(a, "g1")
	registry.Join(b, "g1")

	assert.Equal(t, 2, dispatcher.Publish("g1", NewServerMessage(EventGameUpdate, "g1", nil), a))
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestPublishOthersIgnoresEchoPolicy(t *testing.T) {
	registry := NewRoomRegistry()
	dispatcher := NewDispatcher(registry, IncludeSender)
	a, b := newTestConnection("a"), newTestConnection("b")
	registry.Join(a, "g1")
	registry.Join(b, "g1")

	assert.Equal(t, 1, dispatcher.PublishOthers("g1", NewServerMessage(EventUserJoined, "g1", MemberOf(a)), a))
	assert.Empty(t, drain(a))
}

func TestPublishIsolatesRooms(t *testing.T) {
	registry := NewRoomRegistry()
	dispatcher := NewDispatcher(registry, ExcludeSender)
	a, b := newTestConnection("a"), newTestConnection("b")
	registry.Join(a, "g1")
	registry.Join(b, "g2")

	dispatcher.Publish("g1", NewServerMessage(EventNewPost, "g1", nil), nil)

	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
}

func TestFullQueueDropsOnlySlowConnection(t *testing.T) {
	registry := NewRoomRegistry()
	dispatcher := NewDispatcher(registry, ExcludeSender)
	slow := NewConnection("slow", nil, 1)
	fast := NewConnection("fast", nil, 8)
	registry.Join(slow, "g1")
	registry.Join(fast, "g1")

	dispatcher.Publish("g1", NewServerMessage(EventGameUpdate, "g1", nil), nil)
	dispatcher.Publish("g1", NewServerMessage(EventGameUpdate, "g1", nil), nil)

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow connection should be closed")
	}
	assert.Len(t, drain(fast), 2)

	stats := dispatcher.Stats()
	assert.Equal(t, int64(2), stats.Published)
	assert.Equal(t, int64(3), stats.Delivered)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestSendToClosedConnectionFails(t *testing.T) {
	dispatcher := NewDispatcher(NewRoomRegistry(), ExcludeSender)
	a := newTestConnection("a")
	a.Close()
	a.Close()

	assert.False(t, dispatcher.Send(a, NewServerMessage(EventLeftGame, "g1", nil)))
	assert.Zero(t, dispatcher.Stats().Dropped)
}

func TestSlowConnectionCountsAsOneDrop(t *testing.T) {
	registry := NewRoomRegistry()
	dispatcher := NewDispatcher(registry, ExcludeSender)
	slow := NewConnection("slow", nil, 1)
	fast := NewConnection("fast", nil, 8)
	registry.Join(slow, "g1")
	registry.Join(fast, "g1")

	for i := 0; i < 4; i++ {
		dispatcher.Publish("g1", NewServerMessage(EventGameUpdate, "g1", nil), nil)
	}
	dispatcher.PublishOthers("g1", NewServerMessage(EventUserLeft, "g1", MemberOf(slow)), slow)

	assert.Equal(t, int64(1), dispatcher.Stats().Dropped)
	assert.Len(t, drain(fast), 5)
}

func TestErrorMessageCarriesKind(t *testing.T) {
	msg := ErrorMessage("g1", reject.NotFoundProblem())
	payload, ok := msg.Payload.(ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, EventError, msg.Event)
	assert.Equal(t, reject.KindNotFound, payload.Kind)
}
