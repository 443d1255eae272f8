package ws

import (
	"encoding/json"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type EchoPolicy int

const (
	// ExcludeSender skips the originating connection when fanning out its own event.
	ExcludeSender EchoPolicy = iota
	IncludeSender
)

func EchoPolicyFromFlag(echoToSender bool) EchoPolicy {
	if echoToSender {
		return IncludeSender
	}
	return ExcludeSender
}

type DispatcherStats struct {
	Published int64
	Delivered int64
	Dropped   int64
}

// Dispatcher fans events out to room members. Delivery is at most once per member and
// never blocks: a member whose queue is full is closed and dropped.
type Dispatcher struct {
	registry *RoomRegistry
	echo     EchoPolicy

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

func NewDispatcher(registry *RoomRegistry, echo EchoPolicy) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		echo:     echo,
	}
}

func (d *Dispatcher) Echo() EchoPolicy {
	return d.echo
}

// Publish delivers msg to every member of the room in registry order and returns the
// number of successful enqueues. sender may be nil for events that originate from REST.
func (d *Dispatcher) Publish(gameId string, msg ServerMessage, sender *Connection) int {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameId).Str("event", msg.Event).Msg("Cannot encode broadcast")
		return 0
	}
	d.published.Add(1)

	delivered := 0
	for _, member := range d.registry.MembersOf(gameId) {
		if member == sender && d.echo == ExcludeSender {
			continue
		}
		if d.deliver(member, data, msg.Event) {
			delivered++
		}
	}
	return delivered
}

// PublishOthers always skips sender regardless of the echo policy. Used for presence
// notifications.
func (d *Dispatcher) PublishOthers(gameId string, msg ServerMessage, sender *Connection) int {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameId).Str("event", msg.Event).Msg("Cannot encode broadcast")
		return 0
	}
	d.published.Add(1)

	delivered := 0
	for _, member := range d.registry.MembersOf(gameId) {
		if member == sender {
			continue
		}
		if d.deliver(member, data, msg.Event) {
			delivered++
		}
	}
	return delivered
}

// Send delivers msg to a single connection, used for acks and error events.
func (d *Dispatcher) Send(conn *Connection, msg ServerMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("connectionId", conn.Id).Str("event", msg.Event).Msg("Cannot encode message")
		return false
	}
	return d.deliver(conn, data, msg.Event)
}

// deliver skips connections that are already closed without counting a drop, so one slow
// consumer is counted once.
func (d *Dispatcher) deliver(conn *Connection, data []byte, event string) bool {
	select {
	case <-conn.Done():
		return false
	default:
	}

	if conn.TrySend(data) {
		d.delivered.Add(1)
		return true
	}

	d.dropped.Add(1)
	log.Warn().
		Str("connectionId", conn.Id).
		Str("userId", conn.UserId).
		Str("event", event).
		Msg("Outbound queue full or connection closed, dropping connection")
	conn.Close()
	return false
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Published: d.published.Load(),
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
	}
}
