package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestConnection(id string) *Connection {
	return NewConnection(id, nil, 4)
}

func TestJoinCreatesRoomAndLeaveDeletesIt(t *testing.T) {
	registry := NewRoomRegistry()
	a := newTestConnection("a")

	previous := registry.Join(a, "g1")
	assert.Empty(t, previous)
	assert.Equal(t, 1, registry.RoomCount())
	assert.Equal(t, []*Connection{a}, registry.MembersOf("g1"))

	assert.True(t, registry.Leave(a, "g1"))
	assert.Equal(t, 0, registry.RoomCount())
	assert.Empty(t, registry.MembersOf("g1"))
}

func TestJoinElsewhereMovesMembership(t *testing.T) {
	registry := NewRoomRegistry()
	a := newTestConnection("a")
	b := newTestConnection("b")

	registry.Join(a, "g1")
	registry.Join(b, "g1")

	previous := registry.Join(a, "g2")
	assert.Equal(t, "g1", previous)
	assert.Equal(t, []*Connection{b}, registry.MembersOf("g1"))
	assert.Equal(t, []*Connection{a}, registry.MembersOf("g2"))

	room, ok := registry.RoomOf(a)
	assert.True(t, ok)
	assert.Equal(t, "g2", room)
}

func TestRejoinSameRoomIsNoop(t *testing.T) {
	registry := NewRoomRegistry()
	a := newTestConnection("a")

	registry.Join(a, "g1")
	assert.Equal(t, "g1", registry.Join(a, "g1"))
	assert.Len(t, registry.MembersOf("g1"), 1)
}

func TestLeaveOtherRoomIsNoop(t *testing.T) {
	registry := NewRoomRegistry()
	a := newTestConnection("a")
	registry.Join(a, "g1")

	assert.False(t, registry.Leave(a, "g2"))
	assert.False(t, registry.Leave(newTestConnection("x"), "g1"))
	assert.Len(t, registry.MembersOf("g1"), 1)
}

func TestMembersKeepJoinOrder(t *testing.T) {
	registry := NewRoomRegistry()
	conns := []*Connection{newTestConnection("a"), newTestConnection("b"), newTestConnection("c")}
	for _, c := range conns {
		registry.Join(c, "g1")
	}

	registry.Leave(conns[1], "g1")
	assert.Equal(t, []*Connection{conns[0], conns[2]}, registry.MembersOf("g1"))
}

func TestSnapshotIsNotAliased(t *testing.T) {
	registry := NewRoomRegistry()
	a := newTestConnection("a")
	b := newTestConnection("b")
	registry.Join(a, "g1")
	registry.Join(b, "g1")

	snapshot := registry.MembersOf("g1")
	registry.Leave(a, "g1")

	assert.Equal(t, []*Connection{a, b}, snapshot)
}

func TestLeaveAllRemovesResidualMembership(t *testing.T) {
	registry := NewRoomRegistry()
	a := newTestConnection("a")
	registry.Join(a, "g1")

	gameId, ok := registry.LeaveAll(a)
	assert.True(t, ok)
	assert.Equal(t, "g1", gameId)
	assert.Equal(t, 0, registry.ConnectionCount())

	_, ok = registry.LeaveAll(a)
	assert.False(t, ok)
}

func TestConcurrentJoinsAreNotLost(t *testing.T) {
	registry := NewRoomRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			registry.Join(newTestConnection(fmt.Sprint(i)), "g1")
		}(i)
	}
	wg.Wait()

	assert.Len(t, registry.MembersOf("g1"), 100)
	assert.Equal(t, 100, registry.ConnectionCount())
}
