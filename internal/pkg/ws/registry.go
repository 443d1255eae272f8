package ws

import "sync"

// RoomRegistry maps game ids to the connections watching them. A connection belongs to
// at most one room and every edit happens under a single lock.
type RoomRegistry struct {
	mu       sync.RWMutex
	rooms    map[string][]*Connection
	memberOf map[*Connection]string
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[string][]*Connection),
		memberOf: make(map[*Connection]string),
	}
}

// Join moves conn into the room for gameId, creating the room if needed, and returns the
// room it was in before. Joining the current room again changes nothing.
func (r *RoomRegistry) Join(conn *Connection, gameId string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous = r.memberOf[conn]
	if previous == gameId {
		return previous
	}
	if previous != "" {
		r.removeLocked(conn, previous)
	}

	r.rooms[gameId] = append(r.rooms[gameId], conn)
	r.memberOf[conn] = gameId
	return previous
}

// Leave reports whether conn was a member of gameId.
func (r *RoomRegistry) Leave(conn *Connection, gameId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.memberOf[conn] != gameId || gameId == "" {
		return false
	}
	r.removeLocked(conn, gameId)
	return true
}

func (r *RoomRegistry) LeaveAll(conn *Connection) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gameId, ok := r.memberOf[conn]
	if !ok {
		return "", false
	}
	r.removeLocked(conn, gameId)
	return gameId, true
}

func (r *RoomRegistry) removeLocked(conn *Connection, gameId string) {
	delete(r.memberOf, conn)

	members := r.rooms[gameId]
	for i, member := range members {
		if member == conn {
			members = append(members[:i:i], members[i+1:]...)
			break
		}
	}

	if len(members) == 0 {
		delete(r.rooms, gameId)
		return
	}
	r.rooms[gameId] = members
}

// MembersOf returns a snapshot of the room in join order.
func (r *RoomRegistry) MembersOf(gameId string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[gameId]
	snapshot := make([]*Connection, len(members))
	copy(snapshot, members)
	return snapshot
}

func (r *RoomRegistry) RoomOf(conn *Connection) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gameId, ok := r.memberOf[conn]
	return gameId, ok
}

func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *RoomRegistry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.memberOf)
}
