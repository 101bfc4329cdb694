// internal/realtime/rooms.go

package realtime

import "sync"

// Rooms groups clients by game code for fan-out. Membership changes come
// from the coordinator (join/leave/disconnect), broadcasts from anywhere.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[*Client]struct{})}
}

// Join adds a client to a room.
func (r *Rooms) Join(room string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave removes a client from a room, dropping the room when it empties.
func (r *Rooms) Leave(room string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Broadcast sends an event to every client in a room. Slow clients drop
// events instead of blocking the caller.
func (r *Rooms) Broadcast(room string, e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.rooms[room] {
		c.Send(e)
	}
}

// BroadcastExcept sends an event to every client in a room but one,
// typically the originator of the change.
func (r *Rooms) BroadcastExcept(room string, except *Client, e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.rooms[room] {
		if c != except {
			c.Send(e)
		}
	}
}

// Count returns the number of clients in a room.
func (r *Rooms) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
