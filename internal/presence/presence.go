// internal/presence/presence.go
//
// In-memory presence for connected players:
//   - which connections belong to which game and pseudo
//   - the live cursor position each player is pointing at
//
// Presence is ephemeral by design. It is never persisted; a restart
// empties it and clients simply re-join. Scores and claims live in the
// store, not here.

package presence

import (
	"sort"
	"sync"
	"time"
)

// Cursor is a player's focused cell plus the typing direction and entry
// they are working on, or absent when the player has not clicked a cell
// yet.
type Cursor struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Direction string `json:"direction,omitempty"`
	EntryID   string `json:"entryId,omitempty"`
}

// Record is the visible presence of one player in one game. A player who
// reconnects keeps a single record; conns counts the sockets behind it.
type Record struct {
	Pseudo   string    `json:"pseudo"`
	Color    string    `json:"color"`
	Cursor   *Cursor   `json:"cursor,omitempty"`
	JoinedAt time.Time `json:"-"`

	conns int
}

type connInfo struct {
	gameCode string
	pseudo   string
}

// Tracker indexes presence two ways: by game (for fan-out snapshots) and
// by connection (so a closed socket can be traced back to its player).
type Tracker struct {
	mu    sync.Mutex
	games map[string]map[string]*Record // gameCode -> pseudo -> record
	conns map[string]connInfo           // connID -> identity
}

func NewTracker() *Tracker {
	return &Tracker{
		games: make(map[string]map[string]*Record),
		conns: make(map[string]connInfo),
	}
}

// Join registers a connection as a player in a game and returns the
// resulting record. Joining again from another socket reuses the record;
// a changed color wins.
func (t *Tracker) Join(connID, gameCode, pseudo, color string) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.conns[connID]; ok {
		// A connection can only be one player; drop the old identity.
		t.leaveLocked(connID, prev)
	}
	t.conns[connID] = connInfo{gameCode: gameCode, pseudo: pseudo}

	game, ok := t.games[gameCode]
	if !ok {
		game = make(map[string]*Record)
		t.games[gameCode] = game
	}
	rec, ok := game[pseudo]
	if !ok {
		rec = &Record{Pseudo: pseudo, Color: color, JoinedAt: time.Now()}
		game[pseudo] = rec
	} else if color != "" {
		rec.Color = color
	}
	rec.conns++
	return *rec
}

// UpdateCursor moves the cursor of the player behind connID. It reports
// false when the connection is unknown, e.g. a cursor frame racing a
// disconnect.
func (t *Tracker) UpdateCursor(connID string, cur Cursor) (Record, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.conns[connID]
	if !ok {
		return Record{}, "", false
	}
	rec, ok := t.games[info.gameCode][info.pseudo]
	if !ok {
		return Record{}, "", false
	}
	c := cur
	rec.Cursor = &c
	return *rec, info.gameCode, true
}

// Leave drops a connection. When it was the player's last socket the
// record is removed and last is true, which is the caller's cue to
// broadcast a presence removal.
func (t *Tracker) Leave(connID string) (gameCode, pseudo string, last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.conns[connID]
	if !ok {
		return "", "", false
	}
	last = t.leaveLocked(connID, info)
	return info.gameCode, info.pseudo, last
}

func (t *Tracker) leaveLocked(connID string, info connInfo) (last bool) {
	delete(t.conns, connID)
	game, ok := t.games[info.gameCode]
	if !ok {
		return false
	}
	rec, ok := game[info.pseudo]
	if !ok {
		return false
	}
	rec.conns--
	if rec.conns > 0 {
		return false
	}
	delete(game, info.pseudo)
	if len(game) == 0 {
		delete(t.games, info.gameCode)
	}
	return true
}

// List snapshots the presence of a game, oldest joiner first.
func (t *Tracker) List(gameCode string) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	game := t.games[gameCode]
	out := make([]Record, 0, len(game))
	for _, rec := range game {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Pseudo < out[j].Pseudo
	})
	return out
}

// Count reports how many players are present in a game.
func (t *Tracker) Count(gameCode string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.games[gameCode])
}

// Identity resolves a connection back to its game and pseudo.
func (t *Tracker) Identity(connID string) (gameCode, pseudo string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.conns[connID]
	return info.gameCode, info.pseudo, ok
}
