// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used by tests and for durability-free development runs.
//
// Characteristics:
//   - Concurrency-safe via a single mutex; ClaimEntry's check-and-insert
//     happens under the lock, which gives it the required atomicity.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"zwords/internal/grid"
)

type claimKey struct {
	gridID  string
	entryID grid.EntryID
}

type playerKey struct {
	gameID string
	pseudo string
}

// Memory is a map-backed Store.
type Memory struct {
	mu       sync.Mutex
	games    map[string]*Game // by id
	byCode   map[string]string
	grids    map[string]*Grid
	cells    map[string]map[string]string // gridID -> "row-col" -> value
	claims   map[claimKey]Claim
	players  map[playerKey]*Player
	messages map[string][]Message // gameID -> chronological
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		games:    make(map[string]*Game),
		byCode:   make(map[string]string),
		grids:    make(map[string]*Grid),
		cells:    make(map[string]map[string]string),
		claims:   make(map[claimKey]Claim),
		players:  make(map[playerKey]*Player),
		messages: make(map[string][]Message),
	}
}

func (m *Memory) CreateGame(ctx context.Context, g *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := strings.ToUpper(g.Code)
	if _, exists := m.byCode[code]; exists {
		return ErrConflict
	}
	cp := *g
	cp.Code = code
	m.games[g.ID] = &cp
	m.byCode[code] = g.ID
	return nil
}

func (m *Memory) GameByCode(ctx context.Context, code string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.games[id]
	return &cp, nil
}

func (m *Memory) SetCurrentGrid(ctx context.Context, gameID, gridID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return ErrNotFound
	}
	g.CurrentGridID = gridID
	return nil
}

func (m *Memory) DeleteGame(ctx context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return ErrNotFound
	}
	delete(m.byCode, g.Code)
	delete(m.games, gameID)
	delete(m.messages, gameID)
	for k := range m.players {
		if k.gameID == gameID {
			delete(m.players, k)
		}
	}
	for id, gr := range m.grids {
		if gr.GameID == gameID {
			delete(m.cells, id)
			delete(m.grids, id)
			for ck := range m.claims {
				if ck.gridID == id {
					delete(m.claims, ck)
				}
			}
		}
	}
	return nil
}

func (m *Memory) ListActiveGames(ctx context.Context) ([]GameSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GameSummary
	for _, g := range m.games {
		if g.Status != "active" {
			continue
		}
		n := 0
		for k := range m.players {
			if k.gameID == g.ID {
				n++
			}
		}
		out = append(out, GameSummary{Game: *g, PlayerCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveGrid(ctx context.Context, g *Grid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.grids[g.ID] = &cp
	return nil
}

func (m *Memory) GridByID(ctx context.Context, id string) (*Grid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grids[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *Memory) ArchiveGrid(ctx context.Context, gridID string, finalCells map[string]string, finalScores []Score, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grids[gridID]
	if !ok {
		return ErrNotFound
	}
	g.FinalCells = finalCells
	g.FinalScores = finalScores
	t := completedAt
	g.CompletedAt = &t
	return nil
}

func (m *Memory) CompletedGrids(ctx context.Context, gameID string) ([]*Grid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Grid
	for _, g := range m.grids {
		if g.GameID == gameID && g.CompletedAt != nil {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *Memory) UpsertCell(ctx context.Context, gridID string, row, col int, value, pseudo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cells, ok := m.cells[gridID]
	if !ok {
		cells = make(map[string]string)
		m.cells[gridID] = cells
	}
	cells[grid.Pos{Row: row, Col: col}.Key()] = strings.ToUpper(value)
	return nil
}

func (m *Memory) Cells(ctx context.Context, gridID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.cells[gridID]))
	for k, v := range m.cells[gridID] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) ClaimEntry(ctx context.Context, gridID string, entryID grid.EntryID, pseudo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := claimKey{gridID: gridID, entryID: entryID}
	if _, taken := m.claims[k]; taken {
		return false, nil
	}
	m.claims[k] = Claim{EntryID: entryID, Pseudo: pseudo, ClaimedAt: time.Now().UTC()}
	return true, nil
}

func (m *Memory) Claims(ctx context.Context, gridID string) ([]Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Claim
	for k, c := range m.claims {
		if k.gridID == gridID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

func (m *Memory) ClaimedCount(ctx context.Context, gridID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.claims {
		if k.gridID == gridID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) IsClaimed(ctx context.Context, gridID string, entryID grid.EntryID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, taken := m.claims[claimKey{gridID: gridID, entryID: entryID}]
	return taken, nil
}

func (m *Memory) UpsertPlayer(ctx context.Context, gameID, pseudo, color string) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := playerKey{gameID: gameID, pseudo: pseudo}
	p, ok := m.players[k]
	if !ok {
		p = &Player{Pseudo: pseudo, Color: color}
		m.players[k] = p
	} else if color != "" {
		p.Color = color
	}
	p.LastSeen = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (m *Memory) Players(ctx context.Context, gameID string) ([]Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Player
	for k, p := range m.players {
		if k.gameID == gameID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Pseudo < out[j].Pseudo
	})
	return out, nil
}

func (m *Memory) IncrementScore(ctx context.Context, gameID, pseudo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerKey{gameID: gameID, pseudo: pseudo}]
	if !ok {
		return ErrNotFound
	}
	p.Score++
	return nil
}

func (m *Memory) AddMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.GameID] = append(m.messages[msg.GameID], *msg)
	return nil
}

func (m *Memory) Messages(ctx context.Context, gameID string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.messages[gameID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Message, len(all))
	copy(out, all)
	return out, nil
}

var _ Store = (*Memory)(nil)
