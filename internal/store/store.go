// internal/store/store.go
//
// Persistence interface for the zwords server.
// Implementations may be backed by memory (tests, dev) or SQLite.
//
// Collections and their keys:
//   - games by code
//   - grids by id (layout JSON includes the server-only answers)
//   - cells by (grid, row, col), upserted
//   - claims by (grid, entry); ClaimEntry is an atomic insert-if-absent
//     and is the single serialization point for scoring
//   - players by (game, pseudo), upserted
//   - messages by game, chronological

package store

import (
	"context"
	"errors"
	"time"

	"zwords/internal/grid"
)

// ErrNotFound is returned for lookups of unknown games or grids.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when an insert hits a uniqueness constraint that
// the caller should handle (e.g. a duplicate game code).
var ErrConflict = errors.New("store: conflict")

// Game is one session joinable by code.
type Game struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"` // 4 chars [A-Z0-9]
	OwnerPseudo   string    `json:"ownerPseudo"`
	Theme         string    `json:"theme"`
	Difficulty    string    `json:"difficulty"`
	Status        string    `json:"status"` // active | ended
	CurrentGridID string    `json:"currentGridId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// GameSummary is a Game plus its player count, for listings.
type GameSummary struct {
	Game
	PlayerCount int `json:"playerCount"`
}

// Grid is one generated layout within a game. FinalCells, FinalScores and
// CompletedAt are set once, at archival, when the next grid is installed.
type Grid struct {
	ID          string            `json:"id"`
	GameID      string            `json:"gameId"`
	Index       int               `json:"indexNumber"`
	Layout      *grid.Layout      `json:"layout"`
	FinalCells  map[string]string `json:"finalCells,omitempty"`
	FinalScores []Score           `json:"finalScores,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// Claim is the irrevocable award of an entry to a player.
type Claim struct {
	EntryID   grid.EntryID `json:"entryId"`
	Pseudo    string       `json:"claimedByPseudo"`
	ClaimedAt time.Time    `json:"claimedAt"`
}

// Player is a participant of a game. Pseudo is unique per game.
type Player struct {
	Pseudo   string    `json:"pseudo"`
	Color    string    `json:"color"`
	Score    int       `json:"scoreTotal"`
	LastSeen time.Time `json:"-"`
}

// Score is one scoreboard line.
type Score struct {
	Pseudo string `json:"pseudo"`
	Color  string `json:"color"`
	Score  int    `json:"score"`
}

// Message is a chat line or a game log line.
type Message struct {
	ID        string         `json:"id"`
	GameID    string         `json:"-"`
	Type      string         `json:"type"`
	Pseudo    string         `json:"pseudo,omitempty"`
	Color     string         `json:"color,omitempty"`
	Content   string         `json:"content"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Message types.
const (
	MsgChat    = "chat"
	MsgSuccess = "log_success"
	MsgFail    = "log_fail"
	MsgJoin    = "log_join"
	MsgLeave   = "log_leave"
	MsgNext    = "log_next"
)

// Store is the persistence boundary consumed by the game service.
type Store interface {
	// Games.
	CreateGame(ctx context.Context, g *Game) error
	GameByCode(ctx context.Context, code string) (*Game, error)
	SetCurrentGrid(ctx context.Context, gameID, gridID string) error
	DeleteGame(ctx context.Context, gameID string) error
	ListActiveGames(ctx context.Context) ([]GameSummary, error)

	// Grids.
	SaveGrid(ctx context.Context, g *Grid) error
	GridByID(ctx context.Context, id string) (*Grid, error)
	ArchiveGrid(ctx context.Context, gridID string, finalCells map[string]string, finalScores []Score, completedAt time.Time) error
	CompletedGrids(ctx context.Context, gameID string) ([]*Grid, error)

	// Writable cells.
	UpsertCell(ctx context.Context, gridID string, row, col int, value, pseudo string) error
	Cells(ctx context.Context, gridID string) (map[string]string, error)

	// Claims. ClaimEntry returns true when this call won the claim, false
	// when the entry was already claimed.
	ClaimEntry(ctx context.Context, gridID string, entryID grid.EntryID, pseudo string) (bool, error)
	Claims(ctx context.Context, gridID string) ([]Claim, error)
	ClaimedCount(ctx context.Context, gridID string) (int, error)
	IsClaimed(ctx context.Context, gridID string, entryID grid.EntryID) (bool, error)

	// Players.
	UpsertPlayer(ctx context.Context, gameID, pseudo, color string) (*Player, error)
	Players(ctx context.Context, gameID string) ([]Player, error)
	IncrementScore(ctx context.Context, gameID, pseudo string) error

	// Messages.
	AddMessage(ctx context.Context, m *Message) error
	Messages(ctx context.Context, gameID string, limit int) ([]Message, error)
}
