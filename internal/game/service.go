// internal/game/service.go
//
// Game sessions: create/join/delete, full-state snapshots, chat, and the
// owner-only grid rotation. The service owns game codes and grid seeds;
// everything durable goes through the store, everything generated goes
// through the Generator.

package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"zwords/internal/grid"
	"zwords/internal/store"
)

var (
	// ErrNotOwner rejects owner-only operations requested by someone else.
	ErrNotOwner = errors.New("game: not the owner")
	// ErrGameEnded rejects writes against a session that is no longer active.
	ErrGameEnded = errors.New("game: session ended")
	// ErrMessageInvalid rejects empty or oversized chat messages.
	ErrMessageInvalid = errors.New("game: invalid chat message")
	// ErrGeneration marks a failed grid generation. Creation and rotation
	// are blocked outright; an empty grid is never installed.
	ErrGeneration = errors.New("game: grid generation failed")
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 4
	maxCodeAttempts = 20
	maxChatRunes    = 500
	defaultSize     = 10
	historyLimit    = 50
)

// Generator produces a finalized layout for a new grid. It is an interface
// so tests can swap in a fixed layout.
type Generator interface {
	Generate(ctx context.Context, size int, seed int64) (*grid.Layout, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, size int, seed int64) (*grid.Layout, error)

func (f GeneratorFunc) Generate(ctx context.Context, size int, seed int64) (*grid.Layout, error) {
	return f(ctx, size, seed)
}

// Service carries the game-session operations behind both the REST and the
// realtime surface.
type Service struct {
	store store.Store
	gen   Generator
	log   zerolog.Logger
	size  int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService wires a Service. size is the default grid size; seed feeds the
// internal PRNG used for game codes and grid seeds.
func NewService(st store.Store, gen Generator, logger zerolog.Logger, size int, seed int64) *Service {
	if size <= 0 {
		size = defaultSize
	}
	return &Service{
		store: st,
		gen:   gen,
		log:   logger,
		size:  size,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (s *Service) newCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[s.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

func (s *Service) newSeed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int63()
}

// CreateParams are the inputs of game creation. Size falls back to the
// service default when zero.
type CreateParams struct {
	OwnerPseudo string
	Theme       string
	Difficulty  string
	Size        int
}

// CreateGame generates the first grid, registers the session under a fresh
// unique code and installs the grid as current. A generation failure blocks
// creation; no session is handed out with a broken grid.
func (s *Service) CreateGame(ctx context.Context, p CreateParams) (*store.Game, *store.Grid, error) {
	size := p.Size
	if size <= 0 {
		size = s.size
	}
	if p.Theme == "" {
		p.Theme = "general"
	}
	if p.Difficulty == "" {
		p.Difficulty = "easy"
	}

	layout, err := s.gen.Generate(ctx, size, s.newSeed())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	layout.ID = uuid.NewString()

	g := &store.Game{
		ID:          uuid.NewString(),
		OwnerPseudo: p.OwnerPseudo,
		Theme:       p.Theme,
		Difficulty:  p.Difficulty,
		Status:      "active",
		CreatedAt:   time.Now().UTC(),
	}
	for attempt := 0; ; attempt++ {
		g.Code = s.newCode()
		err = s.store.CreateGame(ctx, g)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= maxCodeAttempts {
			return nil, nil, fmt.Errorf("create game: %w", err)
		}
	}

	gr := &store.Grid{
		ID:        layout.ID,
		GameID:    g.ID,
		Index:     1,
		Layout:    layout,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveGrid(ctx, gr); err != nil {
		return nil, nil, fmt.Errorf("save grid: %w", err)
	}
	if err := s.store.SetCurrentGrid(ctx, g.ID, gr.ID); err != nil {
		return nil, nil, fmt.Errorf("install grid: %w", err)
	}
	g.CurrentGridID = gr.ID

	s.log.Info().
		Str("code", g.Code).
		Str("owner", g.OwnerPseudo).
		Int("size", layout.Size).
		Int("words", layout.Metrics.WordCount).
		Msg("game created")
	return g, gr, nil
}

// palette colors players who join without picking one, in join order.
var palette = []string{
	"#E6194B", "#3CB44B", "#4363D8", "#F58231",
	"#911EB4", "#46F0F0", "#F032E6", "#BCF60C",
}

// Join upserts the player into the session and records a join log line.
// A joiner without a color keeps their previous one if rejoining, or gets
// the next palette color otherwise.
func (s *Service) Join(ctx context.Context, code, pseudo, color string) (*store.Game, *store.Player, error) {
	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if g.Status != "active" {
		return nil, nil, ErrGameEnded
	}
	if color == "" {
		color = s.pickColor(ctx, g.ID, pseudo)
	}
	p, err := s.store.UpsertPlayer(ctx, g.ID, pseudo, color)
	if err != nil {
		return nil, nil, err
	}
	s.addLog(ctx, g.ID, store.MsgJoin, pseudo, p.Color, pseudo+" joined the game", nil)
	return g, p, nil
}

// RecordLeave writes the leave log line for a departed player.
func (s *Service) RecordLeave(ctx context.Context, code, pseudo string) {
	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return
	}
	s.addLog(ctx, g.ID, store.MsgLeave, pseudo, s.colorOf(ctx, g.ID, pseudo), pseudo+" left the game", nil)
}

// State is the full snapshot delivered to a joining connection.
type State struct {
	Game       *store.Game       `json:"game"`
	Grid       grid.PublicGrid   `json:"crossword"`
	Cells      map[string]string `json:"cells"`
	Claims     []store.Claim     `json:"claims"`
	Scoreboard []store.Score     `json:"scores"`
	Messages   []store.Message   `json:"messages"`
}

// Snapshot assembles the current state of a session. Failures on the
// secondary reads (cells, claims, messages) degrade to empty views instead
// of failing the snapshot.
func (s *Service) Snapshot(ctx context.Context, code string) (*State, error) {
	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	gr, err := s.store.GridByID(ctx, g.CurrentGridID)
	if err != nil {
		return nil, fmt.Errorf("load current grid: %w", err)
	}

	st := &State{
		Game:       g,
		Grid:       gr.Layout.Public(),
		Cells:      map[string]string{},
		Scoreboard: []store.Score{},
	}
	if cells, err := s.store.Cells(ctx, gr.ID); err == nil {
		st.Cells = cells
	} else {
		s.log.Warn().Err(err).Str("code", code).Msg("snapshot: cells unavailable")
	}
	if claims, err := s.store.Claims(ctx, gr.ID); err == nil {
		st.Claims = claims
	} else {
		s.log.Warn().Err(err).Str("code", code).Msg("snapshot: claims unavailable")
	}
	st.Scoreboard = s.scoreboard(ctx, g.ID)
	if msgs, err := s.store.Messages(ctx, g.ID, historyLimit); err == nil {
		st.Messages = msgs
	} else {
		s.log.Warn().Err(err).Str("code", code).Msg("snapshot: messages unavailable")
	}
	return st, nil
}

// Chat validates, persists and returns a chat message.
func (s *Service) Chat(ctx context.Context, code, pseudo, content string) (*store.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxChatRunes {
		return nil, ErrMessageInvalid
	}
	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	m := &store.Message{
		ID:        uuid.NewString(),
		GameID:    g.ID,
		Type:      store.MsgChat,
		Pseudo:    pseudo,
		Color:     s.colorOf(ctx, g.ID, pseudo),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// NextGrid archives the current grid with its final cells and scores, then
// generates and installs the next one. Owner-only.
func (s *Service) NextGrid(ctx context.Context, code, pseudo string) (*store.Grid, error) {
	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if g.OwnerPseudo != pseudo {
		return nil, ErrNotOwner
	}
	cur, err := s.store.GridByID(ctx, g.CurrentGridID)
	if err != nil {
		return nil, fmt.Errorf("load current grid: %w", err)
	}

	layout, err := s.gen.Generate(ctx, cur.Layout.Size, s.newSeed())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	layout.ID = uuid.NewString()

	cells, err := s.store.Cells(ctx, cur.ID)
	if err != nil {
		cells = map[string]string{}
	}
	scores := s.scoreboard(ctx, g.ID)
	if err := s.store.ArchiveGrid(ctx, cur.ID, cells, scores, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("archive grid: %w", err)
	}

	next := &store.Grid{
		ID:        layout.ID,
		GameID:    g.ID,
		Index:     cur.Index + 1,
		Layout:    layout,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveGrid(ctx, next); err != nil {
		return nil, fmt.Errorf("save grid: %w", err)
	}
	if err := s.store.SetCurrentGrid(ctx, g.ID, next.ID); err != nil {
		return nil, fmt.Errorf("install grid: %w", err)
	}

	s.addLog(ctx, g.ID, store.MsgNext, pseudo, s.colorOf(ctx, g.ID, pseudo),
		pseudo+" started a new grid", map[string]any{"indexNumber": next.Index})
	s.log.Info().Str("code", g.Code).Int("index", next.Index).Msg("grid rotated")
	return next, nil
}

// DeleteGame removes a session and everything under it. Owner-only.
func (s *Service) DeleteGame(ctx context.Context, code, pseudo string) error {
	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return err
	}
	if g.OwnerPseudo != pseudo {
		return ErrNotOwner
	}
	if err := s.store.DeleteGame(ctx, g.ID); err != nil {
		return err
	}
	s.log.Info().Str("code", g.Code).Msg("game deleted")
	return nil
}

// Game looks a session up by code.
func (s *Service) Game(ctx context.Context, code string) (*store.Game, error) {
	return s.store.GameByCode(ctx, code)
}

// ListGames lists active sessions with their player counts.
func (s *Service) ListGames(ctx context.Context) ([]store.GameSummary, error) {
	return s.store.ListActiveGames(ctx)
}

// History returns the archived grids of a session, oldest first.
func (s *Service) History(ctx context.Context, code string) ([]*store.Grid, error) {
	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.store.CompletedGrids(ctx, g.ID)
}

// Scoreboard returns the ranked scores of a session.
func (s *Service) Scoreboard(ctx context.Context, code string) ([]store.Score, error) {
	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.scoreboard(ctx, g.ID), nil
}

func (s *Service) scoreboard(ctx context.Context, gameID string) []store.Score {
	players, err := s.store.Players(ctx, gameID)
	if err != nil {
		s.log.Warn().Err(err).Msg("scoreboard unavailable")
		return []store.Score{}
	}
	out := make([]store.Score, 0, len(players))
	for _, p := range players {
		out = append(out, store.Score{Pseudo: p.Pseudo, Color: p.Color, Score: p.Score})
	}
	return out
}

func (s *Service) colorOf(ctx context.Context, gameID, pseudo string) string {
	players, err := s.store.Players(ctx, gameID)
	if err != nil {
		return ""
	}
	for _, p := range players {
		if p.Pseudo == pseudo {
			return p.Color
		}
	}
	return ""
}

// pickColor returns the player's existing color, or the next palette color
// for a first-time joiner.
func (s *Service) pickColor(ctx context.Context, gameID, pseudo string) string {
	players, err := s.store.Players(ctx, gameID)
	if err != nil {
		return palette[0]
	}
	for _, p := range players {
		if p.Pseudo == pseudo {
			return p.Color
		}
	}
	return palette[len(players)%len(palette)]
}

func (s *Service) addLog(ctx context.Context, gameID, typ, pseudo, color, content string, payload map[string]any) {
	m := &store.Message{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Type:      typ,
		Pseudo:    pseudo,
		Color:     color,
		Content:   content,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddMessage(ctx, m); err != nil {
		s.log.Warn().Err(err).Str("type", typ).Msg("log line not recorded")
	}
}
