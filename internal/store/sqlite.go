// internal/store/sqlite.go
//
// SQLite implementation of the Store interface, plus the dictionary loader
// consumed by the word bank.
//
// Notes:
//   - Timestamps are stored as RFC3339 strings.
//   - Grid layouts (including server-only answers) are stored as one JSON
//     column; answers never leave the server because the API layer only
//     serializes the public projection.
//   - ClaimEntry relies on the PRIMARY KEY (grid_id, entry_id) of
//     entry_claims: INSERT ... ON CONFLICT DO NOTHING with RowsAffected
//     is the atomic first-writer-wins check-and-set.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"zwords/internal/grid"
	"zwords/internal/words"
)

// SQLite is a Store backed by a *sql.DB opened with the sqlite3 driver.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an opened database handle.
func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

// ------------------------------- games -------------------------------------

func (s *SQLite) CreateGame(ctx context.Context, g *Game) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (id, code, owner_pseudo, theme, difficulty, status, current_grid_id, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		g.ID, strings.ToUpper(g.Code), g.OwnerPseudo, g.Theme, g.Difficulty, g.Status,
		nullable(g.CurrentGridID), g.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrConflict
	}
	return err
}

func (s *SQLite) GameByCode(ctx context.Context, code string) (*Game, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, owner_pseudo, theme, difficulty, status, COALESCE(current_grid_id,''), created_at
		FROM games WHERE code=?`, strings.ToUpper(code))
	var g Game
	var created string
	err := row.Scan(&g.ID, &g.Code, &g.OwnerPseudo, &g.Theme, &g.Difficulty, &g.Status, &g.CurrentGridID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.CreatedAt = parseTime(created)
	return &g, nil
}

func (s *SQLite) SetCurrentGrid(ctx context.Context, gameID, gridID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE games SET current_grid_id=? WHERE id=?`, gridID, gameID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeleteGame(ctx context.Context, gameID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id=?`, gameID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListActiveGames(ctx context.Context) ([]GameSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.code, g.owner_pseudo, g.theme, g.difficulty, g.status,
		       COALESCE(g.current_grid_id,''), g.created_at,
		       (SELECT COUNT(1) FROM players p WHERE p.game_id = g.id)
		FROM games g WHERE g.status='active' ORDER BY g.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var gs GameSummary
		var created string
		if err := rows.Scan(&gs.ID, &gs.Code, &gs.OwnerPseudo, &gs.Theme, &gs.Difficulty,
			&gs.Status, &gs.CurrentGridID, &created, &gs.PlayerCount); err != nil {
			return nil, err
		}
		gs.CreatedAt = parseTime(created)
		out = append(out, gs)
	}
	return out, rows.Err()
}

// ------------------------------- grids -------------------------------------

func (s *SQLite) SaveGrid(ctx context.Context, g *Grid) error {
	layout, err := json.Marshal(g.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO grids (id, game_id, index_number, layout, created_at)
		VALUES (?,?,?,?,?)`,
		g.ID, g.GameID, g.Index, string(layout), g.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *SQLite) GridByID(ctx context.Context, id string) (*Grid, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, game_id, index_number, layout, COALESCE(final_cells,''), COALESCE(final_scores,''),
		       created_at, COALESCE(completed_at,'')
		FROM grids WHERE id=?`, id)
	return scanGrid(row)
}

func (s *SQLite) ArchiveGrid(ctx context.Context, gridID string, finalCells map[string]string, finalScores []Score, completedAt time.Time) error {
	cells, err := json.Marshal(finalCells)
	if err != nil {
		return err
	}
	scores, err := json.Marshal(finalScores)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE grids SET final_cells=?, final_scores=?, completed_at=? WHERE id=?`,
		string(cells), string(scores), completedAt.UTC().Format(time.RFC3339), gridID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) CompletedGrids(ctx context.Context, gameID string) ([]*Grid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, index_number, layout, COALESCE(final_cells,''), COALESCE(final_scores,''),
		       created_at, COALESCE(completed_at,'')
		FROM grids WHERE game_id=? AND completed_at IS NOT NULL ORDER BY index_number`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Grid
	for rows.Next() {
		g, err := scanGrid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrid(row rowScanner) (*Grid, error) {
	var g Grid
	var layout, finalCells, finalScores, created, completed string
	err := row.Scan(&g.ID, &g.GameID, &g.Index, &layout, &finalCells, &finalScores, &created, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(layout), &g.Layout); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	if finalCells != "" {
		_ = json.Unmarshal([]byte(finalCells), &g.FinalCells)
	}
	if finalScores != "" {
		_ = json.Unmarshal([]byte(finalScores), &g.FinalScores)
	}
	g.CreatedAt = parseTime(created)
	if completed != "" {
		t := parseTime(completed)
		g.CompletedAt = &t
	}
	return &g, nil
}

// ------------------------------- cells -------------------------------------

func (s *SQLite) UpsertCell(ctx context.Context, gridID string, row, col int, value, pseudo string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grid_cells (grid_id, row, col, value, updated_by, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(grid_id, row, col) DO UPDATE SET value=excluded.value,
			updated_by=excluded.updated_by, updated_at=excluded.updated_at`,
		gridID, row, col, strings.ToUpper(value), pseudo, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLite) Cells(ctx context.Context, gridID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT row, col, value FROM grid_cells WHERE grid_id=?`, gridID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var r, c int
		var v string
		if err := rows.Scan(&r, &c, &v); err != nil {
			return nil, err
		}
		out[grid.Pos{Row: r, Col: c}.Key()] = v
	}
	return out, rows.Err()
}

// ------------------------------- claims ------------------------------------

func (s *SQLite) ClaimEntry(ctx context.Context, gridID string, entryID grid.EntryID, pseudo string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entry_claims (grid_id, entry_id, pseudo, claimed_at)
		VALUES (?,?,?,?) ON CONFLICT(grid_id, entry_id) DO NOTHING`,
		gridID, string(entryID), pseudo, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLite) Claims(ctx context.Context, gridID string) ([]Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, pseudo, claimed_at FROM entry_claims WHERE grid_id=? ORDER BY entry_id`, gridID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Claim
	for rows.Next() {
		var c Claim
		var id, at string
		if err := rows.Scan(&id, &c.Pseudo, &at); err != nil {
			return nil, err
		}
		c.EntryID = grid.EntryID(id)
		c.ClaimedAt = parseTime(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) ClaimedCount(ctx context.Context, gridID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entry_claims WHERE grid_id=?`, gridID).Scan(&n)
	return n, err
}

func (s *SQLite) IsClaimed(ctx context.Context, gridID string, entryID grid.EntryID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM entry_claims WHERE grid_id=? AND entry_id=?`, gridID, string(entryID)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ------------------------------- players -----------------------------------

func (s *SQLite) UpsertPlayer(ctx context.Context, gameID, pseudo, color string) (*Player, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (game_id, pseudo, color, score_total, last_seen)
		VALUES (?,?,?,0,?)
		ON CONFLICT(game_id, pseudo) DO UPDATE SET
			color=CASE WHEN excluded.color='' THEN players.color ELSE excluded.color END,
			last_seen=excluded.last_seen`,
		gameID, pseudo, color, now)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT pseudo, color, score_total FROM players WHERE game_id=? AND pseudo=?`, gameID, pseudo)
	var p Player
	if err := row.Scan(&p.Pseudo, &p.Color, &p.Score); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLite) Players(ctx context.Context, gameID string) ([]Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pseudo, color, score_total FROM players
		WHERE game_id=? ORDER BY score_total DESC, pseudo`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.Pseudo, &p.Color, &p.Score); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) IncrementScore(ctx context.Context, gameID, pseudo string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET score_total = score_total + 1 WHERE game_id=? AND pseudo=?`, gameID, pseudo)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ------------------------------ messages -----------------------------------

func (s *SQLite) AddMessage(ctx context.Context, m *Message) error {
	var payload any
	if m.Payload != nil {
		b, err := json.Marshal(m.Payload)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, game_id, type, pseudo, color, content, payload, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.GameID, m.Type, nullable(m.Pseudo), nullable(m.Color), m.Content, payload,
		m.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *SQLite) Messages(ctx context.Context, gameID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, COALESCE(pseudo,''), COALESCE(color,''), content, COALESCE(payload,''), created_at
		FROM messages WHERE game_id=? ORDER BY created_at DESC, id LIMIT ?`, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var payload, created string
		if err := rows.Scan(&m.ID, &m.Type, &m.Pseudo, &m.Color, &m.Content, &payload, &created); err != nil {
			return nil, err
		}
		if payload != "" {
			_ = json.Unmarshal([]byte(payload), &m.Payload)
		}
		m.GameID = gameID
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ---------------------------- dictionary -----------------------------------

// LoadWords reads the dictionary with the best-quality clue per word. It
// satisfies words.Source; words without any clue row are simply absent from
// the result.
func (s *SQLite) LoadWords(ctx context.Context) ([]words.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.lemma, UPPER(w.normalized), w.frequency,
		       c.clue_text, COALESCE(c.clue_short,''), c.quality
		FROM words w JOIN clues c ON c.word_id = w.id
		ORDER BY w.frequency DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type best struct {
		cand    words.Candidate
		quality float64
	}
	bestByID := make(map[string]*best)
	var order []string

	for rows.Next() {
		var id, lemma, normalized, clueText, clueShort string
		var freq int
		var quality float64
		if err := rows.Scan(&id, &lemma, &normalized, &freq, &clueText, &clueShort, &quality); err != nil {
			return nil, err
		}
		cur, ok := bestByID[id]
		if !ok {
			order = append(order, id)
		}
		if ok && cur.quality >= quality {
			continue
		}
		clue := clueShort
		if clue == "" {
			clue = clueText
		}
		bestByID[id] = &best{
			cand: words.Candidate{
				Normalized: normalized,
				Lemma:      lemma,
				Frequency:  freq,
				Clue:       clue,
				ClueFull:   clueText,
			},
			quality: quality,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]words.Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, bestByID[id].cand)
	}
	return out, nil
}

// ------------------------------ helpers ------------------------------------

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

var _ Store = (*SQLite)(nil)
var _ words.Source = (*SQLite)(nil)
