// internal/game/resolver.go
//
// Cell-edit resolution. One edit persists the cell, then checks every entry
// through that cell: a completed matching word triggers the atomic claim
// (first writer wins), a completed mismatching word reports the entry as
// incorrect, an incomplete word does nothing.

package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zwords/internal/grid"
	"zwords/internal/store"
)

var (
	// ErrCellNotEditable rejects edits outside the grid or on black/clue cells.
	ErrCellNotEditable = errors.New("game: cell is not editable")
	// ErrCellLocked rejects edits on cells whose every entry is claimed.
	ErrCellLocked = errors.New("game: cell is locked")
	// ErrBadValue rejects cell values longer than one letter.
	ErrBadValue = errors.New("game: cell value must be one letter or empty")
)

// OutcomeKind discriminates resolver outcomes.
type OutcomeKind string

const (
	OutcomeClaimed   OutcomeKind = "claimed"
	OutcomeIncorrect OutcomeKind = "incorrect"
)

// Outcome is the per-entry result of an edit.
type Outcome struct {
	Kind    OutcomeKind
	EntryID grid.EntryID
	Pseudo  string
	Color   string
	Word    string
	Cells   []grid.Pos // incorrect only: cells the client may highlight
}

// EditResult is everything a single cell edit produced.
type EditResult struct {
	Row      int
	Col      int
	Value    string
	Pseudo   string
	Outcomes []Outcome

	// Set when at least one claim succeeded.
	Scoreboard []store.Score

	// Set when the claim that just succeeded was the last open entry.
	GridComplete bool
	FinalScores  []store.Score
}

// ApplyCellEdit persists one cell write and resolves its consequences.
//
// The value read back for the edited cell is the value just written, not a
// re-read from the store, so a concurrent overwrite of the same cell cannot
// make this edit claim a word its author never completed.
func (s *Service) ApplyCellEdit(ctx context.Context, code, pseudo string, row, col int, value string) (*EditResult, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if len(value) > 1 || (value != "" && (value[0] < 'A' || value[0] > 'Z')) {
		return nil, ErrBadValue
	}

	g, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if g.Status != "active" {
		return nil, ErrGameEnded
	}
	gr, err := s.store.GridByID(ctx, g.CurrentGridID)
	if err != nil {
		return nil, fmt.Errorf("load current grid: %w", err)
	}
	layout := gr.Layout

	cell := layout.Cell(row, col)
	if cell == nil || cell.Type != grid.CellLetter {
		return nil, ErrCellNotEditable
	}
	// A cell stays editable while any entry through it is still open.
	open := false
	for _, id := range cell.EntryIDs {
		claimed, err := s.store.IsClaimed(ctx, gr.ID, id)
		if err != nil {
			return nil, err
		}
		if !claimed {
			open = true
			break
		}
	}
	if !open {
		return nil, ErrCellLocked
	}

	if err := s.store.UpsertCell(ctx, gr.ID, row, col, value, pseudo); err != nil {
		return nil, fmt.Errorf("write cell: %w", err)
	}

	cells, err := s.store.Cells(ctx, gr.ID)
	if err != nil {
		cells = map[string]string{}
	}
	cells[grid.Pos{Row: row, Col: col}.Key()] = value

	res := &EditResult{Row: row, Col: col, Value: value, Pseudo: pseudo}
	anyClaim := false
	for _, id := range cell.EntryIDs {
		entry := layout.Entries[id]
		claimed, err := s.store.IsClaimed(ctx, gr.ID, id)
		if err != nil || claimed {
			continue
		}
		word, complete := rebuildWord(entry, cells)
		if !complete {
			continue
		}
		if word == strings.ToUpper(entry.Answer) {
			won, err := s.store.ClaimEntry(ctx, gr.ID, id, pseudo)
			if err != nil {
				return nil, fmt.Errorf("claim entry: %w", err)
			}
			if !won {
				continue
			}
			anyClaim = true
			if err := s.incrementScore(ctx, g.ID, pseudo); err != nil {
				return nil, fmt.Errorf("increment score: %w", err)
			}
			color := s.colorOf(ctx, g.ID, pseudo)
			res.Outcomes = append(res.Outcomes, Outcome{
				Kind:    OutcomeClaimed,
				EntryID: id,
				Pseudo:  pseudo,
				Color:   color,
				Word:    word,
			})
			s.addLog(ctx, g.ID, store.MsgSuccess, pseudo, color,
				pseudo+" found "+word, map[string]any{"entryId": string(id), "word": word})
			s.log.Info().
				Str("code", g.Code).
				Str("pseudo", pseudo).
				Str("entry", string(id)).
				Msg("entry claimed")
		} else {
			color := s.colorOf(ctx, g.ID, pseudo)
			res.Outcomes = append(res.Outcomes, Outcome{
				Kind:    OutcomeIncorrect,
				EntryID: id,
				Pseudo:  pseudo,
				Color:   color,
				Word:    word,
				Cells:   entry.Cells,
			})
			s.addLog(ctx, g.ID, store.MsgFail, pseudo, color,
				pseudo+" tried a wrong word", map[string]any{"entryId": string(id)})
		}
	}

	if anyClaim {
		res.Scoreboard = s.scoreboard(ctx, g.ID)
		n, err := s.store.ClaimedCount(ctx, gr.ID)
		if err == nil && len(layout.Entries) > 0 && n == len(layout.Entries) {
			res.GridComplete = true
			res.FinalScores = res.Scoreboard
			s.log.Info().Str("code", g.Code).Int("entries", n).Msg("grid completed")
		}
	}
	return res, nil
}

// scoreRetries bounds the increment retry loop after a won claim.
const scoreRetries = 3

// incrementScore retries the score write. A claim whose point never lands
// drifts the scoreboard away from the grid, so a persistent failure
// propagates instead of being absorbed.
func (s *Service) incrementScore(ctx context.Context, gameID, pseudo string) error {
	var err error
	for attempt := 1; attempt <= scoreRetries; attempt++ {
		if err = s.store.IncrementScore(ctx, gameID, pseudo); err == nil {
			return nil
		}
		s.log.Warn().Err(err).Str("pseudo", pseudo).Int("attempt", attempt).Msg("score increment failed")
	}
	return err
}

// rebuildWord reads an entry's cells out of the writable-cell map. complete
// is false as soon as one cell is empty.
func rebuildWord(entry grid.Entry, cells map[string]string) (word string, complete bool) {
	var b strings.Builder
	for _, pos := range entry.Cells {
		v := cells[pos.Key()]
		if v == "" {
			return "", false
		}
		b.WriteString(v)
	}
	return b.String(), true
}
