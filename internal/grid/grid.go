// internal/grid/grid.go
//
// Core type definitions for arrowword grid layouts.
// Defines:
//   - Direction, EntryID, CellType: the vocabulary shared with clients.
//   - Cell: tagged variant (black / letter / clue) decided at generation
//     time; letter cells carry the typed entry-id set, clue cells carry up
//     to two clues (one per direction).
//   - Entry: one placed word with its canonical answer and cell sequence.
//   - Layout: a finalized grid. Answers live only in Layout.Entries and are
//     stripped by Public() before anything is sent to clients.

package grid

import "fmt"

// Direction of a placed word.
type Direction string

const (
	DirRight Direction = "right"
	DirDown  Direction = "down"
)

// EntryID identifies one placed word within a grid. The wire format is
// "<counter>-<direction>" with a per-grid counter starting at 1; ids are
// never reused within a grid.
type EntryID string

func newEntryID(counter int, dir Direction) EntryID {
	return EntryID(fmt.Sprintf("%d-%s", counter, dir))
}

// CellType discriminates the Cell variant.
type CellType string

const (
	CellBlack  CellType = "black" // unused cell, rendered solid
	CellLetter CellType = "letter"
	CellClue   CellType = "clue"
)

// Clue is the definition text embedded in a clue cell, pointing at the
// entry that starts immediately after it.
type Clue struct {
	Direction Direction `json:"direction"`
	Text      string    `json:"text"`
	TextFull  string    `json:"textFull,omitempty"`
	EntryID   EntryID   `json:"entryId"`
}

// Cell is one grid square. Letter cells list every entry passing through
// them (one or two, one per direction); clue cells hold one clue per
// direction.
type Cell struct {
	Row      int       `json:"row"`
	Col      int       `json:"col"`
	Type     CellType  `json:"type"`
	EntryIDs []EntryID `json:"entryIds,omitempty"`
	Clues    []Clue    `json:"clues,omitempty"`
}

// Pos is a (row, col) grid coordinate.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Key returns the "row-col" form used as the writable-cell map key.
func (p Pos) Key() string { return fmt.Sprintf("%d-%d", p.Row, p.Col) }

// Entry is one placed word. Immutable once the layout is finalized.
// Answer is server-only.
type Entry struct {
	ID        EntryID   `json:"entryId"`
	Answer    string    `json:"answer"`
	Lemma     string    `json:"lemma,omitempty"`
	Direction Direction `json:"direction"`
	Cells     []Pos     `json:"cells"`
}

// Metrics summarizes a generated layout.
type Metrics struct {
	WordCount   int `json:"wordCount"`
	LetterCount int `json:"letterCount"`
	ClueCount   int `json:"clueCount"`
	BlackCount  int `json:"blackCount"`
}

// Layout is a finalized generated grid.
type Layout struct {
	ID      string            `json:"id"`
	Size    int               `json:"size"`
	Cells   []Cell            `json:"cells"` // row-major, Size*Size
	Entries map[EntryID]Entry `json:"entries"`
	Metrics Metrics           `json:"metrics"`
}

// Cell returns the cell at (r, c), or nil when out of bounds.
func (l *Layout) Cell(r, c int) *Cell {
	if r < 0 || r >= l.Size || c < 0 || c >= l.Size {
		return nil
	}
	return &l.Cells[r*l.Size+c]
}

// EntriesAt lists the entries passing through (r, c). A letter cell belongs
// to one or two entries; anything else belongs to none.
func (l *Layout) EntriesAt(r, c int) []EntryID {
	cell := l.Cell(r, c)
	if cell == nil || cell.Type != CellLetter {
		return nil
	}
	return cell.EntryIDs
}

// PublicGrid is the client-visible projection of a Layout: the cell matrix
// with clue text but without answers.
type PublicGrid struct {
	ID      string  `json:"id"`
	Size    int     `json:"size"`
	Cells   []Cell  `json:"cells"`
	Metrics Metrics `json:"metrics"`
}

// Public strips the answers from the layout.
func (l *Layout) Public() PublicGrid {
	return PublicGrid{ID: l.ID, Size: l.Size, Cells: l.Cells, Metrics: l.Metrics}
}
