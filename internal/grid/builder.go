// internal/grid/builder.go
//
// Procedural arrowword generation.
//
// The builder places dictionary words into an empty grid one at a time:
// every attempt picks a word length from a fixed rotation, scores every
// position a word of that length could start at, and tries the best-scoring
// positions until a compatible dictionary word fits. Every word-start must
// leave room for a clue cell immediately before it (left of a rightward
// word, above a downward one), words cross on shared letters, and once a
// few words are down, positions that do not cross an existing word are
// skipped with high probability so the grid interlocks.
//
// All randomness flows through one *rand.Rand seeded by the caller:
// Generate(size, seed) over an unchanged word bank is reproducible.

package grid

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"zwords/internal/words"
)

// ErrNoWords is returned when every generation retry produced an empty
// grid. Callers must treat this as fatal for the create/next-grid
// operation, never fall back to a blank layout.
var ErrNoWords = errors.New("grid: generation produced no words")

// WordSource yields constraint-compatible dictionary candidates.
// *words.Bank satisfies it.
type WordSource interface {
	FindCandidate(length int, constraints []byte, exclude map[string]bool, rng *rand.Rand) (words.Candidate, bool)
}

const (
	maxAttempts      = 500
	topPositions     = 40   // best-scoring positions evaluated per attempt
	crossingBonus    = 100.0
	directionBonus   = 20.0
	jitterSpan       = 30.0
	floatingKeepProb = 0.15 // chance to keep a non-crossing position late in the fill
	freeFloatWords   = 4    // words placed before floating placements are penalized
)

// lengthRotation cycles word lengths across attempts, favoring 3-8 letters.
var lengthRotation = []int{4, 5, 6, 5, 4, 7, 3, 6, 8}

// Generate runs a single generation pass and finalizes whatever it managed
// to place. It can legitimately return a layout with zero words; retry
// policy lives in GenerateWithRetry.
func Generate(src WordSource, size int, seed int64) *Layout {
	rng := rand.New(rand.NewSource(seed))
	b := newBuilder(size)
	used := make(map[string]bool)
	target := int(float64(size) * 2.5)

	for attempt := 1; attempt <= maxAttempts && len(b.entries) < target; attempt++ {
		preferred := DirRight
		if attempt%2 != 0 {
			preferred = DirDown
		}
		length := lengthRotation[attempt%len(lengthRotation)]

		positions := b.scorePositions(length, preferred, rng)
		if len(positions) > topPositions {
			positions = positions[:topPositions]
		}

		for _, pos := range positions {
			if len(b.entries) > freeFloatWords-1 && !pos.crossing {
				if rng.Float64() > floatingKeepProb {
					continue
				}
			}
			cand, ok := src.FindCandidate(length, pos.constraints, used, rng)
			if !ok {
				continue
			}
			if b.place(cand, pos.row, pos.col, pos.dir) {
				used[cand.Normalized] = true
				break
			}
		}
	}

	return b.finalize()
}

// GenerateWithRetry runs Generate with seeds base, base+1000, base+2000, …
// and keeps the layout with the most words. It accepts early once a layout
// meets the minimum word count for its size. If every retry yields an empty
// grid it fails with ErrNoWords.
func GenerateWithRetry(src WordSource, size int, baseSeed int64, maxRetries int) (*Layout, error) {
	if maxRetries <= 0 {
		maxRetries = 10
	}
	minWords := 6
	if size >= 12 {
		minWords = 8
	}

	var best *Layout
	for i := 0; i < maxRetries; i++ {
		l := Generate(src, size, baseSeed+int64(i)*1000)
		if best == nil || l.Metrics.WordCount > best.Metrics.WordCount {
			best = l
		}
		if l.Metrics.WordCount >= minWords {
			return l, nil
		}
	}
	if best == nil || best.Metrics.WordCount == 0 {
		return nil, ErrNoWords
	}
	return best, nil
}

// ----------------------------- build state ---------------------------------

// bcell is a cell under construction. A zero bcell is an empty square.
type bcell struct {
	typ      CellType // "" while empty
	letter   byte
	entryIDs []EntryID
	clues    []Clue
}

type builder struct {
	size    int
	cells   [][]bcell
	entries []Entry
	counter int
}

func newBuilder(size int) *builder {
	cells := make([][]bcell, size)
	for r := range cells {
		cells[r] = make([]bcell, size)
	}
	return &builder{size: size, cells: cells}
}

func (b *builder) cell(r, c int) *bcell {
	if r < 0 || r >= b.size || c < 0 || c >= b.size {
		return nil
	}
	return &b.cells[r][c]
}

// scoredPos is a candidate start position for the current attempt.
type scoredPos struct {
	row, col    int
	dir         Direction
	score       float64
	constraints []byte
	crossing    bool
}

// scorePositions enumerates every position where a word of the given length
// could start (leaving room for its clue cell) and scores it: crossing an
// existing word dominates, then the attempt's preferred direction, then a
// center bias that seeds early words in the middle, then random jitter.
func (b *builder) scorePositions(length int, preferred Direction, rng *rand.Rand) []scoredPos {
	var out []scoredPos
	center := float64(b.size) / 2

	consider := func(r, c int, dir Direction) {
		constraints, crossing := b.constraintsAt(r, c, length, dir)
		score := 0.0
		if crossing {
			score += crossingBonus
		}
		if dir == preferred {
			score += directionBonus
		}
		centerDist := math.Abs(float64(r)-center) + math.Abs(float64(c)-center)
		score += (float64(b.size) - centerDist) * 2
		score += rng.Float64() * jitterSpan
		out = append(out, scoredPos{row: r, col: c, dir: dir, score: score, constraints: constraints, crossing: crossing})
	}

	for r := 0; r < b.size; r++ {
		for c := 1; c <= b.size-length; c++ {
			consider(r, c, DirRight)
		}
	}
	for r := 1; r <= b.size-length; r++ {
		for c := 0; c < b.size; c++ {
			consider(r, c, DirDown)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// constraintsAt collects the fixed letters a word starting at (r, c) must
// match; a zero byte marks a free position.
func (b *builder) constraintsAt(r, c, length int, dir Direction) ([]byte, bool) {
	constraints := make([]byte, length)
	crossing := false
	for i := 0; i < length; i++ {
		cell := b.cell(step(r, c, dir, i))
		if cell != nil && cell.typ == CellLetter {
			constraints[i] = cell.letter
			crossing = true
		}
	}
	return constraints, crossing
}

// canPlace checks word/grid compatibility: every letter position is empty
// or already holds the same letter, and the clue slot before the word is
// neither a letter cell nor already occupied by a clue of the same
// direction (two stacked clues, one per direction, are fine).
func (b *builder) canPlace(word string, r, c int, dir Direction) bool {
	for i := 0; i < len(word); i++ {
		cell := b.cell(step(r, c, dir, i))
		if cell == nil {
			return false
		}
		if cell.typ == CellClue {
			return false
		}
		if cell.typ == CellLetter && cell.letter != word[i] {
			return false
		}
	}

	clue := b.cell(cluePos(r, c, dir))
	if clue == nil || clue.typ == CellLetter {
		return false
	}
	for _, existing := range clue.clues {
		if existing.Direction == dir {
			return false
		}
	}
	return true
}

// place writes the word, its clue cell, and the entry record. Returns false
// when the position turned out incompatible.
func (b *builder) place(cand words.Candidate, r, c int, dir Direction) bool {
	word := cand.Normalized
	if !b.canPlace(word, r, c, dir) {
		return false
	}

	b.counter++
	id := newEntryID(b.counter, dir)

	clue := b.cell(cluePos(r, c, dir))
	clue.typ = CellClue
	clue.clues = append(clue.clues, Clue{
		Direction: dir,
		Text:      cand.Clue,
		TextFull:  cand.ClueFull,
		EntryID:   id,
	})

	cells := make([]Pos, len(word))
	for i := 0; i < len(word); i++ {
		rr, cc := step(r, c, dir, i)
		cell := b.cell(rr, cc)
		cell.typ = CellLetter
		cell.letter = word[i]
		if !containsEntry(cell.entryIDs, id) {
			cell.entryIDs = append(cell.entryIDs, id)
		}
		cells[i] = Pos{Row: rr, Col: cc}
	}

	b.entries = append(b.entries, Entry{
		ID:        id,
		Answer:    word,
		Lemma:     cand.Lemma,
		Direction: dir,
		Cells:     cells,
	})
	return true
}

// finalize converts the working grid into an immutable Layout. Remaining
// empty squares become black cells. The layout ID is assigned by the caller
// at persist time so generation stays a pure function of (size, seed, bank).
func (b *builder) finalize() *Layout {
	l := &Layout{
		Size:    b.size,
		Cells:   make([]Cell, 0, b.size*b.size),
		Entries: make(map[EntryID]Entry, len(b.entries)),
	}

	for r := 0; r < b.size; r++ {
		for c := 0; c < b.size; c++ {
			bc := b.cells[r][c]
			cell := Cell{Row: r, Col: c}
			switch bc.typ {
			case CellLetter:
				cell.Type = CellLetter
				cell.EntryIDs = bc.entryIDs
				l.Metrics.LetterCount++
			case CellClue:
				cell.Type = CellClue
				cell.Clues = bc.clues
				l.Metrics.ClueCount++
			default:
				cell.Type = CellBlack
				l.Metrics.BlackCount++
			}
			l.Cells = append(l.Cells, cell)
		}
	}

	for _, e := range b.entries {
		l.Entries[e.ID] = e
	}
	l.Metrics.WordCount = len(b.entries)
	return l
}

// step walks i cells from (r, c) along dir.
func step(r, c int, dir Direction, i int) (int, int) {
	if dir == DirDown {
		return r + i, c
	}
	return r, c + i
}

// cluePos is the cell immediately before a word start: one column left for
// rightward words, one row above for downward ones.
func cluePos(r, c int, dir Direction) (int, int) {
	if dir == DirDown {
		return r - 1, c
	}
	return r, c - 1
}

func containsEntry(ids []EntryID, id EntryID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
