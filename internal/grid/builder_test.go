package grid

import (
	"context"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"zwords/internal/words"
)

// testBank builds a dense synthetic dictionary over a small alphabet so
// crossings are easy to satisfy.
func testBank(t *testing.T) *words.Bank {
	t.Helper()
	alphabet := []byte("AERSTLNO")
	gen := rand.New(rand.NewSource(7))

	seen := map[string]bool{}
	var cs []words.Candidate
	for length := 3; length <= 8; length++ {
		for i := 0; i < 300; i++ {
			w := make([]byte, length)
			for j := range w {
				w[j] = alphabet[gen.Intn(len(alphabet))]
			}
			s := string(w)
			if seen[s] {
				continue
			}
			seen[s] = true
			cs = append(cs, words.Candidate{Normalized: s, Lemma: s, Clue: "clue for " + s})
		}
	}

	b := words.New(words.SourceFunc(func(ctx context.Context) ([]words.Candidate, error) {
		return cs, nil
	}), time.Hour)
	if err := b.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return b
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	bank := testBank(t)
	a := Generate(bank, 10, 42)
	b := Generate(bank, 10, 42)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same (size, seed, bank) must produce identical layouts")
	}
	if a.Metrics.WordCount == 0 {
		t.Fatal("expected at least one placed word")
	}
}

func TestGenerateDifferentSeedsVary(t *testing.T) {
	bank := testBank(t)
	a := Generate(bank, 10, 1)
	b := Generate(bank, 10, 2)
	if reflect.DeepEqual(a.Entries, b.Entries) {
		t.Fatal("different seeds should produce different grids")
	}
}

func TestLayoutInvariants(t *testing.T) {
	bank := testBank(t)
	l := Generate(bank, 10, 42)

	// Every letter cell belongs to at least one entry.
	for _, cell := range l.Cells {
		if cell.Type == CellLetter && len(cell.EntryIDs) == 0 {
			t.Fatalf("letter cell (%d,%d) belongs to no entry", cell.Row, cell.Col)
		}
	}

	letters := map[Pos]byte{}
	for _, e := range l.Entries {
		if len(e.Cells) != len(e.Answer) {
			t.Fatalf("entry %s: %d cells for %d letters", e.ID, len(e.Cells), len(e.Answer))
		}

		// Crossing words agree on shared letters.
		for i, p := range e.Cells {
			if prev, ok := letters[p]; ok && prev != e.Answer[i] {
				t.Fatalf("conflicting letters at %v: %c vs %c", p, prev, e.Answer[i])
			}
			letters[p] = e.Answer[i]
			cell := l.Cell(p.Row, p.Col)
			if cell == nil || cell.Type != CellLetter {
				t.Fatalf("entry %s cell %v is not a letter cell", e.ID, p)
			}
			if !containsEntry(cell.EntryIDs, e.ID) {
				t.Fatalf("cell %v does not list entry %s", p, e.ID)
			}
		}

		// The first letter is immediately preceded by a clue cell that
		// carries this entry's clue in the right direction.
		first := e.Cells[0]
		cr, cc := cluePos(first.Row, first.Col, e.Direction)
		clueCell := l.Cell(cr, cc)
		if clueCell == nil || clueCell.Type != CellClue {
			t.Fatalf("entry %s has no clue cell before its first letter", e.ID)
		}
		found := false
		for _, cl := range clueCell.Clues {
			if cl.EntryID == e.ID && cl.Direction == e.Direction {
				found = true
			}
		}
		if !found {
			t.Fatalf("clue cell (%d,%d) does not reference entry %s", cr, cc, e.ID)
		}
	}
}

func TestPlaceRejectsConflicts(t *testing.T) {
	b := newBuilder(8)
	if !b.place(words.Candidate{Normalized: "MARS", Clue: "c"}, 2, 1, DirRight) {
		t.Fatal("first placement should succeed")
	}

	// Incompatible crossing: wants 'X' where 'A' already sits.
	if b.place(words.Candidate{Normalized: "XXX", Clue: "c"}, 1, 2, DirDown) {
		t.Fatal("placement over a different letter must fail")
	}

	// Compatible crossing through the 'A' of MARS at (2,2).
	if !b.place(words.Candidate{Normalized: "LAST", Clue: "c"}, 1, 2, DirDown) {
		t.Fatal("crossing with matching letter should succeed")
	}

	cell := b.cell(2, 2)
	if len(cell.entryIDs) != 2 {
		t.Fatalf("crossing cell should belong to 2 entries, got %d", len(cell.entryIDs))
	}
}

func TestPlaceRejectsClueOnLetter(t *testing.T) {
	b := newBuilder(8)
	if !b.place(words.Candidate{Normalized: "MARS", Clue: "c"}, 2, 1, DirRight) {
		t.Fatal("first placement should succeed")
	}
	// A downward word at (3,1) would need its clue cell at (2,1), which
	// holds the 'M' of MARS.
	if b.place(words.Candidate{Normalized: "SET", Clue: "c"}, 3, 1, DirDown) {
		t.Fatal("clue cell over a letter must be rejected")
	}
}

func TestPlaceAllowsStackedCluesOnePerDirection(t *testing.T) {
	b := newBuilder(8)
	if !b.place(words.Candidate{Normalized: "MARS", Clue: "c"}, 2, 1, DirRight) {
		t.Fatal("first placement should succeed")
	}
	// Shares the clue cell (2,0) in the other direction.
	if !b.place(words.Candidate{Normalized: "SOL", Clue: "c"}, 3, 0, DirDown) {
		t.Fatal("opposite-direction clue in the same cell should be allowed")
	}
	// A second rightward word cannot reuse the same clue slot, even when
	// its letters are compatible with what is already on the board.
	if b.place(words.Candidate{Normalized: "MAR", Clue: "c"}, 2, 1, DirRight) {
		t.Fatal("duplicate same-direction clue must be rejected")
	}
}

func TestEntryIDsAreSequentialAndDirectional(t *testing.T) {
	b := newBuilder(8)
	b.place(words.Candidate{Normalized: "MARS", Clue: "c"}, 2, 1, DirRight)
	b.place(words.Candidate{Normalized: "LAST", Clue: "c"}, 1, 2, DirDown)
	l := b.finalize()

	if _, ok := l.Entries["1-right"]; !ok {
		t.Fatalf("expected entry 1-right, got %v", keysOf(l.Entries))
	}
	if _, ok := l.Entries["2-down"]; !ok {
		t.Fatalf("expected entry 2-down, got %v", keysOf(l.Entries))
	}
}

func TestGenerateWithRetryNoWordsFails(t *testing.T) {
	empty := emptySource{}
	if _, err := GenerateWithRetry(empty, 10, 42, 3); err != ErrNoWords {
		t.Fatalf("expected ErrNoWords, got %v", err)
	}
}

func TestGenerateWithRetryMeetsMinimum(t *testing.T) {
	bank := testBank(t)
	l, err := GenerateWithRetry(bank, 10, 42, 10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if l.Metrics.WordCount < 6 {
		t.Fatalf("accepted layout below minimum: %d words", l.Metrics.WordCount)
	}
}

func TestPublicStripsAnswers(t *testing.T) {
	bank := testBank(t)
	l := Generate(bank, 10, 42)
	pub := l.Public()
	if pub.Size != l.Size || len(pub.Cells) != len(l.Cells) {
		t.Fatal("public projection must keep the cell matrix")
	}
	// The public type simply has no answers field; make sure clue cells do
	// not leak them either.
	for _, cell := range pub.Cells {
		for _, cl := range cell.Clues {
			if entry, ok := l.Entries[cl.EntryID]; ok && cl.Text == entry.Answer {
				t.Fatalf("clue text equals the answer for %s", cl.EntryID)
			}
		}
	}
}

type emptySource struct{}

func (emptySource) FindCandidate(int, []byte, map[string]bool, *rand.Rand) (words.Candidate, bool) {
	return words.Candidate{}, false
}

func keysOf(m map[EntryID]Entry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, string(k))
	}
	return out
}
