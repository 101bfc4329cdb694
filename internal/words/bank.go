// internal/words/bank.go
//
// Word bank for the grid generator.
//
// Responsibilities:
//   - Cache dictionary candidates grouped by word length, loaded from a Source.
//   - Drop words without a usable clue at cache-build time (a word the grid
//     cannot explain to the player is unusable).
//   - Serve constraint-compatible candidates in an order shuffled by a
//     caller-supplied PRNG, so generation stays reproducible per seed.
//
// The cache has a TTL; a refresh is always a full re-fetch-and-replace so
// readers never observe a partially merged dictionary.

package words

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	// Grid entries outside this range are never generated.
	MinLength = 2
	MaxLength = 15
)

// Candidate is one dictionary word usable in a grid.
type Candidate struct {
	Normalized string // uppercase A-Z form placed into cells
	Lemma      string // display form
	Frequency  int    // corpus frequency rank, higher = more common
	Clue       string // short clue shown in the clue cell
	ClueFull   string // long clue for tooltips
}

// Source loads the full dictionary. Implementations are expected to return
// the best available clue per word and may return words without clues; the
// bank filters those out.
type Source interface {
	LoadWords(ctx context.Context) ([]Candidate, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Candidate, error)

func (f SourceFunc) LoadWords(ctx context.Context) ([]Candidate, error) { return f(ctx) }

// Bank is an injected, refreshable word cache. Zero hidden globals: callers
// construct one, hand it to the generator, and tests inject a fake Source.
type Bank struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	byLength map[int][]Candidate
	loadedAt time.Time
}

// New constructs a Bank. The cache starts empty; the first Ensure or
// Refresh populates it.
func New(src Source, ttl time.Duration) *Bank {
	return &Bank{src: src, ttl: ttl, now: time.Now}
}

// Refresh re-fetches the dictionary and atomically replaces the cache.
func (b *Bank) Refresh(ctx context.Context) error {
	all, err := b.src.LoadWords(ctx)
	if err != nil {
		return fmt.Errorf("load words: %w", err)
	}

	byLength := make(map[int][]Candidate)
	for _, c := range all {
		n := len(c.Normalized)
		if n < MinLength || n > MaxLength {
			continue
		}
		if c.Clue == "" {
			continue
		}
		if c.ClueFull == "" {
			c.ClueFull = c.Clue
		}
		byLength[n] = append(byLength[n], c)
	}

	b.mu.Lock()
	b.byLength = byLength
	b.loadedAt = b.now()
	b.mu.Unlock()
	return nil
}

// Ensure refreshes the cache when it is empty or older than the TTL.
func (b *Bank) Ensure(ctx context.Context) error {
	b.mu.RLock()
	fresh := b.byLength != nil && b.now().Sub(b.loadedAt) < b.ttl
	b.mu.RUnlock()
	if fresh {
		return nil
	}
	return b.Refresh(ctx)
}

// FindCandidate returns a word of the given length compatible with the
// positional constraints (0 byte = free position, otherwise the required
// uppercase letter) and not present in exclude. Candidate order is shuffled
// with rng on every call, so the same rng state always yields the same pick.
func (b *Bank) FindCandidate(length int, constraints []byte, exclude map[string]bool, rng *rand.Rand) (Candidate, bool) {
	b.mu.RLock()
	pool := b.byLength[length]
	b.mu.RUnlock()

	if len(pool) == 0 {
		return Candidate{}, false
	}

	order := rng.Perm(len(pool))
	for _, i := range order {
		c := pool[i]
		if exclude[c.Normalized] {
			continue
		}
		if matchesConstraints(c.Normalized, constraints) {
			return c, true
		}
	}
	return Candidate{}, false
}

// Distribution reports candidate counts per length, for startup logging.
func (b *Bank) Distribution() map[int]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dist := make(map[int]int, len(b.byLength))
	for l, pool := range b.byLength {
		if len(pool) > 0 {
			dist[l] = len(pool)
		}
	}
	return dist
}

func matchesConstraints(word string, constraints []byte) bool {
	if len(constraints) != len(word) {
		return false
	}
	for i := 0; i < len(word); i++ {
		if constraints[i] != 0 && constraints[i] != word[i] {
			return false
		}
	}
	return true
}
