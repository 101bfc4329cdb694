// internal/game/generator.go

package game

import (
	"context"

	"zwords/internal/grid"
	"zwords/internal/words"
)

const defaultGenRetries = 10

// BankGenerator is the production Generator: it refreshes the word bank
// when stale, then runs layout generation with retries.
type BankGenerator struct {
	Bank    *words.Bank
	Retries int
}

func (g *BankGenerator) Generate(ctx context.Context, size int, seed int64) (*grid.Layout, error) {
	if err := g.Bank.Ensure(ctx); err != nil {
		return nil, err
	}
	retries := g.Retries
	if retries <= 0 {
		retries = defaultGenRetries
	}
	return grid.GenerateWithRetry(g.Bank, size, seed, retries)
}

var _ Generator = (*BankGenerator)(nil)
