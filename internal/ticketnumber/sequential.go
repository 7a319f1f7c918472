package ticketnumber

import (
	"context"
	"fmt"
)

// Sequential yields PREFIX-NNNNN numbers from the global counter, zero-padded
// to the configured minimum width.
type Sequential struct{ cfg Config }

func NewSequential(cfg Config) *Sequential { return &Sequential{cfg: cfg} }
func (g *Sequential) Name() string         { return "Sequential" }
func (g *Sequential) IsDateBased() bool    { return false }
func (g *Sequential) Next(ctx context.Context, store CounterStore) (string, error) {
	min := g.cfg.MinCounterSize
	if min <= 0 {
		min = 5
	}
	c, err := store.Add(ctx, false, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%0*d", g.cfg.Prefix, min, c), nil
}
