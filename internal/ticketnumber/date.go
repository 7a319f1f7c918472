package ticketnumber

import (
	"context"
	"fmt"
)

// DateSequential yields PREFIX-YYYYMMDD-NNNNN numbers from a per-day counter.
type DateSequential struct {
	cfg   Config
	clock Clock
}

func NewDateSequential(cfg Config, clk Clock) *DateSequential {
	return &DateSequential{cfg: cfg, clock: clk}
}

func (g *DateSequential) Name() string      { return "DateSequential" }
func (g *DateSequential) IsDateBased() bool { return true }

func (g *DateSequential) Next(ctx context.Context, store CounterStore) (string, error) {
	min := g.cfg.MinCounterSize
	if min <= 0 {
		min = 5
	}
	c, err := store.Add(ctx, true, 1)
	if err != nil {
		return "", err
	}
	now := g.clock.Now()
	return fmt.Sprintf("%s-%04d%02d%02d-%0*d", g.cfg.Prefix, now.Year, now.Month, now.Day, min, c), nil
}
