package ticketnumber

import (
	"errors"
	"strings"
	"time"
)

// Resolve maps a configured generator name and prefix to a concrete
// Generator. Valid names: sequential, date.
func Resolve(name, prefix string, minCounterSize int, clk Clock) (Generator, error) {
	if clk == nil {
		clk = realClock{}
	}
	cfg := Config{Prefix: prefix, MinCounterSize: minCounterSize}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sequential":
		return NewSequential(cfg), nil
	case "date":
		return NewDateSequential(cfg, clk), nil
	default:
		return nil, errors.New("unknown ticket number generator: " + name)
	}
}

type realClock struct{}

func (realClock) Now() TimeParts {
	t := time.Now().UTC()
	return TimeParts{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}
