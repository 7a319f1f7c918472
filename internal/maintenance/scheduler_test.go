package maintenance

import (
	"context"
	"errors"
	"testing"
)

type fakeRecounter struct {
	calls int
	err   error
}

func (f *fakeRecounter) RecountTicketTotals(context.Context) (int64, error) {
	f.calls++
	return 3, f.err
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&fakeRecounter{}, nil)
	if err := s.Start("not a cron spec"); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestStartWithEmptyScheduleIsNoop(t *testing.T) {
	s := NewScheduler(&fakeRecounter{}, nil)
	if err := s.Start(""); err != nil {
		t.Fatal(err)
	}
	s.Stop()
}

func TestRunRecount(t *testing.T) {
	r := &fakeRecounter{}
	s := NewScheduler(r, nil)
	s.runRecount()
	if r.calls != 1 {
		t.Errorf("recounter called %d times, want 1", r.calls)
	}

	// Errors are logged, not fatal.
	s = NewScheduler(&fakeRecounter{err: errors.New("db down")}, nil)
	s.runRecount()
}
