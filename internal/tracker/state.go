package tracker

import (
	"sync"

	"github.com/shopspring/decimal"

	"AllowanceLogger/internal/model"
)

// Delta is the outcome of comparing a new total with the last observed one.
type Delta struct {
	First    bool // no previous observation existed
	Kind     model.ChangeKind
	Previous decimal.Decimal
	Current  decimal.Decimal
	Diff     decimal.Decimal
}

// Changed reports whether the observation differs from the previous one.
func (d Delta) Changed() bool { return d.Kind != model.KindNone }

// Qualifies reports whether the delta should be recorded and announced in mode.
func (d Delta) Qualifies(mode model.Mode) bool {
	switch mode {
	case model.ModeReward:
		return d.Kind == model.KindIncrease
	default:
		return d.Changed()
	}
}

// State holds the last observed total per wallet. It lives only in memory.
type State struct {
	mu   sync.Mutex
	last map[string]decimal.Decimal
}

// NewState creates an empty observation state.
func NewState() *State {
	return &State{last: make(map[string]decimal.Decimal)}
}

// Observe stores total as the wallet's latest value and returns how it compares
// with the previous one.
func (s *State) Observe(wallet string, total decimal.Decimal) Delta {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.last[wallet]
	s.last[wallet] = total

	if !seen {
		return Delta{First: true, Kind: model.KindNone, Current: total}
	}

	d := Delta{Kind: model.KindNone, Previous: prev, Current: total, Diff: total.Sub(prev)}
	switch d.Diff.Sign() {
	case 1:
		d.Kind = model.KindIncrease
	case -1:
		d.Kind = model.KindDecrease
	}
	return d
}

// Last returns the last observed total for wallet.
func (s *State) Last(wallet string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.last[wallet]
	return v, ok
}

// Snapshot returns a copy of all observations.
func (s *State) Snapshot() map[string]decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}
