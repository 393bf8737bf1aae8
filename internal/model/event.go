package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects which balance changes are reported.
type Mode string

const (
	// ModeChange reports every nonzero change, increase or decrease.
	ModeChange Mode = "change"
	// ModeReward reports increases only and exports a monthly total.
	ModeReward Mode = "reward"
)

// ParseMode accepts the mode names plus the legacy "A"/"B" aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "change", "a", "":
		return ModeChange, nil
	case "reward", "b":
		return ModeReward, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want change or reward)", s)
	}
}

// CSVColumn is the header label of the value column for this mode.
func (m Mode) CSVColumn() string {
	if m == ModeReward {
		return "Reward"
	}
	return "Change"
}

// ChangeKind classifies a delta between two consecutive observations.
type ChangeKind string

const (
	KindNone     ChangeKind = "NONE"
	KindIncrease ChangeKind = "INCREASE"
	KindDecrease ChangeKind = "DECREASE"
)

// ChangeEvent is a qualifying delta handed to the recorders and notifier.
type ChangeEvent struct {
	Wallet   string
	Name     string
	Mode     Mode
	Kind     ChangeKind
	Previous decimal.Decimal
	Current  decimal.Decimal
	Diff     decimal.Decimal
	At       time.Time
}

// ExportEvent describes a completed end-of-month export for one wallet.
type ExportEvent struct {
	Wallet string
	Name   string
	Month  string // YYYY-MM
	Total  decimal.Decimal
	Path   string
	At     time.Time
}
