package util

import (
	"fmt"
	"time"
)

// TradingWindow is a daily open/close interval, half-open at the close: an
// order at exactly the close time is outside the window.
type TradingWindow struct {
	openMins   int
	closeMins  int
	alwaysOpen bool
}

// NewTradingWindow parses "HH:MM" open and close times. alwaysOpen makes
// IsOpen return true unconditionally.
func NewTradingWindow(open, close string, alwaysOpen bool) (*TradingWindow, error) {
	o, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("open time: %w", err)
	}
	c, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("close time: %w", err)
	}
	if c <= o {
		return nil, fmt.Errorf("close %q not after open %q", close, open)
	}
	return &TradingWindow{openMins: o, closeMins: c, alwaysOpen: alwaysOpen}, nil
}

// IsOpen reports whether t falls inside the window.
func (w *TradingWindow) IsOpen(t time.Time) bool {
	if w.alwaysOpen {
		return true
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= w.openMins && mins < w.closeMins
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}
