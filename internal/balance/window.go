package balance

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownWindow is returned for a window keyword ParseWindow does not know.
var ErrUnknownWindow = errors.New("unknown window")

// Window bounds the expenses considered by a computation: [Start, End).
// Nil endpoints are unbounded.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && !t.Before(*w.End) {
		return false
	}
	return true
}

// ParseWindow converts the client window keyword (day/week/month/year/all,
// empty means all) into a Window anchored at now.
func ParseWindow(keyword string, now time.Time) (Window, error) {
	var start time.Time
	switch keyword {
	case "", "all":
		return Window{}, nil
	case "day":
		start = now.AddDate(0, 0, -1)
	case "week":
		start = now.AddDate(0, 0, -7)
	case "month":
		start = now.AddDate(0, -1, 0)
	case "year":
		start = now.AddDate(-1, 0, 0)
	default:
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownWindow, keyword)
	}
	return Window{Start: &start}, nil
}
