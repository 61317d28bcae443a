package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/slatrack/backend/internal/models"
)

// ResolveWindow turns a named shorthand into a window ending at now.
func ResolveWindow(name string, now time.Time) (models.Window, error) {
	var start time.Time
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "day":
		start = now.AddDate(0, 0, -1)
	case "week":
		start = now.AddDate(0, 0, -7)
	case "", "month":
		start = now.AddDate(0, -1, 0)
	case "quarter":
		start = now.AddDate(0, -3, 0)
	case "year":
		start = now.AddDate(-1, 0, 0)
	default:
		return models.Window{}, fmt.Errorf("unknown window %q", name)
	}
	return models.Window{Start: start, End: now}, nil
}

// ValidateWindow rejects inverted windows and windows longer than p.MaxWindow.
func ValidateWindow(w models.Window, p Policy) error {
	if w.Start.After(w.End) {
		return &InvalidWindowError{Start: w.Start, End: w.End, Reason: "start is after end"}
	}
	if p.MaxWindow > 0 && w.End.Sub(w.Start) > p.MaxWindow {
		return &InvalidWindowError{Start: w.Start, End: w.End, Reason: fmt.Sprintf("span exceeds %s", p.MaxWindow)}
	}
	return nil
}

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Daily, Weekly, Monthly:
		return g, nil
	case "":
		return Daily, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// Buckets splits w into consecutive sub-windows of the given granularity.
// The last bucket is cut at w.End.
func Buckets(w models.Window, g Granularity) []models.Window {
	var out []models.Window
	for cur := w.Start; cur.Before(w.End); {
		var next time.Time
		switch g {
		case Weekly:
			next = cur.AddDate(0, 0, 7)
		case Monthly:
			next = cur.AddDate(0, 1, 0)
		default:
			next = cur.AddDate(0, 0, 1)
		}
		if next.After(w.End) {
			next = w.End
		}
		out = append(out, models.Window{Start: cur, End: next})
		cur = next
	}
	return out
}
