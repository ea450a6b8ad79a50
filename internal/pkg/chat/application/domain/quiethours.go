package chat

import (
	"fmt"
	"time"
)

// TimeOfDay is minutes since local midnight, 0..1439.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" (24h) and "HH:MM:SS" as stored by Postgres TIME columns.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("%w: time of day %q", ErrInvalidInput, s)
}

// At returns the time of day of t in t's location.
func At(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// QuietHours is a daily window [Start, End). Start > End spans midnight;
// Start == End is an empty window.
type QuietHours struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether tod falls inside the window.
func (q QuietHours) Contains(tod TimeOfDay) bool {
	switch {
	case q.Start == q.End:
		return false
	case q.Start < q.End:
		return tod >= q.Start && tod < q.End
	default:
		return tod >= q.Start || tod < q.End
	}
}

// Profile is the slice of a user's profile the messaging core reads.
type Profile struct {
	UserID     string
	TenantID   string
	Location   *time.Location
	QuietHours *QuietHours
}

// Quiet reports whether now, seen in the user's local zone, falls inside
// the user's quiet hours. No configured window means never quiet.
func (p Profile) Quiet(now time.Time) bool {
	if p.QuietHours == nil {
		return false
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return p.QuietHours.Contains(At(now.In(loc)))
}
