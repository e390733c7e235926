package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/gym-sniper/internal/booking"
)

// Target is a recurring class to book whenever it appears in the catalog.
type Target struct {
	// ClassName is matched as a case-insensitive substring.
	ClassName string
	// Days restricts matches to these weekdays. Empty means any day.
	Days []time.Weekday
	// Time is an exact "HH:MM" start time. Empty means any time.
	Time string
}

// Matches reports whether s is an instance of the target. Status is not
// considered.
func (t Target) Matches(s booking.Slot) bool {
	if !strings.Contains(strings.ToLower(s.Name), strings.ToLower(t.ClassName)) {
		return false
	}
	if len(t.Days) > 0 {
		wd := s.StartTime.Weekday()
		found := false
		for _, d := range t.Days {
			if d == wd {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if t.Time != "" && s.StartTime.Format("15:04") != t.Time {
		return false
	}
	return true
}

func (t Target) String() string {
	var b strings.Builder
	b.WriteString(t.ClassName)
	if len(t.Days) > 0 {
		names := make([]string, len(t.Days))
		for i, d := range t.Days {
			names[i] = d.String()[:3]
		}
		fmt.Fprintf(&b, " on %s", strings.Join(names, ","))
	}
	if t.Time != "" {
		fmt.Fprintf(&b, " at %s", t.Time)
	}
	return b.String()
}

// NewTarget builds a Target from config strings, validating day names and the time.
func NewTarget(className string, days []string, hhmm string) (Target, error) {
	if strings.TrimSpace(className) == "" {
		return Target{}, fmt.Errorf("target: class name required")
	}
	t := Target{ClassName: className, Time: hhmm}
	for _, d := range days {
		wd, err := ParseWeekday(d)
		if err != nil {
			return Target{}, err
		}
		t.Days = append(t.Days, wd)
	}
	if hhmm != "" {
		if _, err := time.Parse("15:04", hhmm); err != nil || len(hhmm) != 5 {
			return Target{}, fmt.Errorf("target %q: time must be HH:MM, got %q", className, hhmm)
		}
	}
	return t, nil
}

// ParseWeekday accepts full or three-letter English day names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if s == full || s == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
