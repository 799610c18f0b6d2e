package agent

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// QuietHoursSource returns the live "HH:MM" start/end and IANA timezone,
// typically from the runtime config store.
type QuietHoursSource func() (start, end, tz string)

// QuietHours is a daily window during which the agent observes but does
// not mutate the cluster. The window may wrap past midnight.
type QuietHours struct {
	startMinute int
	endMinute   int
	loc         *time.Location
	enabled     bool

	// source, when set, is re-read before each check; a malformed
	// override keeps the last valid window.
	source QuietHoursSource
	mu     sync.Mutex
	raw    [3]string
}

// NewQuietHours parses "HH:MM" start/end in the given IANA timezone.
// Empty start or end disables quiet hours.
func NewQuietHours(start, end, tz string) (*QuietHours, error) {
	if start == "" || end == "" {
		return &QuietHours{}, nil
	}
	startMin, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("quiet hours start: %w", err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("quiet hours end: %w", err)
	}
	loc := time.Local
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("quiet hours timezone %q: %w", tz, err)
		}
	}
	return &QuietHours{
		startMinute: startMin,
		endMinute:   endMin,
		loc:         loc,
		enabled:     true,
	}, nil
}

// NewDynamicQuietHours builds a quiet window whose settings are re-read
// per check. The initial source values must parse.
func NewDynamicQuietHours(source QuietHoursSource) (*QuietHours, error) {
	start, end, tz := source()
	q, err := NewQuietHours(start, end, tz)
	if err != nil {
		return nil, err
	}
	q.source = source
	q.raw = [3]string{start, end, tz}
	return q, nil
}

// Enabled reports whether a quiet window is configured.
func (q *QuietHours) Enabled() bool {
	q.refresh()
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

// Active reports whether now falls inside the quiet window, at minute
// resolution. Windows where start > end wrap overnight.
func (q *QuietHours) Active(now time.Time) bool {
	q.refresh()
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled {
		return false
	}
	local := now.In(q.loc)
	minute := local.Hour()*60 + local.Minute()
	if q.startMinute <= q.endMinute {
		return minute >= q.startMinute && minute < q.endMinute
	}
	return minute >= q.startMinute || minute < q.endMinute
}

// refresh re-parses the window when the source values changed. Parse
// failures keep the previous window.
func (q *QuietHours) refresh() {
	if q.source == nil {
		return
	}
	start, end, tz := q.source()
	raw := [3]string{start, end, tz}

	q.mu.Lock()
	defer q.mu.Unlock()
	if raw == q.raw {
		return
	}
	q.raw = raw
	parsed, err := NewQuietHours(start, end, tz)
	if err != nil {
		slog.Warn("Ignoring malformed quiet hours override", "error", err)
		return
	}
	q.startMinute = parsed.startMinute
	q.endMinute = parsed.endMinute
	q.loc = parsed.loc
	q.enabled = parsed.enabled
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour*60 + minute, nil
}
