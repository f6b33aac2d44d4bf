package supplemental

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Events sometimes carry an explicit arrival instruction in their free-text
// description, e.g. "Arrival Time: 5:15 PM (America/Chicago)". The zone is
// optional; without it the event's own zone applies.
var arrivalPattern = regexp.MustCompile(`(?i)arrival\s+time:\s*(\d{1,2}):(\d{2})\s*(AM|PM)(?:\s*\(([^)]+)\))?`)

// maxArrivalLead is how far before the event start an explicit arrival time
// is still considered sane. Anything earlier is treated as a typo and the
// comfort-buffer fallback applies.
const maxArrivalLead = 120 * time.Minute

// ExtractArrivalTime resolves the target arrival time for an event. The
// second return value reports whether an explicit, in-bounds arrival time
// was found in the description; otherwise the result is start minus the
// comfort buffer.
func ExtractArrivalTime(description string, start time.Time, comfortBuffer time.Duration) (time.Time, bool) {
	fallback := start.Add(-comfortBuffer)

	m := arrivalPattern.FindStringSubmatch(description)
	if m == nil {
		return fallback, false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return fallback, false
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return fallback, false
	}

	if strings.EqualFold(m[3], "PM") && hour != 12 {
		hour += 12
	} else if strings.EqualFold(m[3], "AM") && hour == 12 {
		hour = 0
	}

	loc := start.Location()
	if zone := strings.TrimSpace(m[4]); zone != "" {
		if parsed, err := time.LoadLocation(zone); err == nil {
			loc = parsed
		}
	}

	localStart := start.In(loc)
	arrival := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), hour, minute, 0, 0, loc)

	lead := start.Sub(arrival)
	if lead < 0 || lead > maxArrivalLead {
		return fallback, false
	}

	return arrival, true
}
