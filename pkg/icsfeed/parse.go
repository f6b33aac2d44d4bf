package icsfeed

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// Item is a normalized feed entry. For recurring events the parser emits
// one Item per VEVENT; Expand turns them into per-instance items keyed by
// a stable identifier.
type Item struct {
	// Key is the stable per-item identifier used to diff against stored
	// events: the UID for single events, UID+occurrence start for
	// expanded recurrence instances.
	Key string

	UID         string
	Title       string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	Cancelled bool

	// UpdatedAt is the feed-reported modification time (LAST-MODIFIED,
	// falling back to DTSTAMP, falling back to zero).
	UpdatedAt time.Time

	rawRRule string
	exDates  []time.Time
}

// Parse parses an ICS payload into normalized items. Individual malformed
// VEVENTs are skipped and do not abort the parse.
func Parse(body []byte) ([]Item, error) {
	if len(body) == 0 {
		return nil, errors.New("empty feed body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0)
	for _, ve := range cal.Events() {
		item, perr := parseVEvent(ve)
		if perr != nil {
			log.Printf("[Feed] skipping malformed event: %v", perr)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func parseVEvent(ve *ical.VEvent) (Item, error) {
	var out Item

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value
	out.Key = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Cancelled = strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, errors.New("missing or invalid DTSTART")
	}
	end, _ := ve.GetEndAt()
	out.Start = start
	out.End = end

	// All-day when DTSTART carries VALUE=DATE or a bare date value.
	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		val := dtStartProp.Value
		if params := dtStartProp.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.AllDay = true
			}
		}
		if !strings.Contains(val, "T") {
			out.AllDay = true
		}
	}

	if out.End.IsZero() || !out.End.After(out.Start) {
		if out.AllDay {
			out.End = out.Start.Add(24 * time.Hour)
		} else {
			out.End = out.Start.Add(time.Hour)
		}
	}

	out.UpdatedAt = modificationTime(ve)

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.rawRRule = rruleProp.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}

	return out, nil
}

func modificationTime(ve *ical.VEvent) time.Time {
	if p := ve.GetProperty(ical.ComponentProperty(ical.PropertyLastModified)); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			return t
		}
	}
	if p := ve.GetProperty(ical.ComponentProperty(ical.PropertyDtstamp)); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseICSTime handles the basic UTC, floating and date-only ICS forms.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	}
	return time.ParseInLocation("20060102", v, time.UTC)
}
