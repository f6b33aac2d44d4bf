package icsfeed

import (
	"log"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	// maxInstancesPerEvent caps recurrence expansion so a malformed rule
	// cannot flood the store.
	maxInstancesPerEvent = 250

	instanceKeyLayout = "20060102T150405Z"
)

// ExpandWindow is the horizon within which recurring events are
// materialized into concrete instances.
type ExpandWindow struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the standard expansion horizon around now.
func DefaultWindow(now time.Time) ExpandWindow {
	return ExpandWindow{
		Start: now.AddDate(0, 0, -30),
		End:   now.AddDate(0, 0, 180),
	}
}

// Expand materializes recurring items into per-instance items within the
// window. Non-recurring items pass through unchanged (regardless of the
// window, so that stored events outside it are not treated as deleted).
// Instance keys are "<uid>_<start in UTC, basic format>".
func Expand(items []Item, window ExpandWindow) []Item {
	out := make([]Item, 0, len(items))

	for _, item := range items {
		if item.rawRRule == "" {
			out = append(out, item)
			continue
		}
		out = append(out, expandRecurring(item, window)...)
	}

	return out
}

func expandRecurring(item Item, window ExpandWindow) []Item {
	r, err := rrule.StrToRRule(item.rawRRule)
	if err != nil {
		log.Printf("[Feed] invalid RRULE for %s, treating as single event: %v", item.UID, err)
		single := item
		single.rawRRule = ""
		return []Item{single}
	}
	r.DTStart(item.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range item.exDates {
		set.ExDate(ex.In(item.Start.Location()))
	}

	starts := set.Between(window.Start.In(item.Start.Location()), window.End.In(item.Start.Location()), true)
	if len(starts) > maxInstancesPerEvent {
		log.Printf("[Feed] recurrence for %s truncated at %d instances", item.UID, maxInstancesPerEvent)
		starts = starts[:maxInstancesPerEvent]
	}

	duration := item.End.Sub(item.Start)
	instances := make([]Item, 0, len(starts))

	for _, start := range starts {
		inst := item
		inst.Start = start
		inst.End = start.Add(duration)
		inst.Key = item.UID + "_" + start.UTC().Format(instanceKeyLayout)
		inst.rawRRule = ""
		inst.exDates = nil
		instances = append(instances, inst)
	}

	return instances
}
