package domain

import "time"

// Event is the canonical calendar item. The feed is the source of its
// descriptive fields; assignment state (assignee, skipped, version) is owned
// by this store and never written back upstream.
type Event struct {
	ID         string `json:"id" gorm:"primaryKey"`
	CalendarID string `json:"calendar_id" gorm:"index:idx_event_calendar_uid,unique;not null"`

	// SourceUID is the stable per-item identifier from the upstream feed
	// (the VEVENT UID, suffixed with the occurrence start for expanded
	// recurrence instances).
	SourceUID string `json:"source_uid" gorm:"index:idx_event_calendar_uid,unique;not null"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	AllDay    bool      `json:"all_day" gorm:"default:false"`
	Cancelled bool      `json:"cancelled" gorm:"default:false"`

	AssigneeID *string `json:"assignee_id,omitempty" gorm:"index"`
	Skipped    bool    `json:"skipped" gorm:"default:false"`

	// Version increases by exactly 1 on every successful owner-mutating
	// update. The check-and-increment is a single conditional write.
	Version int `json:"version" gorm:"default:1;not null"`

	// SyncInProgress guards the mirror-propagation window after an
	// assignment change. Durable for the same reason as the calendar flag.
	SyncInProgress bool `json:"sync_in_progress" gorm:"default:false"`

	// SourceUpdatedAt is the feed-reported modification timestamp used to
	// decide whether a feed item supersedes the stored copy.
	SourceUpdatedAt time.Time `json:"source_updated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assigned reports whether the event currently has an owner who attends it.
func (e *Event) Assigned() bool {
	return e.AssigneeID != nil && !e.Skipped && !e.Cancelled
}

// Supplemental event kinds.
const (
	SupplementalTravelOut    = "travel_out"
	SupplementalEarlyArrival = "early_arrival"
	SupplementalTravelHome   = "travel_home"
)

// SupplementalEvent is a derived item owned by exactly one parent event:
// the drive there, the wait before the event starts, and the drive home.
// The full set is always regenerated together; a partial set is not a
// supported state.
type SupplementalEvent struct {
	ID      string `json:"id" gorm:"primaryKey"`
	EventID string `json:"event_id" gorm:"index;not null"`
	Kind    string `json:"kind" gorm:"not null"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	OriginAddress string   `json:"origin_address,omitempty"`
	OriginLat     *float64 `json:"origin_lat,omitempty"`
	OriginLng     *float64 `json:"origin_lng,omitempty"`

	DestAddress string   `json:"dest_address,omitempty"`
	DestLat     *float64 `json:"dest_lat,omitempty"`
	DestLng     *float64 `json:"dest_lng,omitempty"`

	TravelMinutes int `json:"travel_minutes"`

	CreatedAt time.Time `json:"created_at"`
}
