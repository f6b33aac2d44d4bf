package domain

import "time"

// Calendar sync status values.
const (
	SyncStatusNever = "never"
	SyncStatusOK    = "ok"
	SyncStatusError = "error"
)

// Calendar is an internal calendar backed by exactly one upstream ICS feed.
type Calendar struct {
	ID      string `json:"id" gorm:"primaryKey"`
	OwnerID string `json:"owner_id" gorm:"index;not null"`
	Name    string `json:"name" gorm:"not null"`
	FeedURL string `json:"feed_url" gorm:"not null"`
	Color   string `json:"color,omitempty"`

	// SyncInProgress is a durable advisory lock: it must be visible to
	// every process instance, so it lives on the row rather than in an
	// in-process mutex. Acquired with a conditional update.
	SyncInProgress bool `json:"sync_in_progress" gorm:"default:false"`

	SyncStatus   string     `json:"sync_status" gorm:"default:never"`
	SyncError    string     `json:"sync_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CalendarMember grants a user access to a calendar. Membership supplies the
// set of users whose Google calendars receive mirrored copies; the sync
// layer reads it but never mutates it.
type CalendarMember struct {
	ID         string `json:"id" gorm:"primaryKey"`
	CalendarID string `json:"calendar_id" gorm:"index:idx_member_calendar_user,unique;not null"`
	UserID     string `json:"user_id" gorm:"index:idx_member_calendar_user,unique;not null"`
	Role       string `json:"role" gorm:"default:member"` // "owner" or "member"

	// KeepSupplemental opts the member in to receiving mirrored copies of
	// travel/arrival events for assignments that are not their own.
	KeepSupplemental bool `json:"keep_supplemental" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
}
