package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Link kinds.
const (
	LinkKindMain         = "main"
	LinkKindSupplemental = "supplemental"
)

// EventSyncLink ties one (user, item) pair to the entry mirrored into that
// user's Google calendar. At most one link exists per (user, event) and per
// (user, supplemental event) pair; this is the idempotency boundary for
// pushes.
type EventSyncLink struct {
	ID     string `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"index:idx_link_user_event,unique;index:idx_link_user_supplemental,unique;not null"`

	// Exactly one of EventID / SupplementalEventID is set, matching Kind.
	EventID             *string `json:"event_id,omitempty" gorm:"index:idx_link_user_event,unique"`
	SupplementalEventID *string `json:"supplemental_event_id,omitempty" gorm:"index:idx_link_user_supplemental,unique"`

	Kind          string `json:"kind" gorm:"not null"`
	GoogleEventID string `json:"google_event_id" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
}

// Credentials are a user's decrypted Google tokens for one provider call.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenUpdateFunc is invoked when the provider refreshes an access token,
// so the new token can be persisted.
type TokenUpdateFunc func(token *oauth2.Token) error

// Item is the provider-neutral payload pushed into an external calendar.
type Item struct {
	// SourceKey is the stable identifier stored as a private extended
	// property on the external entry and used for the idempotency probe.
	SourceKey string

	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	ColorID     string
}

// CalendarProvider is the external calendar boundary. Implemented by
// pkg/gcal against Google Calendar; tests use a fake.
type CalendarProvider interface {
	Insert(ctx context.Context, creds Credentials, onRefresh TokenUpdateFunc, item Item) (string, error)
	Update(ctx context.Context, creds Credentials, onRefresh TokenUpdateFunc, externalID string, item Item) error
	// Exists reports whether the external entry is still present;
	// a missing-entry response yields (false, nil).
	Exists(ctx context.Context, creds Credentials, onRefresh TokenUpdateFunc, externalID string) (bool, error)
	// FindBySourceKey searches the external calendar for an entry already
	// tagged with the given source key; returns "" when none exists.
	FindBySourceKey(ctx context.Context, creds Credentials, onRefresh TokenUpdateFunc, sourceKey string) (string, error)
	// Delete removes the external entry, treating missing-entry responses
	// as success.
	Delete(ctx context.Context, creds Credentials, onRefresh TokenUpdateFunc, externalID string) error
}
