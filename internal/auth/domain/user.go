package domain

import "time"

type User struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	Password  string `json:"-"` // Never return password in JSON
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Provider  string `json:"provider"` // "email" or "google"

	// Home location used as the origin/destination for commute windows.
	HomeAddress string   `json:"home_address,omitempty"`
	HomeLat     *float64 `json:"home_lat,omitempty"`
	HomeLng     *float64 `json:"home_lng,omitempty"`

	// ComfortBufferMinutes is how early the user wants to arrive when the
	// event itself does not state an arrival time. 0 means "use default".
	ComfortBufferMinutes int `json:"comfort_buffer_minutes" gorm:"default:0"`

	// MirrorSyncEnabled controls whether events are pushed to this user's
	// Google calendar at all.
	MirrorSyncEnabled bool `json:"mirror_sync_enabled" gorm:"default:true"`

	// Google Calendar credentials, encrypted at rest.
	GoogleAccessToken  string     `json:"-"`
	GoogleRefreshToken string     `json:"-"`
	GoogleTokenExpiry  *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasGoogleCredentials reports whether the user has linked a Google account
// that the mirror synchronizer can push to.
func (u *User) HasGoogleCredentials() bool {
	return u.GoogleRefreshToken != "" || u.GoogleAccessToken != ""
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeviceToken is an FCM registration token for push notifications.
type DeviceToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}
