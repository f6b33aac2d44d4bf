package dto

import authdomain "famcal-backend/internal/auth/domain"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
}

type GoogleSignInRequest struct {
	Token string `json:"token" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	User         *authdomain.User `json:"user"`
}

// UpdateSettingsRequest changes commute-related preferences. Pointer fields
// are optional; nil leaves the stored value untouched.
type UpdateSettingsRequest struct {
	HomeAddress          *string `json:"home_address,omitempty"`
	ComfortBufferMinutes *int    `json:"comfort_buffer_minutes,omitempty"`
	MirrorSyncEnabled    *bool   `json:"mirror_sync_enabled,omitempty"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token" binding:"required"`
}
