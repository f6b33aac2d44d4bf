package usecase

import (
	"context"

	authdomain "famcal-backend/internal/auth/domain"
	authdto "famcal-backend/internal/auth/dto"
)

// AuthUsecase defines the authentication and account-settings operations.
type AuthUsecase interface {
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	GoogleSignIn(idToken string) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(tokenString string) (*authdomain.User, error)

	// Google Calendar linking for the mirror synchronizer.
	CalendarAuthURL(userID string) string
	HandleCalendarCallback(ctx context.Context, state, code string) error
	UnlinkCalendar(userID string) error

	UpdateSettings(ctx context.Context, userID string, req *authdto.UpdateSettingsRequest) (*authdomain.User, error)
	RegisterDevice(userID, token string) error
	UnregisterDevice(token string) error
}
