package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "famcal-backend/internal/auth/domain"
	authdto "famcal-backend/internal/auth/dto"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

// stateExpiry bounds how long a calendar-link consent flow may take.
const stateExpiry = 10 * time.Minute

func (u *authUsecase) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     u.config.GoogleClientID,
		ClientSecret: u.config.GoogleClientSecret,
		RedirectURL:  u.config.GoogleRedirectURI,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}

// CalendarAuthURL builds the consent URL for linking the user's Google
// Calendar. The state parameter is a short-lived signed token carrying the
// user id, so the callback needs no session.
func (u *authUsecase) CalendarAuthURL(userID string) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"purpose": "calendar_link",
		"exp":     time.Now().Add(stateExpiry).Unix(),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(u.config.JWTSecret))
	if err != nil {
		return ""
	}

	// AccessTypeOffline with forced consent is the only way to get a
	// refresh token on repeat links.
	return u.oauthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// HandleCalendarCallback exchanges the authorization code and stores the
// resulting tokens, encrypted, on the user row.
func (u *authUsecase) HandleCalendarCallback(ctx context.Context, state, code string) error {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return errors.New("invalid state parameter")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != "calendar_link" {
		return errors.New("invalid state parameter")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return errors.New("invalid state parameter")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("user not found")
	}

	oauthToken, err := u.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}

	return u.storeCalendarTokens(user, oauthToken)
}

func (u *authUsecase) storeCalendarTokens(user *authdomain.User, token *oauth2.Token) error {
	access, err := u.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}
	user.GoogleAccessToken = access

	// Google omits the refresh token when the user previously consented;
	// keep the stored one in that case.
	if token.RefreshToken != "" {
		refresh, err := u.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return err
		}
		user.GoogleRefreshToken = refresh
	}

	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		user.GoogleTokenExpiry = &expiry
	}

	return u.userRepo.Update(user)
}

// UnlinkCalendar drops the stored Google Calendar credentials. Mirror copies
// already pushed stay in the user's calendar; they are simply no longer
// maintained.
func (u *authUsecase) UnlinkCalendar(userID string) error {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("user not found")
	}

	user.GoogleAccessToken = ""
	user.GoogleRefreshToken = ""
	user.GoogleTokenExpiry = nil
	return u.userRepo.Update(user)
}

// UpdateSettings applies commute preferences. A changed home address is
// geocoded immediately so supplemental generation never has to resolve it
// on the hot path.
func (u *authUsecase) UpdateSettings(ctx context.Context, userID string, req *authdto.UpdateSettingsRequest) (*authdomain.User, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	if req.HomeAddress != nil && *req.HomeAddress != user.HomeAddress {
		user.HomeAddress = *req.HomeAddress
		user.HomeLat = nil
		user.HomeLng = nil

		if *req.HomeAddress != "" && u.planner != nil {
			point, err := u.planner.Geocode(ctx, *req.HomeAddress)
			if err != nil {
				return nil, fmt.Errorf("could not geocode home address: %w", err)
			}
			user.HomeLat = &point.Lat
			user.HomeLng = &point.Lng
		}
	}

	if req.ComfortBufferMinutes != nil {
		if *req.ComfortBufferMinutes < 0 || *req.ComfortBufferMinutes > 240 {
			return nil, errors.New("comfort buffer must be between 0 and 240 minutes")
		}
		user.ComfortBufferMinutes = *req.ComfortBufferMinutes
	}

	if req.MirrorSyncEnabled != nil {
		user.MirrorSyncEnabled = *req.MirrorSyncEnabled
	}

	if err := u.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterDevice stores an FCM registration token for push notifications.
func (u *authUsecase) RegisterDevice(userID, token string) error {
	if token == "" {
		return errors.New("device token is required")
	}
	return u.deviceRepo.SaveToken(userID, token)
}

// UnregisterDevice removes an FCM registration token, e.g. on sign-out.
func (u *authUsecase) UnregisterDevice(token string) error {
	if token == "" {
		return errors.New("device token is required")
	}
	return u.deviceRepo.DeleteToken(token)
}
