package gcal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	mirrordomain "famcal-backend/internal/mirror/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// sourceKeyProperty is the private extended property that tags every entry
// we create with its canonical identifier. The idempotency probe searches
// on it before inserting.
const sourceKeyProperty = "famcalId"

// Service implements the mirror CalendarProvider against Google Calendar.
// Entries are written to each user's primary calendar.
type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback mirrordomain.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[GCal] failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// calendarService creates a Calendar API client with the user's tokens,
// wrapping the token source so refreshes get persisted.
func (s *Service) calendarService(ctx context.Context, creds mirrordomain.Credentials, onRefresh mirrordomain.TokenUpdateFunc) (*calendar.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	}

	// Force a refresh when possible so stale access tokens do not burn a
	// request before recovering.
	if creds.RefreshToken != "" && creds.Expiry.IsZero() {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %v", err)
	}

	return srv, nil
}

func (s *Service) Insert(ctx context.Context, creds mirrordomain.Credentials, onRefresh mirrordomain.TokenUpdateFunc, item mirrordomain.Item) (string, error) {
	srv, err := s.calendarService(ctx, creds, onRefresh)
	if err != nil {
		return "", err
	}

	created, err := srv.Events.Insert("primary", toGoogleEvent(item)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func (s *Service) Update(ctx context.Context, creds mirrordomain.Credentials, onRefresh mirrordomain.TokenUpdateFunc, externalID string, item mirrordomain.Item) error {
	srv, err := s.calendarService(ctx, creds, onRefresh)
	if err != nil {
		return err
	}

	if _, err := srv.Events.Update("primary", externalID, toGoogleEvent(item)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update event %s: %w", externalID, err)
	}
	return nil
}

func (s *Service) Exists(ctx context.Context, creds mirrordomain.Credentials, onRefresh mirrordomain.TokenUpdateFunc, externalID string) (bool, error) {
	srv, err := s.calendarService(ctx, creds, onRefresh)
	if err != nil {
		return false, err
	}

	event, err := srv.Events.Get("primary", externalID).Context(ctx).Do()
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get event %s: %w", externalID, err)
	}

	// Google keeps deleted entries around with status "cancelled"; treat
	// them as gone so a stale link gets recreated.
	return event.Status != "cancelled", nil
}

func (s *Service) FindBySourceKey(ctx context.Context, creds mirrordomain.Credentials, onRefresh mirrordomain.TokenUpdateFunc, sourceKey string) (string, error) {
	srv, err := s.calendarService(ctx, creds, onRefresh)
	if err != nil {
		return "", err
	}

	list, err := srv.Events.List("primary").
		PrivateExtendedProperty(sourceKeyProperty + "=" + sourceKey).
		ShowDeleted(false).
		MaxResults(2).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search by source key: %w", err)
	}

	if len(list.Items) == 0 {
		return "", nil
	}
	return list.Items[0].Id, nil
}

func (s *Service) Delete(ctx context.Context, creds mirrordomain.Credentials, onRefresh mirrordomain.TokenUpdateFunc, externalID string) error {
	srv, err := s.calendarService(ctx, creds, onRefresh)
	if err != nil {
		return err
	}

	if err := srv.Events.Delete("primary", externalID).Context(ctx).Do(); err != nil {
		// Already gone counts as success.
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete event %s: %w", externalID, err)
	}
	return nil
}

// IsNotFound reports whether the provider said the entry does not exist
// (404) or was permanently deleted (410).
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}

func toGoogleEvent(item mirrordomain.Item) *calendar.Event {
	event := &calendar.Event{
		Summary:     item.Title,
		Description: item.Description,
		Location:    item.Location,
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				sourceKeyProperty: item.SourceKey,
			},
		},
	}

	if item.ColorID != "" {
		event.ColorId = item.ColorID
	}

	if item.AllDay {
		event.Start = &calendar.EventDateTime{Date: item.Start.Format("2006-01-02")}
		event.End = &calendar.EventDateTime{Date: item.End.Format("2006-01-02")}
	} else {
		event.Start = &calendar.EventDateTime{DateTime: item.Start.Format(time.RFC3339)}
		event.End = &calendar.EventDateTime{DateTime: item.End.Format(time.RFC3339)}
	}

	return event
}

var _ mirrordomain.CalendarProvider = (*Service)(nil)
