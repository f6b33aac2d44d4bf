package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	authdomain "famcal-backend/internal/auth/domain"
	authrepo "famcal-backend/internal/auth/repository"
	caldomain "famcal-backend/internal/calendar/domain"
	mirrordomain "famcal-backend/internal/mirror/domain"
	"famcal-backend/internal/mirror/repository"
	"famcal-backend/pkg/crypto"

	"golang.org/x/oauth2"
)

// Synchronizer keeps every member's Google calendar consistent with the
// canonical store. All per-user operations for an item run concurrently and
// independently: one user's failure is recorded and never blocks or rolls
// back another user's push.
type Synchronizer struct {
	linkRepo repository.LinkRepository
	userRepo authrepo.UserRepository
	provider mirrordomain.CalendarProvider
	cipher   *crypto.Cipher
}

func NewSynchronizer(linkRepo repository.LinkRepository, userRepo authrepo.UserRepository, provider mirrordomain.CalendarProvider, cipher *crypto.Cipher) *Synchronizer {
	return &Synchronizer{
		linkRepo: linkRepo,
		userRepo: userRepo,
		provider: provider,
		cipher:   cipher,
	}
}

// SyncReport accumulates the outcome of one fan-out. Partial failure is
// normal operation: errors are listed next to the success counts.
type SyncReport struct {
	Pushed  int      `json:"pushed"`
	Deleted int      `json:"deleted"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

type reportCollector struct {
	mu     sync.Mutex
	report SyncReport
}

func (c *reportCollector) pushed() {
	c.mu.Lock()
	c.report.Pushed++
	c.mu.Unlock()
}

func (c *reportCollector) deleted() {
	c.mu.Lock()
	c.report.Deleted++
	c.mu.Unlock()
}

func (c *reportCollector) skipped() {
	c.mu.Lock()
	c.report.Skipped++
	c.mu.Unlock()
}

func (c *reportCollector) fail(userID string, err error) {
	c.mu.Lock()
	c.report.Errors = append(c.report.Errors, fmt.Sprintf("user %s: %v", userID, err))
	c.mu.Unlock()
}

// EventSourceKey is the stable identifier stored on mirrored copies of a
// canonical event.
func EventSourceKey(eventID string) string {
	return "evt:" + eventID
}

// SupplementalSourceKey is the stable identifier for mirrored supplemental
// events.
func SupplementalSourceKey(supplementalID string) string {
	return "sup:" + supplementalID
}

// PushEventToMembers mirrors the event into every member's Google calendar.
func (s *Synchronizer) PushEventToMembers(ctx context.Context, event *caldomain.Event, memberIDs []string) *SyncReport {
	item := eventItem(event)
	collector := &reportCollector{}

	var wg sync.WaitGroup
	for _, userID := range memberIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			s.pushItemForUser(ctx, userID, item, linkTarget{eventID: &event.ID, kind: mirrordomain.LinkKindMain}, collector)
		}(userID)
	}
	wg.Wait()

	return &collector.report
}

// DeleteEventFromMembers removes the mirrored copies for every user holding
// a link to the event, then removes the links. A missing external entry
// counts as already deleted.
func (s *Synchronizer) DeleteEventFromMembers(ctx context.Context, eventID string) *SyncReport {
	collector := &reportCollector{}

	links, err := s.linkRepo.ListByEvent(eventID)
	if err != nil {
		collector.fail("*", fmt.Errorf("list links: %w", err))
		return &collector.report
	}

	var wg sync.WaitGroup
	for _, link := range links {
		wg.Add(1)
		go func(link *mirrordomain.EventSyncLink) {
			defer wg.Done()
			s.deleteLinkForUser(ctx, link, collector)
		}(link)
	}
	wg.Wait()

	return &collector.report
}

// PushSupplementalToUsers mirrors the supplemental set to the given users
// (the assignee plus members who opted in to keeping supplemental copies).
func (s *Synchronizer) PushSupplementalToUsers(ctx context.Context, event *caldomain.Event, items []*caldomain.SupplementalEvent, userIDs []string) *SyncReport {
	collector := &reportCollector{}

	var wg sync.WaitGroup
	for _, userID := range userIDs {
		for _, sup := range items {
			wg.Add(1)
			go func(userID string, sup *caldomain.SupplementalEvent) {
				defer wg.Done()
				item := supplementalItem(event, sup)
				s.pushItemForUser(ctx, userID, item, linkTarget{supplementalID: &sup.ID, kind: mirrordomain.LinkKindSupplemental}, collector)
			}(userID, sup)
		}
	}
	wg.Wait()

	return &collector.report
}

// DeleteSupplementalFromMembers removes mirrored copies of the given
// supplemental events for every user holding links to them.
func (s *Synchronizer) DeleteSupplementalFromMembers(ctx context.Context, items []*caldomain.SupplementalEvent) *SyncReport {
	collector := &reportCollector{}

	var wg sync.WaitGroup
	for _, sup := range items {
		links, err := s.linkRepo.ListBySupplemental(sup.ID)
		if err != nil {
			collector.fail("*", fmt.Errorf("list links for supplemental %s: %w", sup.ID, err))
			continue
		}
		for _, link := range links {
			wg.Add(1)
			go func(link *mirrordomain.EventSyncLink) {
				defer wg.Done()
				s.deleteLinkForUser(ctx, link, collector)
			}(link)
		}
	}
	wg.Wait()

	return &collector.report
}

type linkTarget struct {
	eventID        *string
	supplementalID *string
	kind           string
}

func (s *Synchronizer) pushItemForUser(ctx context.Context, userID string, item mirrordomain.Item, target linkTarget, collector *reportCollector) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		collector.fail(userID, err)
		return
	}
	if user == nil || !user.MirrorSyncEnabled || !user.HasGoogleCredentials() {
		collector.skipped()
		return
	}

	creds, onRefresh, err := s.credentialsFor(user)
	if err != nil {
		collector.fail(userID, err)
		return
	}

	var existing *mirrordomain.EventSyncLink
	if target.kind == mirrordomain.LinkKindMain {
		existing, err = s.linkRepo.FindByUserAndEvent(userID, *target.eventID)
	} else {
		existing, err = s.linkRepo.FindByUserAndSupplemental(userID, *target.supplementalID)
	}
	if err != nil {
		collector.fail(userID, err)
		return
	}

	if existing != nil {
		alive, err := s.provider.Exists(ctx, creds, onRefresh, existing.GoogleEventID)
		if err != nil {
			collector.fail(userID, err)
			return
		}
		if alive {
			if err := s.provider.Update(ctx, creds, onRefresh, existing.GoogleEventID, item); err != nil {
				collector.fail(userID, err)
				return
			}
			collector.pushed()
			return
		}

		// The external entry vanished out-of-band (user removed and
		// re-added to the calendar, manual delete). The link is stale:
		// drop it and fall through to creation.
		log.Printf("[Mirror] stale link %s for user %s, recreating", existing.ID, userID)
		if err := s.linkRepo.Delete(existing.ID); err != nil {
			collector.fail(userID, err)
			return
		}
	}

	// Idempotency probe: a racing push may already have created the entry.
	googleID, err := s.provider.FindBySourceKey(ctx, creds, onRefresh, item.SourceKey)
	if err != nil {
		collector.fail(userID, err)
		return
	}
	if googleID == "" {
		googleID, err = s.provider.Insert(ctx, creds, onRefresh, item)
		if err != nil {
			collector.fail(userID, err)
			return
		}
	}

	link := &mirrordomain.EventSyncLink{
		UserID:              userID,
		EventID:             target.eventID,
		SupplementalEventID: target.supplementalID,
		Kind:                target.kind,
		GoogleEventID:       googleID,
	}
	if err := s.linkRepo.Create(link); err != nil {
		collector.fail(userID, err)
		return
	}

	collector.pushed()
}

func (s *Synchronizer) deleteLinkForUser(ctx context.Context, link *mirrordomain.EventSyncLink, collector *reportCollector) {
	user, err := s.userRepo.FindByID(link.UserID)
	if err != nil {
		collector.fail(link.UserID, err)
		return
	}

	// The local link is removed even when the external delete cannot run;
	// the store is authoritative and an orphaned external entry is
	// harmless compared to a link pointing at deleted local state.
	if user != nil && user.HasGoogleCredentials() {
		creds, onRefresh, err := s.credentialsFor(user)
		if err == nil {
			if err := s.provider.Delete(ctx, creds, onRefresh, link.GoogleEventID); err != nil {
				collector.fail(link.UserID, err)
				return
			}
		} else {
			log.Printf("[Mirror] skipping external delete for user %s: %v", link.UserID, err)
		}
	}

	if err := s.linkRepo.Delete(link.ID); err != nil {
		collector.fail(link.UserID, err)
		return
	}

	collector.deleted()
}

func (s *Synchronizer) credentialsFor(user *authdomain.User) (mirrordomain.Credentials, mirrordomain.TokenUpdateFunc, error) {
	accessToken, err := s.cipher.Decrypt(user.GoogleAccessToken)
	if err != nil {
		return mirrordomain.Credentials{}, nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refreshToken, err := s.cipher.Decrypt(user.GoogleRefreshToken)
	if err != nil {
		return mirrordomain.Credentials{}, nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	creds := mirrordomain.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if user.GoogleTokenExpiry != nil {
		creds.Expiry = *user.GoogleTokenExpiry
	}

	onRefresh := func(token *oauth2.Token) error {
		encrypted, err := s.cipher.Encrypt(token.AccessToken)
		if err != nil {
			return err
		}
		user.GoogleAccessToken = encrypted
		if token.RefreshToken != "" {
			if encryptedRefresh, err := s.cipher.Encrypt(token.RefreshToken); err == nil {
				user.GoogleRefreshToken = encryptedRefresh
			}
		}
		expiry := token.Expiry
		user.GoogleTokenExpiry = &expiry
		return s.userRepo.Update(user)
	}

	return creds, onRefresh, nil
}

func eventItem(event *caldomain.Event) mirrordomain.Item {
	return mirrordomain.Item{
		SourceKey:   EventSourceKey(event.ID),
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       event.StartTime,
		End:         event.EndTime,
		AllDay:      event.AllDay,
	}
}

func supplementalItem(event *caldomain.Event, sup *caldomain.SupplementalEvent) mirrordomain.Item {
	var title string
	switch sup.Kind {
	case caldomain.SupplementalTravelOut:
		title = "Drive to " + event.Title
	case caldomain.SupplementalEarlyArrival:
		title = "Arrive early: " + event.Title
	case caldomain.SupplementalTravelHome:
		title = "Drive home from " + event.Title
	default:
		title = event.Title
	}

	description := fmt.Sprintf("Automatically planned around %q", event.Title)
	if sup.TravelMinutes > 0 {
		description = fmt.Sprintf("%s (%d min travel)", description, sup.TravelMinutes)
	}

	return mirrordomain.Item{
		SourceKey:   SupplementalSourceKey(sup.ID),
		Title:       title,
		Description: description,
		Location:    sup.DestAddress,
		Start:       sup.StartTime,
		End:         sup.EndTime,
		ColorID:     "8", // graphite, visually distinct from the parent event
	}
}
