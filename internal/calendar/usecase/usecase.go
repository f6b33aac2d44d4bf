package usecase

import (
	"context"
	"time"

	authrepo "famcal-backend/internal/auth/repository"
	caldomain "famcal-backend/internal/calendar/domain"
	"famcal-backend/internal/calendar/repository"
	mirrorusecase "famcal-backend/internal/mirror/usecase"
)

// FeedSource fetches a raw upstream feed payload. Implemented by
// pkg/icsfeed.Fetcher.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]byte, error)
}

// MirrorSync is the external-calendar propagation boundary. Implemented by
// the mirror synchronizer; tests use a fake.
type MirrorSync interface {
	PushEventToMembers(ctx context.Context, event *caldomain.Event, memberIDs []string) *mirrorusecase.SyncReport
	DeleteEventFromMembers(ctx context.Context, eventID string) *mirrorusecase.SyncReport
	PushSupplementalToUsers(ctx context.Context, event *caldomain.Event, items []*caldomain.SupplementalEvent, userIDs []string) *mirrorusecase.SyncReport
	DeleteSupplementalFromMembers(ctx context.Context, items []*caldomain.SupplementalEvent) *mirrorusecase.SyncReport
}

// SupplementalGenerator owns the derived-event lifecycle. Implemented by
// internal/supplemental.Generator.
type SupplementalGenerator interface {
	Generate(ctx context.Context, event *caldomain.Event) ([]*caldomain.SupplementalEvent, error)
	Delete(eventID string) error
}

// Notifier is the push-notification boundary; best effort only.
type Notifier interface {
	EventAssigned(ctx context.Context, event *caldomain.Event, memberIDs []string)
}

// CalendarUsecase is the application service consumed by the HTTP layer.
type CalendarUsecase interface {
	CreateCalendar(ownerID, name, feedURL, color string) (*caldomain.Calendar, error)
	ListCalendars(userID string) ([]*caldomain.Calendar, error)
	GetCalendar(userID, calendarID string) (*caldomain.Calendar, error)
	DeleteCalendar(ctx context.Context, userID, calendarID string) error

	AddMember(callerID, calendarID, userID string) (*caldomain.CalendarMember, error)
	ListMembers(callerID, calendarID string) ([]*caldomain.CalendarMember, error)
	RemoveMember(callerID, calendarID, userID string) error
	SetKeepSupplemental(callerID, calendarID string, keep bool) error

	ListEvents(userID, calendarID string) ([]*caldomain.Event, error)
	GetEvent(userID, eventID string) (*caldomain.Event, error)
	ListSupplemental(userID, eventID string) ([]*caldomain.SupplementalEvent, error)

	Reconcile(ctx context.Context, calendarID string) (*ReconcileResult, error)
	ReconcileAll(ctx context.Context) []*ReconcileResult

	Assign(ctx context.Context, req AssignRequest) (*caldomain.Event, error)
	CheckConflicts(ctx context.Context, eventID, candidateID string) (*ConflictReport, error)
	RegenerateSupplemental(ctx context.Context, callerID, eventID string) ([]*caldomain.SupplementalEvent, error)
}

type calendarUsecase struct {
	calRepo    repository.CalendarRepository
	eventRepo  repository.EventRepository
	supRepo    repository.SupplementalRepository
	memberRepo repository.MemberRepository
	userRepo   authrepo.UserRepository

	feed      FeedSource
	mirror    MirrorSync
	generator SupplementalGenerator
	notifier  Notifier

	now func() time.Time
}

// NewCalendarUsecase creates the calendar application service. notifier may
// be nil when push notifications are not configured.
func NewCalendarUsecase(
	calRepo repository.CalendarRepository,
	eventRepo repository.EventRepository,
	supRepo repository.SupplementalRepository,
	memberRepo repository.MemberRepository,
	userRepo authrepo.UserRepository,
	feed FeedSource,
	mirror MirrorSync,
	generator SupplementalGenerator,
	notifier Notifier,
) CalendarUsecase {
	return &calendarUsecase{
		calRepo:    calRepo,
		eventRepo:  eventRepo,
		supRepo:    supRepo,
		memberRepo: memberRepo,
		userRepo:   userRepo,
		feed:       feed,
		mirror:     mirror,
		generator:  generator,
		notifier:   notifier,
		now:        time.Now,
	}
}

func (u *calendarUsecase) requireMember(calendarID, userID string) error {
	ok, err := u.memberRepo.IsMember(calendarID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return caldomain.ErrNotMember
	}
	return nil
}

func (u *calendarUsecase) getEventForMember(eventID, userID string) (*caldomain.Event, *caldomain.Calendar, error) {
	event, err := u.eventRepo.FindByID(eventID)
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return nil, nil, caldomain.ErrEventNotFound
	}

	cal, err := u.calRepo.FindByID(event.CalendarID)
	if err != nil {
		return nil, nil, err
	}
	if cal == nil {
		return nil, nil, caldomain.ErrCalendarNotFound
	}

	if err := u.requireMember(cal.ID, userID); err != nil {
		return nil, nil, err
	}

	return event, cal, nil
}
