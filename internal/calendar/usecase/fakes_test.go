package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	authdomain "famcal-backend/internal/auth/domain"
	caldomain "famcal-backend/internal/calendar/domain"
	mirrorusecase "famcal-backend/internal/mirror/usecase"
)

// In-memory doubles for the repository and service boundaries. They mimic
// the semantics the real gorm implementations provide, including the
// conditional version check on assignment writes.

type memCalendarRepo struct {
	mu        sync.Mutex
	calendars map[string]*caldomain.Calendar
}

func newMemCalendarRepo(cals ...*caldomain.Calendar) *memCalendarRepo {
	r := &memCalendarRepo{calendars: make(map[string]*caldomain.Calendar)}
	for _, c := range cals {
		r.calendars[c.ID] = c
	}
	return r
}

func (r *memCalendarRepo) Create(cal *caldomain.Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cal.ID == "" {
		cal.ID = "cal-" + time.Now().Format("150405.000000000")
	}
	r.calendars[cal.ID] = cal
	return nil
}

func (r *memCalendarRepo) FindByID(id string) (*caldomain.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calendars[id], nil
}

func (r *memCalendarRepo) FindAll() ([]*caldomain.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*caldomain.Calendar, 0, len(r.calendars))
	for _, c := range r.calendars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCalendarRepo) FindByMember(userID string) ([]*caldomain.Calendar, error) {
	return r.FindAll()
}

func (r *memCalendarRepo) Update(cal *caldomain.Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calendars[cal.ID] = cal
	return nil
}

func (r *memCalendarRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calendars, id)
	return nil
}

func (r *memCalendarRepo) AcquireSyncLock(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal, ok := r.calendars[id]
	if !ok || cal.SyncInProgress {
		return false, nil
	}
	cal.SyncInProgress = true
	return true, nil
}

func (r *memCalendarRepo) ReleaseSyncLock(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cal, ok := r.calendars[id]; ok {
		cal.SyncInProgress = false
	}
	return nil
}

func (r *memCalendarRepo) SetSyncResult(id, status, syncError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cal, ok := r.calendars[id]; ok {
		cal.SyncStatus = status
		cal.SyncError = syncError
		now := time.Now()
		cal.LastSyncedAt = &now
	}
	return nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events map[string]*caldomain.Event
	nextID int
}

func newMemEventRepo(events ...*caldomain.Event) *memEventRepo {
	r := &memEventRepo{events: make(map[string]*caldomain.Event)}
	for _, e := range events {
		if e.Version == 0 {
			e.Version = 1
		}
		r.events[e.ID] = e
	}
	return r
}

func (r *memEventRepo) Create(event *caldomain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		r.nextID++
		event.ID = "evt-gen-" + string(rune('a'+r.nextID))
	}
	if event.Version == 0 {
		event.Version = 1
	}
	r.events[event.ID] = event
	return nil
}

func (r *memEventRepo) Update(event *caldomain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
	return nil
}

func (r *memEventRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, id)
	return nil
}

func (r *memEventRepo) FindByID(id string) (*caldomain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		copy := *e
		return &copy, nil
	}
	return nil, nil
}

func (r *memEventRepo) FindByCalendar(calendarID string) ([]*caldomain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*caldomain.Event
	for _, e := range r.events {
		if e.CalendarID == calendarID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memEventRepo) FindAssignedInRange(userID string, from, to time.Time) ([]*caldomain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*caldomain.Event
	for _, e := range r.events {
		if e.AssigneeID == nil || *e.AssigneeID != userID || e.Skipped || e.Cancelled {
			continue
		}
		if e.StartTime.Before(to) && e.EndTime.After(from) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memEventRepo) UpdateCoordinates(id string, lat, lng float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		e.Latitude = &lat
		e.Longitude = &lng
	}
	return nil
}

func (r *memEventRepo) UpdateAssignment(id string, assigneeID *string, skipped bool, expectedVersion *int) (*caldomain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return nil, caldomain.ErrEventNotFound
	}
	if expectedVersion != nil && e.Version != *expectedVersion {
		current := *e
		return nil, &caldomain.ConcurrentModificationError{
			ExpectedVersion: *expectedVersion,
			ActualVersion:   e.Version,
			Current:         &current,
		}
	}

	e.AssigneeID = assigneeID
	e.Skipped = skipped
	e.Version++
	updated := *e
	return &updated, nil
}

func (r *memEventRepo) AcquireSyncLock(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.SyncInProgress {
		return false, nil
	}
	e.SyncInProgress = true
	return true, nil
}

func (r *memEventRepo) ReleaseSyncLock(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		e.SyncInProgress = false
	}
	return nil
}

type memSupRepo struct {
	mu   sync.Mutex
	sets map[string][]*caldomain.SupplementalEvent
}

func newMemSupRepo() *memSupRepo {
	return &memSupRepo{sets: make(map[string][]*caldomain.SupplementalEvent)}
}

func (r *memSupRepo) FindByEvent(eventID string) ([]*caldomain.SupplementalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sets[eventID], nil
}

func (r *memSupRepo) FindByID(id string) (*caldomain.SupplementalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range r.sets {
		for _, s := range set {
			if s.ID == id {
				return s, nil
			}
		}
	}
	return nil, nil
}

func (r *memSupRepo) ReplaceForEvent(eventID string, items []*caldomain.SupplementalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[eventID] = items
	return nil
}

func (r *memSupRepo) DeleteByEvent(eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, eventID)
	return nil
}

func (r *memSupRepo) FindForUserInRange(userID string, from, to time.Time) ([]*caldomain.SupplementalEvent, error) {
	return nil, nil
}

type memMemberRepo struct {
	mu      sync.Mutex
	members map[string][]*caldomain.CalendarMember
}

func newMemMemberRepo() *memMemberRepo {
	return &memMemberRepo{members: make(map[string][]*caldomain.CalendarMember)}
}

func (r *memMemberRepo) Add(member *caldomain.CalendarMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[member.CalendarID] = append(r.members[member.CalendarID], member)
	return nil
}

func (r *memMemberRepo) Remove(calendarID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.members[calendarID][:0]
	for _, m := range r.members[calendarID] {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	r.members[calendarID] = kept
	return nil
}

func (r *memMemberRepo) ListMembers(calendarID string) ([]*caldomain.CalendarMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*caldomain.CalendarMember(nil), r.members[calendarID]...), nil
}

func (r *memMemberRepo) ListMemberIDs(calendarID string) ([]string, error) {
	members, _ := r.ListMembers(calendarID)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (r *memMemberRepo) ListSupplementalViewerIDs(calendarID string) ([]string, error) {
	members, _ := r.ListMembers(calendarID)
	var ids []string
	for _, m := range members {
		if m.KeepSupplemental {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}

func (r *memMemberRepo) IsMember(calendarID, userID string) (bool, error) {
	members, _ := r.ListMembers(calendarID)
	for _, m := range members {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memMemberRepo) SetKeepSupplemental(calendarID, userID string, keep bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members[calendarID] {
		if m.UserID == userID {
			m.KeepSupplemental = keep
		}
	}
	return nil
}

type memUserRepo struct {
	users map[string]*authdomain.User
}

func (r *memUserRepo) Create(*authdomain.User) error { return nil }
func (r *memUserRepo) FindByEmail(string) (*authdomain.User, error) {
	return nil, nil
}
func (r *memUserRepo) FindByID(id string) (*authdomain.User, error) {
	return r.users[id], nil
}
func (r *memUserRepo) FindByIDs(ids []string) ([]*authdomain.User, error) {
	var out []*authdomain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
func (r *memUserRepo) Update(*authdomain.User) error                   { return nil }
func (r *memUserRepo) SaveRefreshToken(*authdomain.RefreshToken) error { return nil }
func (r *memUserRepo) FindRefreshToken(string) (*authdomain.RefreshToken, error) {
	return nil, nil
}
func (r *memUserRepo) DeleteRefreshToken(string) error { return nil }

// stubFeed returns a canned feed body.
type stubFeed struct {
	body []byte
	err  error
}

func (s *stubFeed) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	return s.body, s.err
}

// recordingMirror counts calls instead of talking to Google.
type recordingMirror struct {
	mu              sync.Mutex
	pushedEvents    []string
	deletedEvents   []string
	pushedSupFor    [][]string
	deletedSupCalls int
}

func (m *recordingMirror) PushEventToMembers(ctx context.Context, event *caldomain.Event, memberIDs []string) *mirrorusecase.SyncReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushedEvents = append(m.pushedEvents, event.ID)
	return &mirrorusecase.SyncReport{Pushed: len(memberIDs)}
}

func (m *recordingMirror) DeleteEventFromMembers(ctx context.Context, eventID string) *mirrorusecase.SyncReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedEvents = append(m.deletedEvents, eventID)
	return &mirrorusecase.SyncReport{}
}

func (m *recordingMirror) PushSupplementalToUsers(ctx context.Context, event *caldomain.Event, items []*caldomain.SupplementalEvent, userIDs []string) *mirrorusecase.SyncReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushedSupFor = append(m.pushedSupFor, userIDs)
	return &mirrorusecase.SyncReport{Pushed: len(userIDs) * len(items)}
}

func (m *recordingMirror) DeleteSupplementalFromMembers(ctx context.Context, items []*caldomain.SupplementalEvent) *mirrorusecase.SyncReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedSupCalls++
	return &mirrorusecase.SyncReport{}
}

// stubGenerator fabricates a supplemental triple without routing. Like the
// real generator it stores the set through the supplemental repository.
type stubGenerator struct {
	mu        sync.Mutex
	supRepo   *memSupRepo
	generated []string
	deleted   []string
	err       error
}

func (g *stubGenerator) Generate(ctx context.Context, event *caldomain.Event) ([]*caldomain.SupplementalEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.generated = append(g.generated, event.ID)
	triple := []*caldomain.SupplementalEvent{
		{ID: event.ID + "-out", EventID: event.ID, Kind: caldomain.SupplementalTravelOut},
		{ID: event.ID + "-early", EventID: event.ID, Kind: caldomain.SupplementalEarlyArrival},
		{ID: event.ID + "-home", EventID: event.ID, Kind: caldomain.SupplementalTravelHome},
	}
	if err := g.supRepo.ReplaceForEvent(event.ID, triple); err != nil {
		return nil, err
	}
	return triple, nil
}

func (g *stubGenerator) Delete(eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, eventID)
	return g.supRepo.DeleteByEvent(eventID)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) EventAssigned(ctx context.Context, event *caldomain.Event, memberIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event.ID)
}

// fixture bundles a fully wired usecase over in-memory doubles.
type fixture struct {
	uc        CalendarUsecase
	calRepo   *memCalendarRepo
	eventRepo *memEventRepo
	supRepo   *memSupRepo
	members   *memMemberRepo
	users     *memUserRepo
	feed      *stubFeed
	mirror    *recordingMirror
	generator *stubGenerator
	notifier  *recordingNotifier
}

func newFixture(cals []*caldomain.Calendar, events []*caldomain.Event, users map[string]*authdomain.User) *fixture {
	supRepo := newMemSupRepo()
	f := &fixture{
		calRepo:   newMemCalendarRepo(cals...),
		eventRepo: newMemEventRepo(events...),
		supRepo:   supRepo,
		members:   newMemMemberRepo(),
		users:     &memUserRepo{users: users},
		feed:      &stubFeed{},
		mirror:    &recordingMirror{},
		generator: &stubGenerator{supRepo: supRepo},
		notifier:  &recordingNotifier{},
	}
	f.uc = NewCalendarUsecase(f.calRepo, f.eventRepo, f.supRepo, f.members, f.users,
		f.feed, f.mirror, f.generator, f.notifier)
	// Pin the clock so recurrence expansion windows are deterministic.
	f.uc.(*calendarUsecase).now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *fixture) addMember(calendarID, userID string, keepSupplemental bool) {
	_ = f.members.Add(&caldomain.CalendarMember{
		CalendarID:       calendarID,
		UserID:           userID,
		KeepSupplemental: keepSupplemental,
	})
}
