package usecase

import (
	"context"
	"testing"
	"time"

	authdomain "famcal-backend/internal/auth/domain"
	caldomain "famcal-backend/internal/calendar/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func assignFixture() *fixture {
	cal := &caldomain.Calendar{ID: "cal-1", OwnerID: "alice", Name: "Family", FeedURL: "https://example.com/cal.ics"}
	event := &caldomain.Event{
		ID:         "evt-1",
		CalendarID: "cal-1",
		SourceUID:  "uid-1",
		Title:      "Soccer practice",
		StartTime:  time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC),
		Version:    1,
	}
	f := newFixture(
		[]*caldomain.Calendar{cal},
		[]*caldomain.Event{event},
		map[string]*authdomain.User{
			"alice": {ID: "alice", Name: "Alice"},
			"bob":   {ID: "bob", Name: "Bob"},
		},
	)
	f.addMember("cal-1", "alice", false)
	f.addMember("cal-1", "bob", false)
	return f
}

func TestAssignIncrementsVersion(t *testing.T) {
	f := assignFixture()

	updated, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:         "evt-1",
		CallerID:        "alice",
		AssigneeID:      strPtr("bob"),
		ExpectedVersion: intPtr(1),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "bob", *updated.AssigneeID)
}

func TestAssignStaleVersionLosesWithSnapshot(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:         "evt-1",
		CallerID:        "alice",
		AssigneeID:      strPtr("bob"),
		ExpectedVersion: intPtr(1),
	})
	require.NoError(t, err)

	// Second writer still believes version 1.
	_, err = f.uc.Assign(context.Background(), AssignRequest{
		EventID:         "evt-1",
		CallerID:        "alice",
		AssigneeID:      strPtr("alice"),
		ExpectedVersion: intPtr(1),
	})
	require.Error(t, err)

	var conflict *caldomain.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.ExpectedVersion)
	assert.Equal(t, 2, conflict.ActualVersion)
	require.NotNil(t, conflict.Current)
	assert.Equal(t, "bob", *conflict.Current.AssigneeID)

	// The losing write changed nothing.
	current, err := f.eventRepo.FindByID("evt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
	assert.Equal(t, "bob", *current.AssigneeID)
}

func TestAssignConcurrentWritersExactlyOneWins(t *testing.T) {
	f := assignFixture()

	results := make(chan error, 2)
	for _, assignee := range []string{"alice", "bob"} {
		go func(assignee string) {
			_, err := f.uc.Assign(context.Background(), AssignRequest{
				EventID:         "evt-1",
				CallerID:        assignee,
				AssigneeID:      strPtr(assignee),
				ExpectedVersion: intPtr(1),
			})
			results <- err
		}(assignee)
	}

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			var conflict *caldomain.ConcurrentModificationError
			require.ErrorAs(t, err, &conflict)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	current, err := f.eventRepo.FindByID("evt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
}

func TestAssignWithoutExpectedVersionIsUnconditional(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
	})
	require.NoError(t, err)

	updated, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)
	assert.Equal(t, "alice", *updated.AssigneeID)
}

func TestAssignRejectsNonMemberAssignee(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("mallory"),
	})
	var validation caldomain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestAssignRejectsNonMemberCaller(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "mallory",
		AssigneeID: strPtr("bob"),
	})
	assert.ErrorIs(t, err, caldomain.ErrNotMember)
}

func TestAssignRejectsCancelledEvent(t *testing.T) {
	f := assignFixture()
	f.eventRepo.events["evt-1"].Cancelled = true

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
	})
	var validation caldomain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestAssignRejectsDuringCalendarSync(t *testing.T) {
	f := assignFixture()
	f.calRepo.calendars["cal-1"].SyncInProgress = true

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
	})
	assert.ErrorIs(t, err, caldomain.ErrSyncInProgress)
}

func TestAssignRejectsSkipWithAssignee(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
		Skip:       true,
	})
	var validation caldomain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestAssignPropagatesMirrorAndSupplemental(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
	})
	require.NoError(t, err)

	assert.Contains(t, f.mirror.pushedEvents, "evt-1")
	assert.Contains(t, f.generator.generated, "evt-1")
	require.Len(t, f.mirror.pushedSupFor, 1)
	assert.Equal(t, []string{"bob"}, f.mirror.pushedSupFor[0])
	assert.Contains(t, f.notifier.events, "evt-1")

	// Propagation releases the event sync flag when done.
	current, _ := f.eventRepo.FindByID("evt-1")
	assert.False(t, current.SyncInProgress)
}

func TestAssignPushesSupplementalToOptedInViewers(t *testing.T) {
	f := assignFixture()
	f.addMember("cal-1", "carol", true)
	f.users.users["carol"] = &authdomain.User{ID: "carol"}

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
	})
	require.NoError(t, err)

	require.Len(t, f.mirror.pushedSupFor, 1)
	assert.ElementsMatch(t, []string{"bob", "carol"}, f.mirror.pushedSupFor[0])
}

func TestAssignSurvivesGenerationFailure(t *testing.T) {
	f := assignFixture()
	f.generator.err = caldomain.ValidationError("assignee has no home coordinates configured")

	updated, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", *updated.AssigneeID)
	assert.Empty(t, f.mirror.pushedSupFor)
	// The mirror push of the parent event still happened.
	assert.Contains(t, f.mirror.pushedEvents, "evt-1")
}

func TestUnassignClearsOwnerAndSupplemental(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
	})
	require.NoError(t, err)
	sups, _ := f.supRepo.FindByEvent("evt-1")
	require.NotEmpty(t, sups)

	updated, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:  "evt-1",
		CallerID: "alice",
	})
	require.NoError(t, err)
	assert.Nil(t, updated.AssigneeID)
	assert.Equal(t, 3, updated.Version)

	// Old supplementals were deleted and no new ones generated.
	assert.Contains(t, f.generator.deleted, "evt-1")
	assert.Equal(t, 1, f.mirror.deletedSupCalls)

	// Members hear about the unassignment too.
	assert.Len(t, f.notifier.events, 2)
}

func TestSkipMarksEventAndGeneratesNothing(t *testing.T) {
	f := assignFixture()

	updated, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:  "evt-1",
		CallerID: "alice",
		Skip:     true,
	})
	require.NoError(t, err)
	assert.True(t, updated.Skipped)
	assert.Empty(t, f.generator.generated)
	assert.Empty(t, f.notifier.events)
}

func TestRegenerateSupplementalRequiresAssignee(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.RegenerateSupplemental(context.Background(), "alice", "evt-1")
	var validation caldomain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestRegenerateSupplementalReplacesSet(t *testing.T) {
	f := assignFixture()

	_, err := f.uc.Assign(context.Background(), AssignRequest{
		EventID:    "evt-1",
		CallerID:   "alice",
		AssigneeID: strPtr("bob"),
	})
	require.NoError(t, err)

	items, err := f.uc.RegenerateSupplemental(context.Background(), "bob", "evt-1")
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 1, f.mirror.deletedSupCalls)
	require.Len(t, f.mirror.pushedSupFor, 2)
}
