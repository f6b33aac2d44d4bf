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

func conflictFixture(extraEvents ...*caldomain.Event) *fixture {
	cal := &caldomain.Calendar{ID: "cal-1", OwnerID: "alice", Name: "Family", FeedURL: "https://example.com/cal.ics"}
	candidate := &caldomain.Event{
		ID:         "evt-target",
		CalendarID: "cal-1",
		SourceUID:  "uid-target",
		Title:      "Recital",
		StartTime:  time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		Version:    1,
	}
	events := append([]*caldomain.Event{candidate}, extraEvents...)
	f := newFixture([]*caldomain.Calendar{cal}, events, map[string]*authdomain.User{
		"alice": {ID: "alice"},
		"bob":   {ID: "bob"},
	})
	f.addMember("cal-1", "alice", false)
	f.addMember("cal-1", "bob", false)
	return f
}

func TestCheckConflictsWindowBounds(t *testing.T) {
	f := conflictFixture()

	report, err := f.uc.CheckConflicts(context.Background(), "evt-target", "bob")
	require.NoError(t, err)

	// Event 17:00-18:00 widened by 45min travel + 15min lead before and
	// 45min travel after.
	assert.Equal(t, time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC), report.WindowStart)
	assert.Equal(t, time.Date(2026, 3, 1, 18, 45, 0, 0, time.UTC), report.WindowEnd)
	assert.Empty(t, report.Conflicts)
}

func TestCheckConflictsDetectsOverlappingAssignment(t *testing.T) {
	f := conflictFixture(&caldomain.Event{
		ID:         "evt-other",
		CalendarID: "cal-1",
		SourceUID:  "uid-other",
		Title:      "Piano lesson",
		StartTime:  time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC), // inside the return leg
		EndTime:    time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC),
		AssigneeID: strPtr("bob"),
		Version:    1,
	})

	report, err := f.uc.CheckConflicts(context.Background(), "evt-target", "bob")
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, "event", report.Conflicts[0].Kind)
	assert.Equal(t, "evt-other", report.Conflicts[0].ID)
}

func TestCheckConflictsIgnoresEventsOutsideWindow(t *testing.T) {
	f := conflictFixture(&caldomain.Event{
		ID:         "evt-later",
		CalendarID: "cal-1",
		SourceUID:  "uid-later",
		Title:      "Dinner",
		StartTime:  time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC), // starts after window end
		EndTime:    time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		AssigneeID: strPtr("bob"),
		Version:    1,
	})

	report, err := f.uc.CheckConflicts(context.Background(), "evt-target", "bob")
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
}

func TestCheckConflictsIgnoresSkippedAndForeignAssignments(t *testing.T) {
	f := conflictFixture(
		&caldomain.Event{
			ID:         "evt-skipped",
			CalendarID: "cal-1",
			SourceUID:  "uid-skipped",
			StartTime:  time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC),
			EndTime:    time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
			AssigneeID: strPtr("bob"),
			Skipped:    true,
			Version:    1,
		},
		&caldomain.Event{
			ID:         "evt-alice",
			CalendarID: "cal-1",
			SourceUID:  "uid-alice",
			StartTime:  time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC),
			EndTime:    time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
			AssigneeID: strPtr("alice"),
			Version:    1,
		},
	)

	report, err := f.uc.CheckConflicts(context.Background(), "evt-target", "bob")
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
}

func TestCheckConflictsExcludesTheEventItself(t *testing.T) {
	f := conflictFixture()
	// Already assigned to bob; asking again must not report self-overlap.
	f.eventRepo.events["evt-target"].AssigneeID = strPtr("bob")

	report, err := f.uc.CheckConflicts(context.Background(), "evt-target", "bob")
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
}

func TestCheckConflictsRejectsCancelledEvent(t *testing.T) {
	f := conflictFixture()
	f.eventRepo.events["evt-target"].Cancelled = true

	_, err := f.uc.CheckConflicts(context.Background(), "evt-target", "bob")
	var validation caldomain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestCheckConflictsRequiresMembership(t *testing.T) {
	f := conflictFixture()

	_, err := f.uc.CheckConflicts(context.Background(), "evt-target", "mallory")
	assert.ErrorIs(t, err, caldomain.ErrNotMember)
}
