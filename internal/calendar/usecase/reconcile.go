package usecase

import (
	"context"
	"fmt"
	"log"

	caldomain "famcal-backend/internal/calendar/domain"
	"famcal-backend/pkg/icsfeed"
)

// ReconcileResult reports one reconciliation run. Per-item failures land
// in Errors and do not abort the run.
type ReconcileResult struct {
	CalendarID string   `json:"calendar_id"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Deleted    int      `json:"deleted"`
	Errors     []string `json:"errors,omitempty"`
}

// Reconcile fetches the calendar's upstream feed and applies the diff to
// the stored event set. The per-calendar sync flag guarantees only one run
// (and no concurrent assignment propagation) at a time across processes.
func (u *calendarUsecase) Reconcile(ctx context.Context, calendarID string) (*ReconcileResult, error) {
	cal, err := u.calRepo.FindByID(calendarID)
	if err != nil {
		return nil, err
	}
	if cal == nil {
		return nil, caldomain.ErrCalendarNotFound
	}

	acquired, err := u.calRepo.AcquireSyncLock(calendarID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, caldomain.ErrSyncInProgress
	}
	defer func() {
		if err := u.calRepo.ReleaseSyncLock(calendarID); err != nil {
			log.Printf("[Reconcile] failed to release sync lock for %s: %v", calendarID, err)
		}
	}()

	body, err := u.feed.Fetch(ctx, cal.FeedURL)
	if err != nil {
		u.markSyncFailed(calendarID, err)
		return nil, fmt.Errorf("feed fetch: %w", err)
	}

	parsed, err := icsfeed.Parse(body)
	if err != nil {
		u.markSyncFailed(calendarID, err)
		return nil, fmt.Errorf("feed parse: %w", err)
	}
	items := icsfeed.Expand(parsed, icsfeed.DefaultWindow(u.now()))

	stored, err := u.eventRepo.FindByCalendar(calendarID)
	if err != nil {
		u.markSyncFailed(calendarID, err)
		return nil, err
	}

	result := &ReconcileResult{CalendarID: calendarID}

	storedByUID := make(map[string]*caldomain.Event, len(stored))
	for _, event := range stored {
		storedByUID[event.SourceUID] = event
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		seen[item.Key] = true

		existing, ok := storedByUID[item.Key]
		if !ok {
			if err := u.createFromFeed(calendarID, item); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("create %s: %v", item.Key, err))
				continue
			}
			result.Created++
			continue
		}

		if !item.UpdatedAt.After(existing.SourceUpdatedAt) {
			continue
		}

		if err := u.updateFromFeed(ctx, existing, item); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("update %s: %v", item.Key, err))
			continue
		}
		result.Updated++
	}

	// Items that disappeared from the feed are deleted locally. Mirror
	// cleanup is best-effort and runs first; the local delete proceeds
	// regardless of its outcome.
	for _, event := range stored {
		if seen[event.SourceUID] {
			continue
		}
		u.removeEventEverywhere(ctx, event)
		result.Deleted++
	}

	if err := u.calRepo.SetSyncResult(calendarID, caldomain.SyncStatusOK, ""); err != nil {
		log.Printf("[Reconcile] failed to record sync status for %s: %v", calendarID, err)
	}

	log.Printf("[Reconcile] calendar %s: %d created, %d updated, %d deleted, %d errors",
		calendarID, result.Created, result.Updated, result.Deleted, len(result.Errors))

	return result, nil
}

// ReconcileAll runs every calendar in turn; one calendar's failure never
// stops the others.
func (u *calendarUsecase) ReconcileAll(ctx context.Context) []*ReconcileResult {
	cals, err := u.calRepo.FindAll()
	if err != nil {
		log.Printf("[Reconcile] failed to list calendars: %v", err)
		return nil
	}

	results := make([]*ReconcileResult, 0, len(cals))
	for _, cal := range cals {
		result, err := u.Reconcile(ctx, cal.ID)
		if err != nil {
			results = append(results, &ReconcileResult{
				CalendarID: cal.ID,
				Errors:     []string{err.Error()},
			})
			continue
		}
		results = append(results, result)
	}
	return results
}

func (u *calendarUsecase) markSyncFailed(calendarID string, cause error) {
	if err := u.calRepo.SetSyncResult(calendarID, caldomain.SyncStatusError, cause.Error()); err != nil {
		log.Printf("[Reconcile] failed to record sync error for %s: %v", calendarID, err)
	}
}

func (u *calendarUsecase) createFromFeed(calendarID string, item icsfeed.Item) error {
	return u.eventRepo.Create(&caldomain.Event{
		CalendarID:      calendarID,
		SourceUID:       item.Key,
		Title:           item.Title,
		Description:     item.Description,
		Location:        item.Location,
		StartTime:       item.Start,
		EndTime:         item.End,
		AllDay:          item.AllDay,
		Cancelled:       item.Cancelled,
		SourceUpdatedAt: item.UpdatedAt,
	})
}

func (u *calendarUsecase) updateFromFeed(ctx context.Context, event *caldomain.Event, item icsfeed.Item) error {
	becameCancelled := item.Cancelled && !event.Cancelled

	if becameCancelled {
		// Cascade before flipping the flag: a cancelled event keeps no
		// owner, no supplementals and no mirror copies.
		sups, err := u.supRepo.FindByEvent(event.ID)
		if err != nil {
			return err
		}
		if len(sups) > 0 {
			if report := u.mirror.DeleteSupplementalFromMembers(ctx, sups); len(report.Errors) > 0 {
				log.Printf("[Reconcile] supplemental mirror cleanup for %s: %v", event.ID, report.Errors)
			}
			if err := u.supRepo.DeleteByEvent(event.ID); err != nil {
				return err
			}
		}
		if report := u.mirror.DeleteEventFromMembers(ctx, event.ID); len(report.Errors) > 0 {
			log.Printf("[Reconcile] mirror cleanup for %s: %v", event.ID, report.Errors)
		}
	}

	// Location changes invalidate cached coordinates.
	if item.Location != event.Location {
		event.Latitude = nil
		event.Longitude = nil
	}

	event.Title = item.Title
	event.Description = item.Description
	event.Location = item.Location
	event.StartTime = item.Start
	event.EndTime = item.End
	event.AllDay = item.AllDay
	event.Cancelled = item.Cancelled
	event.SourceUpdatedAt = item.UpdatedAt

	if becameCancelled {
		// Clearing the owner is an owner-mutating write, so it bumps the
		// version like any other. The calendar sync lock excludes
		// concurrent assignment calls for the duration of the run.
		event.AssigneeID = nil
		event.Skipped = false
		event.Version++
	}

	return u.eventRepo.Update(event)
}
