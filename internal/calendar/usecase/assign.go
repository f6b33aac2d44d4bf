package usecase

import (
	"context"
	"log"

	caldomain "famcal-backend/internal/calendar/domain"
)

// AssignRequest mutates an event's ownership. AssigneeID nil with Skip
// false clears the owner; Skip true marks the event as needing nobody.
// ExpectedVersion nil means unconditional (admin override).
type AssignRequest struct {
	EventID         string
	CallerID        string
	AssigneeID      *string
	Skip            bool
	ExpectedVersion *int
}

// Assign applies an ownership change under optimistic concurrency and then
// propagates it: mirrors for every member, supplementals for the new owner.
// Propagation failures never roll back the committed assignment.
func (u *calendarUsecase) Assign(ctx context.Context, req AssignRequest) (*caldomain.Event, error) {
	event, cal, err := u.getEventForMember(req.EventID, req.CallerID)
	if err != nil {
		return nil, err
	}

	if event.Cancelled {
		return nil, caldomain.ValidationError("cannot assign a cancelled event")
	}
	if cal.SyncInProgress || event.SyncInProgress {
		return nil, caldomain.ErrSyncInProgress
	}
	if req.Skip && req.AssigneeID != nil {
		return nil, caldomain.ValidationError("an event cannot be both skipped and assigned")
	}
	if req.AssigneeID != nil {
		ok, err := u.memberRepo.IsMember(cal.ID, *req.AssigneeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, caldomain.ValidationError("assignee is not a calendar member")
		}
	}

	updated, err := u.eventRepo.UpdateAssignment(req.EventID, req.AssigneeID, req.Skip, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	u.propagateAssignment(ctx, updated, cal)

	return updated, nil
}

// propagateAssignment pushes the committed state outward. It runs under the
// per-event sync flag so overlapping assignment calls do not interleave
// their external writes; if the flag is held, propagation is skipped and
// the holder's run will push the newer state anyway.
func (u *calendarUsecase) propagateAssignment(ctx context.Context, event *caldomain.Event, cal *caldomain.Calendar) {
	acquired, err := u.eventRepo.AcquireSyncLock(event.ID)
	if err != nil {
		log.Printf("[Assign] failed to acquire sync flag for event %s: %v", event.ID, err)
		return
	}
	if !acquired {
		log.Printf("[Assign] event %s already propagating, skipping", event.ID)
		return
	}
	defer func() {
		if err := u.eventRepo.ReleaseSyncLock(event.ID); err != nil {
			log.Printf("[Assign] failed to release sync flag for event %s: %v", event.ID, err)
		}
	}()

	memberIDs, err := u.memberRepo.ListMemberIDs(cal.ID)
	if err != nil {
		log.Printf("[Assign] failed to list members of %s: %v", cal.ID, err)
		return
	}

	if report := u.mirror.PushEventToMembers(ctx, event, memberIDs); len(report.Errors) > 0 {
		log.Printf("[Assign] mirror push for event %s: %v", event.ID, report.Errors)
	}

	// The old owner's supplementals are stale the moment ownership moves.
	old, err := u.supRepo.FindByEvent(event.ID)
	if err != nil {
		log.Printf("[Assign] failed to load supplementals for %s: %v", event.ID, err)
	} else if len(old) > 0 {
		if report := u.mirror.DeleteSupplementalFromMembers(ctx, old); len(report.Errors) > 0 {
			log.Printf("[Assign] supplemental mirror cleanup for %s: %v", event.ID, report.Errors)
		}
		if err := u.generator.Delete(event.ID); err != nil {
			log.Printf("[Assign] failed to delete supplementals for %s: %v", event.ID, err)
		}
	}

	if event.Assigned() {
		items, err := u.generator.Generate(ctx, event)
		if err != nil {
			// The assignment stands even when travel planning fails; the
			// owner can regenerate later.
			log.Printf("[Assign] supplemental generation for %s failed: %v", event.ID, err)
		} else {
			u.pushSupplemental(ctx, event, cal, items)
		}
	}

	// Both assignment and unassignment are worth telling members about;
	// skipping an event is a quiet state change.
	if u.notifier != nil && !event.Skipped && !event.Cancelled {
		u.notifier.EventAssigned(ctx, event, memberIDs)
	}
}

// pushSupplemental mirrors the supplemental set to the assignee plus any
// member who opted into seeing others' travel blocks.
func (u *calendarUsecase) pushSupplemental(ctx context.Context, event *caldomain.Event, cal *caldomain.Calendar, items []*caldomain.SupplementalEvent) {
	viewers, err := u.memberRepo.ListSupplementalViewerIDs(cal.ID)
	if err != nil {
		log.Printf("[Assign] failed to list supplemental viewers for %s: %v", cal.ID, err)
		viewers = nil
	}

	targets := make([]string, 0, len(viewers)+1)
	seen := make(map[string]bool, len(viewers)+1)
	if event.AssigneeID != nil {
		targets = append(targets, *event.AssigneeID)
		seen[*event.AssigneeID] = true
	}
	for _, id := range viewers {
		if !seen[id] {
			targets = append(targets, id)
			seen[id] = true
		}
	}

	if report := u.mirror.PushSupplementalToUsers(ctx, event, items, targets); len(report.Errors) > 0 {
		log.Printf("[Assign] supplemental mirror push for %s: %v", event.ID, report.Errors)
	}
}

// RegenerateSupplemental recomputes the travel triple for an assigned event
// on demand, e.g. after the owner updates their home address.
func (u *calendarUsecase) RegenerateSupplemental(ctx context.Context, callerID, eventID string) ([]*caldomain.SupplementalEvent, error) {
	event, cal, err := u.getEventForMember(eventID, callerID)
	if err != nil {
		return nil, err
	}
	if !event.Assigned() {
		return nil, caldomain.ValidationError("event has no assignee")
	}
	if cal.SyncInProgress || event.SyncInProgress {
		return nil, caldomain.ErrSyncInProgress
	}

	old, err := u.supRepo.FindByEvent(event.ID)
	if err != nil {
		return nil, err
	}
	if len(old) > 0 {
		if report := u.mirror.DeleteSupplementalFromMembers(ctx, old); len(report.Errors) > 0 {
			log.Printf("[Assign] supplemental mirror cleanup for %s: %v", event.ID, report.Errors)
		}
	}

	items, err := u.generator.Generate(ctx, event)
	if err != nil {
		return nil, err
	}

	u.pushSupplemental(ctx, event, cal, items)

	return items, nil
}
