package usecase

import (
	"context"
	"errors"
	"log"

	caldomain "famcal-backend/internal/calendar/domain"
	"famcal-backend/pkg/icsfeed"
)

func (u *calendarUsecase) CreateCalendar(ownerID, name, feedURL, color string) (*caldomain.Calendar, error) {
	if name == "" {
		return nil, errors.New("calendar name is required")
	}
	if err := icsfeed.CheckFeedURL(feedURL); err != nil {
		return nil, err
	}

	cal := &caldomain.Calendar{
		OwnerID: ownerID,
		Name:    name,
		FeedURL: feedURL,
		Color:   color,
	}
	if err := u.calRepo.Create(cal); err != nil {
		return nil, err
	}

	// The creator is always a member; mirrors go to members only.
	member := &caldomain.CalendarMember{
		CalendarID: cal.ID,
		UserID:     ownerID,
		Role:       "owner",
	}
	if err := u.memberRepo.Add(member); err != nil {
		return nil, err
	}

	return cal, nil
}

func (u *calendarUsecase) ListCalendars(userID string) ([]*caldomain.Calendar, error) {
	return u.calRepo.FindByMember(userID)
}

func (u *calendarUsecase) GetCalendar(userID, calendarID string) (*caldomain.Calendar, error) {
	cal, err := u.calRepo.FindByID(calendarID)
	if err != nil {
		return nil, err
	}
	if cal == nil {
		return nil, caldomain.ErrCalendarNotFound
	}
	if err := u.requireMember(calendarID, userID); err != nil {
		return nil, err
	}
	return cal, nil
}

// DeleteCalendar removes the calendar with all its events. Mirror copies
// are cleaned up best-effort first; local deletion proceeds regardless
// since the local store is authoritative.
func (u *calendarUsecase) DeleteCalendar(ctx context.Context, userID, calendarID string) error {
	cal, err := u.calRepo.FindByID(calendarID)
	if err != nil {
		return err
	}
	if cal == nil {
		return caldomain.ErrCalendarNotFound
	}
	if cal.OwnerID != userID {
		return caldomain.ErrNotMember
	}

	events, err := u.eventRepo.FindByCalendar(calendarID)
	if err != nil {
		return err
	}

	for _, event := range events {
		u.removeEventEverywhere(ctx, event)
	}

	members, err := u.memberRepo.ListMembers(calendarID)
	if err == nil {
		for _, m := range members {
			if err := u.memberRepo.Remove(calendarID, m.UserID); err != nil {
				log.Printf("[Calendar] failed to remove member %s: %v", m.UserID, err)
			}
		}
	}

	return u.calRepo.Delete(calendarID)
}

// removeEventEverywhere deletes an event's mirror copies, supplementals
// and finally the local row. Mirror failures are logged, never fatal.
func (u *calendarUsecase) removeEventEverywhere(ctx context.Context, event *caldomain.Event) {
	sups, err := u.supRepo.FindByEvent(event.ID)
	if err == nil && len(sups) > 0 {
		if report := u.mirror.DeleteSupplementalFromMembers(ctx, sups); len(report.Errors) > 0 {
			log.Printf("[Calendar] supplemental mirror cleanup for event %s: %v", event.ID, report.Errors)
		}
	}
	if err := u.supRepo.DeleteByEvent(event.ID); err != nil {
		log.Printf("[Calendar] failed to delete supplementals for event %s: %v", event.ID, err)
	}

	if report := u.mirror.DeleteEventFromMembers(ctx, event.ID); len(report.Errors) > 0 {
		log.Printf("[Calendar] mirror cleanup for event %s: %v", event.ID, report.Errors)
	}

	if err := u.eventRepo.Delete(event.ID); err != nil {
		log.Printf("[Calendar] failed to delete event %s: %v", event.ID, err)
	}
}

func (u *calendarUsecase) AddMember(callerID, calendarID, userID string) (*caldomain.CalendarMember, error) {
	if err := u.requireMember(calendarID, callerID); err != nil {
		return nil, err
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	already, err := u.memberRepo.IsMember(calendarID, userID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, errors.New("user is already a member")
	}

	member := &caldomain.CalendarMember{
		CalendarID: calendarID,
		UserID:     userID,
	}
	if err := u.memberRepo.Add(member); err != nil {
		return nil, err
	}
	return member, nil
}

func (u *calendarUsecase) ListMembers(callerID, calendarID string) ([]*caldomain.CalendarMember, error) {
	if err := u.requireMember(calendarID, callerID); err != nil {
		return nil, err
	}
	return u.memberRepo.ListMembers(calendarID)
}

func (u *calendarUsecase) RemoveMember(callerID, calendarID, userID string) error {
	cal, err := u.calRepo.FindByID(calendarID)
	if err != nil {
		return err
	}
	if cal == nil {
		return caldomain.ErrCalendarNotFound
	}
	// Members may leave; only the owner removes others.
	if callerID != userID && cal.OwnerID != callerID {
		return caldomain.ErrNotMember
	}
	return u.memberRepo.Remove(calendarID, userID)
}

func (u *calendarUsecase) SetKeepSupplemental(callerID, calendarID string, keep bool) error {
	if err := u.requireMember(calendarID, callerID); err != nil {
		return err
	}
	return u.memberRepo.SetKeepSupplemental(calendarID, callerID, keep)
}

func (u *calendarUsecase) ListEvents(userID, calendarID string) ([]*caldomain.Event, error) {
	if err := u.requireMember(calendarID, userID); err != nil {
		return nil, err
	}
	return u.eventRepo.FindByCalendar(calendarID)
}

func (u *calendarUsecase) GetEvent(userID, eventID string) (*caldomain.Event, error) {
	event, _, err := u.getEventForMember(eventID, userID)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (u *calendarUsecase) ListSupplemental(userID, eventID string) ([]*caldomain.SupplementalEvent, error) {
	event, _, err := u.getEventForMember(eventID, userID)
	if err != nil {
		return nil, err
	}
	return u.supRepo.FindByEvent(event.ID)
}
