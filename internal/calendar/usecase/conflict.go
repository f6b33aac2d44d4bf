package usecase

import (
	"context"
	"time"

	caldomain "famcal-backend/internal/calendar/domain"
)

// Conflict simulation runs before any routing call exists for the candidate,
// so it uses a fixed travel estimate rather than live traffic.
const (
	simulatedTravelTime = 45 * time.Minute
	simulatedEarlyLead  = 15 * time.Minute
)

// Conflict is one overlap between the candidate's simulated commitment
// window and something already on their plate.
type Conflict struct {
	Kind      string    `json:"kind"` // "event" or "supplemental"
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// ConflictReport is the answer to "what happens if this user takes this
// event". An empty Conflicts slice means the assignment is clear.
type ConflictReport struct {
	EventID     string     `json:"event_id"`
	CandidateID string     `json:"candidate_id"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	Conflicts   []Conflict `json:"conflicts"`
}

// CheckConflicts simulates assigning the event to candidateID. The checked
// window widens the event by an outbound leg (travel plus early lead) and a
// return leg, then scans the candidate's assigned events and existing
// supplementals for overlap.
func (u *calendarUsecase) CheckConflicts(ctx context.Context, eventID, candidateID string) (*ConflictReport, error) {
	event, _, err := u.getEventForMember(eventID, candidateID)
	if err != nil {
		return nil, err
	}
	if event.Cancelled {
		return nil, caldomain.ValidationError("cannot assign a cancelled event")
	}

	windowStart := event.StartTime.Add(-(simulatedTravelTime + simulatedEarlyLead))
	windowEnd := event.EndTime.Add(simulatedTravelTime)

	report := &ConflictReport{
		EventID:     eventID,
		CandidateID: candidateID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Conflicts:   []Conflict{},
	}

	assigned, err := u.eventRepo.FindAssignedInRange(candidateID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	for _, other := range assigned {
		if other.ID == eventID {
			continue
		}
		report.Conflicts = append(report.Conflicts, Conflict{
			Kind:      "event",
			ID:        other.ID,
			Title:     other.Title,
			StartTime: other.StartTime,
			EndTime:   other.EndTime,
		})
	}

	sups, err := u.supRepo.FindForUserInRange(candidateID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	for _, sup := range sups {
		if sup.EventID == eventID {
			continue
		}
		report.Conflicts = append(report.Conflicts, Conflict{
			Kind:      "supplemental",
			ID:        sup.ID,
			Title:     sup.Kind,
			StartTime: sup.StartTime,
			EndTime:   sup.EndTime,
		})
	}

	return report, nil
}
