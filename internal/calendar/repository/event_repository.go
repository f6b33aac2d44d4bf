package repository

import (
	"errors"
	"time"

	caldomain "famcal-backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	Create(event *caldomain.Event) error
	Update(event *caldomain.Event) error
	Delete(id string) error
	FindByID(id string) (*caldomain.Event, error)
	FindByCalendar(calendarID string) ([]*caldomain.Event, error)
	FindAssignedInRange(userID string, from, to time.Time) ([]*caldomain.Event, error)
	UpdateCoordinates(id string, lat, lng float64) error

	// UpdateAssignment performs the optimistic-locking owner mutation as a
	// single conditional write: the version check and the increment happen
	// in one UPDATE statement. A stale expectedVersion yields
	// *domain.ConcurrentModificationError carrying the current row.
	UpdateAssignment(id string, assigneeID *string, skipped bool, expectedVersion *int) (*caldomain.Event, error)

	AcquireSyncLock(id string) (bool, error)
	ReleaseSyncLock(id string) error
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(event *caldomain.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()
	return r.db.Create(event).Error
}

func (r *eventRepository) Update(event *caldomain.Event) error {
	event.UpdatedAt = time.Now()
	return r.db.Save(event).Error
}

func (r *eventRepository) Delete(id string) error {
	return r.db.Delete(&caldomain.Event{}, "id = ?", id).Error
}

func (r *eventRepository) FindByID(id string) (*caldomain.Event, error) {
	var event caldomain.Event
	err := r.db.Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) FindByCalendar(calendarID string) ([]*caldomain.Event, error) {
	var events []*caldomain.Event
	err := r.db.
		Where("calendar_id = ?", calendarID).
		Order("start_time ASC").
		Find(&events).Error
	return events, err
}

func (r *eventRepository) FindAssignedInRange(userID string, from, to time.Time) ([]*caldomain.Event, error) {
	var events []*caldomain.Event
	err := r.db.
		Where("assignee_id = ? AND skipped = ? AND cancelled = ? AND start_time < ? AND end_time > ?",
			userID, false, false, to, from).
		Order("start_time ASC").
		Find(&events).Error
	return events, err
}

func (r *eventRepository) UpdateCoordinates(id string, lat, lng float64) error {
	return r.db.Model(&caldomain.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"latitude":   lat,
			"longitude":  lng,
			"updated_at": time.Now(),
		}).Error
}

func (r *eventRepository) UpdateAssignment(id string, assigneeID *string, skipped bool, expectedVersion *int) (*caldomain.Event, error) {
	query := r.db.Model(&caldomain.Event{}).Where("id = ?", id)
	if expectedVersion != nil {
		query = query.Where("version = ?", *expectedVersion)
	}

	res := query.Updates(map[string]interface{}{
		"assignee_id": assigneeID,
		"skipped":     skipped,
		"version":     gorm.Expr("version + 1"),
		"updated_at":  time.Now(),
	})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		current, err := r.FindByID(id)
		if err != nil {
			return nil, err
		}
		if current == nil || expectedVersion == nil {
			return nil, caldomain.ErrEventNotFound
		}
		// Row exists, so the version predicate is what filtered it out.
		return nil, &caldomain.ConcurrentModificationError{
			ExpectedVersion: *expectedVersion,
			ActualVersion:   current.Version,
			Current:         current,
		}
	}

	updated, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, caldomain.ErrEventNotFound
	}
	return updated, nil
}

func (r *eventRepository) AcquireSyncLock(id string) (bool, error) {
	res := r.db.Model(&caldomain.Event{}).
		Where("id = ? AND sync_in_progress = ?", id, false).
		Updates(map[string]interface{}{
			"sync_in_progress": true,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *eventRepository) ReleaseSyncLock(id string) error {
	return r.db.Model(&caldomain.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_in_progress": false,
			"updated_at":       time.Now(),
		}).Error
}
