package repository

import (
	"time"

	caldomain "famcal-backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SupplementalRepository persists derived travel/arrival events. The set
// for a parent event is only ever replaced or deleted as a whole.
type SupplementalRepository interface {
	FindByEvent(eventID string) ([]*caldomain.SupplementalEvent, error)
	FindByID(id string) (*caldomain.SupplementalEvent, error)
	ReplaceForEvent(eventID string, items []*caldomain.SupplementalEvent) error
	DeleteByEvent(eventID string) error
	FindForUserInRange(userID string, from, to time.Time) ([]*caldomain.SupplementalEvent, error)
}

type supplementalRepository struct {
	db *gorm.DB
}

func NewSupplementalRepository(db *gorm.DB) SupplementalRepository {
	return &supplementalRepository{db: db}
}

func (r *supplementalRepository) FindByEvent(eventID string) ([]*caldomain.SupplementalEvent, error) {
	var items []*caldomain.SupplementalEvent
	err := r.db.
		Where("event_id = ?", eventID).
		Order("start_time ASC").
		Find(&items).Error
	return items, err
}

func (r *supplementalRepository) FindByID(id string) (*caldomain.SupplementalEvent, error) {
	var item caldomain.SupplementalEvent
	err := r.db.Where("id = ?", id).First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ReplaceForEvent swaps the full supplemental set in one transaction so no
// reader ever observes a partial set.
func (r *supplementalRepository) ReplaceForEvent(eventID string, items []*caldomain.SupplementalEvent) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).Delete(&caldomain.SupplementalEvent{}).Error; err != nil {
			return err
		}
		for _, item := range items {
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			item.EventID = eventID
			item.CreatedAt = time.Now()
			if err := tx.Create(item).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *supplementalRepository) DeleteByEvent(eventID string) error {
	return r.db.Where("event_id = ?", eventID).Delete(&caldomain.SupplementalEvent{}).Error
}

func (r *supplementalRepository) FindForUserInRange(userID string, from, to time.Time) ([]*caldomain.SupplementalEvent, error) {
	var items []*caldomain.SupplementalEvent
	err := r.db.
		Joins("JOIN events ON events.id = supplemental_events.event_id").
		Where("events.assignee_id = ? AND supplemental_events.start_time < ? AND supplemental_events.end_time > ?",
			userID, to, from).
		Order("supplemental_events.start_time ASC").
		Find(&items).Error
	return items, err
}
