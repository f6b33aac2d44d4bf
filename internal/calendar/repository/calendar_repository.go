package repository

import (
	"errors"
	"time"

	caldomain "famcal-backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CalendarRepository defines the interface for calendar persistence
type CalendarRepository interface {
	Create(cal *caldomain.Calendar) error
	FindByID(id string) (*caldomain.Calendar, error)
	FindAll() ([]*caldomain.Calendar, error)
	FindByMember(userID string) ([]*caldomain.Calendar, error)
	Update(cal *caldomain.Calendar) error
	Delete(id string) error

	// AcquireSyncLock attempts to set the durable sync-in-progress flag.
	// Returns false when another process already holds it.
	AcquireSyncLock(id string) (bool, error)
	ReleaseSyncLock(id string) error
	SetSyncResult(id, status, syncError string) error
}

type calendarRepository struct {
	db *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) CalendarRepository {
	return &calendarRepository{db: db}
}

func (r *calendarRepository) Create(cal *caldomain.Calendar) error {
	if cal.ID == "" {
		cal.ID = uuid.New().String()
	}
	if cal.SyncStatus == "" {
		cal.SyncStatus = caldomain.SyncStatusNever
	}
	cal.CreatedAt = time.Now()
	cal.UpdatedAt = time.Now()
	return r.db.Create(cal).Error
}

func (r *calendarRepository) FindByID(id string) (*caldomain.Calendar, error) {
	var cal caldomain.Calendar
	err := r.db.Where("id = ?", id).First(&cal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cal, nil
}

func (r *calendarRepository) FindAll() ([]*caldomain.Calendar, error) {
	var cals []*caldomain.Calendar
	err := r.db.Order("created_at ASC").Find(&cals).Error
	return cals, err
}

func (r *calendarRepository) FindByMember(userID string) ([]*caldomain.Calendar, error) {
	var cals []*caldomain.Calendar
	err := r.db.
		Joins("JOIN calendar_members ON calendar_members.calendar_id = calendars.id").
		Where("calendar_members.user_id = ?", userID).
		Order("calendars.created_at ASC").
		Find(&cals).Error
	return cals, err
}

func (r *calendarRepository) Update(cal *caldomain.Calendar) error {
	cal.UpdatedAt = time.Now()
	return r.db.Save(cal).Error
}

func (r *calendarRepository) Delete(id string) error {
	return r.db.Delete(&caldomain.Calendar{}, "id = ?", id).Error
}

// AcquireSyncLock is a single conditional write so two processes can never
// both observe the flag unset.
func (r *calendarRepository) AcquireSyncLock(id string) (bool, error) {
	res := r.db.Model(&caldomain.Calendar{}).
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

func (r *calendarRepository) ReleaseSyncLock(id string) error {
	return r.db.Model(&caldomain.Calendar{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_in_progress": false,
			"updated_at":       time.Now(),
		}).Error
}

func (r *calendarRepository) SetSyncResult(id, status, syncError string) error {
	now := time.Now()
	return r.db.Model(&caldomain.Calendar{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status":    status,
			"sync_error":     syncError,
			"last_synced_at": now,
			"updated_at":     now,
		}).Error
}
