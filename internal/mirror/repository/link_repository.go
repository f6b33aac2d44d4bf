package repository

import (
	"errors"
	"time"

	mirrordomain "famcal-backend/internal/mirror/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LinkRepository defines the interface for sync-link persistence
type LinkRepository interface {
	Create(link *mirrordomain.EventSyncLink) error
	FindByUserAndEvent(userID, eventID string) (*mirrordomain.EventSyncLink, error)
	FindByUserAndSupplemental(userID, supplementalID string) (*mirrordomain.EventSyncLink, error)
	ListByEvent(eventID string) ([]*mirrordomain.EventSyncLink, error)
	ListBySupplemental(supplementalID string) ([]*mirrordomain.EventSyncLink, error)
	Delete(id string) error
}

type linkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(link *mirrordomain.EventSyncLink) error {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	link.CreatedAt = time.Now()
	return r.db.Create(link).Error
}

func (r *linkRepository) FindByUserAndEvent(userID, eventID string) (*mirrordomain.EventSyncLink, error) {
	var link mirrordomain.EventSyncLink
	err := r.db.Where("user_id = ? AND event_id = ?", userID, eventID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) FindByUserAndSupplemental(userID, supplementalID string) (*mirrordomain.EventSyncLink, error) {
	var link mirrordomain.EventSyncLink
	err := r.db.Where("user_id = ? AND supplemental_event_id = ?", userID, supplementalID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListByEvent(eventID string) ([]*mirrordomain.EventSyncLink, error) {
	var links []*mirrordomain.EventSyncLink
	err := r.db.Where("event_id = ?", eventID).Find(&links).Error
	return links, err
}

func (r *linkRepository) ListBySupplemental(supplementalID string) ([]*mirrordomain.EventSyncLink, error) {
	var links []*mirrordomain.EventSyncLink
	err := r.db.Where("supplemental_event_id = ?", supplementalID).Find(&links).Error
	return links, err
}

func (r *linkRepository) Delete(id string) error {
	return r.db.Delete(&mirrordomain.EventSyncLink{}, "id = ?", id).Error
}
