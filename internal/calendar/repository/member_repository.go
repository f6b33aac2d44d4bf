package repository

import (
	"time"

	caldomain "famcal-backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemberRepository reads and writes calendar membership. The sync layer
// only ever reads it: membership is an input to mirroring, not something
// it owns.
type MemberRepository interface {
	Add(member *caldomain.CalendarMember) error
	Remove(calendarID, userID string) error
	ListMembers(calendarID string) ([]*caldomain.CalendarMember, error)
	ListMemberIDs(calendarID string) ([]string, error)
	ListSupplementalViewerIDs(calendarID string) ([]string, error)
	IsMember(calendarID, userID string) (bool, error)
	SetKeepSupplemental(calendarID, userID string, keep bool) error
}

type memberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Add(member *caldomain.CalendarMember) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.Role == "" {
		member.Role = "member"
	}
	member.CreatedAt = time.Now()
	return r.db.Create(member).Error
}

func (r *memberRepository) Remove(calendarID, userID string) error {
	return r.db.
		Where("calendar_id = ? AND user_id = ?", calendarID, userID).
		Delete(&caldomain.CalendarMember{}).Error
}

func (r *memberRepository) ListMembers(calendarID string) ([]*caldomain.CalendarMember, error) {
	var members []*caldomain.CalendarMember
	err := r.db.
		Where("calendar_id = ?", calendarID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *memberRepository) ListMemberIDs(calendarID string) ([]string, error) {
	members, err := r.ListMembers(calendarID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (r *memberRepository) ListSupplementalViewerIDs(calendarID string) ([]string, error) {
	var members []*caldomain.CalendarMember
	err := r.db.
		Where("calendar_id = ? AND keep_supplemental = ?", calendarID, true).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (r *memberRepository) IsMember(calendarID, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&caldomain.CalendarMember{}).
		Where("calendar_id = ? AND user_id = ?", calendarID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *memberRepository) SetKeepSupplemental(calendarID, userID string, keep bool) error {
	return r.db.Model(&caldomain.CalendarMember{}).
		Where("calendar_id = ? AND user_id = ?", calendarID, userID).
		Update("keep_supplemental", keep).Error
}
