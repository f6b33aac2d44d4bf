package repository

import (
	"time"

	authdomain "famcal-backend/internal/auth/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository defines the interface for FCM device token operations
type DeviceTokenRepository interface {
	SaveToken(userID, token string) error
	GetTokensByUserIDs(userIDs []string) ([]authdomain.DeviceToken, error)
	DeleteToken(token string) error
}

type deviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{
		db: db,
	}
}

// SaveToken saves or reassigns a device token (atomic upsert)
func (r *deviceTokenRepository) SaveToken(userID, token string) error {
	deviceToken := &authdomain.DeviceToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id"}),
	}).Create(deviceToken).Error
}

func (r *deviceTokenRepository) GetTokensByUserIDs(userIDs []string) ([]authdomain.DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var tokens []authdomain.DeviceToken
	err := r.db.Where("user_id IN ?", userIDs).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *deviceTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.DeviceToken{}).Error
}
