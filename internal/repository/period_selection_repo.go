package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timesheet-bot/internal/models"
)

// PeriodSelectionRepository remembers the last period each chat looked at.
type PeriodSelectionRepository struct {
	db *gorm.DB
}

func NewPeriodSelectionRepository(db *gorm.DB) (*PeriodSelectionRepository, error) {
	if err := db.AutoMigrate(&models.PeriodSelection{}); err != nil {
		return nil, err
	}
	return &PeriodSelectionRepository{db: db}, nil
}

// Get returns the remembered key, or "" when nothing is stored.
func (r *PeriodSelectionRepository) Get(chatID int64) (string, error) {
	var selection models.PeriodSelection
	result := r.db.Where("chat_id = ?", chatID).First(&selection)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if result.Error != nil {
		return "", result.Error
	}
	return selection.PeriodKey, nil
}

func (r *PeriodSelectionRepository) Save(chatID int64, periodKey string) error {
	selection := models.PeriodSelection{ChatID: chatID, PeriodKey: periodKey}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"period_key", "updated_at"}),
	}).Create(&selection).Error
}
