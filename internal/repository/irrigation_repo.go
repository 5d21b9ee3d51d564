package repository

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"timesheet-bot/internal/models"
)

var ErrIrrigationNotFound = errors.New("riego no encontrado")

type IrrigationRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewIrrigationRepository(db *gorm.DB) (*IrrigationRepository, error) {
	if err := db.AutoMigrate(&models.Irrigation{}); err != nil {
		return nil, err
	}
	return &IrrigationRepository{db: db, logger: newLogger()}, nil
}

// List returns every irrigation, newest date first.
func (r *IrrigationRepository) List() ([]models.Irrigation, error) {
	var items []models.Irrigation
	if err := r.db.Order("fecha DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *IrrigationRepository) GetByID(id uint) (*models.Irrigation, error) {
	var item models.Irrigation
	result := r.db.First(&item, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &item, nil
}

func (r *IrrigationRepository) Create(item *models.Irrigation) error {
	if err := r.db.Create(item).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create irrigation")
		return err
	}
	r.logger.WithFields(logrus.Fields{"id": item.ID, "lote": item.Lot}).Info("Irrigation created")
	return nil
}

func (r *IrrigationRepository) Update(item *models.Irrigation) error {
	result := r.db.Model(&models.Irrigation{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{"lote": item.Lot, "fecha": item.Date, "nota": item.Note})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		exists, err := r.GetByID(item.ID)
		if err != nil {
			return err
		}
		if exists == nil {
			return ErrIrrigationNotFound
		}
	}
	return nil
}

func (r *IrrigationRepository) Delete(id uint) error {
	result := r.db.Delete(&models.Irrigation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIrrigationNotFound
	}
	r.logger.WithField("id", id).Info("Irrigation deleted")
	return nil
}
