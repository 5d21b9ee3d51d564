package repository

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"timesheet-bot/internal/models"
)

var ErrUserNotFound = errors.New("usuario no encontrado")
var ErrUserExists = errors.New("el usuario ya existe")

type GormUserRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewUserRepository(db *gorm.DB) (*GormUserRepository, error) {
	// creates the table when missing
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return nil, err
	}

	return &GormUserRepository{db: db, logger: newLogger()}, nil
}

func (r *GormUserRepository) Create(user *models.User) error {
	var existing models.User
	result := r.db.Where("chat_id = ?", user.ChatID).First(&existing)
	if result.Error == nil {
		return ErrUserExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	now := time.Now().Unix()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleClient
	}

	if err := r.db.Create(user).Error; err != nil {
		r.logger.WithError(err).WithField("chat_id", user.ChatID).Error("Failed to create user")
		return err
	}
	return nil
}

func (r *GormUserRepository) GetByChatID(chatID int64) (*models.User, error) {
	var user models.User
	result := r.db.Where("chat_id = ?", chatID).First(&user)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &user, nil
}

func (r *GormUserRepository) Update(user *models.User) error {
	var existing models.User
	result := r.db.Where("chat_id = ?", user.ChatID).First(&existing)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if result.Error != nil {
		return result.Error
	}

	user.ID = existing.ID
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().Unix()
	return r.db.Save(user).Error
}

func (r *GormUserRepository) Delete(chatID int64) error {
	result := r.db.Where("chat_id = ?", chatID).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) Exists(chatID int64) (bool, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormUserRepository) GetAll() ([]*models.User, error) {
	var users []*models.User
	if err := r.db.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormUserRepository) UpdateRole(chatID int64, role models.Role) error {
	result := r.db.Model(&models.User{}).
		Where("chat_id = ?", chatID).
		Updates(map[string]any{"role": role, "updated_at": time.Now().Unix()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	r.logger.WithFields(logrus.Fields{"chat_id": chatID, "role": role}).Info("User role updated")
	return nil
}

func (r *GormUserRepository) GetAdmins() ([]*models.User, error) {
	var admins []*models.User
	if err := r.db.Where("role = ?", models.RoleAdmin).Order("id").Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}

// GetStats returns the total number of users and how many are admins.
func (r *GormUserRepository) GetStats() (int, int, error) {
	var total, admins int64

	if err := r.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
		return 0, 0, err
	}

	return int(total), int(admins), nil
}
