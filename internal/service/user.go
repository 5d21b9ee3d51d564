package service

import (
	"errors"
	"fmt"
	"strings"

	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
)

var ErrForbidden = errors.New("acceso denegado: solo administradores")

type UserService struct {
	repo *repository.GormUserRepository
}

func NewUserService(repo *repository.GormUserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register creates a client user for the chat, or returns the existing one.
func (s *UserService) Register(chatID int64, username, firstName, lastName string) (*models.User, bool, error) {
	existing, err := s.repo.GetByChatID(chatID)
	if err != nil {
		return nil, false, fmt.Errorf("error al buscar usuario: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	if firstName == "" {
		firstName = username
	}
	if firstName == "" {
		return nil, false, errors.New("el nombre no puede estar vacío")
	}

	user := &models.User{
		ChatID:    chatID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		Role:      models.RoleClient,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, false, fmt.Errorf("error al crear usuario: %w", err)
	}
	return user, true, nil
}

func (s *UserService) GetUser(chatID int64) (*models.User, error) {
	user, err := s.repo.GetByChatID(chatID)
	if err != nil {
		return nil, fmt.Errorf("error al buscar usuario: %w", err)
	}
	if user == nil {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) IsAdmin(chatID int64) (bool, error) {
	user, err := s.repo.GetByChatID(chatID)
	if err != nil {
		return false, err
	}
	return user != nil && user.IsAdmin(), nil
}

// UpdateRole changes a user's role. Only admins may do it.
func (s *UserService) UpdateRole(adminChatID, targetChatID int64, role models.Role) error {
	isAdmin, err := s.IsAdmin(adminChatID)
	if err != nil {
		return fmt.Errorf("error al verificar permisos: %w", err)
	}
	if !isAdmin {
		return ErrForbidden
	}
	if role != models.RoleAdmin && role != models.RoleClient {
		return fmt.Errorf("rol desconocido: %s", role)
	}
	return s.repo.UpdateRole(targetChatID, role)
}

func (s *UserService) GetAllUsers() ([]*models.User, error) {
	return s.repo.GetAll()
}

func (s *UserService) GetAdmins() ([]*models.User, error) {
	return s.repo.GetAdmins()
}

func (s *UserService) FormatAllUsers() (string, error) {
	users, err := s.GetAllUsers()
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "📭 No hay usuarios registrados.", nil
	}

	lines := []string{"📋 Usuarios:", ""}
	for i, user := range users {
		roleEmoji := "👤"
		if user.IsAdmin() {
			roleEmoji = "👑"
		}
		info := fmt.Sprintf("%d. %s %s", i+1, roleEmoji, user.DisplayName())
		if user.Username != "" {
			info += fmt.Sprintf(" (@%s)", user.Username)
		}
		info += fmt.Sprintf(" - ID: %d", user.ChatID)
		lines = append(lines, info)
	}

	total, admins, err := s.repo.GetStats()
	if err == nil {
		lines = append(lines, "", fmt.Sprintf("📊 Total: %d, administradores: %d", total, admins))
	}

	return strings.Join(lines, "\n"), nil
}

// InitializeAdmin promotes (or creates) the configured admin chat.
func (s *UserService) InitializeAdmin(adminChatID int64) error {
	if adminChatID == 0 {
		return nil
	}

	existing, err := s.repo.GetByChatID(adminChatID)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.IsAdmin() {
			return nil
		}
		return s.repo.UpdateRole(adminChatID, models.RoleAdmin)
	}

	return s.repo.Create(&models.User{
		ChatID:    adminChatID,
		Username:  "admin",
		FirstName: "Administrador",
		Role:      models.RoleAdmin,
	})
}
