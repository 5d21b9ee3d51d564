package service

import (
	"errors"
	"strings"

	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
)

// ErrIrrigationInvalid mirrors the API's validation message.
var ErrIrrigationInvalid = errors.New("lote and fecha required")

type IrrigationService struct {
	repo *repository.IrrigationRepository
}

func NewIrrigationService(repo *repository.IrrigationRepository) *IrrigationService {
	return &IrrigationService{repo: repo}
}

func (s *IrrigationService) List() ([]models.Irrigation, error) {
	return s.repo.List()
}

func (s *IrrigationService) Create(lot, date, note string) (*models.Irrigation, error) {
	item := &models.Irrigation{
		Lot:  strings.TrimSpace(lot),
		Date: strings.TrimSpace(date),
		Note: strings.TrimSpace(note),
	}
	if !item.IsValid() {
		return nil, ErrIrrigationInvalid
	}
	if err := s.repo.Create(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *IrrigationService) Update(id uint, lot, date, note string) (*models.Irrigation, error) {
	item := &models.Irrigation{
		ID:   id,
		Lot:  strings.TrimSpace(lot),
		Date: strings.TrimSpace(date),
		Note: strings.TrimSpace(note),
	}
	if !item.IsValid() {
		return nil, ErrIrrigationInvalid
	}
	if err := s.repo.Update(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *IrrigationService) Delete(id uint) error {
	return s.repo.Delete(id)
}
