package service

import (
	"github.com/sirupsen/logrus"

	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
)

// PeriodService picks the period a chat sees and remembers the choice.
type PeriodService struct {
	workflow   *Workflow
	selections *repository.PeriodSelectionRepository
}

func NewPeriodService(workflow *Workflow, selections *repository.PeriodSelectionRepository) *PeriodService {
	return &PeriodService{workflow: workflow, selections: selections}
}

// Select resolves key for the chat; an empty key falls back to the
// remembered period. A resolved period is stored for next time.
func (s *PeriodService) Select(chatID int64, key string) (models.Period, error) {
	remembered, err := s.selections.Get(chatID)
	if err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Warn("Could not read remembered period")
	}

	period, err := s.workflow.ResolvePeriod(key, remembered)
	if err != nil {
		return models.Period{}, err
	}

	if period.Key != remembered {
		if err := s.selections.Save(chatID, period.Key); err != nil {
			logrus.WithError(err).WithField("chat_id", chatID).Warn("Could not remember period")
		}
	}
	return period, nil
}
