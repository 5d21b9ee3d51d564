package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"timesheet-bot/internal/attendance"
	"timesheet-bot/internal/models"
)

// Notifier delivers a text message to a chat.
type Notifier interface {
	Notify(chatID int64, text string) error
}

type AdminLister interface {
	GetAdmins() ([]*models.User, error)
}

// AlertJob sends the missing-submission report to every admin once per
// local day, at or after the configured hour.
type AlertJob struct {
	workflow *Workflow
	admins   AdminLister
	notifier Notifier
	hour     int
	interval time.Duration
	logger   *logrus.Logger

	mu      sync.Mutex
	lastDay string
}

func NewAlertJob(workflow *Workflow, admins AdminLister, notifier Notifier, hour int, interval time.Duration) *AlertJob {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &AlertJob{
		workflow: workflow,
		admins:   admins,
		notifier: notifier,
		hour:     hour,
		interval: interval,
		logger:   logger,
	}
}

func (j *AlertJob) Start(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Info("Missing-submission alerts disabled")
		return
	}
	go j.schedule(ctx)
}

func (j *AlertJob) schedule(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Tick(ctx); err != nil {
				j.logger.WithError(err).Warn("Missing-submission alert failed")
			}
		}
	}
}

// Tick runs the alert if it is due. It reports whether a report was sent.
func (j *AlertJob) Tick(ctx context.Context) (bool, error) {
	now := j.workflow.now().In(j.workflow.location)
	if now.Hour() < j.hour {
		return false, nil
	}
	day := now.Format(models.DateLayout)

	j.mu.Lock()
	done := j.lastDay == day
	j.mu.Unlock()
	if done {
		return false, nil
	}

	if _, err := j.RunNow(ctx); err != nil {
		return false, err
	}

	j.mu.Lock()
	j.lastDay = day
	j.mu.Unlock()
	return true, nil
}

// Report refetches and computes the missing list without sending it.
func (j *AlertJob) Report(ctx context.Context) (attendance.MissingReport, error) {
	if _, err := j.workflow.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return attendance.MissingReport{}, err
	}
	return j.workflow.Missing()
}

// RunNow computes the report and sends it to every admin.
func (j *AlertJob) RunNow(ctx context.Context) (attendance.MissingReport, error) {
	report, err := j.Report(ctx)
	if err != nil {
		return report, err
	}

	admins, err := j.admins.GetAdmins()
	if err != nil {
		return report, fmt.Errorf("list admins: %w", err)
	}

	text := FormatMissingReport(report)
	var failed int
	for _, admin := range admins {
		if err := j.notifier.Notify(admin.ChatID, text); err != nil {
			failed++
			j.logger.WithError(err).WithField("chat_id", admin.ChatID).Warn("Failed to deliver alert")
		}
	}

	j.logger.WithFields(logrus.Fields{
		"reference": report.Reference.Format(models.DateLayout),
		"missing":   len(report.Employees),
		"admins":    len(admins),
		"failed":    failed,
	}).Info("Missing-submission report sent")

	if failed > 0 && failed == len(admins) {
		return report, errors.New("alert was not delivered to any admin")
	}
	return report, nil
}

func FormatMissingReport(report attendance.MissingReport) string {
	reference := report.Reference.Format("02/01/2006")
	if report.UpToDate() {
		return fmt.Sprintf("✅ Todos los empleados activos cargaron horas para el %s.", reference)
	}

	lines := []string{fmt.Sprintf("⚠️ Faltan cargas del %s:", reference), ""}
	for _, employee := range report.Employees {
		lines = append(lines, "• "+employee)
	}
	return strings.Join(lines, "\n")
}
