package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"timesheet-bot/internal/attendance"
	"timesheet-bot/internal/kobo"
	"timesheet-bot/internal/models"
)

var (
	// ErrNotLoaded is returned before the first successful fetch.
	ErrNotLoaded = errors.New("los datos todavía no se cargaron")
	// ErrSuperseded is returned by a refresh whose result was discarded
	// because a newer refresh was triggered meanwhile.
	ErrSuperseded = errors.New("refresh superseded by a newer one")
	// ErrRefreshRequired blocks writes to a cell after a conflict until
	// fresh data has been loaded.
	ErrRefreshRequired = errors.New("la celda cambió en el servidor, actualice antes de volver a escribir")
	// ErrAmbiguousCell means the cell has several rows and must be reduced
	// by deletion before it can be edited.
	ErrAmbiguousCell = errors.New("la celda tiene registros duplicados")
)

type SubmissionSource interface {
	FetchAll(ctx context.Context, token string) ([]models.SubmissionRow, models.FormVersion, error)
}

type SubmissionWriter interface {
	Submit(ctx context.Context, token string, s kobo.Submission) (kobo.SubmitResult, error)
	Delete(ctx context.Context, token, id string) error
}

// SubmissionStore is satisfied by *kobo.Client.
type SubmissionStore interface {
	SubmissionSource
	SubmissionWriter
}

// Snapshot is one fetched copy of the remote data.
type Snapshot struct {
	Rows       []models.SubmissionRow
	Version    models.FormVersion
	FetchedAt  time.Time
	Generation uint64
}

type cellKey struct {
	employee string
	day      string
}

func newCellKey(employee string, date time.Time) cellKey {
	return cellKey{employee: employee, day: date.Format(models.DateLayout)}
}

// Workflow owns the current snapshot and routes cell actions to the store.
// Computations run over an immutable snapshot; network calls never hold
// the lock.
type Workflow struct {
	store    SubmissionStore
	token    string
	rules    []attendance.ClassificationRule
	location *time.Location
	now      func() time.Time
	logger   *logrus.Logger

	mu         sync.RWMutex
	generation uint64
	snapshot   *Snapshot
	blocked    map[cellKey]struct{}
}

func NewWorkflow(store SubmissionStore, token string, location *time.Location) *Workflow {
	if location == nil {
		location = time.UTC
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &Workflow{
		store:    store,
		token:    token,
		rules:    attendance.DefaultRules,
		location: location,
		now:      time.Now,
		logger:   logger,
		blocked:  make(map[cellKey]struct{}),
	}
}

// WithClock replaces the wall clock, for tests.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// Today is the current calendar day in the configured location.
func (w *Workflow) Today() time.Time {
	return models.Day(w.now().In(w.location))
}

// Refresh fetches everything again. Only the most recently triggered
// refresh may replace the snapshot; older ones return ErrSuperseded.
func (w *Workflow) Refresh(ctx context.Context) (*Snapshot, error) {
	w.mu.Lock()
	w.generation++
	gen := w.generation
	w.mu.Unlock()

	rows, version, err := w.store.FetchAll(ctx, w.token)

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.generation {
		w.logger.WithField("generation", gen).Info("Discarding superseded refresh")
		return nil, ErrSuperseded
	}
	if err != nil {
		w.logger.WithError(err).Error("Refresh failed")
		return nil, err
	}

	w.snapshot = &Snapshot{
		Rows:       rows,
		Version:    version,
		FetchedAt:  w.now(),
		Generation: gen,
	}
	w.blocked = make(map[cellKey]struct{})

	w.logger.WithFields(logrus.Fields{
		"generation": gen,
		"rows":       len(rows),
		"version":    version,
	}).Info("Snapshot refreshed")

	return w.snapshot, nil
}

// EnsureLoaded refreshes only when nothing has been fetched yet.
func (w *Workflow) EnsureLoaded(ctx context.Context) (*Snapshot, error) {
	if snap, err := w.Snapshot(); err == nil {
		return snap, nil
	}
	return w.Refresh(ctx)
}

func (w *Workflow) Snapshot() (*Snapshot, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.snapshot == nil {
		return nil, ErrNotLoaded
	}
	return w.snapshot, nil
}

func (w *Workflow) Periods() ([]models.Period, error) {
	snap, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	return attendance.EnumeratePeriods(snap.Rows), nil
}

// ResolvePeriod maps a requested key to a period. An empty key picks the
// remembered one if still offered, otherwise the most recent.
func (w *Workflow) ResolvePeriod(key, remembered string) (models.Period, error) {
	if key != "" {
		return attendance.ParsePeriodKey(key)
	}

	periods, err := w.Periods()
	if err != nil {
		return models.Period{}, err
	}
	period, ok := attendance.SelectPeriod(periods, remembered)
	if !ok {
		return attendance.PeriodFor(w.Today()), nil
	}
	return period, nil
}

// MatrixView is a built matrix with the style rules to render it.
type MatrixView struct {
	Matrix *attendance.Matrix
	Styles []attendance.CellStyleRule
}

func (w *Workflow) Matrix(period models.Period) (MatrixView, error) {
	snap, err := w.Snapshot()
	if err != nil {
		return MatrixView{}, err
	}
	matrix, styles, _ := attendance.BuildMatrixWithRules(snap.Rows, period, w.rules)
	return MatrixView{Matrix: matrix, Styles: styles}, nil
}

func (w *Workflow) Missing() (attendance.MissingReport, error) {
	snap, err := w.Snapshot()
	if err != nil {
		return attendance.MissingReport{}, err
	}
	return attendance.BuildMissingReport(snap.Rows, w.Today()), nil
}

func (w *Workflow) isBlocked(employee string, date time.Time) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.blocked[newCellKey(employee, date)]
	return ok
}

func (w *Workflow) block(employee string, date time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocked[newCellKey(employee, date)] = struct{}{}
}

// ActivateCell opens the create, edit or disambiguation state for a cell.
func (w *Workflow) ActivateCell(employee string, date time.Time) (models.PendingForm, error) {
	snap, err := w.Snapshot()
	if err != nil {
		return models.PendingForm{}, err
	}
	if w.isBlocked(employee, date) {
		return models.PendingForm{}, ErrRefreshRequired
	}
	return attendance.ActivateCell(snap.Rows, employee, date), nil
}

// Submit writes the form with the current form version. Success refetches.
// A conflict blocks the cell and forces a refetch; the block lifts once a
// refetch succeeds. Any other failure leaves the snapshot alone.
func (w *Workflow) Submit(ctx context.Context, form models.PendingForm, values models.SubmissionValues) (kobo.SubmitResult, error) {
	snap, err := w.Snapshot()
	if err != nil {
		return kobo.SubmitResult{}, err
	}
	if form.Mode == models.FormDisambiguate {
		return kobo.SubmitResult{}, ErrAmbiguousCell
	}
	if w.isBlocked(form.Employee, form.Date) {
		return kobo.SubmitResult{}, ErrRefreshRequired
	}
	if values.Date.IsZero() {
		values.Date = form.Date
	}

	submission := kobo.Submission{
		Employee: form.Employee,
		Values:   values,
		Version:  snap.Version,
	}
	if form.Mode == models.FormEdit {
		submission.PriorID = form.PriorID
		submission.PriorInstanceID = form.PriorInstanceID
	}

	result, err := w.store.Submit(ctx, w.token, submission)
	if err != nil {
		return result, err
	}

	logger := w.logger.WithFields(logrus.Fields{
		"employee": form.Employee,
		"date":     form.Date.Format(models.DateLayout),
		"mode":     form.Mode,
		"outcome":  result.Outcome,
	})

	switch result.Outcome {
	case kobo.OutcomeSuccess:
		logger.Info("Submission accepted")
		w.refreshAfterWrite(ctx)
	case kobo.OutcomeConflict:
		logger.Warn("Submission conflicted, forcing refresh")
		w.block(form.Employee, form.Date)
		w.refreshAfterWrite(ctx)
	default:
		logger.Error("Submission failed")
	}

	return result, nil
}

// Delete removes one record by id and refetches on success.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if err := w.store.Delete(ctx, w.token, id); err != nil {
		w.logger.WithError(err).WithField("id", id).Error("Delete failed")
		return err
	}
	w.refreshAfterWrite(ctx)
	return nil
}

// FindRow looks a record up by id in the current snapshot.
func (w *Workflow) FindRow(id string) (models.SubmissionRow, error) {
	snap, err := w.Snapshot()
	if err != nil {
		return models.SubmissionRow{}, err
	}
	for _, row := range snap.Rows {
		if row.ID == id {
			return row, nil
		}
	}
	return models.SubmissionRow{}, fmt.Errorf("registro %s no encontrado", id)
}

func (w *Workflow) refreshAfterWrite(ctx context.Context) {
	if _, err := w.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		w.logger.WithError(err).Warn("Refresh after write failed")
	}
}
