package api

import (
	"errors"
	"net/http"
	"time"

	"timesheet-bot/internal/attendance"
	"timesheet-bot/internal/export"
	"timesheet-bot/internal/kobo"
	"timesheet-bot/internal/models"
	"timesheet-bot/internal/service"
)

type matrixResponse struct {
	Matrix *attendance.Matrix         `json:"matrix"`
	Styles []attendance.CellStyleRule `json:"styles"`
}

type missingResponse struct {
	Reference string   `json:"reference"`
	UpToDate  bool     `json:"upToDate"`
	Employees []string `json:"employees"`
}

type refreshResponse struct {
	Rows      int       `json:"rows"`
	Version   string    `json:"version"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// failWorkflow maps workflow and fetch errors to HTTP statuses.
func (s *Server) failWorkflow(w http.ResponseWriter, r *http.Request, err error) {
	reqID := GetRequestID(r.Context())
	switch {
	case errors.Is(err, service.ErrNotLoaded):
		Fail(w, http.StatusServiceUnavailable, "not_loaded", err.Error(), reqID)
	case errors.Is(err, kobo.ErrSchemaMismatch):
		Fail(w, http.StatusBadGateway, "schema_mismatch", err.Error(), reqID)
	case errors.Is(err, kobo.ErrRemoteUnavailable):
		Fail(w, http.StatusBadGateway, "remote_unavailable", err.Error(), reqID)
	default:
		s.logger.WithError(err).WithField("requestId", reqID).Error("Request failed")
		Fail(w, http.StatusInternalServerError, "internal", err.Error(), reqID)
	}
}

func (s *Server) resolvePeriod(w http.ResponseWriter, r *http.Request) (models.Period, bool) {
	if _, err := s.workflow.EnsureLoaded(r.Context()); err != nil && !errors.Is(err, service.ErrSuperseded) {
		s.failWorkflow(w, r, err)
		return models.Period{}, false
	}

	period, err := s.workflow.ResolvePeriod(r.URL.Query().Get("period"), "")
	if err != nil {
		if errors.Is(err, service.ErrNotLoaded) {
			s.failWorkflow(w, r, err)
		} else {
			Fail(w, http.StatusBadRequest, "invalid_period", err.Error(), GetRequestID(r.Context()))
		}
		return models.Period{}, false
	}
	return period, true
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	if _, err := s.workflow.EnsureLoaded(r.Context()); err != nil && !errors.Is(err, service.ErrSuperseded) {
		s.failWorkflow(w, r, err)
		return
	}
	periods, err := s.workflow.Periods()
	if err != nil {
		s.failWorkflow(w, r, err)
		return
	}
	if periods == nil {
		periods = []models.Period{}
	}
	Success(w, periods, GetRequestID(r.Context()))
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	period, ok := s.resolvePeriod(w, r)
	if !ok {
		return
	}
	view, err := s.workflow.Matrix(period)
	if err != nil {
		s.failWorkflow(w, r, err)
		return
	}
	Success(w, matrixResponse{Matrix: view.Matrix, Styles: view.Styles}, GetRequestID(r.Context()))
}

func (s *Server) handleMatrixXLSX(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.XLSX)
}

func (s *Server) handleMatrixPDF(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, r, "pdf", "application/pdf", export.PDF)
}

func (s *Server) writeExport(w http.ResponseWriter, r *http.Request, ext, contentType string,
	render func(*attendance.Matrix, []attendance.CellStyleRule) ([]byte, error)) {
	period, ok := s.resolvePeriod(w, r)
	if !ok {
		return
	}
	view, err := s.workflow.Matrix(period)
	if err != nil {
		s.failWorkflow(w, r, err)
		return
	}

	data, err := render(view.Matrix, view.Styles)
	if errors.Is(err, export.ErrEmptyMatrix) {
		Fail(w, http.StatusNotFound, "empty_period", err.Error(), GetRequestID(r.Context()))
		return
	}
	if err != nil {
		s.failWorkflow(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(view.Matrix, ext)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleMissing(w http.ResponseWriter, r *http.Request) {
	if _, err := s.workflow.EnsureLoaded(r.Context()); err != nil && !errors.Is(err, service.ErrSuperseded) {
		s.failWorkflow(w, r, err)
		return
	}
	report, err := s.workflow.Missing()
	if err != nil {
		s.failWorkflow(w, r, err)
		return
	}
	employees := report.Employees
	if employees == nil {
		employees = []string{}
	}
	Success(w, missingResponse{
		Reference: report.Reference.Format(models.DateLayout),
		UpToDate:  report.UpToDate(),
		Employees: employees,
	}, GetRequestID(r.Context()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.workflow.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrSuperseded) {
			Fail(w, http.StatusConflict, "superseded", err.Error(), GetRequestID(r.Context()))
			return
		}
		s.failWorkflow(w, r, err)
		return
	}
	Success(w, refreshResponse{
		Rows:      len(snap.Rows),
		Version:   string(snap.Version),
		FetchedAt: snap.FetchedAt,
	}, GetRequestID(r.Context()))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	Success(w, s.catalog, GetRequestID(r.Context()))
}
