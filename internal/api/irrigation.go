package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
	"timesheet-bot/internal/service"
)

// The riegos endpoints keep the plain JSON shapes existing clients expect
// instead of the envelope.

type irrigationRequest struct {
	Lot  string `json:"lote"`
	Date string `json:"fecha"`
	Note string `json:"nota"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleListIrrigations(w http.ResponseWriter, r *http.Request) {
	items, err := s.irrigations.List()
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if items == nil {
		items = []models.Irrigation{}
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateIrrigation(w http.ResponseWriter, r *http.Request) {
	var req irrigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: service.ErrIrrigationInvalid.Error()})
		return
	}

	item, err := s.irrigations.Create(req.Lot, req.Date, req.Note)
	if errors.Is(err, service.ErrIrrigationInvalid) {
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateIrrigation(w http.ResponseWriter, r *http.Request) {
	id, ok := irrigationID(w, r)
	if !ok {
		return
	}

	var req irrigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: service.ErrIrrigationInvalid.Error()})
		return
	}

	item, err := s.irrigations.Update(id, req.Lot, req.Date, req.Note)
	switch {
	case errors.Is(err, service.ErrIrrigationInvalid):
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, repository.ErrIrrigationNotFound):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case err != nil:
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	default:
		WriteJSON(w, http.StatusOK, item)
	}
}

// handleDeleteIrrigation is idempotent: an unknown id also reports deleted.
func (s *Server) handleDeleteIrrigation(w http.ResponseWriter, r *http.Request) {
	id, ok := irrigationID(w, r)
	if !ok {
		return
	}

	if err := s.irrigations.Delete(id); err != nil && !errors.Is(err, repository.ErrIrrigationNotFound) {
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func irrigationID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		WriteJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return 0, false
	}
	return uint(id), true
}
