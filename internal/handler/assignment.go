// Package handler contains the HTTP handlers of the group-study API.
//
// Handlers are the glue between HTTP and the service layer: they parse the
// request (path, query, body), call one service method, and write either the
// result or the mapped error. No business rule lives here.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/model"
	"github.com/sakif/group-study/internal/service"
)

type AssignmentHandler struct {
	svc    *service.AssignmentService
	logger *slog.Logger
}

func NewAssignmentHandler(svc *service.AssignmentService, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{svc: svc, logger: logger}
}

// HandleList serves GET /assignments?page=&limit=&difficulty=
func (h *AssignmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := optionalInt(q.Get("page"), "page")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := optionalInt(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.List(r.Context(), service.ListAssignmentsQuery{
		Page:       page,
		Limit:      limit,
		Difficulty: q.Get("difficulty"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGet serves GET /assignments/{id}
func (h *AssignmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleCreate serves POST /user/create-assignment
func (h *AssignmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var a model.Assignment
	if err := decodeJSON(w, r, &a); err != nil {
		h.logger.Warn("invalid assignment JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.svc.Create(r.Context(), &a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleUpdate serves PUT /user/update-assignment/{id}?email=<requester>
//
// The requester identity comes from the query string, not the session.
func (h *AssignmentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		h.logger.Warn("invalid assignment update JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("email"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleDelete serves DELETE /user/delete-assignment/{id}?email=<requester>
func (h *AssignmentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// optionalInt parses an optional integer query parameter. An absent value
// yields nil so the service applies its default.
func optionalInt(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.InvalidArgument(name, name+" must be an integer")
	}
	return &v, nil
}
