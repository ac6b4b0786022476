package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/group-study/internal/auth"
	"github.com/sakif/group-study/internal/model"
	"github.com/sakif/group-study/internal/service"
)

type SubmissionHandler struct {
	svc    *service.SubmissionService
	logger *slog.Logger
}

func NewSubmissionHandler(svc *service.SubmissionService, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, logger: logger}
}

// HandleList serves GET /user/submitted-assignments?status=&email=
// (session required).
func (h *SubmissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.List(r.Context(), model.SubmissionFilter{
		Status:    q.Get("status"),
		UserEmail: q.Get("email"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleListMine serves GET /user/my-assignments?email=<identity>. The
// session must belong to that same identity.
func (h *SubmissionHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	items, err := h.svc.ListMine(r.Context(), identity, r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGet serves GET /user/submitted-assignment/{id} (session required).
func (h *SubmissionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleCreate serves POST /user/submitted_assignment
func (h *SubmissionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var sub model.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		h.logger.Warn("invalid submission JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.svc.Create(r.Context(), &sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGrade serves PUT /user/submitted-assignment/{id}. Only obtainMarks,
// feedback and status are read from the body.
func (h *SubmissionHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	var grade model.Grade
	if err := decodeJSON(w, r, &grade); err != nil {
		h.logger.Warn("invalid grade JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.svc.Grade(r.Context(), chi.URLParam(r, "id"), grade)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
