package api

import (
	"net/http"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/internal/metrics"
	"github.com/garnizeh/talentflow/internal/service"
	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/gorilla/mux"
)

type JobsHandler struct {
	svc     *service.Jobs
	metrics *metrics.Manager
}

func NewJobsHandler(svc *service.Jobs, m *metrics.Manager) *JobsHandler {
	return &JobsHandler{svc: svc, metrics: m}
}

func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	q := r.URL.Query()

	res, err := h.svc.List(r.Context(), service.JobQuery{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Sort:     q.Get("sort"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, j, http.StatusOK)
}

func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req service.NewJob
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.metrics, err)
		return
	}

	j, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, j, http.StatusCreated)
}

func (h *JobsHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var patch models.JobPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.metrics, err)
		return
	}

	j, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, j, http.StatusOK)
}

type reorderRequest struct {
	FromOrder *int `json:"fromOrder"`
	ToOrder   *int `json:"toOrder"`
}

func (h *JobsHandler) ReorderJob(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.metrics, err)
		return
	}
	if req.FromOrder == nil || req.ToOrder == nil {
		writeError(w, h.metrics, apperr.InvalidInput("fromOrder and toOrder are required"))
		return
	}

	res, err := h.svc.Reorder(r.Context(), mux.Vars(r)["id"], *req.FromOrder, *req.ToOrder)
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}
