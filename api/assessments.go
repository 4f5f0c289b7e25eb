package api

import (
	"net/http"

	"github.com/garnizeh/talentflow/internal/metrics"
	"github.com/garnizeh/talentflow/internal/service"
	"github.com/gorilla/mux"
)

type AssessmentsHandler struct {
	svc     *service.Assessments
	metrics *metrics.Manager
}

func NewAssessmentsHandler(svc *service.Assessments, m *metrics.Manager) *AssessmentsHandler {
	return &AssessmentsHandler{svc: svc, metrics: m}
}

func (h *AssessmentsHandler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, a, http.StatusOK)
}

// PutAssessment creates or replaces the assessment of a job. The body is
// validated against the assessment JSON schema before it is decoded.
func (h *AssessmentsHandler) PutAssessment(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}

	a, created, err := h.svc.Upsert(r.Context(), mux.Vars(r)["jobId"], body)
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, a, status)
}

func (h *AssessmentsHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	a, err := h.svc.DeleteQuestion(r.Context(), vars["jobId"], vars["questionId"])
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, a, http.StatusOK)
}

func (h *AssessmentsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req service.Submission
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.metrics, err)
		return
	}

	// submissions are attributed to the system unless a caller names itself
	resp, err := h.svc.Submit(r.Context(), mux.Vars(r)["jobId"], req, actorFrom(r, ""))
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, resp, http.StatusCreated)
}
