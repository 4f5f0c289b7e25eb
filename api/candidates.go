package api

import (
	"net/http"

	"github.com/garnizeh/talentflow/internal/metrics"
	"github.com/garnizeh/talentflow/internal/service"
	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/gorilla/mux"
)

type CandidatesHandler struct {
	svc          *service.Candidates
	defaultActor string
	metrics      *metrics.Manager
}

func NewCandidatesHandler(svc *service.Candidates, defaultActor string, m *metrics.Manager) *CandidatesHandler {
	return &CandidatesHandler{svc: svc, defaultActor: defaultActor, metrics: m}
}

func (h *CandidatesHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	q := r.URL.Query()

	res, err := h.svc.List(r.Context(), service.CandidateQuery{
		Search:   q.Get("search"),
		Stage:    q.Get("stage"),
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

func (h *CandidatesHandler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, c, http.StatusOK)
}

func (h *CandidatesHandler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req service.NewCandidate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.metrics, err)
		return
	}

	c, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, c, http.StatusCreated)
}

func (h *CandidatesHandler) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	var patch models.CandidatePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.metrics, err)
		return
	}

	c, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], patch, actorFrom(r, h.defaultActor))
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, c, http.StatusOK)
}

func (h *CandidatesHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Timeline(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	if events == nil {
		events = []models.TimelineEvent{}
	}
	writeJSON(w, events, http.StatusOK)
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *CandidatesHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.metrics, err)
		return
	}

	e, err := h.svc.AddNote(r.Context(), mux.Vars(r)["id"], req.Note, actorFrom(r, h.defaultActor))
	if err != nil {
		writeError(w, h.metrics, err)
		return
	}
	writeJSON(w, e, http.StatusCreated)
}
