package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/garnizeh/talentflow/pkg/models"
)

// Page is one page of a list endpoint.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// ListOptions are the query parameters shared by the list endpoints. Zero
// values are omitted and take the server defaults.
type ListOptions struct {
	Search   string
	Sort     string
	Page     int
	PageSize int
	// Status filters jobs, Stage filters candidates.
	Status string
	Stage  string
}

func (o ListOptions) encode() string {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("search", o.Search)
	set("sort", o.Sort)
	set("status", o.Status)
	set("stage", o.Stage)
	if o.Page != 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize != 0 {
		q.Set("pageSize", strconv.Itoa(o.PageSize))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

type NewJob struct {
	Title       string           `json:"title"`
	Status      models.JobStatus `json:"status,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Description string           `json:"description,omitempty"`
}

type NewCandidate struct {
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Phone string       `json:"phone,omitempty"`
	JobID string       `json:"jobId"`
	Stage models.Stage `json:"stage,omitempty"`
	Notes string       `json:"notes,omitempty"`
}

// ReorderResult carries the authoritative job id sequence before and after
// a move, for optimistic UIs to reconcile against.
type ReorderResult struct {
	Job      models.Job `json:"job"`
	Previous []string   `json:"previous"`
	Current  []string   `json:"current"`
}

func (c *Client) ListJobs(ctx context.Context, opts ListOptions) (*Page[models.Job], error) {
	var out Page[models.Job]
	if _, err := c.do(ctx, http.MethodGet, "/jobs"+opts.encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var out models.Job
	if _, err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateJob(ctx context.Context, in NewJob) (*models.Job, error) {
	var out models.Job
	if _, err := c.do(ctx, http.MethodPost, "/jobs", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateJob(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	var out models.Job
	if _, err := c.do(ctx, http.MethodPatch, "/jobs/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReorderJob moves a job from the order the caller last saw to toOrder. A
// stale fromOrder fails with ErrConflict.
func (c *Client) ReorderJob(ctx context.Context, id string, fromOrder, toOrder int) (*ReorderResult, error) {
	in := map[string]int{"fromOrder": fromOrder, "toOrder": toOrder}
	var out ReorderResult
	if _, err := c.do(ctx, http.MethodPatch, "/jobs/"+url.PathEscape(id)+"/reorder", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCandidates(ctx context.Context, opts ListOptions) (*Page[models.Candidate], error) {
	var out Page[models.Candidate]
	if _, err := c.do(ctx, http.MethodGet, "/candidates"+opts.encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var out models.Candidate
	if _, err := c.do(ctx, http.MethodGet, "/candidates/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCandidate(ctx context.Context, in NewCandidate) (*models.Candidate, error) {
	var out models.Candidate
	if _, err := c.do(ctx, http.MethodPost, "/candidates", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCandidate(ctx context.Context, id string, patch models.CandidatePatch) (*models.Candidate, error) {
	var out models.Candidate
	if _, err := c.do(ctx, http.MethodPatch, "/candidates/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Timeline(ctx context.Context, candidateID string) ([]models.TimelineEvent, error) {
	var out []models.TimelineEvent
	if _, err := c.do(ctx, http.MethodGet, "/candidates/"+url.PathEscape(candidateID)+"/timeline", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddNote(ctx context.Context, candidateID, note string) (*models.TimelineEvent, error) {
	var out models.TimelineEvent
	in := map[string]string{"note": note}
	if _, err := c.do(ctx, http.MethodPost, "/candidates/"+url.PathEscape(candidateID)+"/notes", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAssessment(ctx context.Context, jobID string) (*models.Assessment, error) {
	var out models.Assessment
	if _, err := c.do(ctx, http.MethodGet, "/assessments/"+url.PathEscape(jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutAssessment creates or replaces the assessment of jobID. doc is either
// raw JSON ([]byte) or a value that encodes to the assessment document.
func (c *Client) PutAssessment(ctx context.Context, jobID string, doc any) (a *models.Assessment, created bool, err error) {
	var out models.Assessment
	status, err := c.do(ctx, http.MethodPut, "/assessments/"+url.PathEscape(jobID), doc, &out)
	if err != nil {
		return nil, false, err
	}
	return &out, status == http.StatusCreated, nil
}

func (c *Client) DeleteQuestion(ctx context.Context, jobID, questionID string) (*models.Assessment, error) {
	var out models.Assessment
	path := fmt.Sprintf("/assessments/%s/questions/%s", url.PathEscape(jobID), url.PathEscape(questionID))
	if _, err := c.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit posts a candidate's responses. A rejected submission returns an
// *APIError wrapping ErrValidationFailed whose Errors list every field.
func (c *Client) Submit(ctx context.Context, jobID, candidateID string, responses map[string]any) (*models.AssessmentResponse, error) {
	raw := make(map[string]json.RawMessage, len(responses))
	for k, v := range responses {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode response %s: %w", k, err)
		}
		raw[k] = b
	}
	in := struct {
		CandidateID string                     `json:"candidateId"`
		Responses   map[string]json.RawMessage `json:"responses"`
	}{candidateID, raw}

	var out models.AssessmentResponse
	if _, err := c.do(ctx, http.MethodPost, "/assessments/"+url.PathEscape(jobID)+"/submit", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
