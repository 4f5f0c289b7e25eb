package models

import (
	"encoding/json"
	"time"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

type JobStatus string

const (
	JobStatusActive   JobStatus = "active"
	JobStatusArchived JobStatus = "archived"
)

func (s JobStatus) Valid() bool {
	return s == JobStatusActive || s == JobStatusArchived
}

type Job struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Slug        string    `json:"slug" db:"slug"`
	Status      JobStatus `json:"status" db:"status"`
	Tags        []string  `json:"tags" db:"tags"`
	Order       int       `json:"order" db:"ord"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated"`
}

// JobPatch carries a partial job update. Order is deliberately absent: it
// only changes through a reorder.
type JobPatch struct {
	Title       *string    `json:"title,omitempty"`
	Slug        *string    `json:"-"`
	Status      *JobStatus `json:"status,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Description *string    `json:"description,omitempty"`
}

type Stage string

const (
	StageApplied  Stage = "applied"
	StageScreen   Stage = "screen"
	StageTech     Stage = "tech"
	StageOffer    Stage = "offer"
	StageHired    Stage = "hired"
	StageRejected Stage = "rejected"
)

// Stages lists the pipeline in its natural progression.
var Stages = []Stage{StageApplied, StageScreen, StageTech, StageOffer, StageHired, StageRejected}

func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

type Candidate struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	JobID     string    `json:"jobId" db:"job_id"`
	Stage     Stage     `json:"stage" db:"stage"`
	AppliedAt time.Time `json:"appliedAt" db:"applied"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
}

// CandidatePatch carries a partial candidate update. Stage is routed through
// the timeline; FromStage lets a caller assert the stage it last observed.
type CandidatePatch struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	JobID     *string `json:"jobId,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	Stage     *Stage  `json:"stage,omitempty"`
	FromStage *Stage  `json:"fromStage,omitempty"`
}

type EventType string

const (
	EventStageChange EventType = "stage_change"
	EventNote        EventType = "note"
	EventAssessment  EventType = "assessment"
)

type TimelineEvent struct {
	ID          string    `json:"id" db:"id"`
	CandidateID string    `json:"candidateId" db:"candidate_id"`
	Type        EventType `json:"type" db:"type"`
	From        *Stage    `json:"from,omitempty" db:"from_stage"`
	To          *Stage    `json:"to,omitempty" db:"to_stage"`
	Note        string    `json:"note,omitempty" db:"note"`
	CreatedAt   time.Time `json:"createdAt" db:"created"`
	CreatedBy   string    `json:"createdBy" db:"created_by"`

	// Seq is the insertion sequence assigned by the store.
	Seq int64 `json:"-" db:"seq"`
}

type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single-choice"
	QuestionMultiChoice  QuestionType = "multi-choice"
	QuestionShortText    QuestionType = "short-text"
	QuestionLongText     QuestionType = "long-text"
	QuestionNumeric      QuestionType = "numeric"
	QuestionFile         QuestionType = "file"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionShortText, QuestionLongText, QuestionNumeric, QuestionFile:
		return true
	}
	return false
}

func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultiChoice
}

func (t QuestionType) IsText() bool {
	return t == QuestionShortText || t == QuestionLongText
}

type NumericRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Condition makes a question relevant only while the referenced
// single-choice question is answered with EqualsValue.
type Condition struct {
	QuestionID  string `json:"questionId"`
	EqualsValue string `json:"equalsValue"`
}

// UnmarshalJSON also accepts the older {"questionId", "value"} spelling.
func (c *Condition) UnmarshalJSON(b []byte) error {
	var raw struct {
		QuestionID  string  `json:"questionId"`
		EqualsValue *string `json:"equalsValue"`
		Value       *string `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.QuestionID = raw.QuestionID
	c.EqualsValue = ""
	switch {
	case raw.EqualsValue != nil:
		c.EqualsValue = *raw.EqualsValue
	case raw.Value != nil:
		c.EqualsValue = *raw.Value
	}
	return nil
}

type Question struct {
	ID            string        `json:"id"`
	Type          QuestionType  `json:"type"`
	Text          string        `json:"text"`
	Required      bool          `json:"required"`
	Options       []string      `json:"options,omitempty"`
	NumericRange  *NumericRange `json:"numericRange,omitempty"`
	MaxLength     *int          `json:"maxLength,omitempty"`
	ConditionalOn *Condition    `json:"conditionalOn,omitempty"`
}

type Section struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

type Assessment struct {
	ID          string    `json:"id" db:"id"`
	JobID       string    `json:"jobId" db:"job_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	Sections    []Section `json:"sections" db:"sections"`
	CreatedAt   time.Time `json:"createdAt" db:"created"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated"`
}

type AssessmentResponse struct {
	ID           string            `json:"id" db:"id"`
	AssessmentID string            `json:"assessmentId" db:"assessment_id"`
	CandidateID  string            `json:"candidateId" db:"candidate_id"`
	Responses    map[string]Answer `json:"responses" db:"responses"`
	SubmittedAt  time.Time         `json:"submittedAt" db:"submitted"`
}
