// Package assessment compiles an assessment's question list into a response
// validator and provides the builder operations that keep the question list
// consistent.
package assessment

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
)

const (
	msgRequired  = "This field is required"
	msgNotOption = "Must be one of the listed options"
)

type Option func(*Validator)

// WithStrictChoices rejects choice answers that are not among the question's
// options. Without it only presence is checked.
func WithStrictChoices() Option {
	return func(v *Validator) { v.strictChoices = true }
}

// Validator checks a response map against a compiled question list.
type Validator struct {
	questions     []models.Question
	index         map[string]int
	strictChoices bool
}

// Compile builds a validator for questions, which must be in document order.
// The slice is copied.
func Compile(questions []models.Question, opts ...Option) *Validator {
	v := &Validator{
		questions: slices.Clone(questions),
		index:     make(map[string]int, len(questions)),
	}
	for i, q := range v.questions {
		if _, dup := v.index[q.ID]; !dup {
			v.index[q.ID] = i
		}
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *Validator) Questions() []models.Question {
	return slices.Clone(v.questions)
}

// ValidateRaw decodes raw JSON answers and validates them. Decode failures
// are reported like any other field error.
func (v *Validator) ValidateRaw(raw map[string]json.RawMessage) (map[string]models.Answer, []apperr.FieldError) {
	answers, decodeErrs := DecodeResponses(v.questions, raw)
	return answers, v.validate(answers, decodeErrs)
}

// Validate returns every field error in document order; nil means valid.
func (v *Validator) Validate(answers map[string]models.Answer) []apperr.FieldError {
	return v.validate(answers, nil)
}

func (v *Validator) validate(answers map[string]models.Answer, decodeErrs []apperr.FieldError) []apperr.FieldError {
	byQuestion := make(map[string]string, len(v.questions))
	for _, e := range decodeErrs {
		byQuestion[e.QuestionID] = e.Message
	}

	// pass 1: per-field rules
	for _, q := range v.questions {
		if _, failed := byQuestion[q.ID]; failed {
			continue
		}
		if msg := v.checkField(q, answers[q.ID]); msg != "" {
			byQuestion[q.ID] = msg
		}
	}

	// pass 2: conditional required
	for _, q := range v.questions {
		if q.ConditionalOn == nil {
			continue
		}
		if !v.conditionMet(q.ConditionalOn, answers) {
			delete(byQuestion, q.ID)
			continue
		}
		if q.Required && answers[q.ID].IsEmpty() {
			if _, failed := byQuestion[q.ID]; !failed {
				byQuestion[q.ID] = msgRequired
			}
		}
	}

	if len(byQuestion) == 0 {
		return nil
	}
	out := make([]apperr.FieldError, 0, len(byQuestion))
	for _, q := range v.questions {
		if msg, ok := byQuestion[q.ID]; ok {
			out = append(out, apperr.FieldError{QuestionID: q.ID, Message: msg})
			delete(byQuestion, q.ID)
		}
	}
	return out
}

func (v *Validator) conditionMet(c *models.Condition, answers map[string]models.Answer) bool {
	parent, ok := answers[c.QuestionID]
	return ok && parent.Kind == models.AnswerText && parent.Text == c.EqualsValue
}

// checkField applies the single-field rules. Conditional questions are never
// required here; pass 2 decides that.
func (v *Validator) checkField(q models.Question, a models.Answer) string {
	required := q.Required && q.ConditionalOn == nil
	if a.IsEmpty() {
		if required {
			return msgRequired
		}
		return ""
	}

	switch q.Type {
	case models.QuestionShortText, models.QuestionLongText:
		if a.Kind != models.AnswerText {
			return msgNotText
		}
		if q.MaxLength != nil && utf8.RuneCountInString(a.Text) > *q.MaxLength {
			return fmt.Sprintf("Must be %d characters or less", *q.MaxLength)
		}

	case models.QuestionNumeric:
		if a.Kind != models.AnswerNumber {
			return msgNotANumber
		}
		if r := q.NumericRange; r != nil {
			if a.Number < r.Min {
				return "Min value is " + formatNumber(r.Min)
			}
			if a.Number > r.Max {
				return "Max value is " + formatNumber(r.Max)
			}
		}

	case models.QuestionSingleChoice:
		if a.Kind != models.AnswerText {
			return msgNotText
		}
		if v.strictChoices && !slices.Contains(q.Options, a.Text) {
			return msgNotOption
		}

	case models.QuestionMultiChoice:
		if a.Kind != models.AnswerChoices {
			return msgNotChoices
		}
		if v.strictChoices {
			for _, c := range a.Choices {
				if !slices.Contains(q.Options, c) {
					return msgNotOption
				}
			}
		}
	}

	return ""
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AsError wraps field errors into a ValidationError, or nil when there are
// none.
func AsError(errs []apperr.FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return &apperr.ValidationError{Errors: errs}
}
