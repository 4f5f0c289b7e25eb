package assessment

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
)

// Flatten returns the questions in document order: section order, then
// in-section order.
func Flatten(sections []models.Section) []models.Question {
	var n int
	for _, s := range sections {
		n += len(s.Questions)
	}
	out := make([]models.Question, 0, n)
	for _, s := range sections {
		out = append(out, s.Questions...)
	}
	return out
}

// DeleteQuestion removes the question and clears every conditionalOn that
// pointed at it. It reports whether the question existed.
func DeleteQuestion(a *models.Assessment, questionID string) bool {
	found := false
	for i := range a.Sections {
		qs := a.Sections[i].Questions
		before := len(qs)
		qs = slices.DeleteFunc(qs, func(q models.Question) bool { return q.ID == questionID })
		if len(qs) != before {
			found = true
		}
		a.Sections[i].Questions = qs
	}
	if found {
		clearConditions(a, map[string]bool{questionID: true})
	}
	return found
}

// DeleteSection removes the section and applies the DeleteQuestion cascade to
// each of its questions.
func DeleteSection(a *models.Assessment, sectionID string) bool {
	idx := slices.IndexFunc(a.Sections, func(s models.Section) bool { return s.ID == sectionID })
	if idx < 0 {
		return false
	}

	removed := map[string]bool{}
	for _, q := range a.Sections[idx].Questions {
		removed[q.ID] = true
	}
	a.Sections = slices.Delete(a.Sections, idx, idx+1)
	clearConditions(a, removed)

	return true
}

func clearConditions(a *models.Assessment, removed map[string]bool) {
	for i := range a.Sections {
		for j := range a.Sections[i].Questions {
			q := &a.Sections[i].Questions[j]
			if q.ConditionalOn != nil && removed[q.ConditionalOn.QuestionID] {
				q.ConditionalOn = nil
			}
		}
	}
}

// Normalize tidies a document coming from a client: ids are filled in where
// missing, option lists are trimmed and blank options dropped, and nil slices
// become empty ones.
func Normalize(sections []models.Section, newID func() string) []models.Section {
	if sections == nil {
		return []models.Section{}
	}
	for i := range sections {
		s := &sections[i]
		if strings.TrimSpace(s.ID) == "" {
			s.ID = newID()
		}
		if s.Questions == nil {
			s.Questions = []models.Question{}
		}
		for j := range s.Questions {
			q := &s.Questions[j]
			if strings.TrimSpace(q.ID) == "" {
				q.ID = newID()
			}
			if q.Options != nil {
				opts := make([]string, 0, len(q.Options))
				for _, o := range q.Options {
					if o = strings.TrimSpace(o); o != "" {
						opts = append(opts, o)
					}
				}
				q.Options = opts
			}
		}
	}
	return sections
}

// Check validates the structure of an assessment: unique ids, known types,
// choice options, ranges and conditions that point at an earlier
// single-choice question. Every problem is reported.
func Check(sections []models.Section) error {
	var errs []error
	sectionIDs := map[string]bool{}
	seen := map[string]models.Question{}

	for _, s := range sections {
		if sectionIDs[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate section id %q", s.ID))
		}
		sectionIDs[s.ID] = true

		for _, q := range s.Questions {
			if _, dup := seen[q.ID]; dup {
				errs = append(errs, fmt.Errorf("duplicate question id %q", q.ID))
			}
			if !q.Type.Valid() {
				errs = append(errs, fmt.Errorf("question %s: unknown type %q", q.ID, q.Type))
			}
			if q.Type.IsChoice() && len(q.Options) == 0 {
				errs = append(errs, fmt.Errorf("question %s: %s needs at least one option", q.ID, q.Type))
			}
			if q.NumericRange != nil && q.NumericRange.Min > q.NumericRange.Max {
				errs = append(errs, fmt.Errorf("question %s: numericRange min %v exceeds max %v", q.ID, q.NumericRange.Min, q.NumericRange.Max))
			}
			if q.MaxLength != nil && *q.MaxLength <= 0 {
				errs = append(errs, fmt.Errorf("question %s: maxLength must be positive", q.ID))
			}
			if c := q.ConditionalOn; c != nil {
				parent, ok := seen[c.QuestionID]
				switch {
				case c.QuestionID == q.ID:
					errs = append(errs, fmt.Errorf("question %s: cannot depend on itself", q.ID))
				case !ok:
					errs = append(errs, fmt.Errorf("question %s: conditionalOn %q is not an earlier question", q.ID, c.QuestionID))
				case parent.Type != models.QuestionSingleChoice:
					errs = append(errs, fmt.Errorf("question %s: conditionalOn %q must be single-choice, is %s", q.ID, c.QuestionID, parent.Type))
				}
			}
			seen[q.ID] = q
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return apperr.InvalidInput("%v", errors.Join(errs...))
}
