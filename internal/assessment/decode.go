package assessment

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
)

const (
	msgNotANumber = "Must be a number"
	msgNotText    = "Must be text"
	msgNotChoices = "Must be a list of options"
	msgUnreadable = "Answer could not be read"
)

// DecodeResponses turns raw JSON answers into typed Answers, driven by each
// question's type. Values that do not fit their question come back as
// per-question errors instead of failing the whole decode. Answers to unknown
// question ids are dropped.
func DecodeResponses(questions []models.Question, raw map[string]json.RawMessage) (map[string]models.Answer, []apperr.FieldError) {
	out := make(map[string]models.Answer, len(questions))
	var errs []apperr.FieldError

	for _, q := range questions {
		v, ok := raw[q.ID]
		if !ok {
			continue
		}
		a, msg := decodeAnswer(q.Type, v)
		if msg != "" {
			errs = append(errs, apperr.FieldError{QuestionID: q.ID, Message: msg})
			continue
		}
		out[q.ID] = a
	}

	return out, errs
}

func decodeAnswer(t models.QuestionType, v json.RawMessage) (models.Answer, string) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return models.Answer{}, ""
	}

	switch t {
	case models.QuestionShortText, models.QuestionLongText, models.QuestionSingleChoice:
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return models.Answer{}, msgNotText
		}
		return models.TextAnswer(s), ""

	case models.QuestionMultiChoice:
		var cs []string
		if err := json.Unmarshal(v, &cs); err != nil {
			return models.Answer{}, msgNotChoices
		}
		return models.ChoicesAnswer(cs...), ""

	case models.QuestionNumeric:
		return decodeNumber(v)

	case models.QuestionFile:
		return decodeFile(v), ""
	}

	// unknown question types keep whatever shape the client sent
	var a models.Answer
	if err := json.Unmarshal(v, &a); err != nil {
		return models.Answer{}, msgUnreadable
	}
	return a, ""
}

// decodeFile reports an upload as present for a non-empty reference, true, a
// non-zero number or a non-empty list or object. false, 0, "", [] and {} are
// absent.
func decodeFile(v json.RawMessage) models.Answer {
	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return models.Answer{}
	}
	switch x := x.(type) {
	case string:
		if strings.TrimSpace(x) != "" {
			return models.PresenceAnswer(x)
		}
	case bool:
		if x {
			return models.PresenceAnswer("")
		}
	case float64:
		if x != 0 {
			return models.PresenceAnswer("")
		}
	case []any:
		if len(x) > 0 {
			return models.PresenceAnswer("")
		}
	case map[string]any:
		if len(x) > 0 {
			return models.PresenceAnswer("")
		}
	}
	return models.Answer{}
}

// decodeNumber accepts JSON numbers and numeric strings. An empty string is
// treated as no answer.
func decodeNumber(v json.RawMessage) (models.Answer, string) {
	var s string
	switch v[0] {
	case '"':
		if err := json.Unmarshal(v, &s); err != nil {
			return models.Answer{}, msgNotANumber
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return models.Answer{}, ""
		}
	default:
		s = string(v)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return models.Answer{}, msgNotANumber
	}
	return models.NumberAnswer(f), ""
}
