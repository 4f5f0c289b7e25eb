package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerKind tags which field of an Answer carries the value.
type AnswerKind uint8

const (
	AnswerNone AnswerKind = iota
	AnswerText
	AnswerChoices
	AnswerNumber
	AnswerPresence
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerText:
		return "text"
	case AnswerChoices:
		return "choices"
	case AnswerNumber:
		return "number"
	case AnswerPresence:
		return "presence"
	}
	return "none"
}

// Answer is a single response value. Text answers cover short/long text and
// single-choice questions, Choices covers multi-choice, Number covers numeric
// and Presence covers file uploads (Text optionally holds the reference).
type Answer struct {
	Kind    AnswerKind
	Text    string
	Choices []string
	Number  float64
}

func TextAnswer(s string) Answer { return Answer{Kind: AnswerText, Text: s} }

func ChoicesAnswer(choices ...string) Answer {
	if choices == nil {
		choices = []string{}
	}
	return Answer{Kind: AnswerChoices, Choices: choices}
}

func NumberAnswer(f float64) Answer { return Answer{Kind: AnswerNumber, Number: f} }

func PresenceAnswer(ref string) Answer { return Answer{Kind: AnswerPresence, Text: ref} }

// IsEmpty reports whether the answer counts as missing for required checks.
func (a Answer) IsEmpty() bool {
	switch a.Kind {
	case AnswerText:
		return strings.TrimSpace(a.Text) == ""
	case AnswerChoices:
		return len(a.Choices) == 0
	case AnswerNumber, AnswerPresence:
		return false
	}
	return true
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerText:
		return json.Marshal(a.Text)
	case AnswerChoices:
		if a.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Choices)
	case AnswerNumber:
		return json.Marshal(a.Number)
	case AnswerPresence:
		if a.Text != "" {
			return json.Marshal(a.Text)
		}
		return []byte("true"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON infers the kind from the JSON shape. Type-directed decoding
// against a question list lives in the assessment package.
func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Answer{}
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
	case '[':
		var cs []string
		if err := json.Unmarshal(b, &cs); err != nil {
			return err
		}
		*a = ChoicesAnswer(cs...)
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if v {
			*a = PresenceAnswer("")
		} else {
			*a = Answer{}
		}
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("unsupported answer value %s: %w", b, err)
		}
		*a = NumberAnswer(f)
	}

	return nil
}
