package assessment

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Kind is the input style of a question.
type Kind string

const (
	KindInfo           Kind = "info"
	KindBoolean        Kind = "boolean"
	KindMultipleChoice Kind = "multiple_choice"
	KindSlider         Kind = "slider"
	KindText           Kind = "text"
)

// ParseKind maps a catalog type string to a Kind. Unknown and empty types
// fall back to info.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindBoolean, KindMultipleChoice, KindSlider, KindText:
		return Kind(s)
	case "multipleChoice", "choice":
		return KindMultipleChoice
	default:
		return KindInfo
	}
}

// NoticeStyle tags the visual weight of an info question.
type NoticeStyle string

const (
	NoticeInfo    NoticeStyle = "info"
	NoticeWarning NoticeStyle = "warning"
	NoticeDanger  NoticeStyle = "danger"
	NoticeSuccess NoticeStyle = "success"
)

type Option struct {
	Label string      `json:"label"`
	Value AnswerValue `json:"value"`
}

// Range describes a slider. Steps is the number of divisions.
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Steps   int     `json:"steps"`
	Default float64 `json:"default"`
}

// NewRange builds a slider range. A zero steps value is derived from the
// span when max > min.
func NewRange(min, max float64, steps int, def float64) Range {
	if steps <= 0 && max > min {
		steps = int(math.Floor(max - min))
	}
	return Range{Min: min, Max: max, Steps: steps, Default: def}
}

type VisibilityCondition struct {
	DependsOn string      `json:"depends_on"`
	Required  AnswerValue `json:"required"`
}

type Jump struct {
	When   AnswerValue `json:"when"`
	Target string      `json:"target"`
}

type Question struct {
	ID         string               `json:"id"`
	Prompt     string               `json:"prompt"`
	Kind       Kind                 `json:"kind"`
	Options    []Option             `json:"options,omitempty"`
	Range      *Range               `json:"range,omitempty"`
	Visibility *VisibilityCondition `json:"visibility,omitempty"`
	Jumps      []Jump               `json:"jumps,omitempty"`
	Notice     NoticeStyle          `json:"notice,omitempty"`
}

// OptionLabel returns the label of the option carrying v, if any.
func (q Question) OptionLabel(v AnswerValue) (string, bool) {
	for _, o := range q.Options {
		if o.Value.Equal(v) {
			return o.Label, true
		}
	}
	return "", false
}

// Definition is the read-only view of one emergency type that a session
// needs.
type Definition struct {
	ID           string
	Title        string
	HighPriority bool
	Questions    []Question
}

// ErrConfigurationMissing is returned when an emergency type cannot be
// resolved.
var ErrConfigurationMissing = errors.New("emergency configuration missing")

// Catalog resolves emergency types at session creation.
type Catalog interface {
	Lookup(ctx context.Context, typeID string) (Definition, error)
}

// ValidateCatalog checks that ids are unique across the patient-info
// catalog and the given assessment catalog, and that jump targets and
// visibility dependencies refer to known questions.
func ValidateCatalog(assessment []Question) error {
	var errs []error
	seen := make(map[string]bool)
	for _, q := range PatientInfoQuestions() {
		seen[q.ID] = true
	}
	local := make(map[string]bool, len(assessment))
	for _, q := range assessment {
		if seen[q.ID] {
			errs = append(errs, fmt.Errorf("duplicate question id %q", q.ID))
		}
		seen[q.ID] = true
		local[q.ID] = true
	}
	for _, q := range assessment {
		for _, j := range q.Jumps {
			if !local[j.Target] {
				errs = append(errs, fmt.Errorf("question %q jumps to unknown question %q", q.ID, j.Target))
			}
		}
		if q.Visibility != nil && !seen[q.Visibility.DependsOn] {
			errs = append(errs, fmt.Errorf("question %q depends on unknown question %q", q.ID, q.Visibility.DependsOn))
		}
	}
	return errors.Join(errs...)
}
