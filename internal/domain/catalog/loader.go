package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frma/frma/internal/domain/assessment"
)

// MissingPrompt replaces absent question text.
const MissingPrompt = "Question text unavailable"

//go:embed emergencies.yaml
var defaultCatalog []byte

type rawFile struct {
	EmergencyTypes []rawType `yaml:"emergency_types"`
}

type rawType struct {
	ID           string        `yaml:"id"`
	Title        string        `yaml:"title"`
	HighPriority bool          `yaml:"high_priority"`
	Description  string        `yaml:"description"`
	Dos          []string      `yaml:"dos"`
	Donts        []string      `yaml:"donts"`
	Questions    []rawQuestion `yaml:"questions"`
}

type rawQuestion struct {
	ID            string      `yaml:"id"`
	Text          string      `yaml:"text"`
	Type          string      `yaml:"type"`
	Notice        string      `yaml:"notice"`
	Options       []rawOption `yaml:"options"`
	Min           *float64    `yaml:"min"`
	Max           *float64    `yaml:"max"`
	Steps         int         `yaml:"steps"`
	Default       *float64    `yaml:"default"`
	DependsOn     string      `yaml:"depends_on"`
	RequiredValue interface{} `yaml:"required_value"`
	Jumps         []rawJump   `yaml:"jumps"`
}

type rawOption struct {
	Label string      `yaml:"label"`
	Value interface{} `yaml:"value"`
}

type rawJump struct {
	When   interface{} `yaml:"when"`
	Target string      `yaml:"target"`
}

// Default parses the embedded catalog.
func Default() ([]EmergencyType, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a YAML or JSON catalog from disk.
func LoadFile(path string) ([]EmergencyType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a catalog. Absent fields are defaulted: a missing question
// text becomes MissingPrompt and a missing type becomes info. Structural
// problems are left to Validate.
func Load(r io.Reader) ([]EmergencyType, error) {
	var raw rawFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	out := make([]EmergencyType, 0, len(raw.EmergencyTypes))
	for i, rt := range raw.EmergencyTypes {
		if strings.TrimSpace(rt.ID) == "" {
			return nil, fmt.Errorf("emergency type %d: id is required", i)
		}
		out = append(out, convertType(rt))
	}
	return out, nil
}

func convertType(rt rawType) EmergencyType {
	kinds := make(map[string]assessment.Kind)
	for _, q := range assessment.PatientInfoQuestions() {
		kinds[q.ID] = q.Kind
	}
	for _, rq := range rt.Questions {
		kinds[rq.ID] = assessment.ParseKind(rq.Type)
	}

	t := EmergencyType{
		ID:           rt.ID,
		Title:        rt.Title,
		HighPriority: rt.HighPriority,
		Description:  rt.Description,
		Dos:          rt.Dos,
		Donts:        rt.Donts,
		Questions:    make([]assessment.Question, 0, len(rt.Questions)),
	}
	if t.Title == "" {
		t.Title = rt.ID
	}
	for _, rq := range rt.Questions {
		t.Questions = append(t.Questions, convertQuestion(rq, kinds))
	}
	return t
}

func convertQuestion(rq rawQuestion, kinds map[string]assessment.Kind) assessment.Question {
	q := assessment.Question{
		ID:     rq.ID,
		Prompt: strings.TrimSpace(rq.Text),
		Kind:   assessment.ParseKind(rq.Type),
		Notice: assessment.NoticeStyle(rq.Notice),
	}
	if q.Prompt == "" {
		q.Prompt = MissingPrompt
	}
	if q.Kind == assessment.KindInfo && q.Notice == "" {
		q.Notice = assessment.NoticeInfo
	}

	for _, o := range rq.Options {
		v := convertValue(o.Value, q.Kind)
		label := o.Label
		if label == "" {
			label = v.String()
		}
		q.Options = append(q.Options, assessment.Option{Label: label, Value: v})
	}

	if q.Kind == assessment.KindSlider {
		lo, hi := 0.0, 10.0
		if rq.Min != nil {
			lo = *rq.Min
		}
		if rq.Max != nil {
			hi = *rq.Max
		}
		def := lo
		if rq.Default != nil {
			def = math.Max(lo, math.Min(hi, *rq.Default))
		}
		r := assessment.NewRange(lo, hi, rq.Steps, def)
		q.Range = &r
	}

	if rq.DependsOn != "" {
		q.Visibility = &assessment.VisibilityCondition{
			DependsOn: rq.DependsOn,
			Required:  convertValue(rq.RequiredValue, kinds[rq.DependsOn]),
		}
	}
	for _, j := range rq.Jumps {
		q.Jumps = append(q.Jumps, assessment.Jump{
			When:   convertValue(j.When, q.Kind),
			Target: j.Target,
		})
	}
	return q
}

// convertValue builds the AnswerValue a question of kind k would record for
// raw, so that catalog conditions compare equal to committed answers.
func convertValue(raw interface{}, k assessment.Kind) assessment.AnswerValue {
	if raw == nil {
		return assessment.AnswerValue{}
	}
	switch k {
	case assessment.KindBoolean:
		switch v := raw.(type) {
		case bool:
			return assessment.Bool(v)
		case string:
			if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
				return assessment.Bool(b)
			}
			switch strings.ToLower(v) {
			case "yes", "y":
				return assessment.Bool(true)
			case "no", "n":
				return assessment.Bool(false)
			}
		}
	case assessment.KindSlider:
		switch v := raw.(type) {
		case int:
			return assessment.Number(float64(v))
		case float64:
			return assessment.Number(v)
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return assessment.Number(f)
			}
		}
	case assessment.KindMultipleChoice:
		return assessment.Choice(scalarString(raw))
	}
	return assessment.Text(scalarString(raw))
}

func scalarString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
