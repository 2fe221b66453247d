package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the variant held by an AnswerValue.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueBool
	ValueNumber
	ValueText
	ValueChoice
)

func (k ValueKind) String() string {
	switch k {
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueText:
		return "text"
	case ValueChoice:
		return "choice"
	default:
		return "none"
	}
}

// AnswerValue is a committed answer. The zero value means "no answer".
type AnswerValue struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
}

func Bool(b bool) AnswerValue      { return AnswerValue{kind: ValueBool, b: b} }
func Number(n float64) AnswerValue { return AnswerValue{kind: ValueNumber, n: n} }
func Text(s string) AnswerValue    { return AnswerValue{kind: ValueText, s: s} }
func Choice(v string) AnswerValue  { return AnswerValue{kind: ValueChoice, s: v} }

func (v AnswerValue) Kind() ValueKind { return v.kind }
func (v AnswerValue) IsNone() bool    { return v.kind == ValueNone }

func (v AnswerValue) BoolValue() (bool, bool) { return v.b, v.kind == ValueBool }

func (v AnswerValue) NumberValue() (float64, bool) { return v.n, v.kind == ValueNumber }

// StringValue returns the payload of a Text or Choice value.
func (v AnswerValue) StringValue() (string, bool) {
	return v.s, v.kind == ValueText || v.kind == ValueChoice
}

// Equal reports exact equality on both variant and payload. Text("a") and
// Choice("a") are different answers.
func (v AnswerValue) Equal(o AnswerValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueBool:
		return v.b == o.b
	case ValueNumber:
		return v.n == o.n
	case ValueText, ValueChoice:
		return v.s == o.s
	default:
		return true
	}
}

// String renders the value for people, not for round-tripping.
func (v AnswerValue) String() string {
	switch v.kind {
	case ValueBool:
		if v.b {
			return "Yes"
		}
		return "No"
	case ValueNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case ValueText, ValueChoice:
		return v.s
	default:
		return ""
	}
}

func (v AnswerValue) GoString() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.String())
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueBool:
		return json.Marshal(v.b)
	case ValueNumber:
		return json.Marshal(v.n)
	case ValueText, ValueChoice:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts native JSON scalars. Strings decode as Text; the
// session turns them into Choice values for multiple-choice questions.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = AnswerValue{}
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	switch t := raw.(type) {
	case bool:
		*v = Bool(t)
	case float64:
		*v = Number(t)
	case string:
		*v = Text(t)
	default:
		return fmt.Errorf("unsupported answer type %T", raw)
	}
	return nil
}

// Answer is one entry of an AnswerMap.
type Answer struct {
	QuestionID string      `json:"question_id"`
	Value      AnswerValue `json:"value"`
}

// AnswerMap maps question ids to answers and remembers the order in which
// ids were first answered. Setting an existing id replaces its value in
// place.
type AnswerMap struct {
	order  []string
	values map[string]AnswerValue
}

func NewAnswerMap() *AnswerMap {
	return &AnswerMap{values: make(map[string]AnswerValue)}
}

func (m *AnswerMap) Set(id string, v AnswerValue) {
	if m.values == nil {
		m.values = make(map[string]AnswerValue)
	}
	if _, ok := m.values[id]; !ok {
		m.order = append(m.order, id)
	}
	m.values[id] = v
}

func (m *AnswerMap) Get(id string) (AnswerValue, bool) {
	if m == nil {
		return AnswerValue{}, false
	}
	v, ok := m.values[id]
	return v, ok
}

func (m *AnswerMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

func (m *AnswerMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Entries returns the answers in first-answered order.
func (m *AnswerMap) Entries() []Answer {
	if m == nil {
		return []Answer{}
	}
	out := make([]Answer, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, Answer{QuestionID: id, Value: m.values[id]})
	}
	return out
}

func (m *AnswerMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Entries())
}
