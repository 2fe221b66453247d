package catalog

import "github.com/frma/frma/internal/domain/assessment"

// EmergencyType is one entry of the emergency-type catalog.
type EmergencyType struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	HighPriority bool                  `json:"high_priority"`
	Description  string                `json:"description,omitempty"`
	Dos          []string              `json:"dos,omitempty"`
	Donts        []string              `json:"donts,omitempty"`
	Questions    []assessment.Question `json:"questions"`
}

// Definition returns the part of the type an assessment session needs.
func (t EmergencyType) Definition() assessment.Definition {
	return assessment.Definition{
		ID:           t.ID,
		Title:        t.Title,
		HighPriority: t.HighPriority,
		Questions:    t.Questions,
	}
}

// Summary is the list rendering of an emergency type.
type Summary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	HighPriority  bool   `json:"high_priority"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"question_count"`
}

func (t EmergencyType) Summary() Summary {
	return Summary{
		ID:            t.ID,
		Title:         t.Title,
		HighPriority:  t.HighPriority,
		Description:   t.Description,
		QuestionCount: len(t.Questions),
	}
}
