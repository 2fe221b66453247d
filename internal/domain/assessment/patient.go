package assessment

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// Patient-info question ids. The intro notice comes first, so the record
// fields are filled from the 2nd through 7th answers.
const (
	PatientIntroID       = "patient_intro"
	PatientNameID        = "patient_name"
	PatientAgeID         = "patient_age"
	PatientGenderID      = "patient_gender"
	PatientConditionsID  = "patient_conditions"
	PatientAllergiesID   = "patient_allergies"
	PatientMedicationsID = "patient_medications"
)

// PatientInfoQuestions returns the fixed questions asked when the person
// being assessed is not the user.
func PatientInfoQuestions() []Question {
	ageRange := NewRange(0, 120, 0, 30)
	return []Question{
		{
			ID:     PatientIntroID,
			Prompt: "You are helping someone else. A few quick details about them will make the instructions safer.",
			Kind:   KindInfo,
			Notice: NoticeInfo,
		},
		{ID: PatientNameID, Prompt: "What is the person's name?", Kind: KindText},
		{ID: PatientAgeID, Prompt: "Approximately how old are they?", Kind: KindSlider, Range: &ageRange},
		{
			ID:     PatientGenderID,
			Prompt: "What is their gender?",
			Kind:   KindMultipleChoice,
			Options: []Option{
				{Label: "Male", Value: Choice("male")},
				{Label: "Female", Value: Choice("female")},
				{Label: "Other", Value: Choice("other")},
				{Label: "Prefer not to say", Value: Choice("undisclosed")},
			},
		},
		{ID: PatientConditionsID, Prompt: "Do they have any known medical conditions?", Kind: KindText},
		{ID: PatientAllergiesID, Prompt: "Do they have any known allergies?", Kind: KindText},
		{ID: PatientMedicationsID, Prompt: "Are they taking any medications?", Kind: KindText},
	}
}

// PatientRecord describes the person being assessed when it is not the user.
type PatientRecord struct {
	IsSelf      bool   `json:"is_self"`
	Name        string `json:"name,omitempty"`
	Age         *int   `json:"age,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Conditions  string `json:"conditions,omitempty"`
	Allergies   string `json:"allergies,omitempty"`
	Medications string `json:"medications,omitempty"`
}

func (p *PatientRecord) apply(q Question, v AnswerValue) {
	if v.IsNone() {
		return
	}
	text := strings.TrimSpace(v.String())
	switch q.ID {
	case PatientNameID:
		p.Name = text
	case PatientAgeID:
		if n, ok := v.NumberValue(); ok {
			age := int(math.Round(n))
			p.Age = &age
		} else if n, err := strconv.Atoi(text); err == nil {
			p.Age = &n
		}
	case PatientGenderID:
		if label, ok := q.OptionLabel(v); ok {
			text = label
		}
		p.Gender = text
	case PatientConditionsID:
		p.Conditions = text
	case PatientAllergiesID:
		p.Allergies = text
	case PatientMedicationsID:
		p.Medications = text
	}
}

// ProfileSnapshot is the read-only view of the user's stored profile, used
// as the subject when the user is assessing themselves.
type ProfileSnapshot struct {
	Name        string
	Age         int
	Gender      string
	WeightKg    float64
	HeightCm    float64
	BloodType   string
	Conditions  []string
	Allergies   []string
	Medications []string
}

// ProfileProvider supplies the user's profile at submission time.
type ProfileProvider interface {
	Snapshot(ctx context.Context, userID string) (ProfileSnapshot, error)
}
