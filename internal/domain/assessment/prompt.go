package assessment

import (
	"strconv"
	"strings"

	"github.com/frma/frma/internal/platform/inference"
)

const notAnswered = "Not answered"

const instructionBlock = `Instructions:
Provide clear, numbered first-aid steps that a layperson can follow right now.
If the situation may be life-threatening, the first step must be to call emergency services.
Only describe actions to take while waiting for professional help.
Do not diagnose and do not explain medical conditions.`

// PromptInput is everything the synthesizer reads.
type PromptInput struct {
	EmergencyTitle string
	Patient        PatientRecord
	// Profile is consulted only when Patient.IsSelf is set.
	Profile   *ProfileSnapshot
	Answers   *AnswerMap
	Questions []Question
	Location  string
}

// Synthesize renders the request sent to the inference backend. Empty
// inputs drop their section.
func Synthesize(in PromptInput) string {
	var b strings.Builder
	b.WriteString("EMERGENCY ASSESSMENT REQUEST\n")
	if t := strings.TrimSpace(in.EmergencyTitle); t != "" {
		b.WriteString("Emergency: " + t + "\n")
	}

	if lines := subjectLines(in); len(lines) > 0 {
		b.WriteString("\n")
		if in.Patient.IsSelf {
			b.WriteString("Person needing help: the user themselves\n")
		} else {
			b.WriteString("Person needing help: someone else\n")
		}
		for _, l := range lines {
			b.WriteString("- " + l + "\n")
		}
	}

	if in.Answers.Len() > 0 {
		byID := make(map[string]Question, len(in.Questions))
		for _, q := range in.Questions {
			byID[q.ID] = q
		}
		b.WriteString("\nAssessment answers:\n")
		for _, a := range in.Answers.Entries() {
			q, ok := byID[a.QuestionID]
			prompt := a.QuestionID
			if ok && strings.TrimSpace(q.Prompt) != "" {
				prompt = q.Prompt
			}
			b.WriteString("Q: " + prompt + "\n")
			b.WriteString("A: " + renderAnswer(q, a.Value) + "\n")
		}
	}

	if loc := strings.TrimSpace(in.Location); loc != "" {
		b.WriteString("\nLocation: " + loc + "\n")
	}

	b.WriteString("\n" + instructionBlock)
	return b.String()
}

func renderAnswer(q Question, v AnswerValue) string {
	if v.IsNone() {
		return notAnswered
	}
	if label, ok := q.OptionLabel(v); ok {
		return label
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return notAnswered
	}
	return s
}

func subjectLines(in PromptInput) []string {
	var lines []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	if in.Patient.IsSelf {
		p := in.Profile
		if p == nil {
			p = &ProfileSnapshot{}
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = "Self"
		}
		add("Name", name)
		if p.Age > 0 {
			add("Age", strconv.Itoa(p.Age))
		}
		add("Gender", p.Gender)
		if p.WeightKg > 0 {
			add("Weight", strconv.FormatFloat(p.WeightKg, 'f', -1, 64)+" kg")
		}
		if p.HeightCm > 0 {
			add("Height", strconv.FormatFloat(p.HeightCm, 'f', -1, 64)+" cm")
		}
		add("Blood Type", p.BloodType)
		add("Known Conditions", joinNonEmpty(p.Conditions))
		add("Known Allergies", joinNonEmpty(p.Allergies))
		add("Current Medications", joinNonEmpty(p.Medications))
		return lines
	}

	r := in.Patient
	add("Name", r.Name)
	if r.Age != nil {
		add("Age", strconv.Itoa(*r.Age))
	}
	add("Gender", r.Gender)
	add("Known Conditions", r.Conditions)
	add("Known Allergies", r.Allergies)
	add("Current Medications", r.Medications)
	return lines
}

func joinNonEmpty(items []string) string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return strings.Join(out, ", ")
}

// InferenceProfile converts a profile snapshot into the context forwarded
// to the backend. Only self-assessments carry one.
func (p *ProfileSnapshot) InferenceProfile() *inference.Profile {
	if p == nil {
		return nil
	}
	return &inference.Profile{
		Name:        p.Name,
		Age:         p.Age,
		Gender:      p.Gender,
		Conditions:  p.Conditions,
		Allergies:   p.Allergies,
		Medications: p.Medications,
		WeightKg:    p.WeightKg,
		HeightCm:    p.HeightCm,
		BloodType:   p.BloodType,
	}
}

// PromptInput gathers the synthesizer input from the session's accumulators.
func (s *Session) PromptInput(profile *ProfileSnapshot) PromptInput {
	qs := make([]Question, 0, len(s.patientQs)+len(s.assessQs))
	qs = append(qs, s.patientQs...)
	qs = append(qs, s.assessQs...)
	return PromptInput{
		EmergencyTitle: s.Type.Title,
		Patient:        s.patient,
		Profile:        profile,
		Answers:        s.answers,
		Questions:      qs,
		Location:       s.location,
	}
}
