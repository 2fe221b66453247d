package assessment

import "time"

// SessionView is the JSON rendering of a session. It is a copy and can be
// encoded after the handle lock is released.
type SessionView struct {
	ID                       string        `json:"id"`
	EmergencyType            string        `json:"emergency_type"`
	Title                    string        `json:"title"`
	HighPriority             bool          `json:"high_priority"`
	IsSelf                   bool          `json:"is_self"`
	Stage                    Stage         `json:"stage"`
	Position                 int           `json:"position"`
	EffectiveIndex           int           `json:"effective_index"`
	TotalQuestions           int           `json:"total_questions"`
	Progress                 float64       `json:"progress"`
	Question                 *Question     `json:"question,omitempty"`
	Answers                  []Answer      `json:"answers"`
	Patient                  PatientRecord `json:"patient"`
	Location                 string        `json:"location,omitempty"`
	Submitting               bool          `json:"submitting"`
	Result                   *Result       `json:"result,omitempty"`
	DisplayText              string        `json:"display_text,omitempty"`
	RequiresExitConfirmation bool          `json:"requires_exit_confirmation"`
	CreatedAt                time.Time     `json:"created_at"`
}

func newView(s *Session) *SessionView {
	v := &SessionView{
		ID:                       s.ID,
		EmergencyType:            s.Type.ID,
		Title:                    s.Type.Title,
		HighPriority:             s.Type.HighPriority,
		IsSelf:                   s.IsSelf(),
		Stage:                    s.stage,
		Position:                 s.position,
		EffectiveIndex:           s.EffectiveIndex(),
		TotalQuestions:           len(s.patientQs) + len(s.assessQs),
		Progress:                 s.Progress(),
		Answers:                  s.answers.Entries(),
		Patient:                  s.patient,
		Location:                 s.location,
		Submitting:               s.submitting,
		RequiresExitConfirmation: s.RequiresExitConfirmation(),
		CreatedAt:                s.CreatedAt(),
	}
	if q, ok := s.CurrentQuestion(); ok {
		v.Question = &q
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
		v.DisplayText = r.DisplayText()
	}
	return v
}
