package assessment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Stage is the coarse phase of a session.
type Stage string

const (
	StageIntro       Stage = "intro"
	StagePatientInfo Stage = "patient_info"
	StageAssessment  Stage = "assessment"
	StageResults     Stage = "results"
)

var (
	ErrTerminalStage      = errors.New("session has reached results")
	ErrSubmissionInFlight = errors.New("submission in flight")
	ErrRetryNotAllowed    = errors.New("no failed submission to retry")
	ErrInvalidAnswer      = errors.New("answer does not fit the question")
)

// Step reports what the caller has to do after an Advance.
type Step struct {
	// Submit is set when the last question was answered and the submission
	// workflow must run.
	Submit bool
}

// Session is the state machine for one emergency assessment. It is not
// safe for concurrent use.
type Session struct {
	ID     string
	UserID string
	Type   Definition

	stage     Stage
	position  int
	patientQs []Question
	assessQs  []Question
	answers   *AnswerMap
	patient   PatientRecord
	result    *Result

	submitting bool
	generation uint64
	location   string
	prompt     string

	createdAt time.Time
	log       zerolog.Logger
}

// NewSession starts a session at Intro. The patient-info catalog is only
// attached when the subject is someone other than the user.
func NewSession(id, userID string, def Definition, isSelf bool, log zerolog.Logger) *Session {
	s := &Session{
		ID:        id,
		UserID:    userID,
		Type:      def,
		stage:     StageIntro,
		assessQs:  def.Questions,
		answers:   NewAnswerMap(),
		patient:   PatientRecord{IsSelf: isSelf},
		createdAt: time.Now(),
		log:       log.With().Str("session_id", id).Str("emergency_type", def.ID).Logger(),
	}
	if !isSelf {
		s.patientQs = PatientInfoQuestions()
	}
	return s
}

func (s *Session) Stage() Stage                 { return s.stage }
func (s *Session) Position() int                { return s.position }
func (s *Session) IsSelf() bool                 { return s.patient.IsSelf }
func (s *Session) Answers() *AnswerMap          { return s.answers }
func (s *Session) Patient() PatientRecord       { return s.patient }
func (s *Session) Result() *Result              { return s.result }
func (s *Session) Submitting() bool             { return s.submitting }
func (s *Session) Generation() uint64           { return s.generation }
func (s *Session) Location() string             { return s.location }
func (s *Session) Prompt() string               { return s.prompt }
func (s *Session) CreatedAt() time.Time         { return s.createdAt }
func (s *Session) SetLocation(text string)      { s.location = text }
func (s *Session) setPrompt(prompt string)      { s.prompt = prompt }
func (s *Session) PatientQuestions() []Question { return s.patientQs }

// RequiresExitConfirmation reports whether abandoning the session would
// discard collected answers.
func (s *Session) RequiresExitConfirmation() bool {
	return s.stage == StagePatientInfo || s.stage == StageAssessment
}

// CurrentQuestion returns the question at the current position.
func (s *Session) CurrentQuestion() (Question, bool) {
	qs := s.stageQuestions()
	if s.position < 0 || s.position >= len(qs) {
		return Question{}, false
	}
	return qs[s.position], true
}

func (s *Session) stageQuestions() []Question {
	switch s.stage {
	case StagePatientInfo:
		return s.patientQs
	case StageAssessment:
		return s.assessQs
	default:
		return nil
	}
}

// Advance commits answer for the current question and moves forward.
func (s *Session) Advance(answer AnswerValue) (Step, error) {
	if s.submitting {
		return Step{}, ErrSubmissionInFlight
	}
	switch s.stage {
	case StageIntro:
		if s.patient.IsSelf || len(s.patientQs) == 0 {
			return s.enterAssessment(), nil
		}
		s.stage = StagePatientInfo
		s.position = 0
		return Step{}, nil
	case StagePatientInfo:
		return s.advancePatientInfo(answer)
	case StageAssessment:
		return s.advanceAssessment(answer)
	default:
		return Step{}, ErrTerminalStage
	}
}

func (s *Session) advancePatientInfo(answer AnswerValue) (Step, error) {
	if s.position < 0 || s.position >= len(s.patientQs) {
		s.log.Error().Int("position", s.position).Str("stage", string(s.stage)).Msg("position out of bounds, forcing submission")
		return s.beginSubmission(), nil
	}
	q := s.patientQs[s.position]
	answer, err := coerce(q, answer)
	if err != nil {
		return Step{}, err
	}
	s.record(q, answer)
	s.patient.apply(q, answer)

	if next, ok := nextVisible(s.patientQs, s.position+1, s.answers); ok {
		s.position = next
		return Step{}, nil
	}
	return s.enterAssessment(), nil
}

func (s *Session) enterAssessment() Step {
	s.stage = StageAssessment
	if first, ok := nextVisible(s.assessQs, 0, s.answers); ok {
		s.position = first
		return Step{}
	}
	s.position = len(s.assessQs) - 1
	if s.position < 0 {
		s.position = 0
	}
	return s.beginSubmission()
}

func (s *Session) advanceAssessment(answer AnswerValue) (Step, error) {
	if s.position < 0 || s.position >= len(s.assessQs) {
		s.log.Error().Int("position", s.position).Str("stage", string(s.stage)).Msg("position out of bounds, forcing submission")
		return s.beginSubmission(), nil
	}
	q := s.assessQs[s.position]
	answer, err := coerce(q, answer)
	if err != nil {
		return Step{}, err
	}
	s.record(q, answer)

	if target, ok := ResolveJump(q, answer); ok {
		idx := indexOf(s.assessQs, target)
		switch {
		case idx < 0:
			s.log.Warn().Str("question_id", q.ID).Str("target", target).Msg("jump target not in catalog, ignoring")
		case idx <= s.position:
			s.log.Warn().Str("question_id", q.ID).Str("target", target).Msg("backward jump ignored")
		default:
			s.position = idx
			return Step{}, nil
		}
	}

	if next, ok := nextVisible(s.assessQs, s.position+1, s.answers); ok {
		s.position = next
		return Step{}, nil
	}
	return s.beginSubmission(), nil
}

func (s *Session) beginSubmission() Step {
	s.submitting = true
	return Step{Submit: true}
}

// Retreat moves back to the nearest visible question, crossing stage
// boundaries when the current stage has nothing earlier to show.
func (s *Session) Retreat() error {
	if s.submitting {
		return ErrSubmissionInFlight
	}
	switch s.stage {
	case StageIntro:
		return nil
	case StagePatientInfo:
		if prev, ok := prevVisible(s.patientQs, s.position-1, s.answers); ok {
			s.position = prev
			return nil
		}
		s.toIntro()
	case StageAssessment:
		if prev, ok := prevVisible(s.assessQs, s.position-1, s.answers); ok {
			s.position = prev
			return nil
		}
		if !s.patient.IsSelf {
			if last, ok := prevVisible(s.patientQs, len(s.patientQs)-1, s.answers); ok {
				s.stage = StagePatientInfo
				s.position = last
				return nil
			}
		}
		s.toIntro()
	default:
		return ErrTerminalStage
	}
	return nil
}

func (s *Session) toIntro() {
	s.stage = StageIntro
	s.position = 0
}

// Complete stores the outcome of the submission started at generation gen
// and moves the session to Results. Stale outcomes are rejected.
func (s *Session) Complete(gen uint64, r Result) bool {
	if gen != s.generation {
		return false
	}
	s.result = &r
	s.stage = StageResults
	s.submitting = false
	return true
}

// BeginRetry marks a new submission attempt for a failed result.
func (s *Session) BeginRetry() error {
	if s.submitting {
		return ErrSubmissionInFlight
	}
	if s.stage != StageResults || s.result == nil || s.result.Status != StatusFailure || s.prompt == "" {
		return ErrRetryNotAllowed
	}
	s.submitting = true
	return nil
}

// Invalidate discards any in-flight submission. Results produced for an
// earlier generation are ignored by Complete.
func (s *Session) Invalidate() {
	s.generation++
	s.submitting = false
}

func (s *Session) record(q Question, v AnswerValue) {
	if q.Kind == KindInfo && v.IsNone() {
		return
	}
	s.answers.Set(q.ID, v)
}

// coerce turns a decoded answer into the typed value the question expects.
// JSON clients send strings for most inputs, so text is parsed per kind. A
// missing answer is always accepted.
func coerce(q Question, v AnswerValue) (AnswerValue, error) {
	if v.IsNone() {
		return v, nil
	}
	switch q.Kind {
	case KindInfo:
		return AnswerValue{}, fmt.Errorf("%w: %q takes no answer", ErrInvalidAnswer, q.ID)
	case KindBoolean:
		if _, ok := v.BoolValue(); ok {
			return v, nil
		}
		if str, ok := v.StringValue(); ok {
			str = strings.ToLower(strings.TrimSpace(str))
			if b, err := strconv.ParseBool(str); err == nil {
				return Bool(b), nil
			}
			switch str {
			case "yes", "y":
				return Bool(true), nil
			case "no", "n":
				return Bool(false), nil
			}
		}
		return AnswerValue{}, fmt.Errorf("%w: %q expects yes or no, got %s", ErrInvalidAnswer, q.ID, v.Kind())
	case KindSlider:
		n, ok := v.NumberValue()
		if !ok {
			str, isText := v.StringValue()
			parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
			if !isText || err != nil {
				return AnswerValue{}, fmt.Errorf("%w: %q expects a number", ErrInvalidAnswer, q.ID)
			}
			n = parsed
		}
		if q.Range != nil && q.Range.Max > q.Range.Min && (n < q.Range.Min || n > q.Range.Max) {
			return AnswerValue{}, fmt.Errorf("%w: %q must be between %g and %g", ErrInvalidAnswer, q.ID, q.Range.Min, q.Range.Max)
		}
		return Number(n), nil
	case KindMultipleChoice:
		return matchOption(q, v)
	default:
		if str, ok := v.StringValue(); ok {
			return Text(str), nil
		}
		return Text(v.String()), nil
	}
}

// matchOption returns the option value that v selects. Text matches an
// option by its string form.
func matchOption(q Question, v AnswerValue) (AnswerValue, error) {
	str, isText := v.StringValue()
	if len(q.Options) == 0 {
		if isText {
			return Choice(str), nil
		}
		return v, nil
	}
	for _, o := range q.Options {
		if o.Value.Equal(v) {
			return o.Value, nil
		}
		if isText && o.Value.String() == str && (o.Value.Kind() == ValueChoice || o.Value.Kind() == ValueText) {
			return o.Value, nil
		}
	}
	return AnswerValue{}, fmt.Errorf("%w: %q is not an option of %q", ErrInvalidAnswer, v.String(), q.ID)
}
