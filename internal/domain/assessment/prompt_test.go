package assessment

import (
	"strings"
	"testing"
)

func TestSynthesize_SelfProfile(t *testing.T) {
	answers := NewAnswerMap()
	answers.Set("can_breathe", Bool(false))
	answers.Set("object_visible", AnswerValue{})

	out := Synthesize(PromptInput{
		EmergencyTitle: "Choking",
		Patient:        PatientRecord{IsSelf: true},
		Profile: &ProfileSnapshot{
			Age:        34,
			WeightKg:   72.5,
			Conditions: []string{"Asthma", " "},
			Allergies:  nil,
		},
		Answers:   answers,
		Questions: chokingDefinition().Questions,
		Location:  "Main St 5, Springfield",
	})

	for _, want := range []string{
		"EMERGENCY ASSESSMENT REQUEST\nEmergency: Choking\n",
		"Person needing help: the user themselves\n",
		"- Name: Self\n",
		"- Age: 34\n",
		"- Weight: 72.5 kg\n",
		"- Known Conditions: Asthma\n",
		"Q: Can the person breathe or cough?\nA: No\n",
		"Q: Can you see the object?\nA: Not answered\n",
		"Location: Main St 5, Springfield\n",
		"Instructions:\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"Gender", "Blood Type", "Known Allergies", "Height"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("empty field %q should be omitted:\n%s", unwanted, out)
		}
	}
	if strings.Index(out, "breathe or cough") > strings.Index(out, "see the object") {
		t.Error("answers must keep answer order")
	}
}

func TestSynthesize_OtherPatient(t *testing.T) {
	age := 70
	gender := PatientInfoQuestions()[3]
	answers := NewAnswerMap()
	answers.Set(PatientGenderID, Choice("undisclosed"))
	answers.Set("q1", Number(3))

	out := Synthesize(PromptInput{
		EmergencyTitle: "Burns",
		Patient:        PatientRecord{Name: "Ruth", Age: &age, Allergies: "Latex"},
		Answers:        answers,
		Questions:      []Question{gender, {ID: "q1", Prompt: "Pain level?", Kind: KindSlider}},
	})

	for _, want := range []string{
		"Person needing help: someone else\n",
		"- Name: Ruth\n",
		"- Age: 70\n",
		"- Known Allergies: Latex\n",
		"Q: What is their gender?\nA: Prefer not to say\n",
		"Q: Pain level?\nA: 3\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Location:") {
		t.Error("empty location should be omitted")
	}
}

func TestSynthesize_DegradesOnEmptyInput(t *testing.T) {
	out := Synthesize(PromptInput{})
	if !strings.HasPrefix(out, "EMERGENCY ASSESSMENT REQUEST\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if strings.Contains(out, "Emergency:") || strings.Contains(out, "Assessment answers") {
		t.Errorf("empty sections should be omitted:\n%s", out)
	}
	if !strings.HasSuffix(out, instructionBlock) {
		t.Error("instruction block is always present")
	}
}

func TestSynthesize_UnknownQuestionFallsBackToID(t *testing.T) {
	answers := NewAnswerMap()
	answers.Set("orphan", Text("value"))
	out := Synthesize(PromptInput{Patient: PatientRecord{IsSelf: true}, Answers: answers})
	if !strings.Contains(out, "Q: orphan\nA: value\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "- Name: Self\n") {
		t.Errorf("missing profile should still name the subject:\n%s", out)
	}
}

func TestSession_PromptInputCoversBothCatalogs(t *testing.T) {
	s := newOtherSession(textQ("q1", "Describe the wound"))
	s.SetLocation("Park")
	in := s.PromptInput(nil)
	if len(in.Questions) != 8 {
		t.Errorf("expected 8 questions, got %d", len(in.Questions))
	}
	if in.Location != "Park" || in.EmergencyTitle != "Test" {
		t.Errorf("unexpected input %+v", in)
	}
}

func TestProfileSnapshot_InferenceProfile(t *testing.T) {
	var nilSnap *ProfileSnapshot
	if nilSnap.InferenceProfile() != nil {
		t.Error("nil snapshot yields nil profile")
	}
	p := (&ProfileSnapshot{Age: 50, Allergies: []string{"Nuts"}}).InferenceProfile()
	if p.Age != 50 || len(p.Allergies) != 1 {
		t.Errorf("unexpected profile %+v", p)
	}
}
