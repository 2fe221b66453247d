package assessment

import (
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"boolean":         KindBoolean,
		"multiple_choice": KindMultipleChoice,
		"multipleChoice":  KindMultipleChoice,
		"slider":          KindSlider,
		"text":            KindText,
		"info":            KindInfo,
		"":                KindInfo,
		"radio":           KindInfo,
	}
	for in, want := range tests {
		if got := ParseKind(in); got != want {
			t.Errorf("ParseKind(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestNewRange_DerivesSteps(t *testing.T) {
	r := NewRange(0, 10, 0, 5)
	if r.Steps != 10 {
		t.Errorf("expected 10 steps, got %d", r.Steps)
	}
	if r := NewRange(1, 5, 8, 1); r.Steps != 8 {
		t.Errorf("explicit steps should be kept, got %d", r.Steps)
	}
}

func TestValidateCatalog(t *testing.T) {
	if err := ValidateCatalog(chokingDefinition().Questions); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []Question{
		{ID: "q1", Jumps: []Jump{{When: Bool(true), Target: "nowhere"}}},
		{ID: "q1"},
		{ID: PatientNameID},
		{ID: "q2", Visibility: &VisibilityCondition{DependsOn: "ghost", Required: Bool(true)}},
	}
	err := ValidateCatalog(bad)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{`unknown question "nowhere"`, `duplicate question id "q1"`, `duplicate question id "patient_name"`, `unknown question "ghost"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidateCatalog_PatientDependencyAllowed(t *testing.T) {
	qs := []Question{{ID: "q1", Visibility: &VisibilityCondition{DependsOn: PatientGenderID, Required: Choice("female")}}}
	if err := ValidateCatalog(qs); err != nil {
		t.Errorf("dependencies on patient info are valid: %v", err)
	}
}
