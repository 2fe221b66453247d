package assessment

import "testing"

func TestShouldSkip(t *testing.T) {
	q := Question{ID: "q2", Visibility: &VisibilityCondition{DependsOn: "q1", Required: Bool(true)}}

	answers := NewAnswerMap()
	if ShouldSkip(q, answers) {
		t.Error("unanswered dependency must not hide the question")
	}
	answers.Set("q1", Bool(true))
	if ShouldSkip(q, answers) {
		t.Error("matching dependency must show the question")
	}
	answers.Set("q1", Bool(false))
	if !ShouldSkip(q, answers) {
		t.Error("mismatching dependency must hide the question")
	}
	if ShouldSkip(Question{ID: "q3"}, answers) {
		t.Error("question without condition is always shown")
	}
	if ShouldSkip(q, nil) {
		t.Error("nil answers behave like an empty map")
	}
}

func TestShouldSkip_VariantMismatch(t *testing.T) {
	q := Question{ID: "q2", Visibility: &VisibilityCondition{DependsOn: "q1", Required: Choice("yes")}}
	answers := NewAnswerMap()
	answers.Set("q1", Text("yes"))
	if !ShouldSkip(q, answers) {
		t.Error("text and choice values are different answers")
	}
}

func TestResolveJump(t *testing.T) {
	q := Question{
		ID: "q1",
		Jumps: []Jump{
			{When: Choice("a"), Target: "q3"},
			{When: Choice("a"), Target: "q4"},
			{When: Number(2), Target: "q5"},
		},
	}
	if target, ok := ResolveJump(q, Choice("a")); !ok || target != "q3" {
		t.Errorf("expected first matching jump q3, got %q %v", target, ok)
	}
	if target, ok := ResolveJump(q, Number(2)); !ok || target != "q5" {
		t.Errorf("expected q5, got %q %v", target, ok)
	}
	if _, ok := ResolveJump(q, Choice("b")); ok {
		t.Error("no jump expected")
	}
}

func TestVisibleScans(t *testing.T) {
	qs := []Question{
		{ID: "a"},
		{ID: "b", Visibility: &VisibilityCondition{DependsOn: "a", Required: Bool(true)}},
		{ID: "c"},
	}
	answers := NewAnswerMap()
	answers.Set("a", Bool(false))

	if i, ok := nextVisible(qs, 1, answers); !ok || i != 2 {
		t.Errorf("nextVisible: got %d %v", i, ok)
	}
	if _, ok := nextVisible(qs, 3, answers); ok {
		t.Error("nextVisible past end should fail")
	}
	if i, ok := prevVisible(qs, 1, answers); !ok || i != 0 {
		t.Errorf("prevVisible: got %d %v", i, ok)
	}
	if i, ok := prevVisible(qs, 10, answers); !ok || i != 2 {
		t.Errorf("prevVisible should clamp, got %d %v", i, ok)
	}
	if _, ok := prevVisible(qs, -1, answers); ok {
		t.Error("prevVisible before start should fail")
	}
	if indexOf(qs, "c") != 2 || indexOf(qs, "zz") != -1 {
		t.Error("indexOf mismatch")
	}
}
