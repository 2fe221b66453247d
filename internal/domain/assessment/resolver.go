package assessment

// ShouldSkip reports whether q is hidden by its visibility condition. A
// dependency that has not been answered yet never hides a question.
func ShouldSkip(q Question, answers *AnswerMap) bool {
	if q.Visibility == nil {
		return false
	}
	got, ok := answers.Get(q.Visibility.DependsOn)
	if !ok {
		return false
	}
	return !got.Equal(q.Visibility.Required)
}

// ResolveJump returns the target of the first jump whose trigger equals
// answer.
func ResolveJump(q Question, answer AnswerValue) (string, bool) {
	for _, j := range q.Jumps {
		if j.When.Equal(answer) {
			return j.Target, true
		}
	}
	return "", false
}

// nextVisible scans forward from index from (inclusive).
func nextVisible(qs []Question, from int, answers *AnswerMap) (int, bool) {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(qs); i++ {
		if !ShouldSkip(qs[i], answers) {
			return i, true
		}
	}
	return 0, false
}

// prevVisible scans backward from index from (inclusive).
func prevVisible(qs []Question, from int, answers *AnswerMap) (int, bool) {
	if from >= len(qs) {
		from = len(qs) - 1
	}
	for i := from; i >= 0; i-- {
		if !ShouldSkip(qs[i], answers) {
			return i, true
		}
	}
	return 0, false
}

func indexOf(qs []Question, id string) int {
	for i, q := range qs {
		if q.ID == id {
			return i
		}
	}
	return -1
}
