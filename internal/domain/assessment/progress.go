package assessment

// EffectiveIndex places a stage-relative position on the single scale that
// spans both catalogs. All cross-stage offset math goes through here.
func EffectiveIndex(stage Stage, position, patientCount, assessmentCount int) int {
	switch stage {
	case StagePatientInfo:
		return position
	case StageAssessment:
		return patientCount + position
	case StageResults:
		return patientCount + assessmentCount
	default:
		return 0
	}
}

func fraction(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(index) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// EffectiveIndex returns the session's position on the combined scale.
func (s *Session) EffectiveIndex() int {
	return EffectiveIndex(s.stage, s.position, len(s.patientQs), len(s.assessQs))
}

// Progress returns completion in [0, 1].
func (s *Session) Progress() float64 {
	return fraction(s.EffectiveIndex(), len(s.patientQs)+len(s.assessQs))
}
