package training

// Schedule holds the decay parameters of a training run. Its methods are
// pure functions of the step counter.
type Schedule struct {
	LearningRate0 float64
	Radius0       float64
	MinRadius     float64
	RadiusDecay   float64

	// TotalSteps is T, the number of planned steps. When T ≤ 0 both
	// schedules stay at their initial values.
	TotalSteps int
}

// progress returns t/T with t clamped to [0, T].
func (s Schedule) progress(t int) float64 {
	if s.TotalSteps <= 0 {
		return 0
	}
	t = max(0, min(t, s.TotalSteps))
	return float64(t) / float64(s.TotalSteps)
}

// LearningRate returns lr0·(1 − t/T).
func (s Schedule) LearningRate(t int) float64 {
	return s.LearningRate0 * (1 - s.progress(t))
}

// Radius returns max(minRadius, radius0·(1 − decay·t/T)).
func (s Schedule) Radius(t int) float64 {
	return max(s.MinRadius, s.Radius0*(1-s.RadiusDecay*s.progress(t)))
}
