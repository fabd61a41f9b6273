package oscillator

// Uniform is an all-to-all adjacency with the same weight on every
// off-diagonal entry. A zero weight gives an uncoupled field.
type Uniform struct {
	N      int
	Weight float64
}

// Len implements Adjacency.
func (u Uniform) Len() int { return u.N }

// At implements Adjacency.
func (u Uniform) At(i, j int) float64 {
	if i == j {
		return 0
	}
	return u.Weight
}

// MeanDegree implements Adjacency.
func (u Uniform) MeanDegree() float64 {
	if u.N < 2 {
		return 0
	}
	return float64(u.N-1) * u.Weight
}
