package training

import (
	"fmt"

	"github.com/nvandessel/kuramap/internal/constants"
	"github.com/nvandessel/kuramap/internal/coupling"
	"github.com/nvandessel/kuramap/internal/lattice"
	"github.com/nvandessel/kuramap/internal/models"
)

// Config is the immutable configuration of one Driver.
type Config struct {
	// Lattice shape
	Rows int `json:"rows"`
	Cols int `json:"cols"`
	Dim  int `json:"dim"`

	// Schedules
	LearningRate float64 `json:"learning_rate"`
	Radius       float64 `json:"radius"`
	MinRadius    float64 `json:"min_radius"`
	RadiusDecay  float64 `json:"radius_decay"`
	Epochs       int     `json:"epochs"`

	// PlannedSteps overrides T for the schedules. When zero, T is fixed by
	// the first epoch as the steps already taken plus Epochs × len(samples);
	// before that, StepOnce decays over Epochs steps.
	PlannedSteps int `json:"planned_steps"`

	// Tolerance is the minimum epoch-to-epoch QE improvement; below it the
	// run converges. Zero disables the check.
	Tolerance float64 `json:"tolerance"`

	Neighborhood lattice.NeighborhoodKind `json:"neighborhood"`

	// Oscillators
	Mode             coupling.Mode `json:"mode"`
	CouplingStrength float64       `json:"coupling_strength"`
	Dt               float64       `json:"dt"`
	NoiseStd         float64       `json:"noise_std"`
	TicksPerStep     int           `json:"ticks_per_step"`
	CouplingRadius   float64       `json:"coupling_radius"`
	FrequencyMean    float64       `json:"frequency_mean"`
	FrequencyStd     float64       `json:"frequency_std"`
	FrequencyMin     float64       `json:"frequency_min"`
	FrequencyMax     float64       `json:"frequency_max"`
	FeedbackRate     float64       `json:"feedback_rate"`
	FeedbackRadius   float64       `json:"feedback_radius"`
	Dynamic          bool          `json:"dynamic"`
	AffinitySigma    float64       `json:"affinity_sigma"`

	// Explicit replaces the radius rule as adjacency when non-nil.
	Explicit *coupling.Matrix `json:"-"`

	Seed    uint64 `json:"seed"`
	Workers int    `json:"workers"`
}

// DefaultConfig returns the engine defaults from internal/constants.
func DefaultConfig() Config {
	return Config{
		Rows:             constants.DefaultRows,
		Cols:             constants.DefaultCols,
		Dim:              constants.DefaultFeatureDim,
		LearningRate:     constants.DefaultLearningRate,
		Radius:           constants.DefaultRadius,
		MinRadius:        constants.DefaultMinRadius,
		RadiusDecay:      constants.DefaultRadiusDecay,
		Epochs:           constants.DefaultEpochs,
		Tolerance:        constants.DefaultTolerance,
		Neighborhood:     lattice.Gaussian,
		Mode:             coupling.ModeNone,
		CouplingStrength: constants.DefaultCouplingStrength,
		Dt:               constants.DefaultDt,
		NoiseStd:         constants.DefaultNoiseStd,
		TicksPerStep:     constants.DefaultTicksPerStep,
		CouplingRadius:   constants.DefaultCouplingRadius,
		FrequencyMean:    constants.DefaultFrequencyMean,
		FrequencyStd:     constants.DefaultFrequencyStd,
		FrequencyMin:     constants.DefaultFrequencyMin,
		FrequencyMax:     constants.DefaultFrequencyMax,
		FeedbackRate:     constants.DefaultFeedbackRate,
		FeedbackRadius:   constants.DefaultFeedbackRadius,
		AffinitySigma:    constants.DefaultAffinitySigma,
		Seed:             constants.DefaultSeed,
		Workers:          1,
	}
}

// Validate checks the configuration for values no run could use.
func (c Config) Validate() error {
	if err := models.CheckGridShape(c.Rows, c.Cols, c.Dim); err != nil {
		return err
	}

	for _, p := range []struct {
		name string
		v    float64
	}{
		{"learning_rate", c.LearningRate},
		{"radius", c.Radius},
		{"min_radius", c.MinRadius},
		{"radius_decay", c.RadiusDecay},
		{"tolerance", c.Tolerance},
		{"coupling_strength", c.CouplingStrength},
		{"dt", c.Dt},
		{"noise_std", c.NoiseStd},
		{"coupling_radius", c.CouplingRadius},
		{"frequency_mean", c.FrequencyMean},
		{"frequency_std", c.FrequencyStd},
		{"frequency_min", c.FrequencyMin},
		{"frequency_max", c.FrequencyMax},
		{"feedback_rate", c.FeedbackRate},
		{"feedback_radius", c.FeedbackRadius},
		{"affinity_sigma", c.AffinitySigma},
	} {
		if err := models.CheckScalar(p.name, p.v); err != nil {
			return err
		}
	}

	if c.LearningRate < 0 {
		return fmt.Errorf("learning_rate must be non-negative, got %v", c.LearningRate)
	}
	if c.Radius < 0 || c.MinRadius < 0 {
		return fmt.Errorf("radius and min_radius must be non-negative, got %v and %v", c.Radius, c.MinRadius)
	}
	if c.RadiusDecay < 0 || c.RadiusDecay > 1 {
		return fmt.Errorf("radius_decay must be in [0, 1], got %v", c.RadiusDecay)
	}
	if c.Epochs < 0 || c.PlannedSteps < 0 {
		return fmt.Errorf("epochs and planned_steps must be non-negative, got %d and %d", c.Epochs, c.PlannedSteps)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative, got %v", c.Tolerance)
	}
	if !c.Neighborhood.Valid() {
		return fmt.Errorf("unknown neighborhood kind %d", int(c.Neighborhood))
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("unknown coupling mode %d", int(c.Mode))
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %v", c.Dt)
	}
	if c.NoiseStd < 0 || c.FrequencyStd < 0 {
		return fmt.Errorf("noise_std and frequency_std must be non-negative, got %v and %v", c.NoiseStd, c.FrequencyStd)
	}
	if c.TicksPerStep < 0 {
		return fmt.Errorf("ticks_per_step must be non-negative, got %d", c.TicksPerStep)
	}
	if c.FrequencyMin > c.FrequencyMax {
		return fmt.Errorf("frequency_min %v exceeds frequency_max %v", c.FrequencyMin, c.FrequencyMax)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.Dynamic && c.AffinitySigma <= 0 {
		return fmt.Errorf("affinity_sigma must be positive for dynamic coupling, got %v", c.AffinitySigma)
	}
	if c.CouplingRadius < 0 {
		return fmt.Errorf("coupling_radius must be non-negative, got %v", c.CouplingRadius)
	}
	return nil
}

// bridgeConfig projects the coupling fields.
func (c Config) bridgeConfig() coupling.Config {
	return coupling.Config{
		Mode:           c.Mode,
		Radius:         c.CouplingRadius,
		Explicit:       c.Explicit,
		Dynamic:        c.Dynamic,
		AffinitySigma:  c.AffinitySigma,
		FeedbackRate:   c.FeedbackRate,
		FeedbackRadius: c.FeedbackRadius,
		Neighborhood:   c.Neighborhood,
	}
}
