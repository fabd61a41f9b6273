// Package constants provides named constants used throughout the kuramap codebase.
// This centralizes engine defaults so the config layer, the CLI and the MCP
// server agree on them.
package constants

// Lattice defaults
const (
	// DefaultRows is the default number of lattice rows.
	DefaultRows = 10

	// DefaultCols is the default number of lattice columns.
	DefaultCols = 10

	// DefaultFeatureDim is the default feature vector dimension.
	DefaultFeatureDim = 2
)

// Training schedule defaults.
// The learning rate decays linearly to zero over the planned steps; the
// radius decays linearly by DefaultRadiusDecay of its initial value and is
// floored at DefaultMinRadius.
const (
	// DefaultLearningRate is the initial learning rate (lr0).
	DefaultLearningRate = 0.5

	// DefaultRadius is the initial neighborhood radius (radius0) in grid units.
	DefaultRadius = 3.0

	// DefaultMinRadius is the floor applied to the decayed radius.
	DefaultMinRadius = 0.5

	// DefaultRadiusDecay is the fraction of radius0 removed by the final step.
	DefaultRadiusDecay = 0.9

	// DefaultEpochs is the default number of passes over the training set.
	DefaultEpochs = 100

	// DefaultTolerance is the epoch-to-epoch quantization error improvement
	// below which training is considered converged. Zero disables the check.
	DefaultTolerance = 0.0
)

// Oscillator defaults
const (
	// DefaultCouplingStrength is the Kuramoto coupling constant K.
	DefaultCouplingStrength = 0.3

	// DefaultDt is the Euler integration step.
	DefaultDt = 0.1

	// DefaultNoiseStd is the standard deviation of per-step phase noise.
	DefaultNoiseStd = 0.0

	// DefaultTicksPerStep is the number of oscillator ticks per training step.
	DefaultTicksPerStep = 1

	// DefaultCouplingRadius is the lattice radius for neighbor coupling.
	// At 1.5 every unit couples to its 8-neighborhood.
	DefaultCouplingRadius = 1.5

	// DefaultFrequencyMean and DefaultFrequencyStd parameterize randomly drawn
	// natural frequencies.
	DefaultFrequencyMean = 1.0
	DefaultFrequencyStd  = 0.1

	// DefaultFrequencyMin and DefaultFrequencyMax bound feature-derived
	// natural frequencies.
	DefaultFrequencyMin = 0.5
	DefaultFrequencyMax = 1.5
)

// Oscillator-driven feedback defaults
const (
	// DefaultFeedbackRate is the learning rate used when phases are fed back
	// into the lattice.
	DefaultFeedbackRate = 0.01

	// DefaultFeedbackRadius is the neighborhood radius used for phase feedback.
	DefaultFeedbackRadius = 0.5
)

// Dynamic coupling defaults
const (
	// DefaultAffinitySigma is the feature-space bandwidth of the dynamic
	// coupling affinity exp(-d²/(2σ²)).
	DefaultAffinitySigma = 1.0
)

// Default RNG seed used when none is configured.
const DefaultSeed = 7

// PhaseGlyphs is the ASCII ramp used to render phase and scalar maps,
// from lowest to highest value.
const PhaseGlyphs = " .:-=+*#@"

// CLI run defaults
const (
	// DefaultSamples is the number of synthetic samples used when no data
	// file is given.
	DefaultSamples = 50

	// DefaultCoherenceRadius is the lattice radius used for cluster
	// coherence and sync maps.
	DefaultCoherenceRadius = 1.5
)
