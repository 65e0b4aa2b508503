package render

import "github.com/thawney/SpatialHaptics/spatial"

// Config is the runtime tuning threaded through the interpreter. Every
// tone event copies the value at enqueue time, so later script
// assignments never reshape sound that is already scheduled.
type Config struct {
	ToneDuration float64 // seconds per SOUND burst
	FadeDuration float64 // linear fade length at each tone edge, seconds

	Spatial spatial.Params // panning tunables, frozen per event
}

// DefaultConfig returns the tuning scripts start from.
func DefaultConfig() Config {
	return Config{
		ToneDuration: 0.1,
		FadeDuration: 0.05,
		Spatial:      spatial.DefaultParams(),
	}
}
