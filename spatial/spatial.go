// Package spatial implements the panning laws that turn a virtual source
// position into per-channel gains for a speaker array. A Strategy is bound
// to one layout and one method; given frozen parameters it is a pure
// function of the source position.
package spatial

import (
	"log"
	"math"

	"github.com/thawney/SpatialHaptics/common"
	"github.com/thawney/SpatialHaptics/layout"
)

// Distances shrink below this before any division. 1 mm keeps a source
// sitting exactly on a speaker finite.
const minDistance = 0.001

// Params holds the strategy tunables frozen into every tone event.
type Params struct {
	ITDExaggeration float64 // scale on the inter-channel time difference
	ILDExponent     float64 // exponent on the inter-channel level ratio
	TactileExagg    float64 // legacy contrast control, kept for script compat
	DistanceRolloff float64 // distance_pan falloff exponent

	// tactile_grid shaping
	UseGaussian       bool    // gaussian bell instead of inverse distance
	GaussianSigma     float64 // bell width in meters
	MaxActiveSpeakers int     // nearest-speaker count driven per event
	SmoothMinDistance float64 // softening added to every distance, meters
	DistancePower     float64 // inverse-distance exponent
	TactileEnhance    float64 // post-normalization contrast multiplier
}

// DefaultParams returns the tuning the hardware ships with.
func DefaultParams() Params {
	return Params{
		ITDExaggeration:   1.0,
		ILDExponent:       1.0,
		TactileExagg:      4.0,
		DistanceRolloff:   2.0,
		UseGaussian:       false,
		GaussianSigma:     0.025,
		MaxActiveSpeakers: 6,
		SmoothMinDistance: 0.008,
		DistancePower:     1.5,
		TactileEnhance:    1.2,
	}
}

// Strategy is a panning method bound to a layout. Binding is where the
// itd_ild speaker-count rule is enforced; after Bind the strategy never
// changes, a method switch builds a new one.
type Strategy struct {
	requested layout.Method
	effective layout.Method
	lay       *layout.Layout
}

// Bind selects the method implementation for a layout. itd_ild requires
// exactly two speakers; any other count falls back to distance_pan with a
// warning.
func Bind(m layout.Method, lay *layout.Layout) *Strategy {
	eff := m
	if m == layout.ITDILD && lay.Len() != 2 {
		log.Printf("spatial: itd_ild needs exactly 2 speakers, layout has %d; using distance_pan", lay.Len())
		eff = layout.DistancePan
	}
	return &Strategy{requested: m, effective: eff, lay: lay}
}

// Method returns the method actually in effect.
func (s *Strategy) Method() layout.Method { return s.effective }

// Requested returns the method asked for at bind time, which differs from
// Method only when the itd_ild fallback fired.
func (s *Strategy) Requested() layout.Method { return s.requested }

// Layout returns the bound speaker array.
func (s *Strategy) Layout() *layout.Layout { return s.lay }

// Gains evaluates the strategy at a source position. The returned slices
// have one entry per output channel: a gain in [0,1] and a start delay in
// seconds. Delays are zero for every method except itd_ild.
func (s *Strategy) Gains(pos common.Vec2, p Params) (gains, delays []float64) {
	n := s.lay.Channels()
	gains = make([]float64, n)
	delays = make([]float64, n)
	switch s.effective {
	case layout.TactileGrid:
		s.tactileGains(pos, p, gains)
	case layout.VBAP:
		s.vbapGains(pos, gains)
	case layout.DistancePan:
		s.distanceGains(pos, p, gains)
	case layout.NearestNeighbor:
		s.nearestGains(pos, gains)
	case layout.ITDILD:
		s.itdildGains(pos, p, gains, delays)
	}
	return gains, delays
}

func clampDist(d float64) float64 {
	if d < minDistance {
		return minDistance
	}
	return d
}

// powerNormalize scales gains so the squared sum is 1, keeping perceived
// intensity constant as the source moves.
func powerNormalize(gains []float64) {
	var sum float64
	for _, g := range gains {
		sum += g * g
	}
	if sum <= 0 {
		return
	}
	scale := 1 / math.Sqrt(sum)
	for i := range gains {
		gains[i] *= scale
	}
}
