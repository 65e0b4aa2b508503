package spatial

import (
	"math"

	"github.com/thawney/SpatialHaptics/common"
)

// distanceGains spreads the source over the whole array with an
// inverse-distance law, power-normalized.
func (s *Strategy) distanceGains(pos common.Vec2, p Params, gains []float64) {
	for _, sp := range s.lay.Speakers() {
		d := clampDist(pos.Dist(sp.Pos))
		gains[sp.Channel] = 1 / math.Pow(d, p.DistanceRolloff)
	}
	powerNormalize(gains)
}

// nearestGains puts the full signal on the single closest speaker.
// Comparison uses raw distances so a tie resolves to the lowest channel,
// not to whichever distance the clamp flattened first.
func (s *Strategy) nearestGains(pos common.Vec2, gains []float64) {
	spk := s.lay.Speakers()
	best := 0
	bestDist := math.Inf(1)
	for i, sp := range spk {
		if d := pos.Dist(sp.Pos); d < bestDist {
			bestDist = d
			best = i
		}
	}
	gains[spk[best].Channel] = 1
}
