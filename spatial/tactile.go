package spatial

import (
	"math"
	"sort"

	"github.com/thawney/SpatialHaptics/common"
)

// tactileGains drives the MaxActiveSpeakers nearest speakers with smoothed
// inverse-distance weights (or a gaussian bell), then power-normalizes the
// vector so intensity stays flat as the source crosses the array.
func (s *Strategy) tactileGains(pos common.Vec2, p Params, gains []float64) {
	spk := s.lay.Speakers()
	type cand struct {
		ch int
		d  float64
	}
	cands := make([]cand, len(spk))
	for i, sp := range spk {
		cands[i] = cand{ch: sp.Channel, d: clampDist(pos.Dist(sp.Pos))}
	}
	// Stable keeps equal distances in channel order.
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].d < cands[j].d })

	k := p.MaxActiveSpeakers
	if k <= 0 || k > len(cands) {
		k = len(cands)
	}
	sel := cands[:k]

	weights := make([]float64, k)
	var total float64
	for i, c := range sel {
		if p.UseGaussian {
			weights[i] = math.Exp(-(c.d * c.d) / (2 * p.GaussianSigma * p.GaussianSigma))
		} else {
			weights[i] = 1 / math.Pow(c.d+p.SmoothMinDistance, p.DistancePower)
		}
		total += weights[i]
	}
	if total <= 0 {
		// Gaussian weights underflow when the source is far from every
		// speaker; hand the event to the nearest one.
		weights[0] = 1
		total = 1
	}

	for i, c := range sel {
		gains[c.ch] = weights[i] / total * p.TactileEnhance
	}
	powerNormalize(gains)
}
