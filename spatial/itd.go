package spatial

import (
	"math"

	"github.com/thawney/SpatialHaptics/common"
)

const speedOfSound = 343.0 // m/s

// itdildGains pans a two-speaker pair with time and level differences.
// The lower channel is the left speaker. The nearer speaker leads: the
// farther one gets a start delay of the travel-time difference, scaled by
// ITDExaggeration. Levels follow (d_right/d_left)^ILDExponent with total
// power conserved. Bind guarantees exactly two speakers here.
func (s *Strategy) itdildGains(pos common.Vec2, p Params, gains, delays []float64) {
	spk := s.lay.Speakers()
	left, right := spk[0], spk[1]

	dl := clampDist(pos.Dist(left.Pos))
	dr := clampDist(pos.Dist(right.Pos))

	itd := (dl - dr) / speedOfSound * p.ITDExaggeration
	if itd > 0 {
		delays[left.Channel] = itd
	} else {
		delays[right.Channel] = -itd
	}

	ratio := math.Pow(dr/dl, p.ILDExponent)
	norm := math.Sqrt(1 + ratio*ratio)
	gains[left.Channel] = ratio / norm
	gains[right.Channel] = 1 / norm
}
