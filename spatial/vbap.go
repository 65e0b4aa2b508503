package spatial

import (
	"math"
	"sort"

	"github.com/thawney/SpatialHaptics/common"
)

// vbapGains pans between the two speakers whose angles about the layout
// centroid bracket the source angle. The square-root law keeps
// g1² + g2² = 1 across the pair.
func (s *Strategy) vbapGains(pos common.Vec2, gains []float64) {
	spk := s.lay.Speakers()
	if len(spk) == 1 {
		gains[spk[0].Channel] = 1
		return
	}

	center := s.lay.Centroid()
	type entry struct {
		ch    int
		angle float64
	}
	byAngle := make([]entry, len(spk))
	for i, sp := range spk {
		byAngle[i] = entry{ch: sp.Channel, angle: angleAbout(center, sp.Pos)}
	}
	sort.SliceStable(byAngle, func(i, j int) bool { return byAngle[i].angle < byAngle[j].angle })

	src := angleAbout(center, pos)

	// lo = last speaker at or below the source angle; below the first
	// speaker the bracket wraps around from the last one.
	lo := len(byAngle) - 1
	for i, e := range byAngle {
		if e.angle <= src {
			lo = i
		} else {
			break
		}
	}
	hi := (lo + 1) % len(byAngle)

	span := byAngle[hi].angle - byAngle[lo].angle
	if span <= 0 {
		span += 2 * math.Pi
	}
	rel := src - byAngle[lo].angle
	if rel < 0 {
		rel += 2 * math.Pi
	}
	t := 0.0
	if span > 1e-12 {
		t = rel / span
	}
	if t > 1 {
		t = 1
	}

	gains[byAngle[lo].ch] += math.Sqrt(1 - t)
	gains[byAngle[hi].ch] += math.Sqrt(t)
}

// angleAbout returns the angle of p as seen from origin, in [0, 2π).
func angleAbout(origin, p common.Vec2) float64 {
	a := math.Atan2(p.Y-origin.Y, p.X-origin.X)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
