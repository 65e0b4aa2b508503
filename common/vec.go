package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vec2 is a 2D point or direction in meters. The speaker plane uses
// x to the right and y upward, matching the layout directives.
type Vec2 struct {
	X float64
	Y float64
}

// Add returns v + w.
func (v Vec2) Add(w Vec2) Vec2 {
	return Vec2{v.X + w.X, v.Y + w.Y}
}

// Sub returns v - w.
func (v Vec2) Sub(w Vec2) Vec2 {
	return Vec2{v.X - w.X, v.Y - w.Y}
}

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Dist returns the Euclidean distance between v and w.
func (v Vec2) Dist(w Vec2) float64 {
	dx := v.X - w.X
	dy := v.Y - w.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Lerp linearly interpolates from a to b. t=0 yields a, t=1 yields b.
func Lerp(a, b Vec2, t float64) Vec2 {
	return Vec2{
		X: a.X + t*(b.X-a.X),
		Y: a.Y + t*(b.Y-a.Y),
	}
}

// LerpFloat linearly interpolates a scalar from a to b.
func LerpFloat(a, b, t float64) float64 {
	return a + t*(b-a)
}

// ParseVec parses an "x,y" pair with no internal whitespace, the point
// form used by layout directives and script commands.
func ParseVec(s string) (Vec2, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Vec2{}, fmt.Errorf("%q is not an x,y pair", s)
	}
	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Vec2{}, fmt.Errorf("bad x coordinate %q", parts[0])
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Vec2{}, fmt.Errorf("bad y coordinate %q", parts[1])
	}
	return Vec2{X: x, Y: y}, nil
}
