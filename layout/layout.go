// Package layout models the physical transducer array: an ordered set of
// speakers on a 2D plane, each mapped to one output channel, plus the
// spatialization method selected for the array.
package layout

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/thawney/SpatialHaptics/common"
)

// Method names one of the spatialization algorithms.
type Method string

const (
	TactileGrid     Method = "tactile_grid"
	VBAP            Method = "vbap"
	DistancePan     Method = "distance_pan"
	NearestNeighbor Method = "nearest_neighbor"
	ITDILD          Method = "itd_ild"
)

// Methods lists every known method, in presentation order.
func Methods() []Method {
	return []Method{TactileGrid, VBAP, DistancePan, NearestNeighbor, ITDILD}
}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown method %q (valid: tactile_grid, vbap, distance_pan, nearest_neighbor, itd_ild)", s)
}

func (m Method) String() string { return string(m) }

// Speaker is one transducer: an output channel and a position in meters.
type Speaker struct {
	Channel int         // output channel index, unique within a layout
	Pos     common.Vec2 // position in meters
	Label   string      // optional name from the layout file
	Desc    string      // optional free-text description
}

// Layout is an immutable ordered speaker array. Speakers are kept sorted
// by channel; the zero-speaker case is rejected at construction.
type Layout struct {
	speakers []Speaker
	method   Method
	centroid common.Vec2
}

// New builds a layout from the given speakers. Channel collisions are an
// error; gaps in the channel sequence are reported but allowed, the missing
// channels simply stay silent.
func New(speakers []Speaker, method Method) (*Layout, error) {
	if len(speakers) == 0 {
		return nil, fmt.Errorf("layout has no speakers")
	}
	if method == "" {
		method = TactileGrid
	}

	sorted := make([]Speaker, len(speakers))
	copy(sorted, speakers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Channel < sorted[j].Channel
	})

	seen := make(map[int]string, len(sorted))
	for _, s := range sorted {
		if s.Channel < 0 {
			return nil, fmt.Errorf("speaker %q has negative channel %d", s.Label, s.Channel)
		}
		if prev, ok := seen[s.Channel]; ok {
			return nil, fmt.Errorf("channel %d assigned to both %q and %q", s.Channel, prev, s.Label)
		}
		seen[s.Channel] = s.Label
	}

	var missing []int
	for c := 0; c <= sorted[len(sorted)-1].Channel; c++ {
		if _, ok := seen[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		log.Printf("layout: channels %v have no speaker and will stay silent", missing)
	}

	var cx, cy float64
	for _, s := range sorted {
		cx += s.Pos.X
		cy += s.Pos.Y
	}
	n := float64(len(sorted))

	return &Layout{
		speakers: sorted,
		method:   method,
		centroid: common.Vec2{X: cx / n, Y: cy / n},
	}, nil
}

// Speakers returns the speakers in channel order. The slice is shared;
// callers must not modify it.
func (l *Layout) Speakers() []Speaker { return l.speakers }

// Len returns the number of speakers.
func (l *Layout) Len() int { return len(l.speakers) }

// Channels returns the number of output channels the array needs,
// max channel + 1.
func (l *Layout) Channels() int {
	return l.speakers[len(l.speakers)-1].Channel + 1
}

// ByChannel looks up the speaker driving the given channel.
func (l *Layout) ByChannel(c int) (Speaker, bool) {
	i := sort.Search(len(l.speakers), func(i int) bool {
		return l.speakers[i].Channel >= c
	})
	if i < len(l.speakers) && l.speakers[i].Channel == c {
		return l.speakers[i], true
	}
	return Speaker{}, false
}

// Centroid returns the mean speaker position. VBAP measures all angles
// about this point.
func (l *Layout) Centroid() common.Vec2 { return l.centroid }

// Method returns the method selected when the layout was built.
func (l *Layout) Method() Method { return l.method }

// Grid places size×size speakers spacing meters apart, centered on offset.
// Channels count bottom-to-top within a column, columns left-to-right, so
// channel 0 is the bottom-left corner.
func Grid(size int, spacing float64, offset common.Vec2) []Speaker {
	speakers := make([]Speaker, 0, size*size)
	half := float64(size-1) / 2
	ch := 0
	for col := 0; col < size; col++ {
		x := offset.X + (float64(col)-half)*spacing
		for row := 0; row < size; row++ {
			y := offset.Y + (float64(row)-half)*spacing
			speakers = append(speakers, Speaker{
				Channel: ch,
				Pos:     common.Vec2{X: x, Y: y},
				Label:   fmt.Sprintf("grid_%d_%d", col, row),
			})
			ch++
		}
	}
	return speakers
}

// Circle places count speakers evenly around offset at the given radius.
// Channel 0 sits at angle 0 (positive x axis); channels advance
// counterclockwise.
func Circle(count int, radius float64, offset common.Vec2) []Speaker {
	speakers := make([]Speaker, 0, count)
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi * float64(i) / float64(count)
		speakers = append(speakers, Speaker{
			Channel: i,
			Pos: common.Vec2{
				X: offset.X + radius*math.Cos(angle),
				Y: offset.Y + radius*math.Sin(angle),
			},
			Label: fmt.Sprintf("circle_%d", i),
		})
	}
	return speakers
}

// Line places count speakers along a centered line of the given length,
// rotated angleDeg degrees counterclockwise from the x axis. Channels run
// along the line direction.
func Line(count int, length, angleDeg float64, offset common.Vec2) []Speaker {
	speakers := make([]Speaker, 0, count)
	rad := angleDeg * math.Pi / 180
	dx, dy := math.Cos(rad), math.Sin(rad)
	spacing := 0.0
	if count > 1 {
		spacing = length / float64(count-1)
	}
	start := -length / 2
	if count == 1 {
		start = 0
	}
	for i := 0; i < count; i++ {
		d := start + float64(i)*spacing
		speakers = append(speakers, Speaker{
			Channel: i,
			Pos: common.Vec2{
				X: offset.X + d*dx,
				Y: offset.Y + d*dy,
			},
			Label: fmt.Sprintf("line_%d", i),
		})
	}
	return speakers
}
