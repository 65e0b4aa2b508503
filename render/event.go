package render

import (
	"github.com/thawney/SpatialHaptics/common"
	"github.com/thawney/SpatialHaptics/spatial"
)

// Event is a scheduled tone. FixedTone and TrajectoryTone are the only
// shapes; the renderer switches on the concrete type.
type Event interface {
	toneEvent()
}

// FixedTone is a static burst: one position, one frequency.
type FixedTone struct {
	Start    float64 // absolute timeline seconds
	Duration float64 // seconds
	Freq     float64 // Hz
	Amp      float64 // linear amplitude, 0..1
	Pos      common.Vec2

	Config   Config            // frozen at enqueue
	Strategy *spatial.Strategy // bound at enqueue
}

// TrajectoryTone is one continuous tone whose position and frequency are
// functions of the normalized lifetime frac in [0,1]. Resolution hints how
// many gain evaluations to spread over the lifetime.
type TrajectoryTone struct {
	Start      float64
	Duration   float64
	Pos        func(frac float64) common.Vec2
	Freq       func(frac float64) float64
	Amp        float64
	Resolution int

	Config   Config
	Strategy *spatial.Strategy
}

func (FixedTone) toneEvent()      {}
func (TrajectoryTone) toneEvent() {}

// voiceHeap orders prepared voices by start frame.
type voiceHeap []*voice

func (h voiceHeap) Len() int            { return len(h) }
func (h voiceHeap) Less(i, j int) bool  { return h[i].start < h[j].start }
func (h voiceHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *voiceHeap) Push(x interface{}) { *h = append(*h, x.(*voice)) }
func (h *voiceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return v
}
