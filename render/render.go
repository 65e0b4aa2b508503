// Package render mixes scheduled tone events into interleaved per-channel
// sample blocks. The renderer is pull-driven: a sink asks for blocks and
// always gets one, silent if nothing is playing. It never waits on the
// scheduler.
package render

import (
	"container/heap"
	"math"
	"sync"
)

// Gain evaluations along a trajectory never run sparser than this.
const maxGainInterval = 0.010 // seconds

// Channels below this gain are skipped entirely.
const minAudibleGain = 0.001

// Summed samples pass the limiter knee into a tanh squash instead of
// clipping.
const limiterKnee = 0.95

// Renderer mixes tone events into blocks of interleaved float64 samples in
// [-1, 1]. Enqueue may be called from any goroutine; ReadBlock is meant
// for the audio goroutine. Strategy evaluation happens in Enqueue, off the
// audio path.
type Renderer struct {
	sampleRate int
	channels   int

	mu      sync.Mutex
	pending voiceHeap
	active  []*voice
	cursor  int64 // absolute frames rendered since start or Reset
	master  float64

	stopping   bool
	rampFrames int64
	rampPos    int64
}

// New creates a renderer for the given sample rate and channel count.
func New(sampleRate, channels int) *Renderer {
	return &Renderer{
		sampleRate: sampleRate,
		channels:   channels,
		master:     1,
	}
}

// SampleRate returns the output sample rate in Hz.
func (r *Renderer) SampleRate() int { return r.sampleRate }

// Channels returns the number of interleaved output channels.
func (r *Renderer) Channels() int { return r.channels }

// SetMasterGain scales all output. 1 is unity.
func (r *Renderer) SetMasterGain(g float64) {
	r.mu.Lock()
	r.master = g
	r.mu.Unlock()
}

// Enqueue schedules an event for playback at its absolute start time.
// Events that arrive with a start already in the past begin at the next
// rendered tick instead, never earlier. Enqueues after Stop are dropped.
func (r *Renderer) Enqueue(ev Event) {
	var v *voice
	switch t := ev.(type) {
	case FixedTone:
		v = r.buildFixed(t)
	case TrajectoryTone:
		v = r.buildTrajectory(t)
	default:
		return
	}
	r.mu.Lock()
	if !r.stopping {
		heap.Push(&r.pending, v)
	}
	r.mu.Unlock()
}

// Stop flushes everything not yet playing and fades the live mix to zero
// over fade seconds.
func (r *Renderer) Stop(fade float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping {
		return
	}
	r.stopping = true
	r.pending = nil
	r.rampFrames = int64(math.Round(fade * float64(r.sampleRate)))
	if r.rampFrames < 1 {
		r.rampFrames = 1
	}
	r.rampPos = 0
}

// Reset returns a stopped or drained renderer to a clean timeline at
// frame 0.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
	r.active = nil
	r.cursor = 0
	r.stopping = false
	r.rampFrames = 0
	r.rampPos = 0
}

// Idle reports whether nothing is queued or playing.
func (r *Renderer) Idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) == 0 && len(r.active) == 0
}

// PendingCount returns the number of events waiting to start.
func (r *Renderer) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// ActiveCount returns the number of events currently sounding.
func (r *Renderer) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// RenderedFrames returns the number of frames produced so far.
func (r *Renderer) RenderedFrames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// ReadBlock fills dst, len(dst)/Channels() frames of interleaved samples.
// Unused regions are silent; the call never blocks on the scheduler.
func (r *Renderer) ReadBlock(dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
	frames := int64(len(dst) / r.channels)
	if frames == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	blockStart := r.cursor
	blockEnd := blockStart + frames
	r.cursor = blockEnd

	if r.stopping && r.rampPos >= r.rampFrames {
		r.active = nil
		return
	}

	for len(r.pending) > 0 && r.pending[0].start < blockEnd {
		v := heap.Pop(&r.pending).(*voice)
		if v.start < blockStart {
			v.start = blockStart
		}
		r.active = append(r.active, v)
	}

	for _, v := range r.active {
		if v.traj {
			r.renderTrajectory(v, dst, blockStart, blockEnd)
		} else {
			r.renderFixed(v, dst, blockStart, blockEnd)
		}
	}

	kept := r.active[:0]
	for _, v := range r.active {
		if v.start+v.frames+v.maxDelay > blockEnd {
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(r.active); i++ {
		r.active[i] = nil
	}
	r.active = kept

	for f := int64(0); f < frames; f++ {
		m := r.master
		if r.stopping {
			if pos := r.rampPos + f; pos >= r.rampFrames {
				m = 0
			} else {
				m *= 1 - float64(pos)/float64(r.rampFrames)
			}
		}
		base := int(f) * r.channels
		for ch := 0; ch < r.channels; ch++ {
			dst[base+ch] = softLimit(dst[base+ch] * m)
		}
	}
	if r.stopping {
		r.rampPos += frames
		if r.rampPos >= r.rampFrames {
			r.active = nil
		}
	}
}

// voice is an event prepared for mixing: times in frames, gains resolved.
type voice struct {
	start  int64 // effective start frame
	frames int64 // waveform length per channel
	fade   int64 // fade frames at each edge
	amp    float64

	// fixed tone
	freq      float64
	gains     []float64
	chanDelay []int64 // per-channel start shift, frames
	maxDelay  int64

	// trajectory tone
	traj      bool
	freqFn    func(frac float64) float64
	segGains  [][]float64
	segFrames int64
	phase     float64
}

func (r *Renderer) buildFixed(t FixedTone) *voice {
	sr := float64(r.sampleRate)
	frames := int64(math.Round(t.Duration * sr))
	if frames < 1 {
		frames = 1
	}
	gains, delays := t.Strategy.Gains(t.Pos, t.Config.Spatial)
	v := &voice{
		start:     int64(math.Round(t.Start * sr)),
		frames:    frames,
		fade:      fadeFrames(t.Config.FadeDuration, t.Duration, sr),
		amp:       t.Amp,
		freq:      t.Freq,
		gains:     fitChannels(gains, r.channels),
		chanDelay: make([]int64, r.channels),
	}
	for ch, d := range fitChannels(delays, r.channels) {
		f := int64(math.Round(d * sr))
		v.chanDelay[ch] = f
		if f > v.maxDelay {
			v.maxDelay = f
		}
	}
	return v
}

func (r *Renderer) buildTrajectory(t TrajectoryTone) *voice {
	sr := float64(r.sampleRate)
	frames := int64(math.Round(t.Duration * sr))
	if frames < 1 {
		frames = 1
	}
	segs := t.Resolution
	if floor := int(math.Ceil(t.Duration / maxGainInterval)); segs < floor {
		segs = floor
	}
	if segs < 1 {
		segs = 1
	}
	if int64(segs) > frames {
		segs = int(frames)
	}
	segFrames := frames / int64(segs)
	if segFrames < 1 {
		segFrames = 1
	}

	nsegs := int((frames + segFrames - 1) / segFrames)
	segGains := make([][]float64, 0, nsegs)
	for i := 0; i < nsegs; i++ {
		frac := (float64(i)*float64(segFrames) + float64(segFrames)/2) / float64(frames)
		if frac > 1 {
			frac = 1
		}
		g, _ := t.Strategy.Gains(t.Pos(frac), t.Config.Spatial)
		segGains = append(segGains, fitChannels(g, r.channels))
	}

	return &voice{
		start:     int64(math.Round(t.Start * sr)),
		frames:    frames,
		fade:      fadeFrames(t.Config.FadeDuration, t.Duration, sr),
		amp:       t.Amp,
		traj:      true,
		freqFn:    t.Freq,
		segGains:  segGains,
		segFrames: segFrames,
	}
}

func (r *Renderer) renderFixed(v *voice, dst []float64, blockStart, blockEnd int64) {
	sr := float64(r.sampleRate)
	omega := 2 * math.Pi * v.freq / sr
	for ch := 0; ch < r.channels; ch++ {
		g := v.gains[ch]
		if g < minAudibleGain {
			continue
		}
		g *= v.amp
		chStart := v.start + v.chanDelay[ch]
		lo := max(chStart, blockStart)
		hi := min(chStart+v.frames, blockEnd)
		for frame := lo; frame < hi; frame++ {
			k := frame - chStart
			s := math.Sin(omega*float64(k)) * envelope(k, v.frames, v.fade) * g
			dst[int(frame-blockStart)*r.channels+ch] += s
		}
	}
}

// renderTrajectory synthesizes with a running phase accumulator so the
// waveform stays continuous while the frequency moves.
func (r *Renderer) renderTrajectory(v *voice, dst []float64, blockStart, blockEnd int64) {
	sr := float64(r.sampleRate)
	lo := max(v.start, blockStart)
	hi := min(v.start+v.frames, blockEnd)
	denom := float64(v.frames - 1)
	if denom <= 0 {
		denom = 1
	}
	for frame := lo; frame < hi; frame++ {
		k := frame - v.start
		frac := float64(k) / denom
		v.phase += 2 * math.Pi * v.freqFn(frac) / sr
		s := math.Sin(v.phase) * envelope(k, v.frames, v.fade) * v.amp

		seg := int(k / v.segFrames)
		if seg >= len(v.segGains) {
			seg = len(v.segGains) - 1
		}
		gains := v.segGains[seg]

		base := int(frame-blockStart) * r.channels
		for ch := 0; ch < r.channels; ch++ {
			if g := gains[ch]; g >= minAudibleGain {
				dst[base+ch] += s * g
			}
		}
	}
}

// envelope is the linear fade window: 0 at the first sample, unity in the
// middle, back to 0 at the last.
func envelope(k, frames, fade int64) float64 {
	if fade <= 0 {
		return 1
	}
	e := 1.0
	if k < fade {
		e = float64(k) / float64(fade)
	}
	if tail := frames - 1 - k; tail < fade {
		if t := float64(tail) / float64(fade); t < e {
			e = t
		}
	}
	return e
}

// fadeFrames clamps the fade to half the tone so the two edges never
// overlap.
func fadeFrames(fadeSec, durSec, sampleRate float64) int64 {
	f := fadeSec
	if half := durSec / 2; f > half {
		f = half
	}
	if f < 0 {
		f = 0
	}
	return int64(math.Round(f * sampleRate))
}

func fitChannels(xs []float64, n int) []float64 {
	if len(xs) == n {
		return xs
	}
	out := make([]float64, n)
	copy(out, xs)
	return out
}

func softLimit(x float64) float64 {
	switch {
	case x > limiterKnee:
		return limiterKnee + (1-limiterKnee)*math.Tanh((x-limiterKnee)/(1-limiterKnee))
	case x < -limiterKnee:
		return -(limiterKnee + (1-limiterKnee)*math.Tanh((-x-limiterKnee)/(1-limiterKnee)))
	}
	return x
}
