// Package engine walks parsed script commands along a single timeline,
// expanding movement and ramp commands into absolute-time tone events for
// the renderer. The interpreter is single-threaded; WAIT is its only
// suspension point.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/thawney/SpatialHaptics/common"
	"github.com/thawney/SpatialHaptics/layout"
	"github.com/thawney/SpatialHaptics/render"
	"github.com/thawney/SpatialHaptics/script"
	"github.com/thawney/SpatialHaptics/spatial"
)

// ErrStopped reports a run ended by Stop rather than by running out of
// commands.
var ErrStopped = errors.New("run stopped")

// State is the interpreter lifecycle: Idle until Run, Waiting only inside
// a WAIT, Finished once the run ends.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateWaiting
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// Scheduler turns commands into tone events. Each event freezes the
// configuration and strategy in force when it was emitted, so assignments
// and method switches only shape what comes after them.
type Scheduler struct {
	lay   *layout.Layout
	out   *render.Renderer
	clock Clock

	cfg      render.Config
	strategy *spatial.Strategy
	cursor   common.Vec2
	t        float64
	emitted  int

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a scheduler bound to a layout and renderer. The method comes
// from the layout; the configuration starts at the defaults.
func New(lay *layout.Layout, out *render.Renderer, clock Clock) *Scheduler {
	return &Scheduler{
		lay:      lay,
		out:      out,
		clock:    clock,
		cfg:      render.DefaultConfig(),
		strategy: spatial.Bind(lay.Method(), lay),
		stop:     make(chan struct{}),
	}
}

// Apply sets one runtime tunable by its script key. Booleans arrive as
// nonzero/zero. Layout file overrides come through here too.
func (s *Scheduler) Apply(key string, v float64) error {
	cfg := s.cfg
	switch key {
	case "itd_exaggeration":
		cfg.Spatial.ITDExaggeration = v
	case "ild_exponent":
		cfg.Spatial.ILDExponent = v
	case "tone_duration":
		if v <= 0 {
			return fmt.Errorf("tone_duration wants a positive number of seconds")
		}
		cfg.ToneDuration = v
	case "fade_duration":
		if v < 0 {
			return fmt.Errorf("fade_duration cannot be negative")
		}
		cfg.FadeDuration = v
	case "tactile_exaggeration":
		cfg.Spatial.TactileExagg = v
	case "distance_rolloff":
		cfg.Spatial.DistanceRolloff = v
	case "use_gaussian":
		cfg.Spatial.UseGaussian = v != 0
	case "gaussian_sigma":
		cfg.Spatial.GaussianSigma = v
	case "max_active_speakers":
		cfg.Spatial.MaxActiveSpeakers = int(v)
	case "smooth_min_distance":
		cfg.Spatial.SmoothMinDistance = v
	case "distance_power":
		cfg.Spatial.DistancePower = v
	case "tactile_enhancement":
		cfg.Spatial.TactileEnhance = v
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	s.cfg = cfg
	return nil
}

// SetMethod rebinds the spatialization strategy. Takes effect for events
// emitted afterwards; in-flight events keep the strategy they captured.
func (s *Scheduler) SetMethod(m layout.Method) {
	s.strategy = spatial.Bind(m, s.lay)
}

// Config returns the current tuning snapshot.
func (s *Scheduler) Config() render.Config { return s.cfg }

// Cursor returns the position set by the last JUMP.
func (s *Scheduler) Cursor() common.Vec2 { return s.cursor }

// State returns the interpreter state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Events returns how many tone events the run has emitted.
func (s *Scheduler) Events() int { return s.emitted }

// Stop interrupts a running script. A blocked WAIT returns immediately.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run executes commands in order and returns the final timeline position.
// The interpreter ends Finished whether it ran out, failed, or was
// stopped.
func (s *Scheduler) Run(cmds []script.Command) (float64, error) {
	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateFinished))

	for _, cmd := range cmds {
		select {
		case <-s.stop:
			return s.t, ErrStopped
		default:
		}

		switch c := cmd.(type) {
		case script.Wait:
			s.state.Store(int32(StateWaiting))
			target := s.t + c.Seconds
			s.clock.SleepUntil(target, s.stop)
			s.state.Store(int32(StateRunning))
			select {
			case <-s.stop:
				return s.t, ErrStopped
			default:
			}
			s.t = target

		case script.Jump:
			s.cursor = c.Pos

		case script.Assign:
			if err := s.Apply(c.Key, c.Value); err != nil {
				return s.t, err
			}

		case script.SetMethod:
			s.SetMethod(c.Method)

		case script.Sound:
			s.emitFixed(s.t, s.cfg.ToneDuration, c.Pos, c.Freq, c.Amp)
			s.t += s.cfg.ToneDuration

		case script.Arc:
			s.emitSteps(c.Duration, c.Steps, c.Amp, func(frac float64) (common.Vec2, float64) {
				return pathPoint(c.Points, c.Mode, frac), c.Freq
			})

		case script.FreqRamp:
			s.emitSteps(c.Duration, c.Steps, c.Amp, func(frac float64) (common.Vec2, float64) {
				return c.Pos, common.LerpFloat(c.StartFreq, c.EndFreq, frac)
			})

		case script.PathFreqRamp:
			s.emitSteps(c.Duration, c.Steps, c.Amp, func(frac float64) (common.Vec2, float64) {
				return pathPoint(c.Points, c.Mode, frac), common.LerpFloat(c.StartFreq, c.EndFreq, frac)
			})

		case script.CircleSmooth:
			center, radius := c.Center, c.Radius
			s.emitTrajectory(c.Duration, c.Steps, c.Amp,
				func(frac float64) common.Vec2 {
					a := 2 * math.Pi * frac
					return common.Vec2{
						X: center.X + radius*math.Cos(a),
						Y: center.Y + radius*math.Sin(a),
					}
				},
				func(frac float64) float64 { return c.Freq })

		case script.FreqRampSmooth:
			pos, f0, f1 := c.Pos, c.StartFreq, c.EndFreq
			s.emitTrajectory(c.Duration, 0, c.Amp,
				func(frac float64) common.Vec2 { return pos },
				func(frac float64) float64 { return common.LerpFloat(f0, f1, frac) })

		default:
			return s.t, fmt.Errorf("unhandled command %T", cmd)
		}
	}
	return s.t, nil
}

// emitSteps splits a duration into equal bursts, sampling position and
// frequency at frac = i/(steps-1).
func (s *Scheduler) emitSteps(duration float64, steps int, amp float64, at func(frac float64) (common.Vec2, float64)) {
	stepDur := duration / float64(steps)
	for i := 0; i < steps; i++ {
		frac := 0.0
		if steps > 1 {
			frac = float64(i) / float64(steps-1)
		}
		pos, freq := at(frac)
		s.emitFixed(s.t+float64(i)*stepDur, stepDur, pos, freq, amp)
	}
	s.t += duration
}

func (s *Scheduler) emitFixed(start, dur float64, pos common.Vec2, freq, amp float64) {
	s.out.Enqueue(render.FixedTone{
		Start:    start,
		Duration: dur,
		Freq:     freq,
		Amp:      amp,
		Pos:      pos,
		Config:   s.cfg,
		Strategy: s.strategy,
	})
	s.emitted++
}

func (s *Scheduler) emitTrajectory(duration float64, resolution int, amp float64, pos func(float64) common.Vec2, freq func(float64) float64) {
	s.out.Enqueue(render.TrajectoryTone{
		Start:      s.t,
		Duration:   duration,
		Pos:        pos,
		Freq:       freq,
		Amp:        amp,
		Resolution: resolution,
		Config:     s.cfg,
		Strategy:   s.strategy,
	})
	s.emitted++
	s.t += duration
}

// pathPoint interpolates along 2 or 3 script points. A straight 3-point
// path ignores its middle point; a curved one traces the quadratic Bézier
// through it.
func pathPoint(pts []common.Vec2, mode script.PathMode, frac float64) common.Vec2 {
	if len(pts) == 2 || mode == script.ModeStraight {
		return common.Lerp(pts[0], pts[len(pts)-1], frac)
	}
	u := 1 - frac
	p1, p2, p3 := pts[0], pts[1], pts[2]
	return common.Vec2{
		X: u*u*p1.X + 2*u*frac*p2.X + frac*frac*p3.X,
		Y: u*u*p1.Y + 2*u*frac*p2.Y + frac*frac*p3.Y,
	}
}
