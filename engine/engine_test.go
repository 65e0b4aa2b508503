package engine

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/thawney/SpatialHaptics/common"
	"github.com/thawney/SpatialHaptics/layout"
	"github.com/thawney/SpatialHaptics/render"
	"github.com/thawney/SpatialHaptics/script"
)

func testLayout(t *testing.T, m layout.Method) *layout.Layout {
	t.Helper()
	lay, err := layout.New(layout.Grid(2, 0.04, common.Vec2{}), m)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return lay
}

func mustParse(t *testing.T, text string) []script.Command {
	t.Helper()
	cmds, err := script.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return cmds
}

func readFrames(r *render.Renderer, frames int) []float64 {
	dst := make([]float64, frames*r.Channels())
	r.ReadBlock(dst)
	return dst
}

func windowEnergy(samples []float64, channels, ch, from, to int) float64 {
	var e float64
	for f := from; f < to; f++ {
		s := samples[f*channels+ch]
		e += s * s
	}
	return e
}

func TestScheduler_Run_WaitSchedulesSilence(t *testing.T) {
	lay := testLayout(t, layout.NearestNeighbor)
	r := render.New(2000, lay.Channels())
	sched := New(lay, r, NewVirtualClock())

	cmds := mustParse(t, `SOUND -0.02,-0.02 FREQ=100 AMP=1.0
WAIT 1.5
SOUND 0.02,-0.02 FREQ=100 AMP=1.0`)

	end, err := sched.Run(cmds)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 0.1 tone + 1.5 wait + 0.1 tone.
	if !floatNear(end, 1.7, 1e-9) {
		t.Errorf("end: expected 1.7, got %f", end)
	}
	if sched.Events() != 2 {
		t.Errorf("events: expected 2, got %d", sched.Events())
	}
	if r.PendingCount() != 2 {
		t.Errorf("pending: expected 2, got %d", r.PendingCount())
	}

	samples := readFrames(r, 3500)

	if windowEnergy(samples, 4, 0, 0, 200) == 0 {
		t.Error("channel 0 should carry the first tone")
	}
	// The wait is dead air: nothing sounds between the tones.
	for ch := 0; ch < 4; ch++ {
		if e := windowEnergy(samples, 4, ch, 300, 3100); e != 0 {
			t.Errorf("channel %d should be silent during the wait, energy %g", ch, e)
		}
	}
	if windowEnergy(samples, 4, 2, 3200, 3400) == 0 {
		t.Error("channel 2 should carry the second tone at 1.6s")
	}
	if windowEnergy(samples, 4, 1, 0, 3500) != 0 || windowEnergy(samples, 4, 3, 0, 3500) != 0 {
		t.Error("channels 1 and 3 should never sound")
	}
}

func TestScheduler_Run_WaitingStateVisible(t *testing.T) {
	lay := testLayout(t, layout.NearestNeighbor)
	clock := NewVirtualClock()
	sched := New(lay, render.New(2000, lay.Channels()), clock)

	if sched.State() != StateIdle {
		t.Errorf("before run: expected idle, got %s", sched.State())
	}

	var during State
	var target float64
	clock.OnWait = func(until float64) {
		during = sched.State()
		target = until
	}

	if _, err := sched.Run([]script.Command{script.Wait{Seconds: 1.5}}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if during != StateWaiting {
		t.Errorf("inside wait: expected waiting, got %s", during)
	}
	if !floatNear(target, 1.5, 1e-9) {
		t.Errorf("wait target: expected 1.5, got %f", target)
	}
	if sched.State() != StateFinished {
		t.Errorf("after run: expected finished, got %s", sched.State())
	}
}

func TestScheduler_Stop_InterruptsWait(t *testing.T) {
	lay := testLayout(t, layout.NearestNeighbor)
	sched := New(lay, render.New(2000, lay.Channels()), NewRealClock())

	go func() {
		time.Sleep(30 * time.Millisecond)
		sched.Stop()
	}()

	start := time.Now()
	_, err := sched.Run([]script.Command{script.Wait{Seconds: 60}})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("stop took too long: %v", elapsed)
	}
	if sched.State() != StateFinished {
		t.Errorf("after stop: expected finished, got %s", sched.State())
	}
}

func TestScheduler_Run_ArcStepsAcrossChannels(t *testing.T) {
	lay := testLayout(t, layout.NearestNeighbor)
	r := render.New(2000, lay.Channels())
	sched := New(lay, r, NewVirtualClock())

	cmds := mustParse(t, "ARC -0.02,-0.02 0.02,-0.02 DURATION=0.3 STEPS=3 FREQ=150 AMP=1.0")
	end, err := sched.Run(cmds)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !floatNear(end, 0.3, 1e-9) {
		t.Errorf("end: expected 0.3, got %f", end)
	}
	if sched.Events() != 3 {
		t.Errorf("events: expected 3, got %d", sched.Events())
	}

	samples := readFrames(r, 700)

	// Bursts at the left corner, the bottom-edge midpoint (tie resolves to
	// channel 0), then the right corner.
	if windowEnergy(samples, 4, 0, 0, 400) == 0 {
		t.Error("channel 0 should carry the first two bursts")
	}
	if windowEnergy(samples, 4, 2, 0, 400) != 0 {
		t.Error("channel 2 should be silent before the last burst")
	}
	if windowEnergy(samples, 4, 2, 400, 600) == 0 {
		t.Error("channel 2 should carry the final burst")
	}
	if windowEnergy(samples, 4, 1, 0, 700) != 0 || windowEnergy(samples, 4, 3, 0, 700) != 0 {
		t.Error("top-row channels should never sound")
	}
}

func TestPathPoint(t *testing.T) {
	p1 := common.Vec2{X: 0, Y: 0}
	p2 := common.Vec2{X: 1, Y: 2}
	p3 := common.Vec2{X: 2, Y: 0}

	// A straight 3-point path ignores its middle point.
	mid := pathPoint([]common.Vec2{p1, p2, p3}, script.ModeStraight, 0.5)
	if !floatNear(mid.X, 1, 1e-12) || !floatNear(mid.Y, 0, 1e-12) {
		t.Errorf("straight midpoint: expected (1,0), got %v", mid)
	}

	// The curve hits both endpoints exactly.
	if p := pathPoint([]common.Vec2{p1, p2, p3}, script.ModeCurved, 0); p != p1 {
		t.Errorf("curved start: expected %v, got %v", p1, p)
	}
	if p := pathPoint([]common.Vec2{p1, p2, p3}, script.ModeCurved, 1); p != p3 {
		t.Errorf("curved end: expected %v, got %v", p3, p)
	}

	// Quadratic Bézier midpoint: p1/4 + p2/2 + p3/4.
	mid = pathPoint([]common.Vec2{p1, p2, p3}, script.ModeCurved, 0.5)
	if !floatNear(mid.X, 1, 1e-12) || !floatNear(mid.Y, 1, 1e-12) {
		t.Errorf("curved midpoint: expected (1,1), got %v", mid)
	}

	// Two points degrade to a straight segment whatever the mode.
	mid = pathPoint([]common.Vec2{p1, p3}, script.ModeCurved, 0.5)
	if !floatNear(mid.X, 1, 1e-12) || !floatNear(mid.Y, 0, 1e-12) {
		t.Errorf("two-point path: expected (1,0), got %v", mid)
	}
}

func TestScheduler_Apply(t *testing.T) {
	lay := testLayout(t, layout.TactileGrid)
	sched := New(lay, render.New(2000, lay.Channels()), NewVirtualClock())

	if err := sched.Apply("itd_exaggeration", 2.5); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := sched.Config().Spatial.ITDExaggeration; got != 2.5 {
		t.Errorf("itd_exaggeration: expected 2.5, got %f", got)
	}
	if err := sched.Apply("use_gaussian", 1); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !sched.Config().Spatial.UseGaussian {
		t.Error("use_gaussian: expected true")
	}
	if err := sched.Apply("max_active_speakers", 3); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := sched.Config().Spatial.MaxActiveSpeakers; got != 3 {
		t.Errorf("max_active_speakers: expected 3, got %d", got)
	}

	if err := sched.Apply("mystery", 1); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("unknown key: expected error, got %v", err)
	}

	// A rejected value leaves the configuration untouched.
	if err := sched.Apply("tone_duration", -1); err == nil {
		t.Error("negative tone_duration should be rejected")
	}
	if got := sched.Config().ToneDuration; got != 0.1 {
		t.Errorf("tone_duration after rejected apply: expected 0.1, got %f", got)
	}
	if err := sched.Apply("fade_duration", -0.5); err == nil {
		t.Error("negative fade_duration should be rejected")
	}
}

func TestScheduler_Run_AssignAbortsOnBadValue(t *testing.T) {
	lay := testLayout(t, layout.TactileGrid)
	sched := New(lay, render.New(2000, lay.Channels()), NewVirtualClock())

	_, err := sched.Run([]script.Command{script.Assign{Key: "nope", Value: 1}})
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestScheduler_Run_ConfigSnapshotTiming(t *testing.T) {
	lay := testLayout(t, layout.NearestNeighbor)
	sched := New(lay, render.New(2000, lay.Channels()), NewVirtualClock())

	cmds := mustParse(t, `tone_duration = 0.2
SOUND 0.0,0.0 FREQ=100 AMP=0.5
tone_duration = 0.05
SOUND 0.0,0.0 FREQ=100 AMP=0.5`)

	end, err := sched.Run(cmds)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Each burst uses the duration in force when it was emitted.
	if !floatNear(end, 0.25, 1e-9) {
		t.Errorf("end: expected 0.25, got %f", end)
	}
	if got := sched.Config().ToneDuration; got != 0.05 {
		t.Errorf("final tone_duration: expected 0.05, got %f", got)
	}
}

func TestScheduler_Run_MethodSwitch(t *testing.T) {
	lay := testLayout(t, layout.TactileGrid)
	r := render.New(2000, lay.Channels())
	sched := New(lay, r, NewVirtualClock())

	cmds := mustParse(t, `method = nearest_neighbor
SOUND -0.02,-0.02 FREQ=100 AMP=1.0`)

	if _, err := sched.Run(cmds); err != nil {
		t.Fatalf("run: %v", err)
	}
	samples := readFrames(r, 300)

	// tactile_grid would spread the burst over all four speakers; the
	// switch restricts it to channel 0.
	if windowEnergy(samples, 4, 0, 0, 200) == 0 {
		t.Error("channel 0 should sound")
	}
	for ch := 1; ch < 4; ch++ {
		if e := windowEnergy(samples, 4, ch, 0, 300); e != 0 {
			t.Errorf("channel %d should be silent after the method switch, energy %g", ch, e)
		}
	}
}

func TestScheduler_Run_JumpMovesCursor(t *testing.T) {
	lay := testLayout(t, layout.NearestNeighbor)
	sched := New(lay, render.New(2000, lay.Channels()), NewVirtualClock())

	want := common.Vec2{X: 0.3, Y: -0.4}
	end, err := sched.Run([]script.Command{script.Jump{Pos: want}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if end != 0 {
		t.Errorf("jump should not advance time, got %f", end)
	}
	if sched.Cursor() != want {
		t.Errorf("cursor: expected %v, got %v", want, sched.Cursor())
	}
	if sched.Events() != 0 {
		t.Errorf("jump should emit nothing, got %d events", sched.Events())
	}
}

func TestScheduler_Run_SmoothCommandsEmitOneEvent(t *testing.T) {
	lay := testLayout(t, layout.TactileGrid)
	r := render.New(2000, lay.Channels())
	sched := New(lay, r, NewVirtualClock())

	cmds := mustParse(t, `CIRCLE_SMOOTH CENTER=0.0,0.0 RADIUS=0.05 DURATION=0.5 STEPS=50 FREQ=200 AMP=0.5
FREQ_RAMP_SMOOTH POS=0.0,0.0 START_FREQ=100 END_FREQ=200 DURATION=0.4 AMP=0.5`)

	end, err := sched.Run(cmds)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !floatNear(end, 0.9, 1e-9) {
		t.Errorf("end: expected 0.9, got %f", end)
	}
	if sched.Events() != 2 {
		t.Errorf("events: expected one per smooth command, got %d", sched.Events())
	}
	if r.PendingCount() != 2 {
		t.Errorf("pending: expected 2, got %d", r.PendingCount())
	}
}

func TestScheduler_Run_FreqRampRaisesPitch(t *testing.T) {
	lay := testLayout(t, layout.NearestNeighbor)
	r := render.New(2000, lay.Channels())
	sched := New(lay, r, NewVirtualClock())

	cmds := mustParse(t, "FREQ_RAMP POS=0.0,0.0 START_FREQ=100 END_FREQ=200 DURATION=0.4 STEPS=2 AMP=1.0")
	if _, err := sched.Run(cmds); err != nil {
		t.Fatalf("run: %v", err)
	}
	samples := readFrames(r, 800)

	countCrossings := func(from, to int) int {
		n := 0
		for f := from + 1; f < to; f++ {
			if samples[(f-1)*4]*samples[f*4] < 0 {
				n++
			}
		}
		return n
	}
	early := countCrossings(0, 400)
	late := countCrossings(400, 800)
	if late < early*3/2 {
		t.Errorf("second burst should be higher pitched: %d early vs %d late crossings", early, late)
	}
}

func TestScheduler_Run_PathFreqRampSweepsFrequency(t *testing.T) {
	lay := testLayout(t, layout.NearestNeighbor)
	r := render.New(2000, lay.Channels())
	sched := New(lay, r, NewVirtualClock())

	cmds := mustParse(t, "PATH_FREQ_RAMP 0.0,0.0 0.0,0.0 START_FREQ=100 END_FREQ=300 DURATION=0.6 STEPS=3 AMP=1.0")
	if _, err := sched.Run(cmds); err != nil {
		t.Fatalf("run: %v", err)
	}
	samples := readFrames(r, 1200)

	countCrossings := func(from, to int) int {
		n := 0
		for f := from + 1; f < to; f++ {
			if samples[(f-1)*4]*samples[f*4] < 0 {
				n++
			}
		}
		return n
	}

	// A sine at f Hz crosses zero 2*f times a second, so the 0.2 s
	// bursts should count about 40, 80 and 120 crossings.
	c0 := countCrossings(0, 400)
	c1 := countCrossings(400, 800)
	c2 := countCrossings(800, 1200)
	if c0 < 34 || c0 > 46 {
		t.Errorf("first burst should ring at the start frequency, counted %d crossings", c0)
	}
	if c2 < 113 || c2 > 127 {
		t.Errorf("last burst should ring at the end frequency, counted %d crossings", c2)
	}
	if !(c0 < c1 && c1 < c2) {
		t.Errorf("crossing counts should rise with the ramp: %d, %d, %d", c0, c1, c2)
	}
}

func floatNear(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}
