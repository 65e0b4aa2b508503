// Package script parses timeline scripts into typed commands. The grammar
// is line oriented: one command per line, # comments, blank lines ignored,
// and key = value lines for runtime tuning. Parsing is fail-fast; the
// first bad line aborts the whole script.
package script

import (
	"fmt"

	"github.com/thawney/SpatialHaptics/common"
	"github.com/thawney/SpatialHaptics/layout"
)

// Command is one parsed script line. The set of implementations is closed.
type Command interface {
	scriptCommand()
}

// PathMode selects how a 3-point path is traced.
type PathMode int

const (
	// ModeStraight interpolates start to end; a middle point is ignored.
	ModeStraight PathMode = iota
	// ModeCurved traces a quadratic Bézier through the control point.
	ModeCurved
)

func (m PathMode) String() string {
	if m == ModeCurved {
		return "CURVED"
	}
	return "STRAIGHT"
}

// Wait pauses the timeline for Seconds.
type Wait struct {
	Seconds float64
}

// Jump moves the position cursor without emitting sound.
type Jump struct {
	Pos common.Vec2
}

// Sound plays one tone burst at a fixed position.
type Sound struct {
	Pos  common.Vec2
	Freq float64
	Amp  float64
}

// Arc sweeps a tone along a path as discrete bursts.
type Arc struct {
	Points   []common.Vec2 // 2 or 3 points
	Duration float64
	Steps    int
	Freq     float64
	Amp      float64
	Mode     PathMode
}

// CircleSmooth traces one continuous tone around a circle.
type CircleSmooth struct {
	Center   common.Vec2
	Radius   float64
	Duration float64
	Steps    int // gain evaluation resolution hint
	Freq     float64
	Amp      float64
}

// FreqRamp steps frequency from StartFreq to EndFreq at a fixed position,
// as discrete bursts.
type FreqRamp struct {
	Pos       common.Vec2
	StartFreq float64
	EndFreq   float64
	Duration  float64
	Steps     int
	Amp       float64
}

// FreqRampSmooth sweeps frequency continuously at a fixed position.
type FreqRampSmooth struct {
	Pos       common.Vec2
	StartFreq float64
	EndFreq   float64
	Duration  float64
	Amp       float64
}

// PathFreqRamp sweeps position and frequency together as discrete bursts.
type PathFreqRamp struct {
	Points    []common.Vec2 // 2 or 3 points
	StartFreq float64
	EndFreq   float64
	Duration  float64
	Steps     int
	Amp       float64
	Mode      PathMode
}

// Assign sets one runtime tunable for all following commands. Booleans are
// carried as 1 and 0.
type Assign struct {
	Key   string
	Value float64
}

// SetMethod switches the spatialization method for all following commands.
type SetMethod struct {
	Method layout.Method
}

func (Wait) scriptCommand()           {}
func (Jump) scriptCommand()           {}
func (Sound) scriptCommand()          {}
func (Arc) scriptCommand()            {}
func (CircleSmooth) scriptCommand()   {}
func (FreqRamp) scriptCommand()       {}
func (FreqRampSmooth) scriptCommand() {}
func (PathFreqRamp) scriptCommand()   {}
func (Assign) scriptCommand()         {}
func (SetMethod) scriptCommand()      {}

// ParseError reports the first unusable script line.
type ParseError struct {
	Line int // 1-based, counting blank and comment lines
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("script line %d: %s", e.Line, e.Msg)
}

func errf(line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
