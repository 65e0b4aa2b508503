package script

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/thawney/SpatialHaptics/common"
	"github.com/thawney/SpatialHaptics/layout"
)

type keyKind int

const (
	keyFloat keyKind = iota
	keyBool
	keyInt
)

// configKeys is the closed set of script-assignable tunables.
var configKeys = map[string]keyKind{
	"itd_exaggeration":     keyFloat,
	"ild_exponent":         keyFloat,
	"tone_duration":        keyFloat,
	"fade_duration":        keyFloat,
	"tactile_exaggeration": keyFloat,
	"distance_rolloff":     keyFloat,
	"use_gaussian":         keyBool,
	"gaussian_sigma":       keyFloat,
	"max_active_speakers":  keyInt,
	"smooth_min_distance":  keyFloat,
	"distance_power":       keyFloat,
	"tactile_enhancement":  keyFloat,
}

// Parse converts script text into commands, aborting on the first bad
// line. Line numbers in errors count every line of the input.
func Parse(text string) ([]Command, error) {
	var cmds []Command
	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		cmd, err := parseLine(trimmed, lineNo)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func parseLine(text string, lineNo int) (Command, error) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "WAIT":
		if len(fields) != 2 {
			return nil, errf(lineNo, "WAIT wants exactly one duration in seconds")
		}
		s, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || s < 0 {
			return nil, errf(lineNo, "WAIT wants a non-negative number, got %q", fields[1])
		}
		return Wait{Seconds: s}, nil

	case "JUMP":
		if len(fields) != 2 {
			return nil, errf(lineNo, "JUMP wants exactly one x,y position")
		}
		pos, err := common.ParseVec(fields[1])
		if err != nil {
			return nil, errf(lineNo, "JUMP: %v", err)
		}
		return Jump{Pos: pos}, nil

	case "SOUND":
		args, err := splitArgs(fields[1:], lineNo)
		if err != nil {
			return nil, err
		}
		pos, err := args.onePoint()
		if err != nil {
			return nil, err
		}
		freq, err := args.float("FREQ")
		if err != nil {
			return nil, err
		}
		amp, err := args.float("AMP")
		if err != nil {
			return nil, err
		}
		if err := args.drained(); err != nil {
			return nil, err
		}
		return Sound{Pos: pos, Freq: freq, Amp: amp}, nil

	case "ARC":
		args, err := splitArgs(fields[1:], lineNo)
		if err != nil {
			return nil, err
		}
		pts, mode, err := args.path()
		if err != nil {
			return nil, err
		}
		dur, err := args.duration()
		if err != nil {
			return nil, err
		}
		steps, err := args.steps()
		if err != nil {
			return nil, err
		}
		freq, err := args.float("FREQ")
		if err != nil {
			return nil, err
		}
		amp, err := args.float("AMP")
		if err != nil {
			return nil, err
		}
		if err := args.drained(); err != nil {
			return nil, err
		}
		return Arc{Points: pts, Duration: dur, Steps: steps, Freq: freq, Amp: amp, Mode: mode}, nil

	case "CIRCLE_SMOOTH":
		args, err := splitArgs(fields[1:], lineNo)
		if err != nil {
			return nil, err
		}
		center := common.Vec2{}
		if args.has("CENTER") {
			if center, err = args.vec("CENTER"); err != nil {
				return nil, err
			}
		}
		radius, err := args.float("RADIUS")
		if err != nil {
			return nil, err
		}
		if radius <= 0 {
			return nil, errf(lineNo, "CIRCLE_SMOOTH wants RADIUS > 0")
		}
		dur, err := args.duration()
		if err != nil {
			return nil, err
		}
		steps, err := args.steps()
		if err != nil {
			return nil, err
		}
		freq, err := args.float("FREQ")
		if err != nil {
			return nil, err
		}
		amp, err := args.float("AMP")
		if err != nil {
			return nil, err
		}
		if err := args.drained(); err != nil {
			return nil, err
		}
		return CircleSmooth{Center: center, Radius: radius, Duration: dur, Steps: steps, Freq: freq, Amp: amp}, nil

	case "FREQ_RAMP":
		args, err := splitArgs(fields[1:], lineNo)
		if err != nil {
			return nil, err
		}
		pos, err := args.vec("POS")
		if err != nil {
			return nil, err
		}
		f0, err := args.float("START_FREQ")
		if err != nil {
			return nil, err
		}
		f1, err := args.float("END_FREQ")
		if err != nil {
			return nil, err
		}
		dur, err := args.duration()
		if err != nil {
			return nil, err
		}
		steps, err := args.steps()
		if err != nil {
			return nil, err
		}
		amp, err := args.float("AMP")
		if err != nil {
			return nil, err
		}
		if err := args.drained(); err != nil {
			return nil, err
		}
		return FreqRamp{Pos: pos, StartFreq: f0, EndFreq: f1, Duration: dur, Steps: steps, Amp: amp}, nil

	case "FREQ_RAMP_SMOOTH":
		args, err := splitArgs(fields[1:], lineNo)
		if err != nil {
			return nil, err
		}
		pos, err := args.vec("POS")
		if err != nil {
			return nil, err
		}
		f0, err := args.float("START_FREQ")
		if err != nil {
			return nil, err
		}
		f1, err := args.float("END_FREQ")
		if err != nil {
			return nil, err
		}
		dur, err := args.duration()
		if err != nil {
			return nil, err
		}
		amp, err := args.float("AMP")
		if err != nil {
			return nil, err
		}
		if err := args.drained(); err != nil {
			return nil, err
		}
		return FreqRampSmooth{Pos: pos, StartFreq: f0, EndFreq: f1, Duration: dur, Amp: amp}, nil

	case "PATH_FREQ_RAMP":
		args, err := splitArgs(fields[1:], lineNo)
		if err != nil {
			return nil, err
		}
		pts, mode, err := args.path()
		if err != nil {
			return nil, err
		}
		f0, err := args.float("START_FREQ")
		if err != nil {
			return nil, err
		}
		f1, err := args.float("END_FREQ")
		if err != nil {
			return nil, err
		}
		dur, err := args.duration()
		if err != nil {
			return nil, err
		}
		steps, err := args.steps()
		if err != nil {
			return nil, err
		}
		amp, err := args.float("AMP")
		if err != nil {
			return nil, err
		}
		if err := args.drained(); err != nil {
			return nil, err
		}
		return PathFreqRamp{Points: pts, StartFreq: f0, EndFreq: f1, Duration: dur, Steps: steps, Amp: amp, Mode: mode}, nil

	default:
		return parseAssign(text, fields[0], lineNo)
	}
}

var assignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(\S+)$`)

func parseAssign(text, first string, lineNo int) (Command, error) {
	m := assignRe.FindStringSubmatch(text)
	if m == nil {
		return nil, errf(lineNo, "unknown command %q", first)
	}
	key, value := m[1], m[2]

	if key == "method" {
		method, err := layout.ParseMethod(value)
		if err != nil {
			return nil, errf(lineNo, "%v", err)
		}
		return SetMethod{Method: method}, nil
	}

	kind, ok := configKeys[key]
	if !ok {
		return nil, errf(lineNo, "unknown config key %q", key)
	}
	switch kind {
	case keyBool:
		switch strings.ToLower(value) {
		case "true", "1":
			return Assign{Key: key, Value: 1}, nil
		case "false", "0":
			return Assign{Key: key, Value: 0}, nil
		}
		return nil, errf(lineNo, "%s wants true or false, got %q", key, value)
	case keyInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, errf(lineNo, "%s wants a positive integer, got %q", key, value)
		}
		return Assign{Key: key, Value: float64(n)}, nil
	default:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errf(lineNo, "%s wants a number, got %q", key, value)
		}
		return Assign{Key: key, Value: v}, nil
	}
}

// lineArgs separates a command's positional x,y points from its KEY=value
// parameters. Keyed getters consume entries so drained can flag leftovers.
type lineArgs struct {
	lineNo int
	points []common.Vec2
	keys   map[string]string
}

func splitArgs(tokens []string, lineNo int) (*lineArgs, error) {
	a := &lineArgs{lineNo: lineNo, keys: make(map[string]string)}
	for _, tok := range tokens {
		if eq := strings.IndexByte(tok, '='); eq > 0 {
			a.keys[tok[:eq]] = tok[eq+1:]
			continue
		}
		p, err := common.ParseVec(tok)
		if err != nil {
			return nil, errf(lineNo, "%v", err)
		}
		a.points = append(a.points, p)
	}
	return a, nil
}

func (a *lineArgs) has(key string) bool {
	_, ok := a.keys[key]
	return ok
}

func (a *lineArgs) raw(key string) (string, error) {
	v, ok := a.keys[key]
	if !ok {
		return "", errf(a.lineNo, "missing %s=", key)
	}
	delete(a.keys, key)
	return v, nil
}

func (a *lineArgs) float(key string) (float64, error) {
	raw, err := a.raw(key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errf(a.lineNo, "%s wants a number, got %q", key, raw)
	}
	return v, nil
}

func (a *lineArgs) vec(key string) (common.Vec2, error) {
	raw, err := a.raw(key)
	if err != nil {
		return common.Vec2{}, err
	}
	v, err := common.ParseVec(raw)
	if err != nil {
		return common.Vec2{}, errf(a.lineNo, "%s: %v", key, err)
	}
	return v, nil
}

func (a *lineArgs) duration() (float64, error) {
	d, err := a.float("DURATION")
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errf(a.lineNo, "DURATION wants a positive number of seconds")
	}
	return d, nil
}

func (a *lineArgs) steps() (int, error) {
	raw, err := a.raw("STEPS")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errf(a.lineNo, "STEPS wants a positive integer, got %q", raw)
	}
	return n, nil
}

// onePoint expects exactly one positional point.
func (a *lineArgs) onePoint() (common.Vec2, error) {
	if len(a.points) != 1 {
		return common.Vec2{}, errf(a.lineNo, "wanted one x,y position, got %d", len(a.points))
	}
	return a.points[0], nil
}

// path expects 2 or 3 positional points plus an optional MODE; CURVED
// requires the third point.
func (a *lineArgs) path() ([]common.Vec2, PathMode, error) {
	if len(a.points) < 2 || len(a.points) > 3 {
		return nil, ModeStraight, errf(a.lineNo, "wanted 2 or 3 x,y points, got %d", len(a.points))
	}
	mode := ModeStraight
	if a.has("MODE") {
		raw, _ := a.raw("MODE")
		switch raw {
		case "STRAIGHT":
			mode = ModeStraight
		case "CURVED":
			mode = ModeCurved
		default:
			return nil, ModeStraight, errf(a.lineNo, "MODE wants STRAIGHT or CURVED, got %q", raw)
		}
	}
	if mode == ModeCurved && len(a.points) < 3 {
		return nil, ModeStraight, errf(a.lineNo, "MODE=CURVED wants 3 points")
	}
	return a.points, mode, nil
}

// drained errors if unrecognized KEY=value parameters remain.
func (a *lineArgs) drained() error {
	for key := range a.keys {
		return errf(a.lineNo, "unexpected parameter %s=", key)
	}
	return nil
}
