package layout

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/thawney/SpatialHaptics/common"
)

// Assign is a tunable override from a layout file, applied to the runtime
// configuration before the script starts.
type Assign struct {
	Key   string
	Value float64
}

var speakerRe = regexp.MustCompile(`^SPEAKER\s+(\S+)\s+(-?[0-9.]+),(-?[0-9.]+)\s+CHANNEL=(\d+)(?:\s+DESCRIPTION="([^"]*)")?\s*$`)

// Parse reads layout directives: GRID, CIRCLE, LINE, SPEAKER, and
// key = value assignments including the method selection. Blank lines and
// # comments are skipped. Generator directives continue the channel
// numbering from the speakers parsed so far, so generators and explicit
// entries can be mixed; duplicate channels fail in New.
func Parse(text string) (*Layout, []Assign, error) {
	var (
		speakers []Speaker
		assigns  []Assign
		method   Method
	)

	for ln, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		lineNo := ln + 1
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "GRID":
			kv, err := keyedParams(fields[1:], lineNo)
			if err != nil {
				return nil, nil, err
			}
			size, err := intParam(kv, "SIZE", lineNo)
			if err != nil {
				return nil, nil, err
			}
			spacing, err := floatParam(kv, "SPACING", lineNo)
			if err != nil {
				return nil, nil, err
			}
			offset, err := offsetParam(kv, lineNo)
			if err != nil {
				return nil, nil, err
			}
			if size < 1 || spacing <= 0 {
				return nil, nil, fmt.Errorf("layout line %d: GRID needs SIZE >= 1 and SPACING > 0", lineNo)
			}
			speakers = appendFrom(speakers, Grid(size, spacing, offset))

		case "CIRCLE":
			kv, err := keyedParams(fields[1:], lineNo)
			if err != nil {
				return nil, nil, err
			}
			count, err := intParam(kv, "COUNT", lineNo)
			if err != nil {
				return nil, nil, err
			}
			radius, err := floatParam(kv, "RADIUS", lineNo)
			if err != nil {
				return nil, nil, err
			}
			offset, err := offsetParam(kv, lineNo)
			if err != nil {
				return nil, nil, err
			}
			if count < 1 || radius <= 0 {
				return nil, nil, fmt.Errorf("layout line %d: CIRCLE needs COUNT >= 1 and RADIUS > 0", lineNo)
			}
			speakers = appendFrom(speakers, Circle(count, radius, offset))

		case "LINE":
			kv, err := keyedParams(fields[1:], lineNo)
			if err != nil {
				return nil, nil, err
			}
			count, err := intParam(kv, "COUNT", lineNo)
			if err != nil {
				return nil, nil, err
			}
			length, err := floatParam(kv, "LENGTH", lineNo)
			if err != nil {
				return nil, nil, err
			}
			angle := 0.0
			if _, ok := kv["ANGLE"]; ok {
				if angle, err = floatParam(kv, "ANGLE", lineNo); err != nil {
					return nil, nil, err
				}
			}
			offset, err := offsetParam(kv, lineNo)
			if err != nil {
				return nil, nil, err
			}
			if count < 1 || (count > 1 && length <= 0) {
				return nil, nil, fmt.Errorf("layout line %d: LINE needs COUNT >= 1 and LENGTH > 0", lineNo)
			}
			speakers = appendFrom(speakers, Line(count, length, angle, offset))

		case "SPEAKER":
			m := speakerRe.FindStringSubmatch(line)
			if m == nil {
				return nil, nil, fmt.Errorf("layout line %d: SPEAKER wants: SPEAKER <name> x,y CHANNEL=c [DESCRIPTION=\"...\"]", lineNo)
			}
			x, _ := strconv.ParseFloat(m[2], 64)
			y, _ := strconv.ParseFloat(m[3], 64)
			ch, _ := strconv.Atoi(m[4])
			speakers = append(speakers, Speaker{
				Channel: ch,
				Pos:     common.Vec2{X: x, Y: y},
				Label:   m[1],
				Desc:    m[5],
			})

		default:
			key, value, ok := splitAssign(line)
			if !ok {
				return nil, nil, fmt.Errorf("layout line %d: unknown directive %q", lineNo, fields[0])
			}
			if key == "method" {
				m, err := ParseMethod(value)
				if err != nil {
					return nil, nil, fmt.Errorf("layout line %d: %v", lineNo, err)
				}
				method = m
				continue
			}
			v, err := parseScalar(value)
			if err != nil {
				return nil, nil, fmt.Errorf("layout line %d: %s: %v", lineNo, key, err)
			}
			assigns = append(assigns, Assign{Key: key, Value: v})
		}
	}

	lay, err := New(speakers, method)
	if err != nil {
		return nil, nil, err
	}
	return lay, assigns, nil
}

// appendFrom shifts a generator's channels past the speakers parsed so far.
func appendFrom(acc, gen []Speaker) []Speaker {
	base := len(acc)
	for i := range gen {
		gen[i].Channel += base
	}
	return append(acc, gen...)
}

var assignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(\S+)\s*$`)

func splitAssign(line string) (key, value string, ok bool) {
	m := assignRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// parseScalar accepts a decimal number or a true/false word (booleans are
// carried as 1 and 0).
func parseScalar(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", s)
	}
	return v, nil
}

func keyedParams(tokens []string, lineNo int) (map[string]string, error) {
	kv := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		eq := strings.IndexByte(tok, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("layout line %d: expected KEY=value, got %q", lineNo, tok)
		}
		kv[tok[:eq]] = tok[eq+1:]
	}
	return kv, nil
}

func intParam(kv map[string]string, key string, lineNo int) (int, error) {
	raw, ok := kv[key]
	if !ok {
		return 0, fmt.Errorf("layout line %d: missing %s=", lineNo, key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("layout line %d: %s wants an integer, got %q", lineNo, key, raw)
	}
	return v, nil
}

func floatParam(kv map[string]string, key string, lineNo int) (float64, error) {
	raw, ok := kv[key]
	if !ok {
		return 0, fmt.Errorf("layout line %d: missing %s=", lineNo, key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("layout line %d: %s wants a number, got %q", lineNo, key, raw)
	}
	return v, nil
}

func offsetParam(kv map[string]string, lineNo int) (common.Vec2, error) {
	raw, ok := kv["OFFSET"]
	if !ok {
		return common.Vec2{}, nil
	}
	v, err := common.ParseVec(raw)
	if err != nil {
		return common.Vec2{}, fmt.Errorf("layout line %d: OFFSET: %v", lineNo, err)
	}
	return v, nil
}
