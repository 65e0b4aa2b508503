package layout

import (
	"math"
	"strings"
	"testing"

	"github.com/thawney/SpatialHaptics/common"
)

func TestGrid_ChannelOrder(t *testing.T) {
	// 2x2, 4 cm pitch: channels run bottom-to-top within a column,
	// columns left to right.
	speakers := Grid(2, 0.04, common.Vec2{})
	if len(speakers) != 4 {
		t.Fatalf("expected 4 speakers, got %d", len(speakers))
	}

	expected := []common.Vec2{
		{X: -0.02, Y: -0.02}, // 0: bottom-left
		{X: -0.02, Y: 0.02},  // 1: top-left
		{X: 0.02, Y: -0.02},  // 2: bottom-right
		{X: 0.02, Y: 0.02},   // 3: top-right
	}
	for i, want := range expected {
		got := speakers[i]
		if got.Channel != i {
			t.Errorf("speaker %d: expected channel %d, got %d", i, i, got.Channel)
		}
		if !floatNear(got.Pos.X, want.X, 1e-12) || !floatNear(got.Pos.Y, want.Y, 1e-12) {
			t.Errorf("channel %d: expected %v, got %v", i, want, got.Pos)
		}
	}
}

func TestGrid_Offset(t *testing.T) {
	speakers := Grid(3, 0.1, common.Vec2{X: 1, Y: 2})
	// Center speaker of a 3x3 sits exactly on the offset.
	center := speakers[4]
	if !floatNear(center.Pos.X, 1, 1e-12) || !floatNear(center.Pos.Y, 2, 1e-12) {
		t.Errorf("center speaker: expected (1,2), got %v", center.Pos)
	}
}

func TestCircle_Positions(t *testing.T) {
	speakers := Circle(4, 0.1, common.Vec2{})
	expected := []common.Vec2{
		{X: 0.1, Y: 0},
		{X: 0, Y: 0.1},
		{X: -0.1, Y: 0},
		{X: 0, Y: -0.1},
	}
	for i, want := range expected {
		got := speakers[i].Pos
		if !floatNear(got.X, want.X, 1e-9) || !floatNear(got.Y, want.Y, 1e-9) {
			t.Errorf("channel %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestLine_Rotated(t *testing.T) {
	speakers := Line(3, 0.2, 90, common.Vec2{})
	expected := []common.Vec2{
		{X: 0, Y: -0.1},
		{X: 0, Y: 0},
		{X: 0, Y: 0.1},
	}
	for i, want := range expected {
		got := speakers[i].Pos
		if !floatNear(got.X, want.X, 1e-9) || !floatNear(got.Y, want.Y, 1e-9) {
			t.Errorf("channel %d: expected %v, got %v", i, want, got)
		}
	}

	single := Line(1, 0.2, 0, common.Vec2{X: 0.5, Y: 0})
	if !floatNear(single[0].Pos.X, 0.5, 1e-12) {
		t.Errorf("single speaker line should sit on the offset, got %v", single[0].Pos)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, TactileGrid); err == nil {
		t.Error("empty layout should be rejected")
	}

	dup := []Speaker{
		{Channel: 0, Label: "a"},
		{Channel: 0, Label: "b"},
	}
	_, err := New(dup, TactileGrid)
	if err == nil || !strings.Contains(err.Error(), "channel 0") {
		t.Errorf("duplicate channel: expected collision error, got %v", err)
	}

	neg := []Speaker{{Channel: -1, Label: "x"}}
	if _, err := New(neg, TactileGrid); err == nil {
		t.Error("negative channel should be rejected")
	}

	// Gaps are allowed; those channels just stay silent.
	gap := []Speaker{
		{Channel: 0, Pos: common.Vec2{X: -1}},
		{Channel: 2, Pos: common.Vec2{X: 1}},
	}
	lay, err := New(gap, TactileGrid)
	if err != nil {
		t.Fatalf("gapped layout: %v", err)
	}
	if lay.Channels() != 3 {
		t.Errorf("Channels: expected 3, got %d", lay.Channels())
	}
	if _, ok := lay.ByChannel(1); ok {
		t.Error("ByChannel(1) should report no speaker")
	}
	if sp, ok := lay.ByChannel(2); !ok || sp.Pos.X != 1 {
		t.Errorf("ByChannel(2): expected speaker at x=1, got %v ok=%v", sp, ok)
	}
}

func TestNew_DefaultMethodAndCentroid(t *testing.T) {
	lay, err := New(Grid(2, 0.04, common.Vec2{X: 0.1, Y: -0.1}), "")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if lay.Method() != TactileGrid {
		t.Errorf("default method: expected tactile_grid, got %s", lay.Method())
	}
	c := lay.Centroid()
	if !floatNear(c.X, 0.1, 1e-12) || !floatNear(c.Y, -0.1, 1e-12) {
		t.Errorf("centroid: expected (0.1,-0.1), got %v", c)
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{"tactile_grid", TactileGrid, false},
		{"VBAP", VBAP, false},
		{" itd_ild ", ITDILD, false},
		{"nearest_neighbor", NearestNeighbor, false},
		{"distance_pan", DistancePan, false},
		{"sideways", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMethod(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMethod(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMethod(%q): expected %q, got %q", tt.input, tt.want, got)
		}
	}
}

func TestParse_FullFile(t *testing.T) {
	text := `# wearable test array
GRID SIZE=2 SPACING=0.04

SPEAKER wrist_r 0.10,0.00 CHANNEL=4 DESCRIPTION="right wrist"

method = vbap
tactile_enhancement = 1.5
use_gaussian = true
`
	lay, assigns, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if lay.Len() != 5 {
		t.Errorf("Len: expected 5, got %d", lay.Len())
	}
	if lay.Channels() != 5 {
		t.Errorf("Channels: expected 5, got %d", lay.Channels())
	}
	if lay.Method() != VBAP {
		t.Errorf("method: expected vbap, got %s", lay.Method())
	}

	sp, ok := lay.ByChannel(4)
	if !ok {
		t.Fatal("ByChannel(4): speaker missing")
	}
	if sp.Label != "wrist_r" || sp.Desc != "right wrist" {
		t.Errorf("speaker 4: expected wrist_r/right wrist, got %q/%q", sp.Label, sp.Desc)
	}
	if !floatNear(sp.Pos.X, 0.10, 1e-12) {
		t.Errorf("speaker 4 x: expected 0.10, got %f", sp.Pos.X)
	}

	if len(assigns) != 2 {
		t.Fatalf("assigns: expected 2, got %d", len(assigns))
	}
	if assigns[0].Key != "tactile_enhancement" || !floatNear(assigns[0].Value, 1.5, 1e-12) {
		t.Errorf("assign 0: got %+v", assigns[0])
	}
	if assigns[1].Key != "use_gaussian" || assigns[1].Value != 1 {
		t.Errorf("assign 1: booleans should arrive as 1, got %+v", assigns[1])
	}
}

func TestParse_GeneratorsContinueNumbering(t *testing.T) {
	text := `CIRCLE COUNT=3 RADIUS=0.05
LINE COUNT=2 LENGTH=0.1
`
	lay, _, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if lay.Len() != 5 {
		t.Fatalf("expected 5 speakers, got %d", lay.Len())
	}
	// The LINE picks up after the CIRCLE's channels 0..2.
	sp, ok := lay.ByChannel(3)
	if !ok || !strings.HasPrefix(sp.Label, "line_") {
		t.Errorf("channel 3: expected a line speaker, got %+v ok=%v", sp, ok)
	}
}

func TestParse_ChannelCollision(t *testing.T) {
	text := `GRID SIZE=2 SPACING=0.04
SPEAKER extra 0.5,0.5 CHANNEL=1
`
	_, _, err := Parse(text)
	if err == nil || !strings.Contains(err.Error(), "channel 1") {
		t.Errorf("expected collision error naming channel 1, got %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"UnknownDirective", "SPIRAL COUNT=3", "unknown directive"},
		{"GridMissingSize", "GRID SPACING=0.04", "missing SIZE="},
		{"GridZeroSize", "GRID SIZE=0 SPACING=0.04", "SIZE >= 1"},
		{"GridBadSpacing", "GRID SIZE=2 SPACING=nope", "wants a number"},
		{"CircleZeroRadius", "CIRCLE COUNT=4 RADIUS=0", "RADIUS > 0"},
		{"SpeakerMalformed", "SPEAKER only_a_name", "SPEAKER wants"},
		{"BadMethod", "GRID SIZE=2 SPACING=0.04\nmethod = sideways", "unknown method"},
		{"BadAssignValue", "GRID SIZE=2 SPACING=0.04\ngaussian_sigma = big", "bad value"},
		{"BadOffset", "GRID SIZE=2 SPACING=0.04 OFFSET=center", "OFFSET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.text)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestParse_LineNumbersInErrors(t *testing.T) {
	text := "# comment\n\nGRID SIZE=2 SPACING=0.04\nGRID SIZE=0 SPACING=0.04\n"
	_, _, err := Parse(text)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Errorf("line numbers should count comments and blanks, got %q", err.Error())
	}
}

func floatNear(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}
