// Package manifest loads the YAML run description consumed by the
// command line tools.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Run names the inputs and output settings for one playback or export.
type Run struct {
	Layout      string  `yaml:"layout"`                 // layout file path
	Script      string  `yaml:"script"`                 // script file path
	Method      string  `yaml:"method,omitempty"`       // overrides the layout's method when set
	SampleRate  int     `yaml:"sample_rate,omitempty"`  // Hz
	BlockFrames int     `yaml:"block_frames,omitempty"` // frames per audio block
	Device      string  `yaml:"device,omitempty"`       // output device name substring
	MasterGain  float64 `yaml:"master_gain,omitempty"`
	Output      string  `yaml:"output,omitempty"` // WAV path for offline rendering
}

// FillDefaults replaces unset fields with the standard values.
func (r *Run) FillDefaults() {
	if r.SampleRate == 0 {
		r.SampleRate = 48000
	}
	if r.BlockFrames == 0 {
		r.BlockFrames = 1024
	}
	if r.MasterGain == 0 {
		r.MasterGain = 1
	}
}

// Load reads and validates a manifest file.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var r Run
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if r.Layout == "" {
		return nil, fmt.Errorf("manifest %s: layout is required", path)
	}
	if r.Script == "" {
		return nil, fmt.Errorf("manifest %s: script is required", path)
	}
	if r.SampleRate < 0 {
		return nil, fmt.Errorf("manifest %s: sample_rate must be positive", path)
	}
	if r.BlockFrames < 0 {
		return nil, fmt.Errorf("manifest %s: block_frames must be positive", path)
	}
	r.FillDefaults()
	return &r, nil
}

// Resolve loads the manifest at path when one is given, otherwise
// validates the fallback assembled from command line flags.
func Resolve(path string, fallback Run) (*Run, error) {
	if path != "" {
		return Load(path)
	}
	if fallback.Layout == "" {
		return nil, fmt.Errorf("no run manifest and no layout given")
	}
	fallback.FillDefaults()
	return &fallback, nil
}
