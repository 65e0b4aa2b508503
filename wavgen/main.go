// Command wavgen renders a tone script to a multichannel WAV file
// without touching an audio device. The scheduler runs on a virtual
// clock, so export time does not depend on script time.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/thawney/SpatialHaptics/engine"
	"github.com/thawney/SpatialHaptics/layout"
	"github.com/thawney/SpatialHaptics/manifest"
	"github.com/thawney/SpatialHaptics/render"
	"github.com/thawney/SpatialHaptics/script"
)

func main() {
	var (
		runPath    = flag.String("run", "", "YAML run manifest")
		layoutPath = flag.String("layout", "", "layout file")
		scriptPath = flag.String("script", "", "script file")
		outPath    = flag.String("o", "", "output WAV path (default from manifest, else out.wav)")
		method     = flag.String("method", "", "spatialization method override")
		rate       = flag.Int("rate", 0, "sample rate in Hz (default 48000)")
		gain       = flag.Float64("gain", 0, "master gain (default 1.0)")
	)
	flag.Parse()

	run, err := manifest.Resolve(*runPath, manifest.Run{
		Layout:     *layoutPath,
		Script:     *scriptPath,
		SampleRate: *rate,
		MasterGain: *gain,
	})
	if err != nil {
		log.Fatal(err)
	}
	out := *outPath
	if out == "" {
		out = run.Output
	}
	if out == "" {
		out = "out.wav"
	}
	if err := export(run, *method, out); err != nil {
		log.Fatal(err)
	}
}

func export(run *manifest.Run, methodFlag string, out string) error {
	layText, err := os.ReadFile(run.Layout)
	if err != nil {
		return fmt.Errorf("read layout: %w", err)
	}
	lay, overrides, err := layout.Parse(string(layText))
	if err != nil {
		return fmt.Errorf("layout %s: %w", run.Layout, err)
	}
	text, err := os.ReadFile(run.Script)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	cmds, err := script.Parse(string(text))
	if err != nil {
		return err
	}

	methodName := methodFlag
	if methodName == "" {
		methodName = run.Method
	}

	r := render.New(run.SampleRate, lay.Channels())
	r.SetMasterGain(run.MasterGain)
	sched := engine.New(lay, r, engine.NewVirtualClock())
	for _, a := range overrides {
		if err := sched.Apply(a.Key, a.Value); err != nil {
			return fmt.Errorf("layout %s: %w", run.Layout, err)
		}
	}
	if methodName != "" {
		m, merr := layout.ParseMethod(methodName)
		if merr != nil {
			return merr
		}
		sched.SetMethod(m)
	}

	end, err := sched.Run(cmds)
	if err != nil {
		return err
	}

	channels := lay.Channels()
	endFrames := int64(math.Ceil(end * float64(run.SampleRate)))
	block := make([]float64, run.BlockFrames*channels)
	samples := make([]int16, 0, (int(endFrames)+run.BlockFrames)*channels)
	for r.RenderedFrames() < endFrames || !r.Idle() {
		r.ReadBlock(block)
		for _, s := range block {
			samples = append(samples, render.PCM16(s))
		}
	}

	data := render.EncodeWAV(run.SampleRate, channels, samples)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	seconds := float64(len(samples)/channels) / float64(run.SampleRate)
	log.Printf("wrote %s: %.2f s, %d channels, %d Hz", out, seconds, channels, run.SampleRate)
	return nil
}
