// Command spatialhaptics plays a tone script through a speaker array in
// real time. Run with -init to get example files, -list to see output
// devices, -test to sweep an identification tone across every channel.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thawney/SpatialHaptics/device"
	"github.com/thawney/SpatialHaptics/engine"
	"github.com/thawney/SpatialHaptics/layout"
	"github.com/thawney/SpatialHaptics/manifest"
	"github.com/thawney/SpatialHaptics/render"
	"github.com/thawney/SpatialHaptics/script"
	"github.com/thawney/SpatialHaptics/spatial"
)

func main() {
	var (
		runPath    = flag.String("run", "", "YAML run manifest")
		layoutPath = flag.String("layout", "", "layout file")
		scriptPath = flag.String("script", "", "script file")
		method     = flag.String("method", "", "spatialization method override")
		rate       = flag.Int("rate", 0, "sample rate in Hz (default 48000)")
		block      = flag.Int("block", 0, "frames per audio block (default 1024)")
		deviceName = flag.String("device", "", "output device name substring (default device when empty)")
		gain       = flag.Float64("gain", 0, "master gain (default 1.0)")
		list       = flag.Bool("list", false, "list output devices and exit")
		methods    = flag.Bool("methods", false, "list spatialization methods and exit")
		initFiles  = flag.Bool("init", false, "write example layout, script and manifest, then exit")
		sweep      = flag.Bool("test", false, "play an identification tone on every speaker and exit")
		watch      = flag.Bool("watch", false, "restart the script whenever its file changes")
	)
	flag.Parse()

	switch {
	case *methods:
		for _, mi := range spatial.AllMethods() {
			fmt.Printf("%-17s %s\n", mi.Method, mi.Summary)
		}
		return
	case *initFiles:
		if err := writeStarterFiles(); err != nil {
			log.Fatal(err)
		}
		return
	case *list:
		if err := printDevices(); err != nil {
			log.Fatal(err)
		}
		return
	}

	run, err := manifest.Resolve(*runPath, manifest.Run{
		Layout:      *layoutPath,
		Script:      *scriptPath,
		SampleRate:  *rate,
		BlockFrames: *block,
		Device:      *deviceName,
		MasterGain:  *gain,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := play(run, *method, *sweep, *watch); err != nil {
		log.Fatal(err)
	}
}

func play(run *manifest.Run, methodFlag string, sweep, watch bool) error {
	layText, err := os.ReadFile(run.Layout)
	if err != nil {
		return fmt.Errorf("read layout: %w", err)
	}
	lay, overrides, err := layout.Parse(string(layText))
	if err != nil {
		return fmt.Errorf("layout %s: %w", run.Layout, err)
	}
	log.Printf("layout %s: %d speakers on %d channels, method %s",
		run.Layout, lay.Len(), lay.Channels(), lay.Method())

	methodName := methodFlag
	if methodName == "" {
		methodName = run.Method
	}
	var override layout.Method
	if methodName != "" {
		override, err = layout.ParseMethod(methodName)
		if err != nil {
			return err
		}
	}

	if err := device.Init(); err != nil {
		return err
	}
	defer device.Terminate()

	r := render.New(run.SampleRate, lay.Channels())
	r.SetMasterGain(run.MasterGain)
	p, err := device.Open(r, run.BlockFrames, run.Device)
	if err != nil {
		return err
	}
	defer p.Close()
	if err := p.Start(); err != nil {
		return err
	}

	playerDone := make(chan struct{})
	var once sync.Once
	stopPlayer := func() { once.Do(func() { close(playerDone) }) }
	defer stopPlayer()
	playerErr := make(chan error, 1)
	go func() { playerErr <- p.Run(playerDone) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	var watchEvents chan fsnotify.Event
	var watchErrs chan error
	if watch {
		w, werr := fsnotify.NewWatcher()
		if werr != nil {
			return fmt.Errorf("watch: %w", werr)
		}
		defer w.Close()
		// Watch the directory: editors replace the file on save, which
		// would silently drop a watch on the file itself.
		if werr := w.Add(filepath.Dir(run.Script)); werr != nil {
			return fmt.Errorf("watch %s: %w", run.Script, werr)
		}
		watchEvents, watchErrs = w.Events, w.Errors
	}

runLoop:
	for {
		var sched *engine.Scheduler
		runDone := make(chan error, 1)
		cmds, cerr := loadCommands(run, lay, sweep)
		if cerr != nil {
			if !watch {
				return cerr
			}
			log.Printf("%v", cerr)
			runDone = nil
		} else {
			sched = engine.New(lay, r, engine.NewRealClock())
			for _, a := range overrides {
				if aerr := sched.Apply(a.Key, a.Value); aerr != nil {
					return fmt.Errorf("layout %s: %w", run.Layout, aerr)
				}
			}
			if override != "" {
				sched.SetMethod(override)
			}
			go func(sc *engine.Scheduler, cs []script.Command) {
				_, rerr := sc.Run(cs)
				runDone <- rerr
			}(sched, cmds)
		}

		for {
			select {
			case rerr := <-runDone:
				runDone = nil
				if rerr != nil && !errors.Is(rerr, engine.ErrStopped) {
					return rerr
				}
				if !watch {
					waitIdle(r, sig)
					return nil
				}
				log.Printf("script done; watching %s for changes", run.Script)

			case perr := <-playerErr:
				return perr

			case <-sig:
				log.Printf("interrupted, fading out")
				fade := 0.05
				if sched != nil {
					sched.Stop()
					fade = sched.Config().FadeDuration
				}
				r.Stop(fade)
				time.Sleep(time.Duration((fade + 0.05) * float64(time.Second)))
				return nil

			case ev := <-watchEvents:
				if filepath.Base(ev.Name) != filepath.Base(run.Script) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				settle(watchEvents)
				log.Printf("%s changed, restarting", run.Script)
				fade := 0.05
				if sched != nil {
					sched.Stop()
					fade = sched.Config().FadeDuration
				}
				if runDone != nil {
					if rerr := <-runDone; rerr != nil && !errors.Is(rerr, engine.ErrStopped) {
						log.Printf("script: %v", rerr)
					}
				}
				r.Stop(fade)
				time.Sleep(time.Duration((fade + 0.02) * float64(time.Second)))
				r.Reset()
				continue runLoop

			case werr := <-watchErrs:
				log.Printf("watch: %v", werr)
			}
		}
	}
}

// loadCommands reads the script, or builds the channel sweep when -test
// was given.
func loadCommands(run *manifest.Run, lay *layout.Layout, sweep bool) ([]script.Command, error) {
	if sweep {
		return sweepCommands(lay), nil
	}
	if run.Script == "" {
		return nil, fmt.Errorf("no script given (use -script or -run)")
	}
	text, err := os.ReadFile(run.Script)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return script.Parse(string(text))
}

// sweepCommands plays a short identification tone on every speaker in
// channel order, using nearest_neighbor so each tone lands on exactly
// one channel.
func sweepCommands(lay *layout.Layout) []script.Command {
	cmds := []script.Command{script.SetMethod{Method: layout.NearestNeighbor}}
	for _, sp := range lay.Speakers() {
		log.Printf("channel %2d  %-14s (%.3f, %.3f)", sp.Channel, sp.Label, sp.Pos.X, sp.Pos.Y)
		cmds = append(cmds,
			script.Sound{Pos: sp.Pos, Freq: 200, Amp: 0.7},
			script.Wait{Seconds: 0.45},
		)
	}
	return cmds
}

// waitIdle lets queued audio drain after the script has finished.
func waitIdle(r *render.Renderer, sig <-chan os.Signal) {
	for !r.Idle() {
		select {
		case <-sig:
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
	// One more block so the device plays out what it already pulled.
	time.Sleep(60 * time.Millisecond)
}

// settle swallows the burst of filesystem events an editor emits for a
// single save.
func settle(events <-chan fsnotify.Event) {
	t := time.NewTimer(200 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-events:
		case <-t.C:
			return
		}
	}
}

func printDevices() error {
	if err := device.Init(); err != nil {
		return err
	}
	defer device.Terminate()
	devs, err := device.List()
	if err != nil {
		return err
	}
	for _, d := range devs {
		fmt.Printf("%3d  %-40s %s, %d out, %.0f Hz\n",
			d.Index, d.Name, d.HostAPI, d.MaxOutputChannels, d.DefaultSampleRate)
	}
	return nil
}

func writeStarterFiles() error {
	files := []struct{ name, body string }{
		{"example_layout.txt", exampleLayout},
		{"example_script.txt", exampleScript},
		{"example_run.yaml", exampleRun},
	}
	for _, f := range files {
		if _, err := os.Stat(f.name); err == nil {
			log.Printf("%s already exists, skipping", f.name)
			continue
		}
		if err := os.WriteFile(f.name, []byte(f.body), 0o644); err != nil {
			return err
		}
		log.Printf("wrote %s", f.name)
	}
	return nil
}

const exampleLayout = `# 4x4 speaker grid, 4 cm pitch, centered on the origin.
# Channels count bottom-to-top within each column, columns left to right,
# so channel 0 is the bottom-left speaker.
GRID SIZE=4 SPACING=0.04 OFFSET=0.0,0.0

method = tactile_grid

# Layouts can also list speakers one by one:
# SPEAKER wrist_l -0.10,0.00 CHANNEL=16 DESCRIPTION="left wrist"
`

const exampleScript = `# Demo timeline. Assignments take effect for the lines after them.

tone_duration = 0.12
fade_duration = 0.04

# Single bursts at two corners.
SOUND -0.06,-0.06 FREQ=250 AMP=0.6
WAIT 0.4
SOUND 0.06,0.06 FREQ=250 AMP=0.6
WAIT 0.6

# Sweep left to right, then a curved pass through the top.
ARC -0.06,0.0 0.06,0.0 DURATION=1.2 STEPS=12 FREQ=300 AMP=0.5
WAIT 0.4
ARC -0.06,-0.06 0.0,0.09 0.06,-0.06 MODE=CURVED DURATION=1.5 STEPS=15 FREQ=260 AMP=0.5
WAIT 0.6

# One smooth orbit around the center.
CIRCLE_SMOOTH CENTER=0.0,0.0 RADIUS=0.05 DURATION=2.0 STEPS=200 FREQ=220 AMP=0.5
WAIT 0.5

# Rising sweep in place.
FREQ_RAMP_SMOOTH POS=0.0,0.0 START_FREQ=150 END_FREQ=450 DURATION=1.5 AMP=0.5
`

const exampleRun = `layout: example_layout.txt
script: example_script.txt
# method: vbap         # override the layout's method
sample_rate: 48000
block_frames: 1024
# device: "USB"        # substring of the output device name
master_gain: 1.0
output: out.wav        # used by wavgen
`
