// Package device drives a multichannel output stream through PortAudio.
// The renderer stays agnostic of the sink; this package pulls blocks from
// it and pushes them at the hardware.
package device

import (
	"fmt"
	"log"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/thawney/SpatialHaptics/render"
)

// Init starts the PortAudio library. Call once before any other function
// in this package.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio library.
func Terminate() {
	if err := portaudio.Terminate(); err != nil {
		log.Printf("device: terminate: %v", err)
	}
}

// Info describes one output-capable device.
type Info struct {
	Index             int
	Name              string
	HostAPI           string
	MaxOutputChannels int
	DefaultSampleRate float64
}

// List returns every device that can play audio.
func List() ([]Info, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	var out []Info
	for i, d := range devs {
		if d.MaxOutputChannels < 1 {
			continue
		}
		host := ""
		if d.HostApi != nil {
			host = d.HostApi.Name
		}
		out = append(out, Info{
			Index:             i,
			Name:              d.Name,
			HostAPI:           host,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return out, nil
}

// Player feeds renderer blocks to a PortAudio stream.
type Player struct {
	stream *portaudio.Stream
	r      *render.Renderer
	buf    []float32 // interleaved stream buffer
	mix    []float64 // renderer block
}

// Open prepares an output stream for the renderer's sample rate and
// channel count. An empty deviceName selects the default output device;
// otherwise the first device whose name contains deviceName is used.
func Open(r *render.Renderer, blockFrames int, deviceName string) (*Player, error) {
	channels := r.Channels()
	p := &Player{
		r:   r,
		buf: make([]float32, blockFrames*channels),
		mix: make([]float64, blockFrames*channels),
	}

	var err error
	if deviceName == "" {
		p.stream, err = portaudio.OpenDefaultStream(0, channels, float64(r.SampleRate()), blockFrames, &p.buf)
	} else {
		dev, ferr := findOutput(deviceName)
		if ferr != nil {
			return nil, ferr
		}
		if dev.MaxOutputChannels < channels {
			return nil, fmt.Errorf("device %q has %d output channels, layout needs %d",
				dev.Name, dev.MaxOutputChannels, channels)
		}
		params := portaudio.LowLatencyParameters(nil, dev)
		params.Output.Channels = channels
		params.SampleRate = float64(r.SampleRate())
		params.FramesPerBuffer = blockFrames
		p.stream, err = portaudio.OpenStream(params, &p.buf)
	}
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return p, nil
}

func findOutput(name string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	needle := strings.ToLower(name)
	for _, d := range devs {
		if d.MaxOutputChannels > 0 && strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no output device matching %q", name)
}

// Start begins playback.
func (p *Player) Start() error {
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	return nil
}

// Run pulls blocks until done closes. Transient write failures, buffer
// underruns included, are logged and retried; repeated consecutive
// failures abort. The renderer's state is untouched by a failed write, so
// a retry picks up cleanly.
func (p *Player) Run(done <-chan struct{}) error {
	failures := 0
	for {
		select {
		case <-done:
			return nil
		default:
		}
		p.r.ReadBlock(p.mix)
		for i, s := range p.mix {
			p.buf[i] = float32(s)
		}
		if err := p.stream.Write(); err != nil {
			failures++
			if failures >= 10 {
				return fmt.Errorf("audio output failing repeatedly: %w", err)
			}
			log.Printf("device: write: %v", err)
			continue
		}
		failures = 0
	}
}

// Close stops the stream and releases it.
func (p *Player) Close() error {
	if err := p.stream.Stop(); err != nil {
		p.stream.Close()
		return fmt.Errorf("stop stream: %w", err)
	}
	return p.stream.Close()
}
