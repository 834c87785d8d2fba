package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/GodBoii/voicepipe/internal/config"
	"github.com/GodBoii/voicepipe/internal/observability"
)

// autoStopPeakFloor is the per-chunk peak below which input counts as
// silence for the auto-stop watchdog. Coarser than the trimming
// thresholds on purpose; it only has to notice a dead microphone or a
// user who walked away.
const autoStopPeakFloor = 0.01

// PortAudioDevice captures mono float32 audio from the default input
// device. The PortAudio callback writes into a ring buffer and a pump
// goroutine drains it into chunks, so the callback never blocks.
type PortAudioDevice struct {
	sampleRate      int
	framesPerBuffer int
	silenceAfter    time.Duration
	logger          zerolog.Logger

	mu            sync.Mutex
	stream        *portaudio.Stream
	ring          *Ring
	chunks        [][]float32
	running       bool
	done          chan struct{}
	onAutoStop    func()
	lastSound     time.Time
	autoStopFired bool
}

// NewPortAudioDevice initializes PortAudio and prepares a capture
// device using the configured rate and buffer size.
func NewPortAudioDevice(cfg *config.Config) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	return &PortAudioDevice{
		sampleRate:      cfg.CaptureRate,
		framesPerBuffer: cfg.FramesPerBuffer,
		silenceAfter:    time.Duration(cfg.AutoStopSilenceSec) * time.Second,
		logger:          observability.WithComponent("capture"),
	}, nil
}

// SampleRate returns the capture rate in Hz.
func (d *PortAudioDevice) SampleRate() int {
	return d.sampleRate
}

// StartCapture opens the default input stream and begins buffering.
func (d *PortAudioDevice) StartCapture(onAutoStop func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("capture already running")
	}

	// One second of headroom between the callback and the pump.
	d.ring = NewRing(d.sampleRate)
	d.chunks = nil
	d.done = make(chan struct{})
	d.onAutoStop = onAutoStop
	d.lastSound = time.Now()
	d.autoStopFired = false

	ring := d.ring
	stream, err := portaudio.OpenDefaultStream(
		1, // input channels, mono
		0, // no output
		float64(d.sampleRate),
		d.framesPerBuffer,
		func(in []float32) {
			ring.Write(in)
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	d.stream = stream
	d.running = true

	go d.pump()

	d.logger.Debug().
		Int("sample_rate", d.sampleRate).
		Int("frames_per_buffer", d.framesPerBuffer).
		Msg("Capture started")
	return nil
}

// pump drains the ring into chunks and watches for trailing silence.
func (d *PortAudioDevice) pump() {
	defer close(d.done)

	buf := make([]float32, d.framesPerBuffer)
	for {
		d.mu.Lock()
		running := d.running
		ring := d.ring
		d.mu.Unlock()

		if !running {
			return
		}

		n := ring.Read(buf)
		if n == 0 {
			d.checkAutoStop(time.Now())
			time.Sleep(5 * time.Millisecond)
			continue
		}

		chunk := make([]float32, n)
		copy(chunk, buf[:n])

		now := time.Now()
		loud := chunkPeak(chunk) >= autoStopPeakFloor

		d.mu.Lock()
		if d.running {
			d.chunks = append(d.chunks, chunk)
			if loud {
				d.lastSound = now
			}
		}
		d.mu.Unlock()

		d.checkAutoStop(now)
	}
}

func (d *PortAudioDevice) checkAutoStop(now time.Time) {
	if d.silenceAfter <= 0 {
		return
	}

	d.mu.Lock()
	fire := d.running && !d.autoStopFired &&
		d.onAutoStop != nil && now.Sub(d.lastSound) >= d.silenceAfter
	if fire {
		d.autoStopFired = true
	}
	callback := d.onAutoStop
	d.mu.Unlock()

	if fire {
		d.logger.Info().
			Dur("silence", d.silenceAfter).
			Msg("Trailing silence limit reached, auto-stopping")
		// The callback typically ends up back in StopCapture, so it
		// must run outside the pump goroutine.
		go callback()
	}
}

func chunkPeak(chunk []float32) float32 {
	var peak float32
	for _, s := range chunk {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// StopCapture ends the run and returns everything captured.
func (d *PortAudioDevice) StopCapture() (Result, error) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return Result{SampleRate: d.sampleRate}, nil
	}
	d.running = false
	stream := d.stream
	d.stream = nil
	done := d.done
	d.mu.Unlock()

	// The pump polls every few milliseconds, give it time to notice.
	if done != nil {
		select {
		case <-done:
		case <-time.After(200 * time.Millisecond):
		}
	}

	if stream != nil {
		stream.Stop()
		stream.Close()
	}

	// The callback may have written between pump exit and stream stop.
	d.drainRing()

	d.mu.Lock()
	chunks := d.chunks
	d.chunks = nil
	ring := d.ring
	d.ring = nil
	d.mu.Unlock()

	if ring != nil && ring.Dropped() > 0 {
		d.logger.Warn().Int("dropped", ring.Dropped()).Msg("Input overrun during capture")
	}

	d.logger.Debug().Int("chunks", len(chunks)).Msg("Capture stopped")
	return Result{Chunks: chunks, SampleRate: d.sampleRate}, nil
}

func (d *PortAudioDevice) drainRing() {
	d.mu.Lock()
	ring := d.ring
	d.mu.Unlock()
	if ring == nil {
		return
	}

	buf := make([]float32, d.framesPerBuffer)
	for {
		n := ring.Read(buf)
		if n == 0 {
			return
		}
		chunk := make([]float32, n)
		copy(chunk, buf[:n])

		d.mu.Lock()
		d.chunks = append(d.chunks, chunk)
		d.mu.Unlock()
	}
}

// Close stops any running capture and tears PortAudio down.
func (d *PortAudioDevice) Close() error {
	d.StopCapture()
	return portaudio.Terminate()
}
