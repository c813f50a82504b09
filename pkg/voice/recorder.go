package voice

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

// RecorderConfig selects the microphone and capture format
type RecorderConfig struct {
	SampleRate      int
	FramesPerBuffer int
	DeviceID        int
	MaxDuration     time.Duration
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		SampleRate:      coach.ASRSampleRate,
		FramesPerBuffer: coach.ASRSampleRate / 10,
		DeviceID:        -1,
		MaxDuration:     5 * time.Minute,
	}
}

// Recorder captures mono PCM16 from a microphone
type Recorder struct {
	config  RecorderConfig
	devices *DeviceManager
	logger  *coach.CoachLogger

	mu      sync.Mutex
	stream  *portaudio.Stream
	pcm     bytes.Buffer
	running bool
	done    chan struct{}
	cancel  context.CancelFunc
}

func NewRecorder(config RecorderConfig, devices *DeviceManager, logger *coach.CoachLogger) *Recorder {
	def := DefaultRecorderConfig()
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = config.SampleRate / 10
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = def.MaxDuration
	}
	if logger == nil {
		logger = coach.GetGlobalLogger()
	}
	return &Recorder{
		config:  config,
		devices: devices,
		logger:  logger.WithComponent("recorder"),
	}
}

func (r *Recorder) SampleRate() int {
	return r.config.SampleRate
}

func (r *Recorder) openStream(buf []int16) (*portaudio.Stream, error) {
	var info *portaudio.DeviceInfo
	if r.devices != nil {
		info = r.devices.info(r.config.DeviceID)
	}
	if info == nil {
		return portaudio.OpenDefaultStream(1, 0, float64(r.config.SampleRate), len(buf), buf)
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(r.config.SampleRate),
		FramesPerBuffer: len(buf),
	}
	return portaudio.OpenStream(params, buf)
}

// Start opens the microphone and captures until Stop, ctx ends or
// MaxDuration passes. onSamples, if set, sees every buffer as floats.
func (r *Recorder) Start(ctx context.Context, onSamples func([]float32)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return coach.NewCoachError("already recording", coach.ErrCodeAudioDevice)
	}

	buf := make([]int16, r.config.FramesPerBuffer)
	stream, err := r.openStream(buf)
	if err != nil {
		return coach.Wrapf(err, coach.ErrCodeAudioDevice, "failed to open input stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return coach.Wrapf(err, coach.ErrCodeAudioDevice, "failed to start input stream")
	}

	loopCtx, cancel := context.WithTimeout(ctx, r.config.MaxDuration)
	r.stream = stream
	r.pcm.Reset()
	r.running = true
	r.done = make(chan struct{})
	r.cancel = cancel

	go r.captureLoop(loopCtx, stream, buf, onSamples, r.done)
	r.logger.Debug("Recording started")
	return nil
}

func (r *Recorder) captureLoop(ctx context.Context, stream *portaudio.Stream, buf []int16, onSamples func([]float32), done chan struct{}) {
	defer close(done)

	samples := make([]float32, len(buf))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			r.logger.WithError(err).Debug("input read failed")
			time.Sleep(10 * time.Millisecond)
			continue
		}

		r.mu.Lock()
		r.pcm.Write(coach.Int16ToPCM(buf))
		r.mu.Unlock()

		if onSamples != nil {
			for i, s := range buf {
				samples[i] = float32(s) / 32768
			}
			onSamples(samples)
		}
	}
}

// IsRecording reports whether capture is running
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop ends capture and returns everything recorded since Start
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil, nil
	}
	r.running = false
	cancel, done, stream := r.cancel, r.done, r.stream
	r.mu.Unlock()

	cancel()
	<-done

	var stopErr error
	if err := stream.Stop(); err != nil {
		stopErr = coach.Wrapf(err, coach.ErrCodeAudioDevice, "failed to stop input stream")
	}
	stream.Close()

	r.mu.Lock()
	r.stream = nil
	pcm := append([]byte(nil), r.pcm.Bytes()...)
	r.pcm.Reset()
	r.mu.Unlock()

	r.logger.Debugf("Recording stopped: %s captured", coach.PCMDuration(pcm, r.config.SampleRate, 1))
	return pcm, stopErr
}
