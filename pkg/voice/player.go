package voice

import (
	"context"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

const outputFramesPerBuffer = 960

// Player plays synthesized speech on a speaker. It implements coach.Player.
type Player struct {
	devices  *DeviceManager
	deviceID int
	logger   *coach.CoachLogger
	mu       sync.Mutex
}

func NewPlayer(devices *DeviceManager, deviceID int, logger *coach.CoachLogger) *Player {
	if logger == nil {
		logger = coach.GetGlobalLogger()
	}
	return &Player{devices: devices, deviceID: deviceID, logger: logger.WithComponent("player")}
}

func (p *Player) openStream(sampleRate, channels int, buf []int16) (*portaudio.Stream, error) {
	var info *portaudio.DeviceInfo
	if p.devices != nil {
		info = p.devices.info(p.deviceID)
	}
	if info == nil {
		return portaudio.OpenDefaultStream(0, channels, float64(sampleRate), len(buf)/channels, buf)
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: channels,
			Latency:  info.DefaultLowOutputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: len(buf) / channels,
	}
	return portaudio.OpenStream(params, buf)
}

// Play writes the PCM16 payload to the speaker and returns once it has been
// played or ctx is done. Calls are serialized.
func (p *Player) Play(ctx context.Context, speech *coach.Speech) error {
	if speech == nil || len(speech.PCM) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	channels := speech.Channels
	if channels <= 0 {
		channels = 1
	}
	sampleRate := speech.SampleRate
	if sampleRate <= 0 {
		sampleRate = coach.TTSSampleRate
	}

	samples := coach.PCMToInt16(speech.PCM)
	buf := make([]int16, outputFramesPerBuffer*channels)

	stream, err := p.openStream(sampleRate, channels, buf)
	if err != nil {
		return coach.Wrapf(err, coach.ErrCodePlayback, "failed to open output stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return coach.Wrapf(err, coach.ErrCodePlayback, "failed to start output stream")
	}
	defer stream.Stop()

	for offset := 0; offset < len(samples); offset += len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, samples[offset:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			return coach.Wrapf(err, coach.ErrCodePlayback, "failed to write audio")
		}
	}

	p.logger.Debugf("Played %s of speech", speech.Duration())
	return nil
}
