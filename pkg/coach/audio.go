package coach

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

const (
	// TTSSampleRate is the rate of synthesized speech (PCM16 mono)
	TTSSampleRate = 24000
	// ASRSampleRate is the capture rate used for answers
	ASRSampleRate = 16000

	MIMETypePCM = "audio/pcm"
	MIMETypeWAV = "audio/wav"

	wavHeaderSize = 44
)

// DecodePCMBase64 decodes a base64 PCM16LE payload
func DecodePCMBase64(b64 string) ([]byte, error) {
	b64 = strings.TrimSpace(b64)
	if b64 == "" {
		return nil, NewAudioError("empty audio payload")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, Wrapf(err, ErrCodeAudioDecode, "invalid base64 audio")
	}
	if len(data)%2 != 0 {
		return nil, NewAudioError(fmt.Sprintf("odd PCM16 byte count: %d", len(data)))
	}
	return data, nil
}

// EncodePCMBase64 is the inverse of DecodePCMBase64
func EncodePCMBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// PCM16ToFloat32 converts little-endian PCM16 to samples in [-1, 1)
func PCM16ToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// Float32ToPCM16 clamps and converts samples to little-endian PCM16
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(float64(s) * 32767))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Int16ToPCM packs samples as little-endian bytes
func Int16ToPCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// PCMToInt16 unpacks little-endian bytes
func PCMToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// PCMDuration is the playback time of a PCM16 buffer
func PCMDuration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	if channels <= 0 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// EncodeWAV wraps PCM16 data in a canonical 44 byte RIFF header
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV extracts PCM16 data, sample rate and channel count. Unknown
// chunks between "fmt " and "data" are skipped.
func DecodeWAV(wav []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, 0, NewAudioError("not a RIFF/WAVE file")
	}

	var haveFmt bool
	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(wav) {
			if id == "data" {
				size = len(wav) - body
			} else {
				return nil, 0, 0, NewAudioError(fmt.Sprintf("truncated %q chunk", id))
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, NewAudioError("short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(wav[body:])
			channels = int(binary.LittleEndian.Uint16(wav[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(wav[body+4:]))
			bits := binary.LittleEndian.Uint16(wav[body+14:])
			if format != 1 || bits != 16 {
				return nil, 0, 0, NewAudioError(fmt.Sprintf("unsupported wav format %d/%d bits", format, bits))
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, NewAudioError("data chunk before fmt chunk")
			}
			return wav[body : body+size], sampleRate, channels, nil
		}

		pos = body + size + size%2
	}
	return nil, 0, 0, NewAudioError("missing data chunk")
}

// RMS of the samples
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v * v)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// Peak absolute amplitude
func Peak(samples []float32) float32 {
	var peak float32
	for _, v := range samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// LevelBars splits samples into n buckets and returns the peak of each,
// normalized so the loudest bucket is 1. Silence yields all zeros.
func LevelBars(samples []float32, n int) []float32 {
	if n <= 0 {
		return nil
	}
	bars := make([]float32, n)
	if len(samples) == 0 {
		return bars
	}

	var loudest float32
	for i := 0; i < n; i++ {
		start := i * len(samples) / n
		end := (i + 1) * len(samples) / n
		if end <= start {
			continue
		}
		bars[i] = Peak(samples[start:end])
		if bars[i] > loudest {
			loudest = bars[i]
		}
	}
	if loudest == 0 {
		return bars
	}
	for i := range bars {
		bars[i] /= loudest
	}
	return bars
}

// LevelMeter keeps a short history of RMS levels for a scrolling meter
type LevelMeter struct {
	mu      sync.Mutex
	history []float32
	size    int
	peak    float32
}

func NewLevelMeter(size int) *LevelMeter {
	if size <= 0 {
		size = 32
	}
	return &LevelMeter{size: size, history: make([]float32, 0, size)}
}

// Push records one frame and returns its RMS
func (m *LevelMeter) Push(samples []float32) float32 {
	level := RMS(samples)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == m.size {
		copy(m.history, m.history[1:])
		m.history = m.history[:m.size-1]
	}
	m.history = append(m.history, level)
	if level > m.peak {
		m.peak = level
	}
	return level
}

// Levels returns a copy of the history, oldest first
func (m *LevelMeter) Levels() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float32, len(m.history))
	copy(out, m.history)
	return out
}

// Peak is the loudest level seen since the last Reset
func (m *LevelMeter) Peak() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = m.history[:0]
	m.peak = 0
}

// RenderBars draws levels in [0,1] as block characters
func RenderBars(levels []float32) string {
	const blocks = " ▁▂▃▄▅▆▇█"
	runes := []rune(blocks)
	var b strings.Builder
	for _, l := range levels {
		if l < 0 {
			l = 0
		} else if l > 1 {
			l = 1
		}
		b.WriteRune(runes[int(math.Round(float64(l)*float64(len(runes)-1)))])
	}
	return b.String()
}
