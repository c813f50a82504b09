// Package voice is the PortAudio microphone and speaker layer of the terminal
// interview.
package voice

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

// Device describes an audio device
type Device struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	IsDefaultInput    bool    `json:"is_default_input"`
	IsDefaultOutput   bool    `json:"is_default_output"`
	HostAPI           string  `json:"host_api"`
}

func (d Device) IsInput() bool  { return d.MaxInputChannels > 0 }
func (d Device) IsOutput() bool { return d.MaxOutputChannels > 0 }

// DeviceManager lists and validates audio devices. Initialize must be called
// before anything else, and Terminate when done.
type DeviceManager struct {
	mu          sync.RWMutex
	devices     []Device
	infos       []*portaudio.DeviceInfo
	initialized bool
	logger      *coach.CoachLogger
}

func NewDeviceManager(logger *coach.CoachLogger) *DeviceManager {
	if logger == nil {
		logger = coach.GetGlobalLogger()
	}
	return &DeviceManager{logger: logger.WithComponent("devices")}
}

// Initialize starts PortAudio and loads the device list
func (dm *DeviceManager) Initialize() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		dm.logger.WithError(err).Error("Failed to initialize PortAudio")
		return coach.Wrapf(err, coach.ErrCodeAudioDevice, "failed to initialize audio")
	}
	dm.initialized = true

	if err := dm.refresh(); err != nil {
		return err
	}
	dm.logger.WithField("device_count", len(dm.devices)).Debug("Audio devices loaded")
	return nil
}

// Terminate shuts PortAudio down
func (dm *DeviceManager) Terminate() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if !dm.initialized {
		return
	}
	if err := portaudio.Terminate(); err != nil {
		dm.logger.WithError(err).Warn("Failed to terminate PortAudio")
	}
	dm.initialized = false
}

func (dm *DeviceManager) refresh() error {
	infos, err := portaudio.Devices()
	if err != nil {
		return coach.Wrapf(err, coach.ErrCodeAudioDevice, "failed to list audio devices")
	}

	defaultIn, err := portaudio.DefaultInputDevice()
	if err != nil {
		dm.logger.WithError(err).Debug("No default input device")
	}
	defaultOut, err := portaudio.DefaultOutputDevice()
	if err != nil {
		dm.logger.WithError(err).Debug("No default output device")
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		hostAPI := "Unknown"
		if info.HostApi != nil {
			hostAPI = info.HostApi.Name
		}
		devices = append(devices, Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefaultInput:    defaultIn != nil && info == defaultIn,
			IsDefaultOutput:   defaultOut != nil && info == defaultOut,
			HostAPI:           hostAPI,
		})
	}

	dm.devices = devices
	dm.infos = infos
	return nil
}

// Refresh reloads the device list
func (dm *DeviceManager) Refresh() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.refresh()
}

func (dm *DeviceManager) Devices() []Device {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make([]Device, len(dm.devices))
	copy(out, dm.devices)
	return out
}

func (dm *DeviceManager) filter(keep func(Device) bool) []Device {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := []Device{}
	for _, d := range dm.devices {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (dm *DeviceManager) Inputs() []Device  { return dm.filter(Device.IsInput) }
func (dm *DeviceManager) Outputs() []Device { return dm.filter(Device.IsOutput) }

// Device returns the device with id
func (dm *DeviceManager) Device(id int) (Device, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, d := range dm.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{}, coach.NewCoachError(fmt.Sprintf("audio device %d not found", id), coach.ErrCodeAudioDevice).
		AddDetail("device_id", id)
}

// DefaultInput returns the system default microphone
func (dm *DeviceManager) DefaultInput() (Device, error) {
	for _, d := range dm.Inputs() {
		if d.IsDefaultInput {
			return d, nil
		}
	}
	return Device{}, coach.NewCoachError("no default input device", coach.ErrCodeAudioDevice)
}

// DefaultOutput returns the system default speaker
func (dm *DeviceManager) DefaultOutput() (Device, error) {
	for _, d := range dm.Outputs() {
		if d.IsDefaultOutput {
			return d, nil
		}
	}
	return Device{}, coach.NewCoachError("no default output device", coach.ErrCodeAudioDevice)
}

// Validate checks a device can serve the requested direction and channels.
// A negative id means the system default.
func (dm *DeviceManager) Validate(id int, input bool, channels int, sampleRate float64) error {
	var (
		d   Device
		err error
	)
	switch {
	case id >= 0:
		d, err = dm.Device(id)
	case input:
		d, err = dm.DefaultInput()
	default:
		d, err = dm.DefaultOutput()
	}
	if err != nil {
		return err
	}

	if input && d.MaxInputChannels < channels {
		return coach.NewCoachError(fmt.Sprintf("device '%s' supports %d input channels, need %d", d.Name, d.MaxInputChannels, channels), coach.ErrCodeAudioDevice)
	}
	if !input && d.MaxOutputChannels < channels {
		return coach.NewCoachError(fmt.Sprintf("device '%s' supports %d output channels, need %d", d.Name, d.MaxOutputChannels, channels), coach.ErrCodeAudioDevice)
	}

	if sampleRate > 0 && d.DefaultSampleRate > 0 {
		ratio := sampleRate / d.DefaultSampleRate
		if ratio < 0.5 || ratio > 2.0 {
			dm.logger.WithFields(map[string]interface{}{
				"device_name":           d.Name,
				"device_sample_rate":    d.DefaultSampleRate,
				"requested_sample_rate": sampleRate,
			}).Warn("Sample rate far from device default")
		}
	}
	return nil
}

// Describe renders one device for the devices command
func Describe(d Device) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s\n", d.ID, d.Name)
	fmt.Fprintf(&b, "    Host API: %s\n", d.HostAPI)
	fmt.Fprintf(&b, "    Channels: %d in / %d out\n", d.MaxInputChannels, d.MaxOutputChannels)
	fmt.Fprintf(&b, "    Default Sample Rate: %.0f Hz\n", d.DefaultSampleRate)

	var tags []string
	if d.IsDefaultInput {
		tags = append(tags, "default input")
	}
	if d.IsDefaultOutput {
		tags = append(tags, "default output")
	}
	if len(tags) > 0 {
		fmt.Fprintf(&b, "    Default: %s\n", strings.Join(tags, ", "))
	}
	return b.String()
}

// info is the PortAudio device for id, nil for the default device
func (dm *DeviceManager) info(id int) *portaudio.DeviceInfo {
	if id < 0 {
		return nil
	}
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if id >= len(dm.infos) {
		return nil
	}
	return dm.infos[id]
}
