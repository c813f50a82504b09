package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

func testManager() *DeviceManager {
	dm := NewDeviceManager(coach.NewNopLogger())
	dm.devices = []Device{
		{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000, IsDefaultInput: true, HostAPI: "Core Audio"},
		{ID: 1, Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000, IsDefaultOutput: true, HostAPI: "Core Audio"},
		{ID: 2, Name: "USB Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 16000, HostAPI: "Core Audio"},
	}
	return dm
}

func TestDeviceManager_Filters(t *testing.T) {
	dm := testManager()

	assert.Len(t, dm.Devices(), 3)
	assert.Len(t, dm.Inputs(), 2)
	assert.Len(t, dm.Outputs(), 2)

	in, err := dm.DefaultInput()
	require.NoError(t, err)
	assert.Equal(t, "Built-in Microphone", in.Name)

	out, err := dm.DefaultOutput()
	require.NoError(t, err)
	assert.Equal(t, 1, out.ID)

	_, err = dm.Device(9)
	assert.True(t, coach.IsErrorCode(err, coach.ErrCodeAudioDevice))
}

func TestDeviceManager_Validate(t *testing.T) {
	dm := testManager()

	tests := []struct {
		name     string
		id       int
		input    bool
		channels int
		wantErr  bool
	}{
		{"default input", -1, true, 1, false},
		{"default output", -1, false, 1, false},
		{"headset mono input", 2, true, 1, false},
		{"headset stereo input", 2, true, 2, true},
		{"output as input", 1, true, 1, true},
		{"missing device", 7, false, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dm.Validate(tt.id, tt.input, tt.channels, 16000)
			if tt.wantErr {
				assert.True(t, coach.IsErrorCode(err, coach.ErrCodeAudioDevice), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeviceManager_NoDefaults(t *testing.T) {
	dm := NewDeviceManager(coach.NewNopLogger())
	_, err := dm.DefaultInput()
	assert.Error(t, err)
	assert.Error(t, dm.Validate(-1, false, 1, 0))
	assert.Nil(t, dm.info(0))
	assert.Nil(t, dm.info(-1))
}

func TestDescribe(t *testing.T) {
	out := Describe(testManager().Devices()[0])
	assert.Contains(t, out, "[0] Built-in Microphone")
	assert.Contains(t, out, "2 in / 0 out")
	assert.Contains(t, out, "default input")
}

func TestNewRecorder_Defaults(t *testing.T) {
	r := NewRecorder(RecorderConfig{DeviceID: -1}, nil, coach.NewNopLogger())
	assert.Equal(t, coach.ASRSampleRate, r.SampleRate())
	assert.Equal(t, coach.ASRSampleRate/10, r.config.FramesPerBuffer)
	assert.False(t, r.IsRecording())

	pcm, err := r.Stop()
	assert.NoError(t, err)
	assert.Nil(t, pcm)
}
