package microphone

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcm(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.Equal(t, 0.0, RMS([]byte{0x01}))
	assert.Equal(t, 0.0, RMS(pcm(0, 0, 0)))
	assert.InDelta(t, 0.5, RMS(pcm(16384, -16384, 16384, -16384)), 1e-9)
	assert.InDelta(t, 1.0, RMS(pcm(-32768, -32768)), 1e-9)
	assert.InDelta(t, 0.5, RMS(append(pcm(16384, -16384), 0x7f)), 1e-9)
}

func TestMatchDevice(t *testing.T) {
	names := []string{"Built-in Microphone", "USB Audio Device (2)", "usb audio device"}
	assert.Equal(t, 2, matchDevice(names, "USB audio device"))
	assert.Equal(t, 0, matchDevice(names, "built-in"))
	assert.Equal(t, -1, matchDevice(names, "webcam"))
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	c := New(Config{}, nil)
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())
	assert.Equal(t, DefaultSampleRate, c.cfg.SampleRate)
}
