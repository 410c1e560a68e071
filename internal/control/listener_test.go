package control

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/lidar-bridge/internal/device"
	"github.com/banshee-data/lidar-bridge/internal/monitoring"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		payload string
		wantOn  bool
	}{
		{"ON", true},
		{"on", true},
		{"turn on", true},
		{"lights ON", true},
		{"off", false},
		{"OFF", false},
		{"garbage", false},
		{"", false},
		// Permissive suffix match: stray trailing text means stop.
		{"on please", false},
	}

	for _, tt := range tests {
		on, ok := decodeCommand([]byte(tt.payload))
		assert.True(t, ok, "payload %q", tt.payload)
		assert.Equal(t, tt.wantOn, on, "payload %q", tt.payload)
	}
}

func TestDecodeCommandRejectsNonText(t *testing.T) {
	_, ok := decodeCommand([]byte{0xff, 0xfe, 0xfd})
	assert.False(t, ok)
}

func TestHandlerUpdatesRunState(t *testing.T) {
	defer monitoring.Mute()()

	rs := device.NewRunState(false)
	handle := Handler(rs)

	handle(&nats.Msg{Data: []byte("turn on")})
	assert.True(t, rs.Get())

	handle(&nats.Msg{Data: []byte("garbage")})
	assert.False(t, rs.Get())

	// Malformed payload is ignored: no state change.
	rs.Set(true)
	handle(&nats.Msg{Data: []byte{0xff}})
	assert.True(t, rs.Get())
}
