package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLoggerRedirects(t *testing.T) {
	defer SetLogger(nil)

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	Logf("sensor %s ready", "lidar-01")
	assert.Equal(t, "sensor lidar-01 ready", got)
}

func TestSetLoggerNilInstallsNoop(t *testing.T) {
	SetLogger(nil)
	// Must not panic.
	Logf("dropped on the floor %d", 42)
}

func TestMuteRestores(t *testing.T) {
	calls := 0
	SetLogger(func(string, ...interface{}) { calls++ })

	restore := Mute()
	Logf("silenced")
	assert.Zero(t, calls)

	restore()
	Logf("audible")
	assert.Equal(t, 1, calls)
}
