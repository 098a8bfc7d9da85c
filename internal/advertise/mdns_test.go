package advertise

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceName(t *testing.T) {
	assert.Equal(t, "bench-3", InstanceName("bench-3"))
	assert.Len(t, InstanceName(strings.Repeat("x", 80)), MaxInstanceNameLen)
	assert.NotEmpty(t, InstanceName(""))
}

func TestTXTRecords(t *testing.T) {
	assert.Equal(t, []string{"proto=1"}, TXTRecords(Config{}))
	assert.Equal(t, []string{"proto=1", "version=1.2.0"}, TXTRecords(Config{Version: "1.2.0"}))
}

func TestInterfaces(t *testing.T) {
	ifaces, err := interfaces("")
	require.NoError(t, err)
	assert.Nil(t, ifaces)

	_, err = interfaces("no-such-interface0")
	assert.Error(t, err)
}

func TestShutdownIdle(t *testing.T) {
	a := New(nil)
	a.Shutdown()
	a.Shutdown()
}

func TestStartBadInterface(t *testing.T) {
	a := New(nil)
	err := a.Start(Config{Instance: "test", Port: 12345, Interface: "no-such-interface0"})
	assert.ErrorContains(t, err, "no-such-interface0")
}
