package components

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/allbin/serial-bridge/internal/bridge"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestFormatUptime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "-", FormatUptime(time.Time{}, now))
	assert.Equal(t, "1m30s", FormatUptime(now.Add(-90*time.Second-300*time.Millisecond), now))
	assert.Equal(t, "0s", FormatUptime(now.Add(time.Second), now))
}

func TestASCII(t *testing.T) {
	assert.Equal(t, "OK..", ASCII([]byte{'O', 'K', '\r', 0xff}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab…", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}

func TestProfileSummary(t *testing.T) {
	assert.Equal(t, "1250000 baud 8O2", ProfileSummary(bridge.DefaultProfile()))
}
