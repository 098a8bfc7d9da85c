package bridge

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testSession(id string, state State) *Session {
	s := &Session{ID: uuid.New(), DeviceID: id, done: make(chan struct{})}
	s.state.Store(int32(state))
	return s
}

func TestRegistryPutReplaces(t *testing.T) {
	r := newRegistry()
	first := testSession("DEV", StateRunning)
	second := testSession("DEV", StateRunning)

	assert.Nil(t, r.put(first))
	assert.Same(t, first, r.put(second))
	assert.Equal(t, 1, r.len())

	got, ok := r.get("DEV")
	assert.True(t, ok)
	assert.Same(t, second, got)
	assert.True(t, r.contains(second.ID))
	assert.False(t, r.contains(first.ID))
}

func TestRegistryRemoveOnlyCurrent(t *testing.T) {
	r := newRegistry()
	first := testSession("DEV", StateRunning)
	second := testSession("DEV", StateRunning)
	r.put(first)
	r.put(second)

	assert.False(t, r.remove(first), "superseded session must not remove the new entry")
	assert.True(t, r.remove(second))
	assert.Equal(t, 0, r.len())
}

func TestRegistryRunningSorted(t *testing.T) {
	r := newRegistry()
	r.put(testSession("C", StateRunning))
	r.put(testSession("A", StateRunning))
	r.put(testSession("B", StateClosedDisconnected))
	r.put(testSession("D", StateFaulted))

	assert.Equal(t, []string{"A", "B", "C", "D"}, r.ids())
	assert.Equal(t, []string{"A", "C"}, r.running())
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateConfiguring.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateClosedDisconnected.Terminal())
	assert.True(t, StateClosedCancelled.Terminal())
	assert.True(t, StateFaulted.Terminal())
	assert.Equal(t, "closed-disconnected", StateClosedDisconnected.String())
}
