package duplexrpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerDefaultIDsAreSequentialStrings(t *testing.T) {
	tr := newTracker(nil)
	id1, _ := tr.newSlot()
	id2, _ := tr.newSlot()
	require.Equal(t, "id-1", id1.String())
	require.Equal(t, "id-2", id2.String())
}

func TestTrackerCustomIDGenerator(t *testing.T) {
	n := 0
	tr := newTracker(func() ID {
		n++
		return stringID("custom-" + string(rune('a'+n-1)))
	})
	id, _ := tr.newSlot()
	require.Equal(t, "custom-a", id.String())
}

func TestTrackerDeliverToKnownID(t *testing.T) {
	tr := newTracker(nil)
	id, ch := tr.newSlot()

	require.True(t, tr.deliver(id, outcome{result: "ok"}))
	o := <-ch
	require.Equal(t, "ok", o.result)
}

func TestTrackerDeliverToUnknownIDReportsFalse(t *testing.T) {
	tr := newTracker(nil)
	require.False(t, tr.deliver(stringID("nope"), outcome{result: "ok"}))
}

func TestTrackerCancelRemovesSlot(t *testing.T) {
	tr := newTracker(nil)
	id, _ := tr.newSlot()
	tr.cancel(id)
	require.False(t, tr.deliver(id, outcome{result: "too late"}))
}

func TestTrackerDrainClosedDeliversToEveryWaiter(t *testing.T) {
	tr := newTracker(nil)
	id1, ch1 := tr.newSlot()
	id2, ch2 := tr.newSlot()

	tr.drainClosed()

	o1 := <-ch1
	o2 := <-ch2
	require.True(t, o1.closed)
	require.True(t, o2.closed)

	// Slots are gone from the pending table; a later deliver is a no-op.
	require.False(t, tr.deliver(id1, outcome{result: "late"}))
	require.False(t, tr.deliver(id2, outcome{result: "late"}))
}
