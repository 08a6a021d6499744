package failuredetector

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeverHeardFromIsMaximallySuspect(t *testing.T) {
	d := New(8.0, time.Hour)
	defer d.Stop()

	assert.True(t, math.IsInf(d.Phi("ghost"), 1))
	assert.False(t, d.IsAlive("ghost"))
}

func TestFreshHeartbeatIsAlive(t *testing.T) {
	d := New(8.0, time.Hour)
	defer d.Stop()

	d.Heartbeat("a")
	d.Heartbeat("a")
	assert.True(t, d.IsAlive("a"))
}

func TestRemoveEmitsReasonRemoved(t *testing.T) {
	d := New(8.0, time.Hour)
	defer d.Stop()

	sub := d.Subscribe()
	d.Heartbeat("a")
	d.Remove("a")

	select {
	case ev := <-sub:
		assert.Equal(t, "a", ev.Endpoint)
		assert.Equal(t, ReasonRemoved, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected a conviction event")
	}

	assert.True(t, math.IsInf(d.Phi("a"), 1))
}

func TestRestartEmitsReasonRestarted(t *testing.T) {
	d := New(8.0, time.Hour)
	defer d.Stop()

	sub := d.Subscribe()
	d.Restart("a")

	select {
	case ev := <-sub:
		assert.Equal(t, ReasonRestarted, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected a conviction event")
	}
}

func TestSweepConvictsOverdueEndpoint(t *testing.T) {
	d := New(0.1, 5*time.Millisecond)
	defer d.Stop()

	sub := d.Subscribe()
	d.Heartbeat("a")
	d.Heartbeat("a") // second heartbeat seeds a non-zero interval sample

	require.Eventually(t, func() bool {
		select {
		case ev := <-sub:
			return ev.Reason == ReasonConvicted && ev.Endpoint == "a"
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeDropsRatherThanBlocksOnFullChannel(t *testing.T) {
	d := New(8.0, time.Hour)
	defer d.Stop()

	d.Subscribe() // unread consumer; its 16-slot buffer fills up
	for i := 0; i < 32; i++ {
		d.Remove("a") // publishes repeatedly; must never block the caller
	}
}
