package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeRatesClampsETA(t *testing.T) {
	// Moved past the declared total: remaining clamps to zero.
	speed, eta := computeRates(2048, 1024, time.Second)
	assert.Equal(t, "2.0 KiB/s", speed)
	assert.Equal(t, "0s", eta)
}

func TestComputeRatesZeroElapsed(t *testing.T) {
	speed, eta := computeRates(1024, 2048, 0)
	assert.Equal(t, "0 B/s", speed)
	assert.Equal(t, "0s", eta)
}

func TestComputeRatesMidTransfer(t *testing.T) {
	// 1 MiB moved of 3 MiB over 2s: 512 KiB/s, 4s remaining.
	speed, eta := computeRates(1<<20, 3<<20, 2*time.Second)
	assert.Equal(t, "512 KiB/s", speed)
	assert.Equal(t, "4s", eta)
}

func TestFormatSeconds(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m 0s"},
		{125, "2m 5s"},
		{3600, "1h 0m"},
		{3780, "1h 3m"},
		{-5, "0s"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatSeconds(c.in), "formatSeconds(%d)", c.in)
	}
}

func TestSessionPauseExcludedFromRates(t *testing.T) {
	clock := time.Unix(1000, 0)
	s := newSession()
	s.now = func() time.Time { return clock }

	s.begin(KindFile, []ItemInfo{{Name: "f", Size: 4096}})

	clock = clock.Add(time.Second)
	s.addBytes(1024)

	s.markPaused()
	clock = clock.Add(time.Minute) // long pause

	pausedSnap := s.Snapshot()
	assert.True(t, pausedSnap.Paused)
	assert.Equal(t, "1.0 KiB/s", pausedSnap.Speed, "rates freeze at the pause instant")

	s.markResumed()
	resumedSnap := s.Snapshot()
	assert.False(t, resumedSnap.Paused)
	assert.Equal(t, "1.0 KiB/s", resumedSnap.Speed, "paused minute must not dilute the speed")
}

func TestSessionProgressCappedAtHundred(t *testing.T) {
	s := newSession()
	s.begin(KindFile, []ItemInfo{{Name: "f", Size: 100}})
	s.addBytes(250)

	assert.Equal(t, 100.0, s.Snapshot().Progress)
}

func TestSessionResetZeroesCounters(t *testing.T) {
	s := newSession()
	s.begin(KindFile, []ItemInfo{{Name: "f", Size: 100}})
	s.addBytes(60)
	s.reset()

	snap := s.Snapshot()
	assert.Zero(t, snap.BytesMoved)
	assert.Zero(t, snap.TotalBytes)
	assert.Zero(t, snap.Progress)
}
