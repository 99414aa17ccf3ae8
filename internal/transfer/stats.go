package transfer

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Snapshot is a read-only view of a session's progress for display. The UI
// only ever sees snapshots; it never touches session state.
type Snapshot struct {
	BytesMoved int64
	TotalBytes int64
	Progress   float64 // 0..100
	Speed      string
	ETA        string
	Paused     bool
}

// computeRates derives speed and ETA from bytes moved since start. ETA never
// goes negative: once moved catches up with total it clamps to zero.
func computeRates(moved, total int64, elapsed time.Duration) (speed, eta string) {
	if elapsed <= 0 {
		return "0 B/s", "0s"
	}

	bps := float64(moved) / elapsed.Seconds()
	speed = humanize.IBytes(uint64(bps)) + "/s"

	remaining := total - moved
	if remaining < 0 {
		remaining = 0
	}

	var etaSeconds int
	if bps > 0 {
		etaSeconds = int(float64(remaining)/bps + 0.5)
	}
	if etaSeconds < 0 {
		etaSeconds = 0
	}

	eta = formatSeconds(etaSeconds)
	return speed, eta
}

// formatSeconds renders an ETA the way the web client shows it: "45s",
// "2m 5s", "1h 3m".
func formatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	switch {
	case total >= 3600:
		return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
	case total >= 60:
		return fmt.Sprintf("%dm %ds", total/60, total%60)
	default:
		return fmt.Sprintf("%ds", total)
	}
}
