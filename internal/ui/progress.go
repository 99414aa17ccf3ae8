package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
)

// ProgressLine renders a single in-place progress line for the active beam.
// It shares the terminal line with nothing else; callers stop printing while
// a transfer is running.
type ProgressLine struct {
	bar   progress.Model
	label string
}

func NewProgressLine(label string) *ProgressLine {
	bar := progress.New(
		progress.WithGradient(ProgressStart, ProgressEnd),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return &ProgressLine{bar: bar, label: label}
}

// Update redraws the line with the latest snapshot values.
func (p *ProgressLine) Update(percent float64, moved, total int64, speed, eta string, paused bool) {
	status := ""
	if paused {
		status = " " + WarningStyle.Render(IconPaused+" paused")
	}

	fmt.Printf("\r\033[K%s %s %5.1f%% %s%s",
		truncate(p.label, 30),
		p.bar.ViewAs(percent/100),
		percent,
		MutedStyle.Render(fmt.Sprintf("%s %s ETA %s (%s/%s)",
			speed, IconFile, eta,
			humanize.IBytes(uint64(moved)),
			humanize.IBytes(uint64(total)))),
		status,
	)
}

// Finish clears the in-place line and prints a completion mark.
func (p *ProgressLine) Finish() {
	fmt.Print("\r\033[K")
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), p.label)
}
