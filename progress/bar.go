package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// DefaultThrottle caps how often the bar repaints. Bulk imports advance
// thousands of times per second; repainting each time would dominate.
const DefaultThrottle = time.Second

const barWidth = 30

var labelStyle = lipgloss.NewStyle().Bold(true)

// Bar renders a single-line terminal progress bar:
//
//	Progress: |██████░░░░| 60% (600/1000) | ETA: 12s | 18s
//
// When the total is unknown it falls back to a running item count.
// Safe for use as the sink of one batch at a time.
type Bar struct {
	mu         sync.Mutex
	w          io.Writer
	model      progress.Model
	total      int
	done       int
	start      time.Time
	lastRender time.Time
	throttle   time.Duration
	now        func() time.Time // injected in tests
}

// NewBar creates a Bar writing to w. A total of -1 means unknown.
func NewBar(w io.Writer, total int) *Bar {
	model := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	return &Bar{
		w:        w,
		model:    model,
		total:    total,
		throttle: DefaultThrottle,
		now:      time.Now,
	}
}

// WithThrottle overrides the repaint throttle.
func (b *Bar) WithThrottle(d time.Duration) *Bar {
	b.throttle = d
	return b
}

// Advance adds n completed items and repaints when the throttle allows.
func (b *Bar) Advance(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.start.IsZero() {
		b.start = b.now()
	}
	b.done += n
	if now := b.now(); now.Sub(b.lastRender) >= b.throttle {
		b.render(now, false)
	}
}

// Finalize repaints one last time and terminates the line.
func (b *Bar) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.start.IsZero() {
		b.start = b.now()
	}
	b.render(b.now(), true)
	fmt.Fprintln(b.w)
}

// Done returns the cumulative advanced count.
func (b *Bar) Done() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// render repaints the line. Caller holds the lock.
func (b *Bar) render(now time.Time, final bool) {
	b.lastRender = now
	elapsed := now.Sub(b.start).Round(time.Second)

	var line string
	if b.total > 0 {
		frac := float64(b.done) / float64(b.total)
		if frac > 1 {
			frac = 1
		}
		eta := b.eta(now, frac)
		if final {
			eta = "0s"
		}
		line = fmt.Sprintf("%s |%s| %3.0f%% (%d/%d) | ETA: %s | %s",
			labelStyle.Render("Progress:"),
			b.model.ViewAs(frac),
			frac*100,
			b.done, b.total,
			eta,
			elapsed,
		)
	} else {
		line = fmt.Sprintf("%s %d items | %s",
			labelStyle.Render("Progress:"), b.done, elapsed)
	}
	fmt.Fprintf(b.w, "\r%s", line)
}

// eta extrapolates remaining time from throughput so far.
func (b *Bar) eta(now time.Time, frac float64) string {
	if b.done == 0 || frac <= 0 {
		return "--"
	}
	if frac >= 1 {
		return "0s"
	}
	elapsed := now.Sub(b.start)
	remaining := time.Duration(float64(elapsed)/frac) - elapsed
	return remaining.Round(time.Second).String()
}
