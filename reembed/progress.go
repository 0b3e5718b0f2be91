package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressTracker rewrites a single terminal line as chunks are reembedded.
type ProgressTracker struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	done     int
	every    int
	reported int
	start    time.Time
}

// NewProgressTracker creates a tracker for total chunks that redraws after
// every `every` chunks. A non-positive value redraws on every update.
func NewProgressTracker(w io.Writer, total, every int) *ProgressTracker {
	return &ProgressTracker{w: w, total: total, every: max(every, 1)}
}

// Start resets the counters and the clock. Updates before Start are ignored.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()
	p.done, p.reported = 0, 0
}

// Add counts n more reembedded chunks.
func (p *ProgressTracker) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		return
	}
	p.done = min(p.done+n, p.total)
	if p.done-p.reported >= p.every {
		p.draw()
		p.reported = p.done
	}
}

// Finish draws the final state and ends the line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		return
	}
	p.done = p.total
	p.draw()
	fmt.Fprintln(p.w)
}

// Elapsed returns the time since Start, or zero before it.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		return 0
	}
	return time.Since(p.start)
}

// draw must be called with mu held.
func (p *ProgressTracker) draw() {
	elapsed := time.Since(p.start)

	pct := 0.0
	if p.total > 0 {
		pct = 100 * float64(p.done) / float64(p.total)
	}

	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.done) / elapsed.Seconds()
	}

	eta := "-"
	if rate > 0 && p.done < p.total {
		remaining := time.Duration(float64(p.total-p.done) / rate * float64(time.Second))
		eta = remaining.Round(time.Second).String()
	}

	fmt.Fprintf(p.w, "\rReembedded %s/%s chunks (%.1f%%) at %s/s, eta %s",
		humanize.Comma(int64(p.done)), humanize.Comma(int64(p.total)), pct,
		humanize.CommafWithDigits(rate, 1), eta)
}
