package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"igtracker/pkg/collector"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 24
)

// Bar renders done out of total as a fixed-width bar. Values above total
// render full.
func Bar(done, total, width int) string {
	if width <= 0 {
		width = barWidth
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	filled = max(0, min(filled, width))
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// CycleProgress prints single-line progress for a tracking cycle
type CycleProgress struct {
	mu       sync.Mutex
	out      io.Writer
	expected int
	start    time.Time
	dirty    bool
}

// NewCycleProgress writes to out; a nil out uses Output
func NewCycleProgress(out io.Writer) *CycleProgress {
	if out == nil {
		out = Output
	}
	return &CycleProgress{out: out, start: time.Now()}
}

// SetExpected sets the advertised following count
func (p *CycleProgress) SetExpected(expected int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expected = expected
}

// Collect renders a collector progress report
func (p *CycleProgress) Collect(pr collector.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stall := ""
	if pr.Stall > 0 {
		stall = Dim(fmt.Sprintf(" stall %d", pr.Stall))
	}
	fmt.Fprintf(p.out, "\r%s pass %d [%s] %d/%d loaded%s   ",
		Cyan("COLLECT"), pr.Pass, Bar(pr.Visible, p.expected, barWidth), pr.Visible, p.expected, stall)
	p.dirty = true
}

// Reciprocity renders reciprocity check progress
func (p *CycleProgress) Reciprocity(done, total int, identifier string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s [%s] %d/%d %s   ",
		Cyan("CHECK  "), Bar(done, total, barWidth), done, total, Dim(fmt.Sprintf("%-30s", identifier)))
	p.dirty = true
}

// Finish ends the progress line
func (p *CycleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		fmt.Fprintln(p.out)
		p.dirty = false
	}
	fmt.Fprintf(p.out, "%s %s\n", Dim("elapsed"), time.Since(p.start).Round(time.Second))
}
