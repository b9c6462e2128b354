package tasks

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Reporter prints task progress lines.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time

	stamp func(a ...interface{}) string
	name  func(a ...interface{}) string
	dur   func(a ...interface{}) string
	fail  func(a ...interface{}) string
}

// NewReporter writes to out; a nil out discards.
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{
		out:   out,
		now:   time.Now,
		stamp: color.New(color.FgHiBlack).SprintFunc(),
		name:  color.New(color.FgCyan).SprintFunc(),
		dur:   color.New(color.FgMagenta).SprintFunc(),
		fail:  color.New(color.FgRed).SprintFunc(),
	}
}

// Start reports that task began.
func (r *Reporter) Start(task string) {
	r.line("Starting '%s'...", r.name(task))
}

// Finish reports that task completed after d.
func (r *Reporter) Finish(task string, d time.Duration) {
	r.line("Finished '%s' after %s", r.name(task), r.dur(formatDuration(d)))
}

// Fail reports that task errored after d.
func (r *Reporter) Fail(task string, d time.Duration, err error) {
	r.line("'%s' %s after %s", r.name(task), r.fail("errored"), r.dur(formatDuration(d)))
	if err != nil {
		r.line("%s", r.fail(err.Error()))
	}
}

// Message prints a free-form progress line.
func (r *Reporter) Message(format string, args ...any) {
	r.line(format, args...)
}

func (r *Reporter) line(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.stamp(r.now().Format("15:04:05"))
	_, _ = fmt.Fprintf(r.out, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d μs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	default:
		return fmt.Sprintf("%.1f min", d.Minutes())
	}
}
