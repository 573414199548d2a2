package experiment

import (
	"fmt"
	"io"
	"sync"
)

// StatusPrinter serializes human-oriented progress lines from
// concurrent workers so they never interleave mid-line.
type StatusPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStatusPrinter(w io.Writer) *StatusPrinter {
	return &StatusPrinter{w: w}
}

func (p *StatusPrinter) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}
