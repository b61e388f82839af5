package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fwojciec/pagewalk"
)

// statusPrinter writes one line per status change. Heartbeats that repeat
// the previous status are skipped.
type statusPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last map[string]pagewalk.Status
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	return &statusPrinter{w: w, last: make(map[string]pagewalk.Status)}
}

func (p *statusPrinter) Print(s pagewalk.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.last[s.SessionID]; ok && prev == s {
		return
	}
	p.last[s.SessionID] = s
	fmt.Fprintln(p.w, FormatStatus(s))
}

// FormatStatus renders s on one line.
func FormatStatus(s pagewalk.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %-13s page=%d items=%d attempts=%d",
		shortID(s.SessionID), s.State, s.CurrentPageIndex, s.ItemsCollected, s.AttemptCount)
	if s.Reason != "" {
		fmt.Fprintf(&b, " reason=%q", s.Reason)
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, " error=%q", s.LastError)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
