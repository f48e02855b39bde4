package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 30

// progressBar draws a single-line bar, redrawing only when the whole
// percentage changes.
type progressBar struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	last  int
}

func newProgressBar(w io.Writer, label string) *progressBar {
	return &progressBar{w: w, label: label, last: -1}
}

func (p *progressBar) Update(fraction float64) {
	pct := int(fraction * 100)
	pct = max(0, min(pct, 100))

	p.mu.Lock()
	defer p.mu.Unlock()

	if pct == p.last {
		return
	}

	p.last = pct
	filled := pct * barWidth / 100

	fmt.Fprintf(p.w, "\r%s [%s%s] %3d%%", p.label,
		strings.Repeat("#", filled), strings.Repeat(" ", barWidth-filled), pct)

	if pct == 100 {
		fmt.Fprintln(p.w)
	}
}
