package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// loadProgress draws a progress bar for the loader's module-tree walk. The
// bar is created on the first callback, once the crate count is known.
type loadProgress struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newLoadProgress(w io.Writer) *loadProgress {
	return &loadProgress{w: w}
}

// Update matches workspace.Options.Progress.
func (p *loadProgress) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		w := p.w
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Walking crates"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(w)
			}),
		)
	}
	_ = p.bar.Set(done)
}

// Finish completes the bar if one was drawn.
func (p *loadProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
