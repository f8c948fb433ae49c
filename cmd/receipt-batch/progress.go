package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/zombor/receipt-batch/internal/receipt"
)

// progressObserver draws a progress bar as receipts are processed. The bar
// is created on the first file since the total is not known before listing.
type progressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (p *progressObserver) FileStarted(index, total int, name string) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				if _, err := fmt.Fprintln(p.w); err != nil {
					slog.Warn("Failed to write newline after progress bar", "error", err)
				}
			}),
		)
	}
	p.bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset]", name))
}

func (p *progressObserver) FileFinished(name string, skip *receipt.SkippedFile) {
	if p.bar == nil {
		return
	}
	if skip != nil {
		p.bar.Describe(fmt.Sprintf("[yellow]skipped %s[reset]", name))
	}
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}
