package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/schollz/progressbar/v3"
)

// BulkProgress draws a progress bar while a bulk run works through
// transactions and tallies what it saw.
type BulkProgress struct {
	writer  io.Writer
	bar     *progressbar.ProgressBar
	summary model.BulkSummary
	mu      sync.Mutex
}

// NewBulkProgress creates a progress bar sized for total transactions.
func NewBulkProgress(writer io.Writer, total int) *BulkProgress {
	if writer == nil {
		writer = os.Stdout
	}

	p := &BulkProgress{writer: writer}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Applying bank rules...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Report advances the bar by one transaction. It has the signature of
// rules.ProgressFunc.
func (p *BulkProgress) Report(_ model.BankTransaction, result model.EvaluationResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.summary.TotalTransactions++
	switch {
	case err != nil:
		p.summary.Errors++
	case result.Applied():
		p.summary.RulesApplied++
	}

	if addErr := p.bar.Add(1); addErr != nil {
		slog.Warn("Failed to update progress bar", "error", addErr)
	}
}

// Summary returns the counts seen so far.
func (p *BulkProgress) Summary() model.BulkSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// Finish completes the bar even when the run stopped early.
func (p *BulkProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
