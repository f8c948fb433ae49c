package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/zombor/receipt-batch/internal/journal"
	"github.com/zombor/receipt-batch/internal/receipt"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)
)

func renderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}

// renderSummary describes a finished batch. A nil report renders nothing.
func renderSummary(report *receipt.RunReport) string {
	if report == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Directory: %s\n", report.Directory)
	fmt.Fprintf(&b, "Provider:  %s\n", report.Provider)
	fmt.Fprintf(&b, "Recorded:  %d of %d\n", report.Recorded, report.Attempted)

	if len(report.Skipped) > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("Skipped:   %d", len(report.Skipped))))
		b.WriteString("\n")
		for _, s := range report.Skipped {
			fmt.Fprintf(&b, "  • %s (%s): %s\n", s.File, s.Stage, s.Reason)
		}
	}

	if report.Paths.CSV != "" {
		fmt.Fprintf(&b, "CSV:       %s\n", report.Paths.CSV)
		fmt.Fprintf(&b, "Excel:     %s\n", report.Paths.XLSX)
	}

	if report.Err != nil {
		b.WriteString(errorStyle.Render(failureMessage(report.Err)))
		b.WriteString("\n")
	}

	return renderBox("Receipt Batch", strings.TrimRight(b.String(), "\n"))
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, receipt.ErrNoInputFiles):
		return "No matching image files were found; nothing was written."
	case errors.Is(err, receipt.ErrNoRecords):
		return "No receipts could be extracted; nothing was written."
	case errors.Is(err, receipt.ErrDirectoryNotFound):
		return "The directory does not exist."
	default:
		return fmt.Sprintf("Failed: %v", err)
	}
}

// renderHistory lists journaled runs, newest first
func renderHistory(runs []*journal.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var b strings.Builder
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = r.Error
		}
		fmt.Fprintf(&b, "%s  %s  %s  %d/%d  %s  %s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.ID,
			r.Provider,
			r.Recorded,
			r.Attempted,
			r.Directory,
			status,
		)
	}
	return b.String()
}
