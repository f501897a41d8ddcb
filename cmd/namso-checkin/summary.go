package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// renderSummary formats the end-of-batch report for the terminal.
func renderSummary(summary domain.Summary, results []domain.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Namso Check-in Summary"))
	b.WriteString("\n")

	succeeded := summary.Processed - len(summary.FailureList)
	lines := []string{
		fmt.Sprintf("Profiles     %d", summary.Processed),
		fmt.Sprintf("Succeeded    %s", okStyle.Render(fmt.Sprintf("%d", succeeded))),
		fmt.Sprintf("Failed       %s", failStyle.Render(fmt.Sprintf("%d", len(summary.FailureList)))),
		fmt.Sprintf("Check-ins    %d", summary.CheckInOK),
		fmt.Sprintf("Converts     %d", summary.ConvertOK),
		fmt.Sprintf("Total SHARE  %s", humanize.CommafWithDigits(summary.TotalShare, 2)),
		fmt.Sprintf("Duration     %s", summary.Duration.Round(time.Second)),
	}
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	if len(summary.FailureList) > 0 {
		b.WriteString(failStyle.Render("Failed profiles:"))
		b.WriteString("\n")
		for _, r := range summary.FailureList {
			reason := r.Error
			if reason == "" {
				reason = "login failed"
			}
			b.WriteString(fmt.Sprintf("  %s %s  %s\n",
				failStyle.Render("✗"), r.Key(), dimStyle.Render(reason)))
		}
	}

	return b.String()
}
