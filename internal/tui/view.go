package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	width := m.width - 10
	if width <= 0 || width > maxWidth {
		width = maxWidth
	}

	p := m.current
	var content strings.Builder

	// Title - show stopping state
	title := "Load Test - Running"
	if m.stopping {
		title = "Load Test - Stopping"
	}
	if m.info.Name != "" {
		title += " (" + m.info.Name + ")"
	}
	content.WriteString(styleTitle.Render(title) + "\n\n")

	if m.info.Target != "" {
		content.WriteString(styleLabel.Render("Target") + "\n")
		content.WriteString(m.info.Target + "\n")
		if m.info.Model != "" {
			content.WriteString(styleSubtle.Render("Model: ") + m.info.Model + "\n")
		}
		content.WriteString("\n")
	}

	// Progress section
	fraction := p.Fraction()
	content.WriteString(styleLabel.Render("Progress") + "\n")
	switch {
	case p.RunTime > 0:
		content.WriteString(fmt.Sprintf("%s / %s (%.1f%%)\n", formatDuration(p.Elapsed), formatDuration(p.RunTime), fraction*100))
	case p.Expected > 0:
		content.WriteString(fmt.Sprintf("%d/%d requests (%.1f%%)\n", p.Completed, p.Expected, fraction*100))
	}
	content.WriteString(m.bar.ViewAs(fraction) + "\n")

	content.WriteString(fmt.Sprintf("Elapsed: %s\n", formatDuration(p.Elapsed)))
	content.WriteString(fmt.Sprintf("Users: %d/%d started, %d active\n", p.Started, p.Users, p.Active))

	if m.stopping {
		content.WriteString(styleWarning.Render(fmt.Sprintf("Waiting for %d active users to stop...", p.Active)) + "\n")
	}
	content.WriteString("\n")

	// Statistics section
	content.WriteString(styleLabel.Render("Statistics") + "\n")

	succeeded := p.Completed - p.Failed
	rps := 0.0
	if p.Elapsed.Seconds() > 0 {
		rps = float64(p.Completed) / p.Elapsed.Seconds()
	}
	errorRate := 0.0
	if p.Completed > 0 {
		errorRate = float64(p.Failed) / float64(p.Completed)
	}

	leftCol := []string{
		fmt.Sprintf("Requests:   %d", p.Completed),
		"Success:    " + styleSuccess.Render(fmt.Sprintf("%d", succeeded)),
		"Failures:   " + failureStyle(p.Failed).Render(fmt.Sprintf("%d", p.Failed)),
	}
	rightCol := []string{
		fmt.Sprintf("Req/s:        %.2f", rps),
		fmt.Sprintf("Error rate:   %.1f%%", errorRate*100),
		fmt.Sprintf("Last latency: %dms", p.LastLatency.Milliseconds()),
	}

	for i := range leftCol {
		content.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(25).Render(leftCol[i]),
			rightCol[i]) + "\n")
	}

	// Instructions
	content.WriteString("\n")
	footer := "q/esc/ctrl+c: Cancel test"
	if m.stopping {
		footer = "Stopping test gracefully... please wait"
	}
	content.WriteString(styleSubtle.Render(footer))

	box := styleBox.Width(width).Render(content.String())
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func failureStyle(failed int64) lipgloss.Style {
	if failed > 0 {
		return styleError
	}
	return styleSubtle
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
