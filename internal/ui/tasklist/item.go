package tasklist

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskclient/internal/model"
	"github.com/nhle/taskclient/internal/theme"
)

// renderTask draws a single task as two lines: status, title and due
// date, then the description.
func renderTask(t model.Task, selected bool, width int, today model.Date) string {
	var prefix string
	if t.IsCompleted {
		prefix = "✓"
	} else {
		prefix = "○"
	}

	label := "Pending"
	if t.IsCompleted {
		label = "Done"
	}
	statusBadge := theme.StatusStyle(t.IsCompleted).Render(label)

	title := t.Title
	if t.IsCompleted {
		title = theme.DimmedStyle.Render(title)
	}

	dueStr := ""
	if !t.DueDate.IsZero() {
		dueStr = theme.DueDateStyle.Render("  Due: " + t.DueDate.String())
	}

	overdueStr := ""
	if isOverdue(t, today) {
		overdueStr = theme.OverdueStyle.Render(" OVERDUE")
	}

	line := fmt.Sprintf("%s %s %s%s%s", prefix, statusBadge, title, dueStr, overdueStr)

	desc := strings.TrimSpace(t.Description)
	if desc != "" {
		desc = truncate(strings.ReplaceAll(desc, "\n", " "), max(width-8, 10))
		line += "\n    " + lipgloss.NewStyle().Foreground(theme.ColorGray).Render(desc)
	}

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// isOverdue reports whether a pending task's due date has passed.
func isOverdue(t model.Task, today model.Date) bool {
	return !t.IsCompleted && !t.DueDate.IsZero() && t.DueDate.Before(today)
}

// today returns the current local calendar date.
func today() model.Date {
	now := time.Now()
	return model.NewDate(now.Year(), now.Month(), now.Day())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
