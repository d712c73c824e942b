package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskclient/internal/guard"
)

// NavigateMsg asks the app to move to Path through the guards.
type NavigateMsg struct {
	Path    string
	Replace bool
	Intent  guard.Intent
}

// Navigate returns a command emitting a NavigateMsg.
func Navigate(path string, replace bool) tea.Cmd {
	return func() tea.Msg { return NavigateMsg{Path: path, Replace: replace} }
}
