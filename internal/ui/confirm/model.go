package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskclient/internal/theme"
)

// DeletePrompt is the question asked before a task is deleted.
const DeletePrompt = "Are you sure you want to delete this task?"

// ResultMsg reports the user's answer.
type ResultMsg struct {
	Confirmed bool
}

// Model is a yes/no confirmation dialog.
type Model struct {
	form     *huh.Form
	answer   *bool
	question string
	subject  string
	width    int
}

// New creates an inactive dialog.
func New(width int) Model {
	return Model{answer: new(bool), width: width}
}

// Ask opens the dialog. subject is shown under the question.
func (m *Model) Ask(question, subject string) tea.Cmd {
	*m.answer = false
	m.question = question
	m.subject = subject
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Description(subject).
				Affirmative("Delete").
				Negative("Cancel").
				Value(m.answer),
		),
	).WithShowHelp(false).WithWidth(m.dialogWidth())
	return m.form.Init()
}

// Active reports whether the dialog is open.
func (m Model) Active() bool {
	return m.form != nil
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	if kmsg, ok := msg.(tea.KeyMsg); ok && kmsg.String() == "esc" {
		m.form = nil
		return m, answer(false)
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		return m, answer(*m.answer)
	case huh.StateAborted:
		m.form = nil
		return m, answer(false)
	}
	return m, cmd
}

func answer(yes bool) tea.Cmd {
	return func() tea.Msg { return ResultMsg{Confirmed: yes} }
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return theme.PanelStyle.
		BorderForeground(theme.ColorRed).
		Width(m.dialogWidth() + 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, m.form.View()))
}

// SetSize updates the dialog width.
func (m *Model) SetSize(width int) {
	m.width = width
}

func (m Model) dialogWidth() int {
	return min(max(m.width/2, 30), 60)
}
