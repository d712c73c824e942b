package login

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskclient/internal/guard"
	"github.com/nhle/taskclient/internal/keys"
	"github.com/nhle/taskclient/internal/theme"
	"github.com/nhle/taskclient/internal/ui"
)

// Error texts shown after a failed sign-in.
const (
	ErrInvalidCredentials = "Invalid email or password"
	ErrInvalidResponse    = "Invalid response from server"
)

// SubmitMsg is dispatched when the user submits credentials.
type SubmitMsg struct {
	Email    string
	Password string
	Intent   guard.Intent
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
}

// Model is the login screen.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	keys       *keys.KeyMap
	intent     guard.Intent
	err        string
	submitting bool
	width      int
	height     int
}

// New creates a login screen.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		fb:     &formBindings{},
		keys:   k,
		width:  width,
		height: height,
	}
}

// Reset prepares the screen for a fresh visit. The intent's message is
// shown above the form and its origin is where a successful login goes.
func (m *Model) Reset(intent guard.Intent) tea.Cmd {
	m.intent = intent
	m.err = ""
	m.submitting = false
	m.fb.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Fail shows text and lets the user try again.
func (m *Model) Fail(text string) tea.Cmd {
	m.err = text
	m.submitting = false
	m.fb.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Submitting reports whether a login request is in flight.
func (m Model) Submitting() bool {
	return m.submitting
}

// Message returns the redirect message, if any.
func (m Model) Message() string {
	return m.intent.Message
}

// Error returns the last sign-in error.
func (m Model) Error() string {
	return m.err
}

// Update handles messages for the login screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.submitting {
		return m, nil
	}

	if kmsg, ok := msg.(tea.KeyMsg); ok && key.Matches(kmsg, m.keys.SwitchScreen) {
		return m, ui.Navigate(guard.PathRegister, false)
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.submitting = true
		m.err = ""
		submit := SubmitMsg{
			Email:    strings.TrimSpace(m.fb.email),
			Password: m.fb.password,
			Intent:   m.intent,
		}
		return m, func() tea.Msg { return submit }
	case huh.StateAborted:
		return m, m.Reset(m.intent)
	}
	return m, cmd
}

// View renders the login screen.
func (m Model) View() string {
	var parts []string
	parts = append(parts, theme.TitleStyle.Render("Login"))

	if m.intent.Message != "" {
		parts = append(parts, theme.InfoTextStyle.Render(m.intent.Message))
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorTextStyle.Render(m.err))
	}

	if m.submitting {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	} else if m.form != nil {
		parts = append(parts, m.form.View())
	}

	parts = append(parts, theme.HelpStyle.Render("No account? Press ctrl+r to register."))

	return theme.PanelStyle.
		Width(m.formWidth() + 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(required("Email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(required("Password")),
		),
	).WithShowHelp(false).WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return min(max(m.width/2, 40), 70)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
