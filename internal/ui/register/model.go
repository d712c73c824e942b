package register

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskclient/internal/guard"
	"github.com/nhle/taskclient/internal/keys"
	"github.com/nhle/taskclient/internal/model"
	"github.com/nhle/taskclient/internal/theme"
	"github.com/nhle/taskclient/internal/ui"
)

// Texts shown by the register screen.
const (
	MsgSuccess      = "Registration successful! Redirecting to login..."
	MsgFailed       = "Registration failed."
	MsgServerError  = "An error occurred during registration."
	MsgNetworkError = "Server error or network issue."
)

// RedirectDelay is how long the success message stays before the login
// screen opens.
const RedirectDelay = 1500 * time.Millisecond

// SubmitMsg is dispatched once the form passes local validation.
type SubmitMsg struct {
	Registration model.Registration
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	fullName        string
	email           string
	password        string
	confirmPassword string
}

// Model is the registration screen.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	keys       *keys.KeyMap
	err        string
	success    string
	submitting bool
	width      int
	height     int
}

// New creates a registration screen.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		fb:     &formBindings{},
		keys:   k,
		width:  width,
		height: height,
	}
}

// Reset clears the screen for a fresh visit.
func (m *Model) Reset() tea.Cmd {
	*m.fb = formBindings{}
	m.err = ""
	m.success = ""
	m.submitting = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Fail shows text above the form and keeps the entered values.
func (m *Model) Fail(text string) tea.Cmd {
	m.err = text
	m.submitting = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Succeed shows the success message and schedules the move to login.
func (m *Model) Succeed() tea.Cmd {
	m.err = ""
	m.success = MsgSuccess
	m.submitting = false
	m.form = nil
	return tea.Tick(RedirectDelay, func(time.Time) tea.Msg {
		return ui.NavigateMsg{Path: guard.PathLogin}
	})
}

// Error returns the visible error text.
func (m Model) Error() string { return m.err }

// Success returns the visible success text.
func (m Model) Success() string { return m.success }

// Submitting reports whether a request is in flight.
func (m Model) Submitting() bool { return m.submitting }

// Update handles messages for the registration screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.submitting {
		return m, nil
	}

	if kmsg, ok := msg.(tea.KeyMsg); ok && key.Matches(kmsg, m.keys.SwitchScreen) {
		return m, ui.Navigate(guard.PathLogin, false)
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.submit()
	case huh.StateAborted:
		return m, m.Reset()
	}
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	reg := model.Registration{
		FullName:        strings.TrimSpace(m.fb.fullName),
		Email:           strings.TrimSpace(m.fb.email),
		Password:        m.fb.password,
		ConfirmPassword: m.fb.confirmPassword,
	}
	if err := reg.Validate(); err != nil {
		var fe model.FieldError
		if errors.As(err, &fe) {
			return m.Fail(fe.Message)
		}
		return m.Fail(err.Error())
	}

	m.err = ""
	m.submitting = true
	return func() tea.Msg { return SubmitMsg{Registration: reg} }
}

// View renders the registration screen.
func (m Model) View() string {
	var parts []string
	parts = append(parts, theme.TitleStyle.Render("Register"))

	if m.err != "" {
		parts = append(parts, theme.ErrorTextStyle.Render(m.err))
	}
	if m.success != "" {
		parts = append(parts, theme.SuccessTextStyle.Render(m.success))
	}

	switch {
	case m.submitting:
		parts = append(parts, theme.HelpStyle.Render("Creating account..."))
	case m.form != nil:
		parts = append(parts, m.form.View())
		parts = append(parts, theme.HelpStyle.Render("Have an account? Press ctrl+r to log in."))
	}

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
				Title("Full Name").
				Value(&m.fb.fullName).
				Validate(required("Full name")),
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
			huh.NewInput().
				Title("Confirm Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.confirmPassword),
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
