package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskclient/internal/api"
	"github.com/nhle/taskclient/internal/guard"
	"github.com/nhle/taskclient/internal/model"
	"github.com/nhle/taskclient/internal/ui/login"
	"github.com/nhle/taskclient/internal/ui/register"
)

type loginResultMsg struct {
	token  string
	intent guard.Intent
	err    error
}

type registerResultMsg struct {
	message string
	err     error
}

// authenticate sends the credentials to the API.
func (m *Model) authenticate(msg login.SubmitMsg) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		token, err := client.Login(context.Background(), msg.Email, msg.Password)
		return loginResultMsg{token: token, intent: msg.Intent, err: err}
	}
}

// finishLogin stores the token and returns the user to the page that
// sent them to login, or the task list.
func (m *Model) finishLogin(msg loginResultMsg) tea.Cmd {
	if msg.err != nil {
		m.log.Info().Err(msg.err).Msg("login failed")
		if errors.Is(msg.err, api.ErrNoToken) {
			return m.login.Fail(login.ErrInvalidResponse)
		}
		return m.login.Fail(login.ErrInvalidCredentials)
	}

	if err := m.session.Login(context.Background(), msg.token); err != nil {
		m.log.Error().Err(err).Msg("storing session")
		return m.login.Fail(login.ErrInvalidResponse)
	}

	prev := m.screen
	dest, err := m.router.CompleteLogin(msg.intent)
	if err != nil {
		m.log.Error().Err(err).Msg("navigation after login failed")
		return nil
	}
	return m.enter(prev, dest)
}

// createAccount sends the registration to the API.
func (m *Model) createAccount(r model.Registration) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		resp, err := client.Register(context.Background(), r.Request())
		return registerResultMsg{message: resp.Message, err: err}
	}
}

// finishRegister shows the API's validation messages or the success
// banner, after which the register screen navigates to login.
func (m *Model) finishRegister(msg registerResultMsg) tea.Cmd {
	if m.screen != guard.PathRegister {
		return nil
	}
	if msg.err != nil {
		m.log.Info().Err(msg.err).Msg("registration failed")
		return m.register.Fail(registerFailure(msg.err))
	}
	// The API acknowledges an account with a message; anything else is
	// not a success.
	if msg.message == "" {
		return m.register.Fail(register.MsgFailed)
	}
	return m.register.Succeed()
}

// registerFailure picks the text for a failed registration: the API's
// validation messages, a generic line when the server answered with
// something else, or the network message when it did not answer.
func registerFailure(err error) string {
	var reqErr *api.RequestError
	fallback := register.MsgNetworkError
	if errors.As(err, &reqErr) && reqErr.Status != 0 {
		fallback = register.MsgServerError
	}
	return api.UserMessage(err, fallback)
}

// logout clears the session and shows the login screen. The session
// observer has already reset the task synchronizer by the time the
// navigation runs.
func (m *Model) logout() tea.Cmd {
	if err := m.session.Logout(context.Background()); err != nil {
		m.log.Error().Err(err).Msg("clearing session")
	}
	return m.navigate(guard.PathLogin, guard.Replace())
}
