package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/taskclient/internal/guard"
	"github.com/nhle/taskclient/internal/keys"
	"github.com/nhle/taskclient/internal/model"
	"github.com/nhle/taskclient/internal/session"
	appsync "github.com/nhle/taskclient/internal/sync"
	"github.com/nhle/taskclient/internal/ui"
	"github.com/nhle/taskclient/internal/ui/command"
	helpview "github.com/nhle/taskclient/internal/ui/help"
	"github.com/nhle/taskclient/internal/ui/login"
	"github.com/nhle/taskclient/internal/ui/register"
	"github.com/nhle/taskclient/internal/ui/tasklist"
)

// Client is the API surface the app uses.
type Client interface {
	appsync.TaskAPI
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error)
}

// Deps are the collaborators the app is built from. Prefs may be nil.
// SyncLog is the task list synchronizer's logger; it defaults to Log.
type Deps struct {
	Session *session.Store
	Client  Client
	Prefs   Preferences
	Config  *model.AppConfig
	Log     zerolog.Logger
	SyncLog *zerolog.Logger
}

type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlayCommand
)

// Model is the root Bubble Tea model. It routes between the login,
// register and task list screens through the guard router and hosts the
// help and command overlays.
type Model struct {
	session *session.Store
	client  Client
	prefs   Preferences
	log     zerolog.Logger

	router  *guard.Router
	sync    *appsync.Synchronizer
	keys    *keys.KeyMap
	layout  ui.Layout
	screen  string
	overlay overlay

	login       login.Model
	register    register.Model
	taskList    tasklist.Model
	helpView    helpview.Model
	commandView command.Model

	startCmd    tea.Cmd
	unsubscribe func()
	ready       bool
}

// New creates the root model and resolves the first screen. An
// authenticated session lands on the task list; otherwise the guard
// redirects to login.
func New(d Deps) Model {
	km := keys.DefaultKeyMap()
	cfg := d.Config
	if cfg == nil {
		cfg = model.DefaultAppConfig()
	}

	syncLog := d.Log
	if d.SyncLog != nil {
		syncLog = *d.SyncLog
	}
	s := appsync.New(d.Client, d.Session,
		appsync.WithNoticeTTL(cfg.Display.NoticeTTL),
		appsync.WithLogger(syncLog),
	)

	m := Model{
		session:     d.Session,
		client:      d.Client,
		prefs:       d.Prefs,
		log:         d.Log,
		router:      guard.NewRouter(d.Session, guard.DefaultRoutes(), guard.PathTasks, d.Log),
		sync:        s,
		keys:        km,
		login:       login.New(km, 80, 24),
		register:    register.New(km, 80, 24),
		taskList:    tasklist.New(s, km, cfg.Display.PageSize, cfg.Export.Dir, 80, 24),
		helpView:    helpview.New(km, 80, 24),
		commandView: command.New(80, 24),
	}

	// Any logout, whoever triggers it, drops the cached collection and
	// cancels the fetch before observers of the next frame run.
	m.unsubscribe = d.Session.Subscribe(func(_ session.Session, authenticated bool) {
		if !authenticated {
			s.Reset()
		}
	})

	m.restorePreferences()
	m.startCmd = m.navigate(guard.PathTasks)
	return m
}

// Init returns the commands of the first screen.
func (m Model) Init() tea.Cmd {
	return m.startCmd
}

// Screen returns the path of the active screen.
func (m Model) Screen() string {
	return m.screen
}

// Update handles messages and dispatches to the active screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.login.SetSize(contentWidth, contentHeight)
		m.register.SetSize(contentWidth, contentHeight)
		m.taskList.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to the active screen so huh forms can calculate their layout.
		return m.updateActiveScreen(msg)

	case ui.NavigateMsg:
		opts := []guard.NavOption{guard.WithIntent(msg.Intent)}
		if msg.Replace {
			opts = append(opts, guard.Replace())
		}
		return m, m.navigate(msg.Path, opts...)

	case login.SubmitMsg:
		return m, m.authenticate(msg)

	case loginResultMsg:
		return m, m.finishLogin(msg)

	case register.SubmitMsg:
		return m, m.createAccount(msg.Registration)

	case registerResultMsg:
		return m, m.finishRegister(msg)

	case tasklist.LogoutMsg:
		return m, m.logout()

	case tasklist.PrefsChangedMsg:
		return m, m.savePreferences(msg)

	case prefsSavedMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("saving list preferences")
		}
		return m, nil

	case appsync.FetchResultMsg, appsync.CreateResultMsg, appsync.UpdateResultMsg,
		appsync.DeleteResultMsg, appsync.TaskLoadedMsg, appsync.ClearNoticeMsg:
		return m, m.sync.Update(msg)

	case appsync.AuthRequiredMsg:
		// The session is gone; the guard sends the user to login with
		// the list as the origin.
		return m, m.navigate(guard.PathTasks)

	case command.CommandMsg:
		m.overlay = overlayNone
		return m, m.executeCommand(string(msg))

	case command.CancelMsg:
		m.overlay = overlayNone
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}

		switch m.overlay {
		case overlayHelp:
			if key.Matches(msg, m.keys.Help, m.keys.Back) {
				m.overlay = overlayNone
			}
			return m, nil
		case overlayCommand:
			var cmd tea.Cmd
			m.commandView, cmd = m.commandView.Update(msg)
			return m, cmd
		}

		if m.screen == guard.PathTasks && !m.taskList.Capturing() {
			switch {
			case key.Matches(msg, m.keys.Help):
				m.overlay = overlayHelp
				return m, nil
			case key.Matches(msg, m.keys.Command):
				m.overlay = overlayCommand
				return m, m.commandView.Focus()
			case key.Matches(msg, m.keys.Quit):
				return m, m.quit()
			}
		}
	}

	if m.overlay == overlayCommand {
		var cmd tea.Cmd
		m.commandView, cmd = m.commandView.Update(msg)
		return m, cmd
	}

	return m.updateActiveScreen(msg)
}

// updateActiveScreen dispatches the message to the current screen.
func (m Model) updateActiveScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.screen {
	case guard.PathLogin:
		m.login, cmd = m.login.Update(msg)
	case guard.PathRegister:
		m.register, cmd = m.register.Update(msg)
	case guard.PathTasks:
		m.taskList, cmd = m.taskList.Update(msg)
	}

	return m, cmd
}

// navigate resolves path through the guards and enters the resulting
// screen.
func (m *Model) navigate(path string, opts ...guard.NavOption) tea.Cmd {
	prev := m.screen
	dest, err := m.router.Navigate(path, opts...)
	if err != nil {
		m.log.Error().Err(err).Str("path", path).Msg("navigation failed")
		return nil
	}
	return m.enter(prev, dest)
}

// enter switches from the screen prev to dest, unmounting the task list
// when it is left and mounting it when it is entered.
func (m *Model) enter(prev, dest string) tea.Cmd {
	if prev == guard.PathTasks && dest != guard.PathTasks {
		m.taskList.Unmount()
	}

	m.screen = dest
	m.overlay = overlayNone
	intent, _ := m.router.ConsumeIntent()
	m.log.Debug().Str("from", prev).Str("to", dest).Msg("screen change")

	switch dest {
	case guard.PathLogin:
		return m.login.Reset(intent)
	case guard.PathRegister:
		return m.register.Reset()
	case guard.PathTasks:
		if prev != guard.PathTasks || !m.sync.Mounted() {
			return m.taskList.Mount()
		}
	}
	return nil
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	if m.screen != guard.PathTasks {
		return nil
	}

	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "refresh", "sync":
		return m.taskList.Refresh()
	case "new":
		if m.sync.State() == appsync.StateReady {
			return m.taskList.StartCreate()
		}
		return nil
	case "export":
		return m.taskList.Export()
	case "filter":
		f, err := appsync.ParseStatusFilter(arg)
		if err != nil {
			return m.sync.Notify(appsync.NoticeError, err.Error())
		}
		return m.taskList.SetFilter(f)
	case "sort":
		k, err := appsync.ParseSortKey(arg)
		if err != nil {
			return m.sync.Notify(appsync.NoticeError, err.Error())
		}
		return m.taskList.SetSort(k)
	case "clear":
		return m.taskList.ClearFilters()
	case "logout":
		return m.logout()
	case "quit", "q":
		return m.quit()
	default:
		return m.sync.Notify(appsync.NoticeError, fmt.Sprintf("Unknown command: %s", cmd))
	}
}

// quit leaves the task list, which cancels an in-flight fetch, and stops
// the program.
func (m *Model) quit() tea.Cmd {
	if m.screen == guard.PathTasks {
		m.taskList.Unmount()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Task Manager", m.userLabel())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the active screen or
// overlay.
func (m Model) renderContent() string {
	switch m.overlay {
	case overlayHelp:
		return m.helpView.View()
	case overlayCommand:
		return m.commandView.View()
	}

	switch m.screen {
	case guard.PathLogin:
		return m.layout.Center(m.login.View())
	case guard.PathRegister:
		return m.layout.Center(m.register.View())
	case guard.PathTasks:
		return m.taskList.View()
	default:
		return ""
	}
}

func (m Model) userLabel() string {
	current, ok := m.session.Current()
	if !ok {
		return "signed out"
	}
	claims, _ := current.Claims()
	return claims.Label()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.overlay {
	case overlayHelp:
		return "? close help | esc back"
	case overlayCommand:
		return "enter execute | tab complete | esc back"
	}

	switch m.screen {
	case guard.PathLogin:
		return "enter next/submit | ctrl+r register | ctrl+c quit"
	case guard.PathRegister:
		return "enter next/submit | ctrl+r login | ctrl+c quit"
	}

	if m.taskList.Capturing() {
		return "enter confirm | esc cancel"
	}
	if summary := m.taskList.FilterSummary(); summary != "" {
		return summary + " | : clear"
	}
	return "q quit | ? help | n new | e edit | x toggle | d delete | / search | f filter | tab sort"
}
