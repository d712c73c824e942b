package app

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskclient/internal/api"
	"github.com/nhle/taskclient/internal/guard"
	"github.com/nhle/taskclient/internal/model"
	"github.com/nhle/taskclient/internal/session"
	"github.com/nhle/taskclient/internal/store"
	appsync "github.com/nhle/taskclient/internal/sync"
	"github.com/nhle/taskclient/internal/ui"
	"github.com/nhle/taskclient/internal/ui/command"
	"github.com/nhle/taskclient/internal/ui/login"
	"github.com/nhle/taskclient/internal/ui/register"
	"github.com/nhle/taskclient/internal/ui/tasklist"
	"github.com/nhle/taskclient/tests/testutil"
)

// harness wires the app to a fake API and drives its commands.
type harness struct {
	t       *testing.T
	fake    *testutil.FakeAPI
	session *session.Store
	model   Model
}

func newHarness(t *testing.T, token string, prefs Preferences) *harness {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	fake.AddUser("Ada Lovelace", "ada@example.com", "secret99")

	ctx := context.Background()
	store, err := session.Open(ctx, session.NewMemoryStorage(), zerolog.Nop())
	require.NoError(t, err)
	if token == "valid" {
		token = fake.IssueToken("ada@example.com")
	}
	if token != "" {
		require.NoError(t, store.Login(ctx, token))
	}

	cfg := model.DefaultAppConfig()
	cfg.Display.NoticeTTL = 20 * time.Millisecond
	cfg.Export.Dir = t.TempDir()

	client := api.New(fake.BaseURL(), store, api.WithTimeout(5*time.Second), api.WithMaxRetries(0))
	h := &harness{t: t, fake: fake, session: store}
	h.model = New(Deps{Session: store, Client: client, Prefs: prefs, Config: cfg, Log: zerolog.Nop()})
	h.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	h.drain(h.model.Init())
	return h
}

func TestSyncLogger_ReceivesSynchronizerEvents(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.AddUser("Ada Lovelace", "ada@example.com", "secret99")
	ctx := context.Background()
	sess, err := session.Open(ctx, session.NewMemoryStorage(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sess.Login(ctx, fake.IssueToken("ada@example.com")))

	var tuiOut, syncOut bytes.Buffer
	syncLog := zerolog.New(&syncOut)
	New(Deps{
		Session: sess,
		Client:  api.New(fake.BaseURL(), sess, api.WithMaxRetries(0)),
		Log:     zerolog.New(&tuiOut),
		SyncLog: &syncLog,
	})

	assert.Contains(t, syncOut.String(), "fetching tasks")
	assert.NotContains(t, tuiOut.String(), "fetching tasks")
}

// relevant reports whether msg is one the app reacts to. Animation and
// form-internal messages are dropped so runs stay deterministic.
func relevant(msg tea.Msg) bool {
	switch msg.(type) {
	case loginResultMsg, registerResultMsg, prefsSavedMsg, ui.NavigateMsg, tasklist.PrefsChangedMsg,
		appsync.FetchResultMsg, appsync.CreateResultMsg, appsync.UpdateResultMsg,
		appsync.DeleteResultMsg, appsync.TaskLoadedMsg, appsync.AuthRequiredMsg,
		appsync.EditTaskMsg:
		return true
	}
	return false
}

// send feeds msg to the model and returns its command.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	h.t.Helper()
	next, cmd := h.model.Update(msg)
	m, ok := next.(Model)
	require.True(h.t, ok)
	h.model = m
	return cmd
}

// drain runs cmd and every follow-up command, feeding relevant results
// back into the model until nothing relevant is produced.
func (h *harness) drain(cmd tea.Cmd) {
	h.t.Helper()
	pending := []tea.Cmd{cmd}
	for wave := 0; len(pending) > 0 && wave < 20; wave++ {
		msgs := runAll(pending)
		pending = nil
		for _, msg := range msgs {
			if relevant(msg) {
				pending = append(pending, h.send(msg))
			}
		}
	}
}

// runAll executes cmds concurrently, flattening batches, and returns the
// messages that arrived before the deadline.
func runAll(cmds []tea.Cmd) []tea.Msg {
	out := make(chan tea.Msg, 64)
	running := 0
	var start func(tea.Cmd)
	start = func(c tea.Cmd) {
		if c == nil {
			return
		}
		running++
		go func() { out <- c() }()
	}
	for _, c := range cmds {
		start(c)
	}

	var msgs []tea.Msg
	deadline := time.After(2 * time.Second)
	for running > 0 {
		select {
		case msg := <-out:
			running--
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, c := range batch {
					start(c)
				}
				continue
			}
			if msg != nil {
				msgs = append(msgs, msg)
			}
		case <-deadline:
			return msgs
		}
	}
	return msgs
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func seedTwo(fake *testutil.FakeAPI) {
	fake.SeedTasks(
		model.Task{Title: "Write report", DueDate: model.NewDate(2030, time.January, 2)},
		model.Task{Title: "Buy milk", DueDate: model.NewDate(2030, time.January, 1), IsCompleted: true},
	)
}

func TestStart_SignedOutLandsOnLogin(t *testing.T) {
	h := newHarness(t, "", nil)

	assert.Equal(t, guard.PathLogin, h.model.Screen())
	assert.Equal(t, guard.LoginRequiredMessage, h.model.login.Message())
	assert.Equal(t, 0, h.fake.Count("GET", "/Tasks"), "no fetch without a session")
}

func TestStart_SignedInLoadsTasks(t *testing.T) {
	h := newHarness(t, "valid", nil)
	seedTwo(h.fake)
	h.drain(h.model.taskList.Refresh())

	assert.Equal(t, guard.PathTasks, h.model.Screen())
	assert.Equal(t, appsync.StateReady, h.model.sync.State())
	assert.Len(t, h.model.sync.Tasks(), 2)
}

func TestLogin_SuccessReturnsToTasks(t *testing.T) {
	h := newHarness(t, "", nil)
	seedTwo(h.fake)

	h.drain(h.send(login.SubmitMsg{
		Email:    "ada@example.com",
		Password: "secret99",
		Intent:   guard.Intent{From: guard.PathTasks},
	}))

	assert.True(t, h.session.IsAuthenticated())
	assert.Equal(t, guard.PathTasks, h.model.Screen())
	assert.Equal(t, []string{guard.PathTasks}, h.model.router.History(), "login is replaced in history")
	assert.Equal(t, appsync.StateReady, h.model.sync.State())
	assert.Len(t, h.model.sync.Tasks(), 2)
	assert.Equal(t, "ada@example.com", h.model.userLabel())
}

func TestLogin_BadCredentialsStaysOnLogin(t *testing.T) {
	h := newHarness(t, "", nil)

	h.drain(h.send(login.SubmitMsg{Email: "ada@example.com", Password: "nope"}))

	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, guard.PathLogin, h.model.Screen())
	assert.Equal(t, login.ErrInvalidCredentials, h.model.login.Error())
}

func TestRegister_ShowsServerValidation(t *testing.T) {
	h := newHarness(t, "", nil)
	h.drain(h.send(ui.NavigateMsg{Path: guard.PathRegister}))
	require.Equal(t, guard.PathRegister, h.model.Screen())

	h.drain(h.send(register.SubmitMsg{Registration: model.Registration{
		FullName:        "Ada Again",
		Email:           "ada@example.com",
		Password:        "secret99",
		ConfirmPassword: "secret99",
	}}))

	assert.Equal(t, guard.PathRegister, h.model.Screen())
	assert.Equal(t, "Email is already registered.", h.model.register.Error())
}

func TestRegister_ShowsPlainTextConflict(t *testing.T) {
	h := newHarness(t, "", nil)
	h.drain(h.send(ui.NavigateMsg{Path: guard.PathRegister}))
	h.fake.FailNextWithText("POST", "/Users/register", http.StatusConflict, "User already exists")

	h.drain(h.send(register.SubmitMsg{Registration: model.Registration{
		FullName:        "Grace Hopper",
		Email:           "grace@example.com",
		Password:        "cobol1959",
		ConfirmPassword: "cobol1959",
	}}))

	assert.Equal(t, guard.PathRegister, h.model.Screen())
	assert.Equal(t, "User already exists", h.model.register.Error())
}

func TestRegister_SuccessRedirectsToLogin(t *testing.T) {
	h := newHarness(t, "", nil)
	h.drain(h.send(ui.NavigateMsg{Path: guard.PathRegister}))

	cmd := h.send(registerResultMsg{message: "User registered successfully."})
	assert.Equal(t, register.MsgSuccess, h.model.register.Success())

	h.drain(cmd)
	assert.Equal(t, guard.PathLogin, h.model.Screen())
}

func TestRegister_FailureMessages(t *testing.T) {
	h := newHarness(t, "", nil)
	h.drain(h.send(ui.NavigateMsg{Path: guard.PathRegister}))

	h.send(registerResultMsg{err: &api.RequestError{Method: "POST", Path: "/Users/register"}})
	assert.Equal(t, register.MsgNetworkError, h.model.register.Error())

	h.send(registerResultMsg{err: &api.RequestError{Status: 500}})
	assert.Equal(t, register.MsgServerError, h.model.register.Error())

	h.send(registerResultMsg{})
	assert.Equal(t, register.MsgFailed, h.model.register.Error())
}

func TestRegister_SuccessfulRoundTrip(t *testing.T) {
	h := newHarness(t, "", nil)
	h.drain(h.send(ui.NavigateMsg{Path: guard.PathRegister}))

	h.drain(h.send(register.SubmitMsg{Registration: model.Registration{
		FullName:        "Grace Hopper",
		Email:           "grace@example.com",
		Password:        "cobol1959",
		ConfirmPassword: "cobol1959",
	}}))

	assert.Equal(t, guard.PathLogin, h.model.Screen())
	assert.Equal(t, 1, h.fake.Count("POST", "/Users/register"))
}

func TestRevokedToken_LogsOutAndRedirects(t *testing.T) {
	h := newHarness(t, "valid", nil)
	seedTwo(h.fake)
	h.fake.RevokeTokens()

	h.drain(h.model.taskList.Refresh())

	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, guard.PathLogin, h.model.Screen())
	assert.Equal(t, guard.LoginRequiredMessage, h.model.login.Message())
	assert.Empty(t, h.model.sync.Tasks())
	assert.False(t, h.model.sync.Mounted())
}

func TestLogout_ClearsCollection(t *testing.T) {
	h := newHarness(t, "valid", nil)
	seedTwo(h.fake)
	h.drain(h.model.taskList.Refresh())
	require.Len(t, h.model.sync.Tasks(), 2)

	h.drain(h.send(tasklist.LogoutMsg{}))

	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, guard.PathLogin, h.model.Screen())
	assert.Empty(t, h.model.sync.Tasks())
	assert.Equal(t, appsync.StateIdle, h.model.sync.State())
	assert.Empty(t, h.model.login.Message(), "a voluntary logout shows no redirect message")
}

func TestCommand_FilterPersistsPreferences(t *testing.T) {
	prefs := testutil.NewTestStore(t)
	h := newHarness(t, "valid", prefs)
	seedTwo(h.fake)
	h.drain(h.model.taskList.Refresh())

	h.drain(h.send(command.CommandMsg("filter completed")))
	h.drain(h.send(command.CommandMsg("sort titleDesc")))

	q := h.model.taskList.Query()
	assert.Equal(t, appsync.FilterCompleted, q.Status)
	assert.Equal(t, appsync.SortTitleDesc, q.Sort)

	saved, err := prefs.LoadListPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "completed", saved.Filter)
	assert.Equal(t, "titleDesc", saved.Sort)
}

func TestPreferences_RestoredOnStart(t *testing.T) {
	prefs := testutil.NewTestStore(t)
	require.NoError(t, prefs.SaveListPreferences(context.Background(), store.ListPreferences{Filter: "pending", Sort: "dueAsc"}))

	h := newHarness(t, "valid", prefs)

	q := h.model.taskList.Query()
	assert.Equal(t, appsync.FilterPending, q.Status)
	assert.Equal(t, appsync.SortDueAsc, q.Sort)
}

func TestCommand_UnknownShowsError(t *testing.T) {
	h := newHarness(t, "valid", nil)

	h.send(command.CommandMsg("frobnicate"))

	n, ok := h.model.sync.Notice()
	require.True(t, ok)
	assert.Equal(t, appsync.NoticeError, n.Kind)
	assert.Contains(t, n.Text, "frobnicate")
}

func TestKeys_OverlaysAndQuit(t *testing.T) {
	h := newHarness(t, "valid", nil)

	h.send(keyPress("?"))
	assert.Equal(t, overlayHelp, h.model.overlay)
	h.send(keyPress("esc"))
	assert.Equal(t, overlayNone, h.model.overlay)

	h.send(keyPress(":"))
	assert.Equal(t, overlayCommand, h.model.overlay)
	h.send(command.CancelMsg{})
	assert.Equal(t, overlayNone, h.model.overlay)

	cmd := h.send(keyPress("ctrl+c"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, h.model.sync.Mounted(), "quitting cancels the list")
}

func TestKeys_QuitIgnoredOnLogin(t *testing.T) {
	h := newHarness(t, "", nil)

	h.send(keyPress("q"))

	assert.Equal(t, guard.PathLogin, h.model.Screen())
	assert.Equal(t, overlayNone, h.model.overlay)
}

func TestView_ShowsUser(t *testing.T) {
	h := newHarness(t, "valid", nil)
	assert.Contains(t, h.model.View(), "ada@example.com")

	h.drain(h.send(tasklist.LogoutMsg{}))
	assert.Contains(t, h.model.View(), "signed out")
}
