// Package sync keeps the task list screen's cached collection consistent
// with the Task API. All state changes happen inside Update, on the
// Bubble Tea event loop; network calls run in tea.Cmds and report back
// as messages.
package sync

import (
	"context"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/taskclient/internal/api"
	"github.com/nhle/taskclient/internal/model"
)

// State is the lifecycle state of the mounted list.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// User-visible messages.
const (
	MsgCreated        = "Task created successfully."
	MsgUpdated        = "Task updated successfully."
	MsgMarkedComplete = "Task marked as completed"
	MsgMarkedPending  = "Task marked as pending"
	MsgDeleted        = "Task deleted successfully."

	MsgLoadFailed    = "Failed to load tasks"
	MsgCreateFailed  = "Failed to create task. Please try again."
	MsgUpdateFailed  = "Failed to update task"
	MsgDeleteFailed  = "Failed to delete task."
	MsgDetailsFailed = "Failed to load task details."
)

// DefaultNoticeTTL is how long a notice stays on screen.
const DefaultNoticeTTL = 3 * time.Second

// TaskAPI is the subset of the API client the synchronizer calls.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	GetTask(ctx context.Context, id int64) (model.Task, error)
	CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Session is what the synchronizer needs from the session store.
type Session interface {
	Logout(ctx context.Context) error
}

// Synchronizer owns the task collection of one list screen.
type Synchronizer struct {
	api       TaskAPI
	session   Session
	noticeTTL time.Duration
	log       zerolog.Logger

	state   State
	tasks   []model.Task
	loadErr string
	notice  Notice

	mounted bool
	seq     uint64
	cancel  context.CancelFunc

	pendingDelete *model.Task
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithNoticeTTL sets how long notices stay visible.
func WithNoticeTTL(d time.Duration) Option {
	return func(s *Synchronizer) { s.noticeTTL = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// New creates an unmounted Synchronizer.
func New(client TaskAPI, sess Session, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:       client,
		session:   sess,
		noticeTTL: DefaultNoticeTTL,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State { return s.state }

// Mounted reports whether the list screen is active.
func (s *Synchronizer) Mounted() bool { return s.mounted }

// LoadError returns the message shown for a failed fetch.
func (s *Synchronizer) LoadError() string { return s.loadErr }

// Tasks returns a copy of the collection in server order.
func (s *Synchronizer) Tasks() []model.Task {
	return slices.Clone(s.tasks)
}

// Task returns the cached task with id.
func (s *Synchronizer) Task(id int64) (model.Task, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i], true
}

// Notice returns the visible notice, if any.
func (s *Synchronizer) Notice() (Notice, bool) {
	return s.notice, s.notice.Text != ""
}

// PendingDelete returns the task awaiting delete confirmation.
func (s *Synchronizer) PendingDelete() (model.Task, bool) {
	if s.pendingDelete == nil {
		return model.Task{}, false
	}
	return *s.pendingDelete, true
}

// Mount enters Loading and starts a cancellable fetch of the collection.
// Mounting again refetches and supersedes any earlier fetch.
func (s *Synchronizer) Mount() tea.Cmd {
	s.mounted = true
	return s.fetch()
}

// Refresh refetches the collection of a mounted list.
func (s *Synchronizer) Refresh() tea.Cmd {
	if !s.mounted {
		return nil
	}
	return s.fetch()
}

func (s *Synchronizer) fetch() tea.Cmd {
	s.stopFetch()
	s.seq++
	seq := s.seq

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateLoading
	s.loadErr = ""
	s.tasks = nil

	client := s.api
	s.log.Debug().Uint64("seq", seq).Msg("fetching tasks")
	return func() tea.Msg {
		tasks, err := client.ListTasks(ctx)
		return FetchResultMsg{seq: seq, Tasks: tasks, Err: err}
	}
}

// Unmount cancels the in-flight fetch. Results that arrive afterwards,
// including the cancellation itself, are dropped without a message.
func (s *Synchronizer) Unmount() {
	if !s.mounted {
		return
	}
	s.mounted = false
	s.stopFetch()
	s.seq++
	s.pendingDelete = nil
	s.log.Debug().Msg("list unmounted")
}

// Reset forgets everything cached for the previous session.
func (s *Synchronizer) Reset() {
	s.Unmount()
	s.state = StateIdle
	s.tasks = nil
	s.loadErr = ""
	s.notice = Notice{}
}

func (s *Synchronizer) stopFetch() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Create submits a new task. Invalid input is reported without issuing a
// request.
func (s *Synchronizer) Create(in model.TaskInput) (tea.Cmd, error) {
	if err := in.Validate(); err != nil {
		return nil, api.NewValidationError(err)
	}

	client, seq := s.api, s.seq
	return func() tea.Msg {
		task, err := client.CreateTask(context.Background(), in)
		return CreateResultMsg{seq: seq, Task: task, Err: err}
	}, nil
}

// Edit submits the full task. On success the cached entry is replaced by
// the server's version.
func (s *Synchronizer) Edit(task model.Task) (tea.Cmd, error) {
	if err := task.Validate(); err != nil {
		return nil, api.NewValidationError(err)
	}
	return s.update(task, false), nil
}

// Toggle flips the completion state of the cached task id. The cached
// entry changes only once the server confirms.
func (s *Synchronizer) Toggle(id int64) tea.Cmd {
	task, ok := s.Task(id)
	if !ok {
		return nil
	}
	task.IsCompleted = !task.IsCompleted
	return s.update(task, true)
}

func (s *Synchronizer) update(task model.Task, toggle bool) tea.Cmd {
	client, seq := s.api, s.seq
	return func() tea.Msg {
		updated, err := client.UpdateTask(context.Background(), task)
		return UpdateResultMsg{seq: seq, Task: updated, Toggle: toggle, Err: err}
	}
}

// RequestDelete asks for confirmation before deleting id. It reports
// false when id is not in the collection.
func (s *Synchronizer) RequestDelete(id int64) bool {
	task, ok := s.Task(id)
	if !ok {
		return false
	}
	s.pendingDelete = &task
	return true
}

// CancelDelete drops the pending confirmation.
func (s *Synchronizer) CancelDelete() {
	s.pendingDelete = nil
}

// ConfirmDelete issues the delete for the pending task.
func (s *Synchronizer) ConfirmDelete() tea.Cmd {
	if s.pendingDelete == nil {
		return nil
	}
	id := s.pendingDelete.ID
	s.pendingDelete = nil

	client, seq := s.api, s.seq
	return func() tea.Msg {
		err := client.DeleteTask(context.Background(), id)
		return DeleteResultMsg{seq: seq, ID: id, Err: err}
	}
}

// LoadForEdit fetches the latest copy of id before the edit form opens.
func (s *Synchronizer) LoadForEdit(id int64) tea.Cmd {
	client, seq := s.api, s.seq
	return func() tea.Msg {
		task, err := client.GetTask(context.Background(), id)
		return TaskLoadedMsg{seq: seq, Task: task, Err: err}
	}
}

// Update applies a result message to the collection. It returns the
// follow-up command: a notice timer, an AuthRequiredMsg, or an
// EditTaskMsg.
func (s *Synchronizer) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case FetchResultMsg:
		return s.applyFetch(msg)

	case CreateResultMsg:
		if msg.Err != nil {
			return s.fail(msg.seq, msg.Err, MsgCreateFailed)
		}
		if !s.current(msg.seq) {
			return s.resync()
		}
		if i := s.indexOf(msg.Task.ID); i >= 0 {
			s.tasks[i] = msg.Task
		} else {
			s.tasks = append(s.tasks, msg.Task)
		}
		return s.Notify(NoticeSuccess, MsgCreated)

	case UpdateResultMsg:
		if msg.Err != nil {
			return s.fail(msg.seq, msg.Err, MsgUpdateFailed)
		}
		if !s.current(msg.seq) {
			return s.resync()
		}
		if i := s.indexOf(msg.Task.ID); i >= 0 {
			s.tasks[i] = msg.Task
		}
		switch {
		case !msg.Toggle:
			return s.Notify(NoticeSuccess, MsgUpdated)
		case msg.Task.IsCompleted:
			return s.Notify(NoticeSuccess, MsgMarkedComplete)
		default:
			return s.Notify(NoticeSuccess, MsgMarkedPending)
		}

	case DeleteResultMsg:
		if msg.Err != nil {
			return s.fail(msg.seq, msg.Err, MsgDeleteFailed)
		}
		if !s.current(msg.seq) {
			return s.resync()
		}
		if i := s.indexOf(msg.ID); i >= 0 {
			s.tasks = slices.Delete(s.tasks, i, i+1)
		}
		return s.Notify(NoticeSuccess, MsgDeleted)

	case TaskLoadedMsg:
		if msg.Err != nil {
			return s.fail(msg.seq, msg.Err, MsgDetailsFailed)
		}
		if !s.current(msg.seq) {
			return nil
		}
		task := msg.Task
		return func() tea.Msg { return EditTaskMsg{Task: task} }

	case ClearNoticeMsg:
		if s.notice.ID == msg.ID {
			s.notice = Notice{}
		}
		return nil
	}
	return nil
}

func (s *Synchronizer) applyFetch(msg FetchResultMsg) tea.Cmd {
	if !s.current(msg.seq) {
		s.log.Debug().Uint64("seq", msg.seq).Msg("dropping stale fetch result")
		return nil
	}
	s.cancel = nil

	switch {
	case msg.Err == nil:
		s.tasks = slices.Clone(msg.Tasks)
		if s.tasks == nil {
			s.tasks = []model.Task{}
		}
		s.state = StateReady
		s.log.Debug().Int("count", len(s.tasks)).Msg("tasks loaded")
		return nil

	case api.IsCancelled(msg.Err):
		return nil

	case api.IsAuthRequired(msg.Err):
		return s.authRequired()

	default:
		s.log.Warn().Err(msg.Err).Msg("loading tasks")
		s.state = StateFailed
		s.loadErr = MsgLoadFailed
		return nil
	}
}

// current reports whether a result belongs to the list instance that is
// mounted now.
func (s *Synchronizer) current(seq uint64) bool {
	return s.mounted && seq == s.seq
}

// resync refetches after a mutation issued by an earlier list instance
// succeeded, since the fetch that replaced that instance may predate it.
func (s *Synchronizer) resync() tea.Cmd {
	if !s.mounted {
		return nil
	}
	s.log.Debug().Msg("mutation landed after remount, refetching")
	return s.fetch()
}

// fail routes a mutation error: auth failures end the session, anything
// else becomes an error notice with a normalized message. Only the list
// instance that issued the mutation shows the notice.
func (s *Synchronizer) fail(seq uint64, err error, fallback string) tea.Cmd {
	switch {
	case api.IsAuthRequired(err):
		return s.authRequired()
	case api.IsCancelled(err):
		return nil
	}
	s.log.Warn().Err(err).Msg(fallback)
	if !s.current(seq) {
		return nil
	}
	return s.Notify(NoticeError, api.UserMessage(err, fallback))
}

func (s *Synchronizer) authRequired() tea.Cmd {
	s.log.Info().Msg("session rejected by api, logging out")
	s.stopFetch()
	if err := s.session.Logout(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("logging out after rejected session")
	}
	return func() tea.Msg { return AuthRequiredMsg{} }
}

// Notify shows a notice and returns the timer command that clears it.
func (s *Synchronizer) Notify(kind NoticeKind, text string) tea.Cmd {
	id := uuid.NewString()
	s.notice = Notice{ID: id, Kind: kind, Text: text}
	return tea.Tick(s.noticeTTL, func(time.Time) tea.Msg {
		return ClearNoticeMsg{ID: id}
	})
}

func (s *Synchronizer) indexOf(id int64) int {
	return slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}
