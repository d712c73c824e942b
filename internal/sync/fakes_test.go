package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskclient/internal/api"
	"github.com/nhle/taskclient/internal/model"
)

var errServer = &api.RequestError{Method: "GET", Path: "/Tasks", Status: 500, Err: errors.New("boom")}

type fakeAPI struct {
	tasks   []model.Task
	nextID  int64
	calls   map[string]int
	failOn  map[string]error
	listCtx context.Context
}

func newFakeAPI(tasks ...model.Task) *fakeAPI {
	f := &fakeAPI{calls: map[string]int{}, failOn: map[string]error{}, nextID: 100}
	f.tasks = slices.Clone(tasks)
	return f
}

func (f *fakeAPI) ListTasks(ctx context.Context) ([]model.Task, error) {
	f.calls["list"]++
	f.listCtx = ctx
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.failOn["list"]; err != nil {
		return nil, err
	}
	return slices.Clone(f.tasks), nil
}

func (f *fakeAPI) GetTask(_ context.Context, id int64) (model.Task, error) {
	f.calls["get"]++
	if err := f.failOn["get"]; err != nil {
		return model.Task{}, err
	}
	for _, t := range f.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, &api.RequestError{Status: 404, Err: fmt.Errorf("task %d not found", id)}
}

func (f *fakeAPI) CreateTask(_ context.Context, in model.TaskInput) (model.Task, error) {
	f.calls["create"]++
	if err := f.failOn["create"]; err != nil {
		return model.Task{}, err
	}
	t := model.Task{ID: f.nextID, Title: in.Title, Description: in.Description, DueDate: in.DueDate}
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, task model.Task) (model.Task, error) {
	f.calls["update"]++
	if err := f.failOn["update"]; err != nil {
		return model.Task{}, err
	}
	for i, t := range f.tasks {
		if t.ID == task.ID {
			f.tasks[i] = task
			return task, nil
		}
	}
	return model.Task{}, &api.RequestError{Status: 404, Err: errors.New("not found")}
}

func (f *fakeAPI) DeleteTask(_ context.Context, id int64) error {
	f.calls["delete"]++
	if err := f.failOn["delete"]; err != nil {
		return err
	}
	f.tasks = slices.DeleteFunc(f.tasks, func(t model.Task) bool { return t.ID == id })
	return nil
}

type fakeSession struct {
	logouts  int
	onLogout func()
}

func (f *fakeSession) Logout(context.Context) error {
	f.logouts++
	if f.onLogout != nil {
		f.onLogout()
	}
	return nil
}

func day(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// run executes cmd synchronously and feeds its message back into s,
// returning the message it produced.
func run(t *testing.T, s *Synchronizer, cmd tea.Cmd) (tea.Msg, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	return msg, s.Update(msg)
}

func mounted(t *testing.T, f *fakeAPI) (*Synchronizer, *fakeSession) {
	t.Helper()
	sess := &fakeSession{}
	s := New(f, sess)
	run(t, s, s.Mount())
	require.Equal(t, StateReady, s.State())
	return s, sess
}

func ids(tasks []model.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
