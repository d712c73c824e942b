package tasklist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskclient/internal/keys"
	"github.com/nhle/taskclient/internal/model"
	appsync "github.com/nhle/taskclient/internal/sync"
	"github.com/nhle/taskclient/internal/ui/confirm"
)

type stubAPI struct {
	tasks []model.Task
}

func (s *stubAPI) ListTasks(context.Context) ([]model.Task, error) { return s.tasks, nil }

func (s *stubAPI) GetTask(_ context.Context, id int64) (model.Task, error) {
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, nil
}

func (s *stubAPI) CreateTask(_ context.Context, in model.TaskInput) (model.Task, error) {
	return model.Task{ID: 99, Title: in.Title, Description: in.Description, DueDate: in.DueDate}, nil
}

func (s *stubAPI) UpdateTask(_ context.Context, t model.Task) (model.Task, error) { return t, nil }

func (s *stubAPI) DeleteTask(context.Context, int64) error { return nil }

type stubSession struct{}

func (stubSession) Logout(context.Context) error { return nil }

func press(s string) tea.KeyMsg {
	if s == "esc" {
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleTasks() []model.Task {
	var tasks []model.Task
	for i, title := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Buy milk"} {
		tasks = append(tasks, model.Task{
			ID:          int64(i + 1),
			Title:       title,
			DueDate:     model.NewDate(2030, time.January, i+1),
			IsCompleted: i%2 == 1,
		})
	}
	return tasks
}

// newLoaded returns a mounted list whose fetch has completed.
func newLoaded(t *testing.T, tasks []model.Task) (Model, *appsync.Synchronizer) {
	t.Helper()
	s := appsync.New(&stubAPI{tasks: tasks}, stubSession{},
		appsync.WithNoticeTTL(time.Hour), appsync.WithLogger(zerolog.Nop()))
	m := New(s, keys.DefaultKeyMap(), 5, t.TempDir(), 100, 40)

	m.Mount()
	require.Equal(t, appsync.StateLoading, s.State())
	// The batch from Mount also carries the spinner tick; run only the fetch.
	s.Update(s.Refresh()())
	require.Equal(t, appsync.StateReady, s.State())
	return m, s
}

func TestActionsWaitForLoad(t *testing.T) {
	s := appsync.New(&stubAPI{}, stubSession{}, appsync.WithLogger(zerolog.Nop()))
	m := New(s, keys.DefaultKeyMap(), 5, t.TempDir(), 100, 40)
	m.Mount()

	m, cmd := m.Update(press("n"))
	assert.Nil(t, cmd)
	assert.False(t, m.Capturing())
}

func TestPagingAndFilterReset(t *testing.T) {
	m, _ := newLoaded(t, sampleTasks())
	assert.Equal(t, 1, m.page().Number)
	assert.Equal(t, 2, m.page().TotalPages)

	m, _ = m.Update(press("l"))
	assert.Equal(t, 2, m.page().Number)

	m, cmd := m.Update(press("f"))
	assert.Equal(t, appsync.FilterCompleted, m.Query().Status)
	assert.Equal(t, 1, m.Query().Page)
	require.NotNil(t, cmd)
	assert.Equal(t, PrefsChangedMsg{Filter: appsync.FilterCompleted, Sort: appsync.SortDefault}, cmd())
	assert.Equal(t, "filter: completed", m.FilterSummary())
}

func TestSearchAppliesWhileTyping(t *testing.T) {
	m, _ := newLoaded(t, sampleTasks())

	m, _ = m.Update(press("/"))
	require.True(t, m.Capturing())
	for _, r := range "MILK" {
		m, _ = m.Update(press(string(r)))
	}
	assert.Equal(t, "MILK", m.Query().Search)
	p := m.page()
	require.Len(t, p.Tasks, 1)
	assert.Equal(t, "Buy milk", p.Tasks[0].Title)

	m, _ = m.Update(press("esc"))
	assert.False(t, m.Capturing())
	assert.Empty(t, m.Query().Search)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m, s := newLoaded(t, sampleTasks())

	m, _ = m.Update(press("d"))
	assert.True(t, m.Capturing())
	pending, ok := s.PendingDelete()
	require.True(t, ok)
	assert.Equal(t, int64(1), pending.ID)

	m, _ = m.Update(confirm.ResultMsg{Confirmed: false})
	assert.False(t, m.Capturing())
	_, ok = s.PendingDelete()
	assert.False(t, ok)
	assert.Len(t, s.Tasks(), 7)

	m, _ = m.Update(press("d"))
	m, cmd := m.Update(confirm.ResultMsg{Confirmed: true})
	require.NotNil(t, cmd)
	s.Update(cmd())
	_, ok = s.Task(1)
	assert.False(t, ok)
	assert.False(t, m.Capturing())
}

func TestExportWritesFilteredTasks(t *testing.T) {
	m, s := newLoaded(t, sampleTasks())
	m.SetFilter(appsync.FilterPending)

	m, cmd := m.Update(press("E"))
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(exportedMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, 4, done.count)
	assert.Equal(t, "tasks_pending.csv", filepath.Base(done.path))

	data, err := os.ReadFile(done.path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Alpha,,2030-01-01,No\n")
	assert.NotContains(t, string(data), "Bravo")

	m.Update(msg)
	n, ok := s.Notice()
	require.True(t, ok)
	assert.Equal(t, appsync.NoticeSuccess, n.Kind)
}

func TestLogoutKey(t *testing.T) {
	m, _ := newLoaded(t, sampleTasks())

	_, cmd := m.Update(press("L"))
	require.NotNil(t, cmd)
	assert.Equal(t, LogoutMsg{}, cmd())
}

func TestViewShowsRows(t *testing.T) {
	m, _ := newLoaded(t, sampleTasks())

	out := m.View()
	assert.Contains(t, out, "Alpha")
	assert.NotContains(t, out, "Foxtrot", "second page is not rendered")
}
