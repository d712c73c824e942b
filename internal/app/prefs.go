package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskclient/internal/store"
	appsync "github.com/nhle/taskclient/internal/sync"
	"github.com/nhle/taskclient/internal/ui/tasklist"
)

// Preferences persists the task list filter and sort between runs.
// *store.SQLiteStore implements it.
type Preferences interface {
	LoadListPreferences(ctx context.Context) (store.ListPreferences, error)
	SaveListPreferences(ctx context.Context, prefs store.ListPreferences) error
}

type prefsSavedMsg struct {
	err error
}

// restorePreferences applies the saved filter and sort. Unknown or
// missing values keep the defaults.
func (m *Model) restorePreferences() {
	if m.prefs == nil {
		return
	}
	saved, err := m.prefs.LoadListPreferences(context.Background())
	if err != nil {
		m.log.Warn().Err(err).Msg("loading list preferences")
		return
	}

	filter := appsync.FilterAll
	if f, err := appsync.ParseStatusFilter(saved.Filter); err == nil {
		filter = f
	}
	sort := appsync.SortDefault
	if k, err := appsync.ParseSortKey(saved.Sort); err == nil {
		sort = k
	}
	m.taskList.SetPreferences(filter, sort)
}

func (m *Model) savePreferences(msg tasklist.PrefsChangedMsg) tea.Cmd {
	if m.prefs == nil {
		return nil
	}
	prefs := m.prefs
	saved := store.ListPreferences{Filter: string(msg.Filter), Sort: string(msg.Sort)}
	return func() tea.Msg {
		return prefsSavedMsg{err: prefs.SaveListPreferences(context.Background(), saved)}
	}
}
