package tasklist

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskclient/internal/api"
	"github.com/nhle/taskclient/internal/keys"
	"github.com/nhle/taskclient/internal/model"
	appsync "github.com/nhle/taskclient/internal/sync"
	"github.com/nhle/taskclient/internal/theme"
	"github.com/nhle/taskclient/internal/ui/confirm"
	"github.com/nhle/taskclient/internal/ui/taskform"
)

// MsgExportFailed is shown when the CSV file cannot be written.
const MsgExportFailed = "Failed to export tasks."

// LogoutMsg asks the app to end the session.
type LogoutMsg struct{}

// PrefsChangedMsg is sent when the filter or sort key changes so the app
// can persist them.
type PrefsChangedMsg struct {
	Filter appsync.StatusFilter
	Sort   appsync.SortKey
}

// exportedMsg reports the outcome of a CSV export.
type exportedMsg struct {
	path  string
	count int
	err   error
}

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeForm
	modeConfirm
)

// Model is the task list screen. The collection lives in the
// synchronizer; the model holds the derived-view query, the cursor and
// the overlays opened from the list.
type Model struct {
	sync      *appsync.Synchronizer
	keys      *keys.KeyMap
	query     appsync.Query
	cursor    int
	mode      mode
	exportDir string

	searchInput textinput.Model
	spinner     spinner.Model
	pager       paginator.Model
	form        taskform.Model
	confirm     confirm.Model

	width  int
	height int
}

// New creates a task list screen over s.
func New(s *appsync.Synchronizer, k *keys.KeyMap, pageSize int, exportDir string, width, height int) Model {
	si := textinput.New()
	si.Placeholder = "search title or description..."
	si.Prompt = "/ "
	si.Width = width - 4

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	pg := paginator.New()
	pg.Type = paginator.Dots
	pg.ActiveDot = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("•")
	pg.InactiveDot = lipgloss.NewStyle().Foreground(theme.ColorSubtle).Render("•")

	return Model{
		sync:        s,
		keys:        k,
		query:       appsync.NewQuery(pageSize),
		exportDir:   exportDir,
		searchInput: si,
		spinner:     sp,
		pager:       pg,
		form:        taskform.New(width, height),
		confirm:     confirm.New(width),
		width:       width,
		height:      height,
	}
}

// SetPreferences restores a saved filter and sort key.
func (m *Model) SetPreferences(f appsync.StatusFilter, k appsync.SortKey) {
	m.query = m.query.WithStatus(f).WithSort(k)
}

// Query returns the current derived-view query.
func (m Model) Query() appsync.Query {
	return m.query
}

// Capturing reports whether the screen is taking text input or showing
// an overlay, so global keys must not be intercepted.
func (m Model) Capturing() bool {
	return m.mode != modeBrowse
}

// Mount enters the screen and starts loading the collection.
func (m *Model) Mount() tea.Cmd {
	m.mode = modeBrowse
	m.cursor = 0
	return tea.Batch(m.sync.Mount(), m.spinner.Tick)
}

// Unmount leaves the screen, cancelling an in-flight fetch.
func (m *Model) Unmount() {
	m.mode = modeBrowse
	m.sync.Unmount()
}

// Refresh refetches the collection.
func (m *Model) Refresh() tea.Cmd {
	m.cursor = 0
	return tea.Batch(m.sync.Refresh(), m.spinner.Tick)
}

// SetFilter changes the status filter and returns to the first page.
func (m *Model) SetFilter(f appsync.StatusFilter) tea.Cmd {
	m.query = m.query.WithStatus(f)
	m.cursor = 0
	return m.prefsChanged()
}

// SetSort changes the sort key.
func (m *Model) SetSort(k appsync.SortKey) tea.Cmd {
	m.query = m.query.WithSort(k)
	return m.prefsChanged()
}

// ClearFilters resets filter, search and sort.
func (m *Model) ClearFilters() tea.Cmd {
	m.query = appsync.NewQuery(m.query.PageSize)
	m.searchInput.Reset()
	m.cursor = 0
	return m.prefsChanged()
}

// StartCreate opens the create form.
func (m *Model) StartCreate() tea.Cmd {
	m.mode = modeForm
	return m.form.StartCreate()
}

// Export writes the filtered and sorted collection, all pages, to a CSV
// file named after the active filter.
func (m *Model) Export() tea.Cmd {
	tasks := m.query.Filter(m.sync.Tasks())
	path := filepath.Join(m.exportDir, appsync.ExportFileName(m.query.Status))
	return func() tea.Msg {
		err := writeExport(path, tasks)
		return exportedMsg{path: path, count: len(tasks), err: err}
	}
}

func writeExport(path string, tasks []model.Task) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := appsync.ExportCSV(f, tasks); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m Model) prefsChanged() tea.Cmd {
	prefs := PrefsChangedMsg{Filter: m.query.Status, Sort: m.query.Sort}
	return func() tea.Msg { return prefs }
}

// page returns the visible page and clamps the cursor to it.
func (m *Model) page() appsync.Page {
	p := m.query.Apply(m.sync.Tasks())
	m.query.Page = p.Number
	if m.cursor >= len(p.Tasks) {
		m.cursor = max(len(p.Tasks)-1, 0)
	}
	return p
}

// Selected returns the task under the cursor.
func (m *Model) Selected() (model.Task, bool) {
	p := m.page()
	if len(p.Tasks) == 0 {
		return model.Task{}, false
	}
	return p.Tasks[m.cursor], true
}

// Update handles messages for the task list screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.sync.State() != appsync.StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case appsync.EditTaskMsg:
		m.mode = modeForm
		return m, m.form.StartEdit(msg.Task)

	case taskform.CreateMsg:
		cmd, err := m.sync.Create(msg.Input)
		if err != nil {
			return m, m.form.Fail(api.UserMessage(err, appsync.MsgCreateFailed))
		}
		m.mode = modeBrowse
		return m, cmd

	case taskform.UpdateMsg:
		cmd, err := m.sync.Edit(msg.Task)
		if err != nil {
			return m, m.form.Fail(api.UserMessage(err, appsync.MsgUpdateFailed))
		}
		m.mode = modeBrowse
		return m, cmd

	case taskform.CancelMsg:
		m.mode = modeBrowse
		return m, nil

	case confirm.ResultMsg:
		m.mode = modeBrowse
		if !msg.Confirmed {
			m.sync.CancelDelete()
			return m, nil
		}
		return m, m.sync.ConfirmDelete()

	case exportedMsg:
		if msg.err != nil {
			return m, m.sync.Notify(appsync.NoticeError, MsgExportFailed)
		}
		return m, m.sync.Notify(appsync.NoticeSuccess,
			fmt.Sprintf("Exported %d tasks to %s", msg.count, msg.path))

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.handleSearchKeys(msg)
		case modeBrowse:
			return m.handleNormalKeys(msg)
		}
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeForm:
		m.form, cmd = m.form.Update(msg)
	case modeConfirm:
		m.confirm, cmd = m.confirm.Update(msg)
	case modeSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
	}
	return m, cmd
}

// handleSearchKeys processes key input while in search mode. The search
// applies as the user types.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeBrowse
		m.searchInput.Blur()
		return m, nil

	case "esc":
		m.mode = modeBrowse
		m.searchInput.Reset()
		m.searchInput.Blur()
		m.query = m.query.WithSearch("")
		m.cursor = 0
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if v := m.searchInput.Value(); v != m.query.Search {
		m.query = m.query.WithSearch(v)
		m.cursor = 0
	}
	return m, cmd
}

// handleNormalKeys processes key input in browse mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if p := m.page(); m.cursor < len(p.Tasks)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if p := m.page(); p.Number < p.TotalPages {
			m.query = m.query.WithPage(p.Number + 1)
			m.cursor = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if p := m.page(); p.Number > 1 {
			m.query = m.query.WithPage(p.Number - 1)
			m.cursor = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Refresh()
	}

	// Everything below needs a loaded collection.
	if m.sync.State() != appsync.StateReady {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.New):
		return m, m.StartCreate()

	case key.Matches(msg, m.keys.Edit):
		if task, ok := m.Selected(); ok {
			return m, m.sync.LoadForEdit(task.ID)
		}

	case key.Matches(msg, m.keys.Toggle):
		if task, ok := m.Selected(); ok {
			return m, m.sync.Toggle(task.ID)
		}

	case key.Matches(msg, m.keys.Delete):
		if task, ok := m.Selected(); ok && m.sync.RequestDelete(task.ID) {
			m.mode = modeConfirm
			return m, m.confirm.Ask(confirm.DeletePrompt, task.Title)
		}

	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.searchInput.SetValue(m.query.Search)
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.CycleFilter):
		return m, m.SetFilter(next(appsync.StatusFilters, m.query.Status))

	case key.Matches(msg, m.keys.CycleSort):
		return m, m.SetSort(next(appsync.SortKeys, m.query.Sort))

	case key.Matches(msg, m.keys.Export):
		return m, m.Export()

	case key.Matches(msg, m.keys.Logout):
		return m, func() tea.Msg { return LogoutMsg{} }
	}
	return m, nil
}

func next[T comparable](all []T, current T) T {
	i := slices.Index(all, current)
	return all[(i+1)%len(all)]
}

// FilterSummary describes the active filter, search and sort for the
// status bar. It is empty when nothing narrows or reorders the list.
func (m Model) FilterSummary() string {
	var parts []string
	if m.query.Status != appsync.FilterAll {
		parts = append(parts, "filter: "+string(m.query.Status))
	}
	if m.query.Search != "" {
		parts = append(parts, fmt.Sprintf("search: %q", m.query.Search))
	}
	if m.query.Sort != appsync.SortDefault {
		parts = append(parts, "sort: "+m.query.Sort.Label())
	}
	return strings.Join(parts, " | ")
}

// View renders the task list screen.
func (m Model) View() string {
	if m.mode == modeForm {
		return m.form.View()
	}

	var sections []string
	sections = append(sections, m.renderTitle())

	if notice, ok := m.sync.Notice(); ok {
		sections = append(sections,
			theme.NoticeStyle(notice.Kind == appsync.NoticeError).Render(notice.Text))
	}

	if m.mode == modeSearch {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View()))
	}

	sections = append(sections, m.renderBody())

	if m.mode == modeConfirm {
		sections = append(sections, m.confirm.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitle() string {
	title := theme.HeaderStyle.Render("Your Tasks")
	badges := theme.FilterBadgeStyle.Render(
		fmt.Sprintf("[%s] [%s]", m.query.Status, m.query.Sort.Label()))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, badges)
}

func (m Model) renderBody() string {
	switch m.sync.State() {
	case appsync.StateLoading, appsync.StateIdle:
		return lipgloss.NewStyle().Padding(1, 2).
			Render(m.spinner.View() + " Loading tasks...")

	case appsync.StateFailed:
		return lipgloss.NewStyle().Padding(1, 2).Render(
			theme.ErrorTextStyle.Render(m.sync.LoadError()) + "\n" +
				theme.HelpStyle.Render("Press r to retry."))
	}

	p := m.page()
	if p.TotalItems == 0 {
		return m.renderEmptyState()
	}

	now := today()
	rows := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		rows[i] = renderTask(t, i == m.cursor, m.width, now)
	}

	m.pager.PerPage = m.query.PageSize
	m.pager.TotalPages = p.TotalPages
	m.pager.Page = p.Number - 1
	footer := theme.HelpStyle.Render(fmt.Sprintf(
		"  %s  page %d/%d · %d tasks", m.pager.View(), p.Number, p.TotalPages, p.TotalItems))

	return lipgloss.JoinVertical(lipgloss.Left, strings.Join(rows, "\n"), "", footer)
}

// renderEmptyState shows guidance text when no tasks are visible.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-4, 3)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.FilterSummary() != "" && len(m.sync.Tasks()) > 0 {
		return style.Render("No matching tasks.\nTry adjusting your filters.")
	}
	return style.Render("No tasks found.\n\nPress n to add one.")
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.searchInput.Width = width - 4
	m.form.SetSize(width, height)
	m.confirm.SetSize(width)
}
