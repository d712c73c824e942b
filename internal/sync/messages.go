package sync

import "github.com/nhle/taskclient/internal/model"

// FetchResultMsg carries the outcome of a list fetch.
type FetchResultMsg struct {
	seq   uint64
	Tasks []model.Task
	Err   error
}

// CreateResultMsg carries the outcome of a create.
type CreateResultMsg struct {
	seq  uint64
	Task model.Task
	Err  error
}

// UpdateResultMsg carries the outcome of an edit or a toggle.
type UpdateResultMsg struct {
	seq    uint64
	Task   model.Task
	Toggle bool
	Err    error
}

// DeleteResultMsg carries the outcome of a delete.
type DeleteResultMsg struct {
	seq uint64
	ID  int64
	Err error
}

// TaskLoadedMsg carries a single task fetched for editing.
type TaskLoadedMsg struct {
	seq  uint64
	Task model.Task
	Err  error
}

// EditTaskMsg asks the view to open the edit form for Task.
type EditTaskMsg struct {
	Task model.Task
}

// AuthRequiredMsg is emitted after the API rejected the session and the
// synchronizer logged out. The app redirects to the login screen.
type AuthRequiredMsg struct{}

// NoticeKind distinguishes success and error notices.
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notice is a transient message that clears itself.
type Notice struct {
	ID   string
	Kind NoticeKind
	Text string
}

// ClearNoticeMsg clears the notice with ID, if it is still showing.
type ClearNoticeMsg struct {
	ID string
}
