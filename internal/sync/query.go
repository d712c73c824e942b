package sync

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/nhle/taskclient/internal/model"
)

// DefaultPageSize is the number of tasks per page.
const DefaultPageSize = 5

// StatusFilter selects tasks by completion state.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterCompleted StatusFilter = "completed"
	FilterPending   StatusFilter = "pending"
)

// StatusFilters lists the filters in cycling order.
var StatusFilters = []StatusFilter{FilterAll, FilterCompleted, FilterPending}

// SortKey selects the ordering of the derived view.
type SortKey string

const (
	SortDefault   SortKey = "default"
	SortTitleAsc  SortKey = "titleAsc"
	SortTitleDesc SortKey = "titleDesc"
	SortDueAsc    SortKey = "dueAsc"
	SortDueDesc   SortKey = "dueDesc"
)

// SortKeys lists the sort keys in cycling order.
var SortKeys = []SortKey{SortDefault, SortTitleAsc, SortTitleDesc, SortDueAsc, SortDueDesc}

// ParseStatusFilter parses a filter name, case-insensitively.
func ParseStatusFilter(s string) (StatusFilter, error) {
	for _, f := range StatusFilters {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q (want all, completed or pending)", s)
}

// ParseSortKey parses a sort key name, case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Label returns a short human-readable name.
func (k SortKey) Label() string {
	switch k {
	case SortTitleAsc:
		return "title A-Z"
	case SortTitleDesc:
		return "title Z-A"
	case SortDueAsc:
		return "due date, earliest"
	case SortDueDesc:
		return "due date, latest"
	default:
		return "pending first"
	}
}

// Query describes the derived view over the collection: status filter,
// then text search, then sort, then pagination. It never touches the
// network.
type Query struct {
	Status   StatusFilter
	Search   string
	Sort     SortKey
	Page     int
	PageSize int
}

// NewQuery returns the initial query: all tasks, default order, page 1.
func NewQuery(pageSize int) Query {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Query{Status: FilterAll, Sort: SortDefault, Page: 1, PageSize: pageSize}
}

// WithStatus changes the status filter and returns to the first page.
func (q Query) WithStatus(f StatusFilter) Query {
	q.Status = f
	q.Page = 1
	return q
}

// WithSearch changes the search text and returns to the first page.
func (q Query) WithSearch(text string) Query {
	q.Search = text
	q.Page = 1
	return q
}

// WithSort changes the sort key. The page is kept.
func (q Query) WithSort(k SortKey) Query {
	q.Sort = k
	return q
}

// WithPage moves to page n (1-based).
func (q Query) WithPage(n int) Query {
	q.Page = n
	return q
}

// Filter applies the status filter, search and sort, without paginating.
// The input is not modified.
func (q Query) Filter(tasks []model.Task) []model.Task {
	needle := strings.ToLower(q.Search)

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !q.matchesStatus(t) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			continue
		}
		out = append(out, t)
	}

	if cmpFn := q.compare(); cmpFn != nil {
		slices.SortStableFunc(out, cmpFn)
	}
	return out
}

func (q Query) matchesStatus(t model.Task) bool {
	switch q.Status {
	case FilterCompleted:
		return t.IsCompleted
	case FilterPending:
		return !t.IsCompleted
	default:
		return true
	}
}

func (q Query) compare() func(a, b model.Task) int {
	switch q.Sort {
	case SortTitleAsc:
		return func(a, b model.Task) int { return strings.Compare(a.Title, b.Title) }
	case SortTitleDesc:
		return func(a, b model.Task) int { return strings.Compare(b.Title, a.Title) }
	case SortDueAsc:
		return func(a, b model.Task) int { return a.DueDate.Compare(b.DueDate.Time) }
	case SortDueDesc:
		return func(a, b model.Task) int { return b.DueDate.Compare(a.DueDate.Time) }
	default:
		return func(a, b model.Task) int { return cmp.Compare(completedRank(a), completedRank(b)) }
	}
}

func completedRank(t model.Task) int {
	if t.IsCompleted {
		return 1
	}
	return 0
}

// Page is one page of the derived view.
type Page struct {
	Tasks      []model.Task
	Number     int
	TotalPages int
	TotalItems int
}

// Apply runs the full pipeline. Out-of-range pages are clamped; an empty
// result still has one (empty) page.
func (q Query) Apply(tasks []model.Task) Page {
	filtered := q.Filter(tasks)

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	totalPages := max(1, (len(filtered)+size-1)/size)
	number := min(max(q.Page, 1), totalPages)

	start := min((number-1)*size, len(filtered))
	end := min(start+size, len(filtered))
	return Page{
		Tasks:      filtered[start:end],
		Number:     number,
		TotalPages: totalPages,
		TotalItems: len(filtered),
	}
}
