package sync

import (
	"fmt"
	"io"
	"strings"

	"github.com/nhle/taskclient/internal/model"
)

// CSVHeader is the first line of an export.
const CSVHeader = "Title,Description,Due Date,Completed"

// ExportCSV writes tasks as comma-joined lines under CSVHeader. Fields are
// not quoted, so commas inside a title or description shift the columns.
func ExportCSV(w io.Writer, tasks []model.Task) error {
	if _, err := fmt.Fprintln(w, CSVHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, t := range tasks {
		if _, err := fmt.Fprintln(w, csvRow(t)); err != nil {
			return fmt.Errorf("writing csv row for task %d: %w", t.ID, err)
		}
	}
	return nil
}

func csvRow(t model.Task) string {
	completed := "No"
	if t.IsCompleted {
		completed = "Yes"
	}
	return strings.Join([]string{t.Title, t.Description, t.DueDate.String(), completed}, ",")
}

// ExportFileName returns the default export file name for a filter.
func ExportFileName(f StatusFilter) string {
	return fmt.Sprintf("tasks_%s.csv", f)
}
