package sync

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskclient/internal/model"
)

func TestExportCSV(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Title: "Pay rent", Description: "", DueDate: day("2024-01-01")},
		{ID: 2, Title: "Ship", Description: "v1, then v2", DueDate: day("2024-02-01"), IsCompleted: true},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, tasks))

	want := "Title,Description,Due Date,Completed\n" +
		"Pay rent,,2024-01-01,No\n" +
		"Ship,v1, then v2,2024-02-01,Yes\n"
	assert.Equal(t, want, buf.String())
}

func TestExportCSV_HeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, nil))
	assert.Equal(t, CSVHeader+"\n", buf.String())
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "tasks_pending.csv", ExportFileName(FilterPending))
}
