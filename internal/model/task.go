package model

import (
	"fmt"
	"strings"
)

// Task is the client's cached copy of a task owned by the external API.
type Task struct {
	// ID is assigned by the API and never changes after creation.
	ID int64 `json:"id"`

	// Title is the human-readable summary of the task. Never empty.
	Title string `json:"title"`

	// Description is free text and may be empty.
	Description string `json:"description"`

	// DueDate is the calendar date the task is due.
	DueDate Date `json:"dueDate"`

	// IsCompleted reports whether the task has been marked done.
	IsCompleted bool `json:"isCompleted"`
}

// TaskInput holds the fields submitted when creating a task.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     Date   `json:"dueDate"`
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the input before it is sent to the API.
func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return FieldError{Field: "title", Message: "Title is required"}
	}
	if in.DueDate.IsZero() {
		return FieldError{Field: "dueDate", Message: "Due date is required"}
	}
	return nil
}

// Validate checks an edited task before it is sent to the API.
func (t Task) Validate() error {
	return TaskInput{Title: t.Title, Description: t.Description, DueDate: t.DueDate}.Validate()
}

// StatusLabel returns the short label shown for the completion state.
func (t Task) StatusLabel() string {
	if t.IsCompleted {
		return "done"
	}
	return "pending"
}
