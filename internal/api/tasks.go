package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nhle/taskclient/internal/model"
)

// ListTasks fetches every task of the current user, in server order.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if _, err := c.do(ctx, true, http.MethodGet, "/Tasks", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id int64) (model.Task, error) {
	var task model.Task
	if _, err := c.do(ctx, true, http.MethodGet, taskPath(id), nil, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// CreateTask submits a new task and returns it with its assigned ID.
func (c *Client) CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	if err := in.Validate(); err != nil {
		return model.Task{}, NewValidationError(err)
	}

	var created model.Task
	if _, err := c.do(ctx, true, http.MethodPost, "/Tasks", in, &created); err != nil {
		return model.Task{}, err
	}
	if created.ID == 0 {
		return model.Task{}, &RequestError{
			Method: http.MethodPost,
			Path:   "/Tasks",
			Err:    fmt.Errorf("created task has no id"),
		}
	}
	return created, nil
}

// UpdateTask replaces a task with the full payload. It returns the task
// echoed by the server, or the submitted task when the response is empty.
func (c *Client) UpdateTask(ctx context.Context, task model.Task) (model.Task, error) {
	var updated model.Task
	if _, err := c.do(ctx, true, http.MethodPut, taskPath(task.ID), task, &updated); err != nil {
		return model.Task{}, err
	}
	if updated.ID == 0 {
		return task, nil
	}
	return updated, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	_, err := c.do(ctx, true, http.MethodDelete, taskPath(id), nil, nil)
	return err
}

func taskPath(id int64) string {
	return fmt.Sprintf("/Tasks/%d", id)
}
