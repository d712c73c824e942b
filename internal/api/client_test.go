package api_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskclient/internal/api"
	"github.com/nhle/taskclient/internal/model"
	"github.com/nhle/taskclient/internal/session"
	"github.com/nhle/taskclient/tests/testutil"
)

func newClient(t *testing.T, fake *testutil.FakeAPI, token string) (*api.Client, *session.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := session.Open(ctx, session.NewMemoryStorage(), zerolog.Nop())
	require.NoError(t, err)
	if token != "" {
		require.NoError(t, store.Login(ctx, token))
	}
	return api.New(fake.BaseURL(), store, api.WithTimeout(5*time.Second), api.WithMaxRetries(0)), store
}

func date(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLogin_ReturnsToken(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.AddUser("Ada", "ada@example.com", "secret99")
	client, _ := newClient(t, fake, "")

	token, err := client.Login(context.Background(), "ada@example.com", "secret99")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Auth, "login must not send a bearer token")
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestLogin_BadCredentialsIsAuthRequired(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.AddUser("Ada", "ada@example.com", "secret99")
	client, _ := newClient(t, fake, "")

	_, err := client.Login(context.Background(), "ada@example.com", "wrong")
	assert.True(t, api.IsAuthRequired(err))
}

func TestRegister_ReportsServerValidation(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.AddUser("Ada", "ada@example.com", "secret99")
	client, _ := newClient(t, fake, "")

	_, err := client.Register(context.Background(), model.RegisterRequest{
		FullName: "Ada",
		Email:    "ada@example.com",
		Password: "short",
	})

	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		"Email is already registered.",
		"Password must be at least 7 characters long.",
	}, verr.Messages)
	assert.Equal(t, "Email is already registered. Password must be at least 7 characters long.",
		api.UserMessage(err, "Registration failed."))
}

func TestRegister_ConflictBodyBecomesMessage(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, "")
	fake.FailNextWithText("POST", "/Users/register", http.StatusConflict, "User already exists")

	_, err := client.Register(context.Background(), model.RegisterRequest{
		FullName: "Grace",
		Email:    "grace@example.com",
		Password: "longenough",
	})

	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "User already exists", api.UserMessage(err, "Registration failed."))
}

func TestRegister_ServerErrorKeepsRequestError(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, "")
	fake.FailNext("POST", "/Users/register", http.StatusInternalServerError)

	_, err := client.Register(context.Background(), model.RegisterRequest{
		FullName: "Grace",
		Email:    "grace@example.com",
		Password: "longenough",
	})

	var rerr *api.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusInternalServerError, rerr.Status)
}

func TestRegister_Success(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, "")

	resp, err := client.Register(context.Background(), model.RegisterRequest{
		FullName: "Grace",
		Email:    "grace@example.com",
		Password: "longenough",
	})
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully.", resp.Message)
}

func TestListTasks_SendsBearerToken(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	token := fake.IssueToken("ada@example.com")
	fake.SeedTasks(
		model.Task{Title: "a", DueDate: date("2024-03-01")},
		model.Task{Title: "b", DueDate: date("2024-03-02"), IsCompleted: true},
	)
	client, _ := newClient(t, fake, token)

	tasks, err := client.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].Title)
	assert.True(t, tasks[1].IsCompleted)
	assert.Equal(t, "2024-03-02", tasks[1].DueDate.String())

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+token, reqs[0].Auth)
}

func TestListTasks_EmptyIsNotNil(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))

	tasks, err := client.ListTasks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestAuthenticatedCall_WithoutSession(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, "")

	_, err := client.ListTasks(context.Background())
	assert.True(t, api.IsAuthRequired(err))
	assert.Zero(t, fake.Count(http.MethodGet, "/Tasks"), "no request is sent without a token")
}

func TestAuthenticatedCall_RevokedToken(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))
	fake.RevokeTokens()

	_, err := client.ListTasks(context.Background())
	assert.True(t, api.IsAuthRequired(err))
}

func TestAuthenticatedCall_PicksUpLogin(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, store := newClient(t, fake, "")

	_, err := client.ListTasks(context.Background())
	require.True(t, api.IsAuthRequired(err))

	require.NoError(t, store.Login(context.Background(), fake.IssueToken("ada@example.com")))
	_, err = client.ListTasks(context.Background())
	assert.NoError(t, err)
}

func TestServerError_IsRequestError(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))
	fake.FailNext(http.MethodGet, "/Tasks", http.StatusInternalServerError)

	_, err := client.ListTasks(context.Background())

	var rerr *api.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusInternalServerError, rerr.Status)
	assert.False(t, api.IsAuthRequired(err))
	assert.Equal(t, "Failed to load tasks.", api.UserMessage(err, "Failed to load tasks."))
}

func TestListTasks_CancelledContext(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))
	release := fake.HoldList()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.ListTasks(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return fake.Count(http.MethodGet, "/Tasks") == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, api.IsCancelled(err))
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request did not return")
	}
}

func TestCreateTask_AssignsID(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))

	created, err := client.CreateTask(context.Background(), model.TaskInput{
		Title:       "Write report",
		Description: "Q1",
		DueDate:     date("2024-04-01"),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Write report", created.Title)
	assert.False(t, created.IsCompleted)
	assert.Len(t, fake.Tasks(), 1)
}

func TestCreateTask_EmptyTitleSendsNothing(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))

	_, err := client.CreateTask(context.Background(), model.TaskInput{
		Title:   "   ",
		DueDate: date("2024-04-01"),
	})

	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Title is required", verr.UserMessage())
	assert.Empty(t, fake.Requests())
}

func TestUpdateAndGetTask(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.SeedTasks(model.Task{ID: 7, Title: "old", DueDate: date("2024-01-01")})
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))
	ctx := context.Background()

	task, err := client.GetTask(ctx, 7)
	require.NoError(t, err)
	task.Title = "new"
	task.IsCompleted = true

	updated, err := client.UpdateTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, task, updated)

	got, err := client.GetTask(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.True(t, got.IsCompleted)
}

func TestGetTask_NotFound(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))

	_, err := client.GetTask(context.Background(), 99)
	var rerr *api.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusNotFound, rerr.Status)
	assert.True(t, strings.Contains(rerr.Error(), "/Tasks/99"))
}

func TestDeleteTask(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.SeedTasks(
		model.Task{ID: 1, Title: "keep", DueDate: date("2024-01-01")},
		model.Task{ID: 2, Title: "drop", DueDate: date("2024-01-02")},
	)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))

	require.NoError(t, client.DeleteTask(context.Background(), 2))
	remaining := fake.Tasks()
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(1), remaining[0].ID)
}

func TestUserMessage_HidesTransportErrors(t *testing.T) {
	err := &api.RequestError{Method: "GET", Path: "/Tasks", Err: errors.New("dial tcp: connection refused")}
	assert.Equal(t, "Failed to load tasks.", api.UserMessage(err, "Failed to load tasks."))
}

func TestRateLimited_RetriesThenSucceeds(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.SeedTasks(model.Task{Title: "A", DueDate: date("2024-01-01")})
	fake.FailNext(http.MethodGet, "/Tasks", http.StatusTooManyRequests)

	_, store := newClient(t, fake, fake.IssueToken("ada@example.com"))
	client := api.New(fake.BaseURL(), store, api.WithTimeout(5*time.Second), api.WithMaxRetries(1))

	tasks, err := client.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, 2, fake.Count(http.MethodGet, "/Tasks"))
}

func TestRateLimited_GivesUpAfterRetries(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.FailNext(http.MethodGet, "/Tasks", http.StatusTooManyRequests)
	client, _ := newClient(t, fake, fake.IssueToken("ada@example.com"))

	_, err := client.ListTasks(context.Background())
	var reqErr *api.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusTooManyRequests, reqErr.Status)
	assert.Equal(t, 1, fake.Count(http.MethodGet, "/Tasks"))
}
