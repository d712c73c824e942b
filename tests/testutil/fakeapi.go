package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/taskclient/internal/model"
)

// Request is one call received by the FakeAPI.
type Request struct {
	Method    string
	Path      string
	Auth      string
	RequestID string
}

type fakeUser struct {
	fullName string
	password string
}

type failure struct {
	method string
	path   string
	status int
	body   string
}

// FakeAPI is an in-process stand-in for the external Task REST API.
type FakeAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	users    map[string]fakeUser
	tokens   map[string]string
	tasks    []model.Task
	nextID   int64
	requests []Request
	failures []failure
	hold     chan struct{}
}

// NewFakeAPI starts a fake API server that is closed when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		users:  make(map[string]fakeUser),
		tokens: make(map[string]string),
		nextID: 1,
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Use(f.injectFailures)
	r.Route("/api", func(r chi.Router) {
		r.Post("/Users/register", f.register)
		r.Post("/Users/login", f.login)
		r.Group(func(r chi.Router) {
			r.Use(f.requireToken)
			r.Get("/Tasks", f.listTasks)
			r.Post("/Tasks", f.createTask)
			r.Get("/Tasks/{id}", f.getTask)
			r.Put("/Tasks/{id}", f.updateTask)
			r.Delete("/Tasks/{id}", f.deleteTask)
		})
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the API root to configure the client with.
func (f *FakeAPI) BaseURL() string {
	return f.Server.URL + "/api"
}

// AddUser registers an account directly.
func (f *FakeAPI) AddUser(fullName, email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = fakeUser{fullName: fullName, password: password}
}

// IssueToken returns a valid token for email without a login call.
func (f *FakeAPI) IssueToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked(email)
}

func (f *FakeAPI) issueLocked(email string) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.Itoa(len(f.tokens) + 1),
		"email": email,
	}).SignedString([]byte("fake-api-secret"))
	if err != nil {
		panic(fmt.Sprintf("signing fake token: %v", err))
	}
	f.tokens[tok] = email
	return tok
}

// RevokeTokens invalidates every issued token, so the next call gets 401.
func (f *FakeAPI) RevokeTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]string)
}

// SeedTasks replaces the stored tasks. Tasks without an ID get one.
func (f *FakeAPI) SeedTasks(tasks ...model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = nil
	for _, t := range tasks {
		if t.ID == 0 {
			t.ID = f.nextID
		}
		if t.ID >= f.nextID {
			f.nextID = t.ID + 1
		}
		f.tasks = append(f.tasks, t)
	}
}

// Tasks returns a copy of the stored tasks.
func (f *FakeAPI) Tasks() []model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}

// FailNext makes the next request matching method and path (relative to
// the API root, e.g. "/Tasks/1") answer with status.
func (f *FakeAPI) FailNext(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{method: method, path: "/api" + path, status: status})
}

// FailNextWithText is FailNext with a plain-text body.
func (f *FakeAPI) FailNextWithText(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{method: method, path: "/api" + path, status: status, body: body})
}

// HoldList makes GET /Tasks block until release is called or the client
// gives up on the request.
func (f *FakeAPI) HoldList() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.hold = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Requests returns every request received so far.
func (f *FakeAPI) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Count returns how many requests matched method and API-relative path.
func (f *FakeAPI) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == "/api"+path {
			n++
		}
	}
	return n
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get("X-Request-ID"),
		})
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		for i, fl := range f.failures {
			if fl.method == r.Method && strings.EqualFold(fl.path, r.URL.Path) {
				f.failures = append(f.failures[:i], f.failures[i+1:]...)
				f.mu.Unlock()
				if fl.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "0")
				}
				if fl.body != "" {
					w.Header().Set("Content-Type", "text/plain; charset=utf-8")
					w.WriteHeader(fl.status)
					_, _ = w.Write([]byte(fl.body))
					return
				}
				writeJSON(w, fl.status, map[string]string{"message": http.StatusText(fl.status)})
				return
			}
		}
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		_, ok := f.tokens[token]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Malformed request body.")
		return
	}

	problems := map[string][]string{}
	if len(req.Password) < model.MinPasswordLength {
		problems["Password"] = []string{"Password must be at least 7 characters long."}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[req.Email]; exists {
		problems["Email"] = []string{"Email is already registered."}
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": problems})
		return
	}

	f.users[req.Email] = fakeUser{fullName: req.FullName, password: req.Password}
	writeJSON(w, http.StatusOK, model.RegisterResponse{Message: "User registered successfully."})
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Malformed request body.")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[req.Email]
	if !ok || u.password != req.Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, model.LoginResponse{Token: f.issueLocked(req.Email)})
}

func (f *FakeAPI) listTasks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	writeJSON(w, http.StatusOK, f.Tasks())
}

func (f *FakeAPI) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *FakeAPI) createTask(w http.ResponseWriter, r *http.Request) {
	var in model.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": map[string][]string{"Title": {"The Title field is required."}},
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	task := model.Task{
		ID:          f.nextID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
	}
	f.nextID++
	f.tasks = append(f.tasks, task)
	writeJSON(w, http.StatusCreated, task)
}

func (f *FakeAPI) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var task model.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeJSON(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	task.ID = id

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i] = task
			writeJSON(w, http.StatusOK, task)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *FakeAPI) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
