package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// maxHops bounds how many redirects one navigation may follow.
const maxHops = 8

// ErrRedirectLoop is returned when guards keep redirecting.
var ErrRedirectLoop = errors.New("guard: too many redirects")

// Route binds a path to the policy that protects it. A nil policy lets
// everyone in.
type Route struct {
	Path   string
	Policy Policy
}

// DefaultRoutes are the client's screens.
func DefaultRoutes() []Route {
	return []Route{
		{Path: PathLogin, Policy: RequireAnonymous},
		{Path: PathRegister, Policy: RequireAnonymous},
		{Path: PathTasks, Policy: RequireAuthenticated},
	}
}

// Router resolves navigation requests through the guard policies and
// records the resulting history.
type Router struct {
	auth     Authenticator
	routes   []Route
	fallback string
	log      zerolog.Logger

	history []string
	intent  Intent
}

// NewRouter creates a router over routes. Unmatched paths go to fallback.
func NewRouter(auth Authenticator, routes []Route, fallback string, log zerolog.Logger) *Router {
	return &Router{
		auth:     auth,
		routes:   routes,
		fallback: fallback,
		log:      log,
	}
}

type navigation struct {
	replace bool
	intent  Intent
}

// NavOption customizes a single Navigate call.
type NavOption func(*navigation)

// Replace overwrites the current history entry instead of pushing.
func Replace() NavOption {
	return func(n *navigation) { n.replace = true }
}

// WithIntent hands intent to the destination. A guard redirect replaces it.
func WithIntent(intent Intent) NavOption {
	return func(n *navigation) { n.intent = intent }
}

// Navigate moves to path, following guard and fallback redirects. Only
// the screen finally entered is recorded: a redirect takes the place of
// the entry that was requested, so Back never bounces between a guarded
// screen and its redirect target. It returns the path entered.
func (r *Router) Navigate(path string, opts ...NavOption) (string, error) {
	nav := navigation{}
	for _, opt := range opts {
		opt(&nav)
	}

	target := path
	for hop := 0; hop < maxHops; hop++ {
		route, ok := r.match(target)
		if !ok {
			r.log.Debug().Str("path", target).Str("to", r.fallback).Msg("unmatched path")
			target = r.fallback
			continue
		}

		if route.Policy != nil {
			decision := route.Policy(r.auth, target)
			if !decision.Allow {
				r.log.Debug().Str("path", target).Str("to", decision.Redirect).Msg("guard redirect")
				target = decision.Redirect
				nav.intent = decision.Intent
				continue
			}
		}

		r.enter(route.Path, nav)
		return route.Path, nil
	}
	return "", fmt.Errorf("navigating to %s: %w", path, ErrRedirectLoop)
}

func (r *Router) enter(path string, nav navigation) {
	if nav.replace && len(r.history) > 0 {
		r.history[len(r.history)-1] = path
	} else {
		r.history = append(r.history, path)
	}
	// Adjacent duplicates would make Back land on the same screen.
	if n := len(r.history); n > 1 && r.history[n-1] == r.history[n-2] {
		r.history = r.history[:n-1]
	}
	r.intent = nav.intent
}

func (r *Router) match(path string) (Route, bool) {
	clean := strings.TrimRight(strings.TrimSpace(path), "/")
	if clean == "" {
		clean = "/"
	}
	for _, route := range r.routes {
		if strings.EqualFold(route.Path, clean) {
			return route, true
		}
	}
	return Route{}, false
}

// Current returns the path on top of the history, or "" before the first
// navigation.
func (r *Router) Current() string {
	if len(r.history) == 0 {
		return ""
	}
	return r.history[len(r.history)-1]
}

// History returns a copy of the history, oldest first.
func (r *Router) History() []string {
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}

// ConsumeIntent returns the intent left for the current screen and
// clears it, so a second call reports nothing.
func (r *Router) ConsumeIntent() (Intent, bool) {
	intent := r.intent
	r.intent = Intent{}
	return intent, !intent.IsZero()
}

// Back pops the current entry and re-enters the previous one, running its
// guard again. It reports false when there is nothing to go back to.
func (r *Router) Back() (string, bool, error) {
	if len(r.history) < 2 {
		return r.Current(), false, nil
	}
	r.history = r.history[:len(r.history)-1]
	path, err := r.Navigate(r.Current(), Replace())
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// CompleteLogin leaves the login screen for the page the user originally
// asked for, or the task list. The login entry is replaced.
func (r *Router) CompleteLogin(intent Intent) (string, error) {
	dest := intent.From
	if dest == "" {
		dest = PathTasks
	}
	return r.Navigate(dest, Replace())
}
