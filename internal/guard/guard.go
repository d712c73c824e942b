// Package guard decides which screens are reachable for the current
// session and keeps the navigation history the screens move through.
package guard

// Screen paths.
const (
	PathLogin    = "/login"
	PathRegister = "/register"
	PathTasks    = "/tasks"
)

// LoginRequiredMessage is attached to redirects away from protected screens.
const LoginRequiredMessage = "Please log in to continue."

// Authenticator reports whether a session is present. *session.Store
// implements it.
type Authenticator interface {
	IsAuthenticated() bool
}

// Intent is handed to the destination of a redirect and consumed once.
type Intent struct {
	// From is the path that was originally requested, if any.
	From string

	// Message is shown by the destination screen, if any.
	Message string
}

// IsZero reports whether the intent carries nothing.
func (i Intent) IsZero() bool {
	return i.From == "" && i.Message == ""
}

// Decision is the outcome of a guard policy.
type Decision struct {
	Allow    bool
	Redirect string
	Intent   Intent
}

func allow() Decision {
	return Decision{Allow: true}
}

// Policy decides whether target may be entered.
type Policy func(auth Authenticator, target string) Decision

// RequireAuthenticated sends anonymous users to the login screen and
// remembers where they were going.
func RequireAuthenticated(auth Authenticator, target string) Decision {
	if auth.IsAuthenticated() {
		return allow()
	}
	return Decision{
		Redirect: PathLogin,
		Intent:   Intent{From: target, Message: LoginRequiredMessage},
	}
}

// RequireAnonymous sends signed-in users to the task list.
func RequireAnonymous(auth Authenticator, target string) Decision {
	if !auth.IsAuthenticated() {
		return allow()
	}
	return Decision{Redirect: PathTasks}
}
