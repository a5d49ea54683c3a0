// Package routes decides whether a navigation target may be entered given
// the current session. The decision logic is a pure function over a route
// table and a session snapshot; Guard binds it to a live session manager.
package routes

import (
	"strings"

	"github.com/guardline/guardline-cli/internal/client/session"
)

// Access classifies who may enter a route.
type Access int

const (
	// AccessPublic routes are open to everyone, signed in or not.
	AccessPublic Access = iota
	// AccessRequiresAuth routes need an authenticated session.
	AccessRequiresAuth
)

// Route is one entry in the navigation table.
type Route struct {
	Path   string
	Access Access
}

// Decision is the outcome of evaluating a navigation attempt.
type Decision struct {
	// Allowed reports whether the navigation may proceed.
	Allowed bool
	// RedirectTo is the path to send the user to instead, set only when
	// the navigation is denied.
	RedirectTo string
	// From carries the originally requested path on a denied navigation
	// so the login flow can return the user there afterwards.
	From string
}

// LoginPath is where unauthenticated users are sent when they hit a
// protected route.
const LoginPath = "/login"

// HomePath is the landing page for authenticated users.
const HomePath = "/"

// DefaultTable mirrors the web client's navigation map.
func DefaultTable() []Route {
	return []Route{
		{Path: "/", Access: AccessRequiresAuth},
		{Path: "/login", Access: AccessPublic},
		{Path: "/register", Access: AccessPublic},
		{Path: "/forgot-password", Access: AccessPublic},
		{Path: "/reports", Access: AccessRequiresAuth},
		{Path: "/reports/new", Access: AccessRequiresAuth},
		{Path: "/alerts", Access: AccessRequiresAuth},
		{Path: "/profile", Access: AccessRequiresAuth},
		{Path: "/settings", Access: AccessRequiresAuth},
	}
}

// Evaluate decides a navigation attempt against the table and a session
// snapshot. Paths not present in the table require authentication; an
// unknown destination must never leak to a signed-out user.
func Evaluate(table []Route, st session.State, path string) Decision {
	access := AccessRequiresAuth
	if r, ok := lookup(table, path); ok {
		access = r.Access
	}

	switch access {
	case AccessPublic:
		return Decision{Allowed: true}
	default:
		if st.IsAuthenticated {
			return Decision{Allowed: true}
		}
		return Decision{Allowed: false, RedirectTo: LoginPath, From: path}
	}
}

func lookup(table []Route, path string) (Route, bool) {
	p := normalize(path)
	for _, r := range table {
		if normalize(r.Path) == p {
			return r, true
		}
	}
	return Route{}, false
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// Guard evaluates navigations against a live session manager. It re-reads
// the session on every call, so a decision always reflects the state at
// the moment of the attempt, never a cached snapshot.
type Guard struct {
	manager *session.Manager
	table   []Route
}

// NewGuard binds a route table to the manager. A nil table gets the
// default navigation map.
func NewGuard(manager *session.Manager, table []Route) *Guard {
	if table == nil {
		table = DefaultTable()
	}
	return &Guard{manager: manager, table: table}
}

// Check decides whether path may be entered right now.
func (g *Guard) Check(path string) Decision {
	return Evaluate(g.table, g.manager.CurrentState(), path)
}
