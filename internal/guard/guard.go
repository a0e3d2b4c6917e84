package guard

// Route paths shared across the dashboard.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Route declares the access requirements of a view. The zero value
// requires authentication; views open to everyone set Public.
type Route struct {
	Path      string
	Public    bool
	AdminOnly bool
}

// Snapshot is the session state the guard decides against.
type Snapshot struct {
	Authenticated bool
	Admin         bool
}

// Decision is the outcome of a guarded transition. When the transition is
// redirected to login, ReturnTo carries the originally requested path.
type Decision struct {
	Allow      bool
	RedirectTo string
	ReturnTo   string
}

// Decide gates a route transition on the session snapshot. Pure and
// deterministic; the rules are evaluated in order.
func Decide(to Route, s Snapshot) Decision {
	if !to.Public && !s.Authenticated {
		return Decision{RedirectTo: LoginPath, ReturnTo: to.Path}
	}
	if to.Path == LoginPath && s.Authenticated {
		return Decision{RedirectTo: DashboardPath}
	}
	if to.AdminOnly && !s.Admin {
		return Decision{RedirectTo: DashboardPath}
	}
	return Decision{Allow: true}
}
