// Package guard gates navigation on session and authorization state.
//
// Evaluate is the pure decision function; Protect wraps it as net/http
// middleware for server-rendered panels. The decision order is fixed:
// loading, then authentication, then authorization.
package guard

import (
	"net/http"
	"net/url"

	authclient "github.com/atlaspanel/authclient"
	"github.com/atlaspanel/authclient/authz"
)

// Decision is the outcome of a guard evaluation.
type Decision uint8

const (
	// Allow renders the protected view.
	Allow Decision = iota
	// ShowLoading defers the decision until bootstrap or the authorities
	// fetch completes.
	ShowLoading
	// RedirectToLogin sends an unauthenticated visitor to the login entry
	// point, remembering where they were headed.
	RedirectToLogin
	// RedirectToUnauthorized sends an authenticated but insufficiently
	// privileged visitor to the unauthorized page.
	RedirectToUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case ShowLoading:
		return "loading"
	case RedirectToLogin:
		return "redirect-login"
	case RedirectToUnauthorized:
		return "redirect-unauthorized"
	default:
		return "unknown"
	}
}

// Requirement names the role or permission a route demands. Either or both
// may be set; satisfying one is enough. An empty Requirement only demands
// authentication.
type Requirement struct {
	Role       string
	Permission string
}

// Input is everything Evaluate needs. HasRole and HasPermission are split
// out as functions so the decision stays testable without a live resolver.
type Input struct {
	Status           authclient.Status
	AuthoritiesReady bool
	Requirement      Requirement
	HasRole          func(string) bool
	HasPermission    func(string) bool
}

// Evaluate applies the guard rules in order and returns the decision.
func Evaluate(in Input) Decision {
	if in.Status == authclient.StatusInitializing {
		return ShowLoading
	}
	if in.Status != authclient.StatusAuthenticated {
		return RedirectToLogin
	}
	if !in.AuthoritiesReady {
		return ShowLoading
	}
	if in.Requirement.Role == "" && in.Requirement.Permission == "" {
		return Allow
	}
	if in.Requirement.Role != "" && in.HasRole != nil && in.HasRole(in.Requirement.Role) {
		return Allow
	}
	if in.Requirement.Permission != "" && in.HasPermission != nil && in.HasPermission(in.Requirement.Permission) {
		return Allow
	}
	return RedirectToUnauthorized
}

// Options configures the middleware redirect targets.
type Options struct {
	// LoginPath, default "/login". The originally requested URI is carried
	// in the "from" query parameter so login can return the user there.
	LoginPath string
	// UnauthorizedPath, default "/unauthorized".
	UnauthorizedPath string
}

func (o *Options) applyDefaults() {
	if o.LoginPath == "" {
		o.LoginPath = "/login"
	}
	if o.UnauthorizedPath == "" {
		o.UnauthorizedPath = "/unauthorized"
	}
}

// Protect guards an http.Handler with the given requirement.
func Protect(session *authclient.Session, resolver *authz.Resolver, req Requirement, opts Options) func(http.Handler) http.Handler {
	opts.applyDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			in := Input{
				Status:           session.Status(),
				AuthoritiesReady: resolver.Ready(),
				Requirement:      req,
			}
			if in.Status == authclient.StatusAuthenticated {
				in.HasRole = resolver.HasRole
				in.HasPermission = resolver.HasPermission
			}

			switch Evaluate(in) {
			case Allow:
				next.ServeHTTP(w, r)
			case ShowLoading:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session initializing", http.StatusServiceUnavailable)
			case RedirectToLogin:
				target := opts.LoginPath + "?from=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
			case RedirectToUnauthorized:
				http.Redirect(w, r, opts.UnauthorizedPath, http.StatusFound)
			}
		})
	}
}
