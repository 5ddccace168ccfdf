// Package routegate decides whether a navigation may proceed given the
// current session and the route's declared requirement. Decisions are pure
// functions of their inputs: nothing is cached across identity changes, and
// the gate never fetches. Consumers recompute the decision on every
// navigation.
package routegate

// Role names match the role slugs issued by the API.
type Role string

const (
	// RoleAdmin grants access to the content-management area.
	RoleAdmin Role = "admin"
	// RoleMember is the default role for registered users.
	RoleMember Role = "user"
)

// Well-known navigation targets used in redirect decisions.
const (
	LoginRoute      = "/login"
	AdminHomeRoute  = "/admin"
	MemberHomeRoute = "/"
)

// Status mirrors the session manager's bootstrap lifecycle. Any status other
// than StatusReady defers the decision.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusReady
)

// Identity is the authenticated principal; a nil *Identity is anonymous.
type Identity struct {
	Role Role
}

type requirementKind int

const (
	kindPublic requirementKind = iota
	kindAuthenticatedAny
	kindAuthenticatedRole
)

// Requirement is a route's static access declaration.
type Requirement struct {
	kind requirementKind
	role Role
}

// Public declares a guest-only route (login, register): anonymous visitors
// may enter, signed-in users are sent to their home.
func Public() Requirement {
	return Requirement{kind: kindPublic}
}

// AuthenticatedAny declares a route open to any signed-in user.
func AuthenticatedAny() Requirement {
	return Requirement{kind: kindAuthenticatedAny}
}

// AuthenticatedRole declares a route open only to signed-in users holding
// the given role.
func AuthenticatedRole(role Role) Requirement {
	return Requirement{kind: kindAuthenticatedRole, role: role}
}

// Action classifies the gate's verdict.
type Action int

const (
	// ActionDefer means the session is still resolving; show a pending
	// placeholder and decide again once Ready.
	ActionDefer Action = iota
	// ActionAllow admits the navigation.
	ActionAllow
	// ActionRedirect sends the visitor to Decision.Target instead.
	ActionRedirect
)

// Decision is the gate's verdict for one navigation.
type Decision struct {
	Action Action
	Target string
}

// HomeRoute returns the landing route for a role.
func HomeRoute(role Role) string {
	if role == RoleAdmin {
		return AdminHomeRoute
	}
	return MemberHomeRoute
}

// Decide applies the authorization table.
//
// Anonymous visitors are admitted to guest-only routes and redirected to
// login everywhere else. Signed-in users are admitted wherever their role
// satisfies the requirement; a guest-only route or a role mismatch sends
// them to their own home, never to login.
func Decide(status Status, identity *Identity, requirement Requirement) Decision {
	if status != StatusReady {
		return Decision{Action: ActionDefer}
	}

	if identity == nil {
		if requirement.kind == kindPublic {
			return Decision{Action: ActionAllow}
		}
		return Decision{Action: ActionRedirect, Target: LoginRoute}
	}

	switch requirement.kind {
	case kindPublic:
		return Decision{Action: ActionRedirect, Target: HomeRoute(identity.Role)}
	case kindAuthenticatedAny:
		return Decision{Action: ActionAllow}
	default:
		if identity.Role == requirement.role {
			return Decision{Action: ActionAllow}
		}
		return Decision{Action: ActionRedirect, Target: HomeRoute(identity.Role)}
	}
}
