package authclient

// Role names match the role slugs issued by the API.
type Role string

const (
	// RoleAdmin grants access to the content-management area.
	RoleAdmin Role = "admin"
	// RoleMember is the default role assigned at registration.
	RoleMember Role = "user"
)

// User is the authenticated identity as reported by the API.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// Status tracks the session manager's bootstrap lifecycle.
type Status int

const (
	// StatusUninitialized means Bootstrap has not been invoked yet.
	StatusUninitialized Status = iota
	// StatusLoading means the identity fetch is in flight.
	StatusLoading
	// StatusReady means the identity below is authoritative until the next
	// login or logout transition.
	StatusReady
)

// String names the status for logs.
func (status Status) String() string {
	switch status {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Session is the atomic snapshot read by route authorization and by every
// view that renders conditionally on role. A nil Identity means anonymous.
type Session struct {
	Identity *User
	Status   Status
}

// Authenticated reports whether the snapshot carries a signed-in user.
func (session Session) Authenticated() bool {
	return session.Identity != nil
}
