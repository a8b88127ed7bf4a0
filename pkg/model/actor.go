package model

// Role is the single tagged role of an authenticated caller, supplied
// by the upstream session service per request. Never read from ambient
// state.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
	RoleGuest   Role = "guest"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleFaculty, RoleStudent, RoleGuest:
		return Role(s), true
	}
	return "", false
}

// CanManage reports whether the role carries slot-management
// capabilities: publishing slots, approving/rejecting bookings,
// bypassing the cancellation cutoff, forcing sweeps.
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleManager
}

// Actor is the request-scoped identity every core operation receives.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
