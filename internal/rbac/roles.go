package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin  = "admin"
	RoleAgent  = "agent" // the voice agent and other backends writing session data
	RoleMember = "member"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAgent, RoleMember:
		return true
	default:
		return false
	}
}
