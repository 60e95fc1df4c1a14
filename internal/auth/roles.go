package auth

// Role is the caller's permission level within a school.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleClerk  Role = "clerk"
	RoleAdmin  Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleClerk:  2,
	RoleAdmin:  3,
}

// NormalizeRole validates a role string from an external source.
func NormalizeRole(value string) (Role, bool) {
	role := Role(value)
	_, ok := roleRank[role]
	if !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role meets the required floor. Roles are
// strictly ordered viewer < clerk < admin.
func RoleAtLeast(role, required Role) bool {
	return roleRank[role] >= roleRank[required]
}
