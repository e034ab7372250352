package domain

// Role is a user's role within a company
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"

	// RoleSuperAdmin is never stored on a membership. It is assigned to
	// super-admin sessions that select a company they are not a member of.
	RoleSuperAdmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RoleMember:     1,
	RoleAdmin:      2,
	RoleOwner:      3,
	RoleSuperAdmin: 4,
}

// IsValid reports whether r can be stored on a membership
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// AtLeast reports whether r grants everything min grants
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min] && roleRank[r] > 0
}

func (r Role) String() string {
	return string(r)
}
