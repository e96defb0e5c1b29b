package models

type UserRole string

const (
	RoleViewer UserRole = "viewer"
	RoleAdmin  UserRole = "admin"
)

// roleTier orders roles for "at least" checks.
var roleTier = map[UserRole]int{
	RoleViewer: 1,
	RoleAdmin:  2,
}

type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	PasswordHash string     `json:"-" db:"password_hash"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	Roles        []UserRole `json:"roles" db:"roles"`
}

func IsValidRole(role UserRole) bool {
	_, ok := roleTier[role]
	return ok
}

func IsValidRoleList(roles []UserRole) bool {
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if !IsValidRole(role) {
			return false
		}
	}
	return true
}

// NormalizeRoles deduplicates while preserving first-seen order.
func NormalizeRoles(roles []UserRole) []UserRole {
	seen := make(map[UserRole]struct{}, len(roles))
	out := make([]UserRole, 0, len(roles))
	for _, role := range roles {
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

// EnsureDefaultRole guarantees every user carries at least the viewer role.
func EnsureDefaultRole(roles []UserRole) []UserRole {
	if len(roles) == 0 {
		return []UserRole{RoleViewer}
	}
	return roles
}

// HighestRole returns the most privileged role in the list.
func HighestRole(roles []UserRole) UserRole {
	highest := RoleViewer
	for _, role := range roles {
		if roleTier[role] > roleTier[highest] {
			highest = role
		}
	}
	return highest
}

// HasAtLeast reports whether any role meets the required tier.
func HasAtLeast(roles []UserRole, required UserRole) bool {
	need := roleTier[required]
	for _, role := range roles {
		if roleTier[role] >= need {
			return true
		}
	}
	return false
}
