package authz

// Role is one of the closed set of account roles. Roles live on the
// account record itself; there is no per-user permission override.
type Role string

const (
	// RoleSuperAdmin owns the whole installation.
	RoleSuperAdmin Role = "super_admin"
	// RoleAdmin manages the school but not platform internals.
	RoleAdmin Role = "admin"
	// RoleOfficeStaff handles front-office work: records, fees, admissions.
	RoleOfficeStaff Role = "office_staff"
	// RoleTeacher handles academics: attendance and marks.
	RoleTeacher Role = "teacher"
	// RoleStudent only sees their own portal.
	RoleStudent Role = "student"
)

// Roles returns every defined role.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleOfficeStaff, RoleTeacher, RoleStudent}
}

// ParseRole maps a stored string onto a Role. Unknown strings report ok
// as false so callers fail closed instead of minting ad-hoc roles.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSuperAdmin, RoleAdmin, RoleOfficeStaff, RoleTeacher, RoleStudent:
		return Role(s), true
	}
	return "", false
}

// Valid reports whether the role is part of the closed set.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Label returns a human readable role name for templates.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleOfficeStaff:
		return "Office Staff"
	case RoleTeacher:
		return "Teacher"
	case RoleStudent:
		return "Student"
	}
	return string(r)
}
