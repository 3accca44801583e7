package authz

import "sort"

// Permission is an enumerated capability tag. The set is closed; new
// capabilities are added here, never at runtime.
type Permission string

const (
	// PermOperationsArea grants the records/fees/admissions area.
	PermOperationsArea Permission = "operations.area"
	// PermAcademicsArea grants the attendance/exams area.
	PermAcademicsArea Permission = "academics.area"
	// PermAdminArea grants user management and the audit timeline.
	PermAdminArea Permission = "admin.area"
	// PermSuperAdminArea grants platform internals such as job queues.
	PermSuperAdminArea Permission = "superadmin.area"
	// PermStudentPortal grants the student's own portal.
	PermStudentPortal Permission = "portal.access"

	// PermManageStudents covers student record CRUD.
	PermManageStudents Permission = "students.manage"
	// PermManageStaff covers staff record CRUD.
	PermManageStaff Permission = "staff.manage"
	// PermRecordAttendance covers daily attendance marking.
	PermRecordAttendance Permission = "attendance.record"
	// PermEnterMarks covers exam mark entry.
	PermEnterMarks Permission = "exams.marks.enter"
	// PermManageFees covers fee structures, payments and adjustments.
	PermManageFees Permission = "fees.manage"
	// PermViewRevenue covers the revenue summary inside the fees area.
	PermViewRevenue Permission = "fees.revenue.view"
	// PermManageAdmissions covers the admissions inquiry pipeline.
	PermManageAdmissions Permission = "admissions.manage"
	// PermSignUploads covers issuing presigned upload URLs.
	PermSignUploads Permission = "uploads.sign"
	// PermManageUsers covers account creation, deactivation and role changes.
	PermManageUsers Permission = "users.manage"
	// PermViewAudit covers the audit timeline and export.
	PermViewAudit Permission = "audit.view"
)

// matrix is the static role to permission mapping. It is populated once
// at package init and only copies ever leave this package, so there is
// no mutation path after process start.
var matrix map[Role]map[Permission]struct{}

func init() {
	grants := map[Role][]Permission{
		RoleSuperAdmin: {
			PermOperationsArea, PermAcademicsArea, PermAdminArea, PermSuperAdminArea,
			PermManageStudents, PermManageStaff, PermRecordAttendance, PermEnterMarks,
			PermManageFees, PermViewRevenue, PermManageAdmissions, PermSignUploads,
			PermManageUsers, PermViewAudit,
		},
		RoleAdmin: {
			PermOperationsArea, PermAcademicsArea, PermAdminArea,
			PermManageStudents, PermManageStaff, PermRecordAttendance, PermEnterMarks,
			PermManageFees, PermViewRevenue, PermManageAdmissions, PermSignUploads,
			PermManageUsers, PermViewAudit,
		},
		RoleOfficeStaff: {
			PermOperationsArea,
			PermManageStudents, PermManageFees, PermManageAdmissions, PermSignUploads,
		},
		RoleTeacher: {
			PermAcademicsArea,
			PermRecordAttendance, PermEnterMarks, PermSignUploads,
		},
		RoleStudent: {
			PermStudentPortal,
		},
	}
	matrix = make(map[Role]map[Permission]struct{}, len(grants))
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		matrix[role] = set
	}
}

// PermissionsOf returns the permissions granted to role, sorted for
// deterministic output. Unknown roles yield an empty set.
func PermissionsOf(role Role) []Permission {
	set, ok := matrix[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// HasPermission reports whether role is granted perm.
func HasPermission(role Role, perm Permission) bool {
	set, ok := matrix[role]
	if !ok {
		return false
	}
	_, granted := set[perm]
	return granted
}

// HasAnyPermission reports whether role holds at least one of perms.
func HasAnyPermission(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}
