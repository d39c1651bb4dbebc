// Package auth stores portal users and maps their roles to permissions.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownRole is returned for role names outside the fixed role set.
var ErrUnknownRole = errors.New("unknown role")

// Permission names one action a role may perform.
type Permission string

const (
	ViewDashboard  Permission = "view-dashboard"
	ManageCourses  Permission = "manage-courses"
	ViewCourses    Permission = "view-courses"
	CreateCourses  Permission = "create-courses"
	EditCourses    Permission = "edit-courses"
	DeleteCourses  Permission = "delete-courses"
	ManagePDFTools Permission = "manage-pdf-tools"
	ViewPDFTools   Permission = "view-pdf-tools"
	CreatePDF      Permission = "create-pdf"
	ManageUsers    Permission = "manage-users"
	ViewUsers      Permission = "view-users"
	CreateUsers    Permission = "create-users"
	EditUsers      Permission = "edit-users"
	DeleteUsers    Permission = "delete-users"
	UseMP3Tools    Permission = "use-mp3-tools"
)

// AllPermissions lists every permission in display order.
var AllPermissions = []Permission{
	ViewDashboard,
	ManageCourses, ViewCourses, CreateCourses, EditCourses, DeleteCourses,
	ManagePDFTools, ViewPDFTools, CreatePDF,
	ManageUsers, ViewUsers, CreateUsers, EditUsers, DeleteUsers,
	UseMP3Tools,
}

// Role is a named bundle of permissions.
type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleUser       Role = "user"
)

// Roles lists every role from most to least privileged.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleUser}

var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: AllPermissions,
	RoleAdmin:      AllPermissions,
	RoleManager: {
		ViewDashboard,
		ManageCourses, ViewCourses, CreateCourses, EditCourses, DeleteCourses,
		ManagePDFTools, ViewPDFTools, CreatePDF,
		UseMP3Tools,
	},
	RoleUser: {
		ViewDashboard,
		ViewCourses,
		ViewPDFTools,
		UseMP3Tools,
	},
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rolePermissions[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Permissions returns the permissions granted to r.
func (r Role) Permissions() []Permission {
	return rolePermissions[r]
}

// Can reports whether r grants p.
func (r Role) Can(p Permission) bool {
	return slices.Contains(rolePermissions[r], p)
}
