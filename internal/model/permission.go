package model

import "sort"

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionMembersRead allows viewing member lists and details.
	PermissionMembersRead Permission = "members:read"

	// PermissionMembersWrite allows creating and updating members.
	PermissionMembersWrite Permission = "members:write"

	// PermissionMandatesRead allows viewing a member's role mandates.
	PermissionMandatesRead Permission = "mandates:read"

	// PermissionMandatesWrite allows adding mandates and editing dates, role or status.
	PermissionMandatesWrite Permission = "mandates:write"

	// PermissionMandatesDelete allows removing a mandate outright.
	PermissionMandatesDelete Permission = "mandates:delete"

	// PermissionNotificationsRead allows viewing overlap and expiry notifications.
	PermissionNotificationsRead Permission = "notifications:read"

	// PermissionExportsCreate allows exporting mandate lists.
	PermissionExportsCreate Permission = "exports:create"

	// PermissionAdminsWrite allows granting and revoking the ADMIN role.
	PermissionAdminsWrite Permission = "admins:write"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionMembersRead,
	PermissionMembersWrite,
	PermissionMandatesRead,
	PermissionMandatesWrite,
	PermissionMandatesDelete,
	PermissionNotificationsRead,
	PermissionExportsCreate,
	PermissionAdminsWrite,
}

// PermissionSet is the resolved capability set of a role.
type PermissionSet map[Permission]struct{}

// Has reports whether p is granted.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Strings returns the granted codes sorted, as embedded in tokens.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

func newPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

var readPermissions = []Permission{
	PermissionMembersRead,
	PermissionMandatesRead,
	PermissionNotificationsRead,
}

// PermissionsFor resolves the capabilities granted to a role.
// Unknown roles resolve to an empty set.
func PermissionsFor(role MandateRole) PermissionSet {
	switch role {
	case RoleAdmin:
		return newPermissionSet(AllPermissions...)
	case RolePresident, RoleVicePresidentCommission:
		return newPermissionSet(append(readPermissions,
			PermissionMembersWrite,
			PermissionMandatesWrite,
			PermissionMandatesDelete,
			PermissionExportsCreate,
		)...)
	case RoleSecretary:
		return newPermissionSet(append(readPermissions,
			PermissionMembersWrite,
			PermissionMandatesWrite,
			PermissionExportsCreate,
		)...)
	case RoleTreasurer:
		return newPermissionSet(append(readPermissions, PermissionExportsCreate)...)
	case RoleMember:
		return newPermissionSet(readPermissions...)
	default:
		return PermissionSet{}
	}
}
