package access

// RoleRules はロールと権限の対応表です。起動時に一度だけ構築され、以後変更されません。
type RoleRules struct {
	byRole map[Role]PermissionSet
}

// NewRoleRules は mapping をコピーして RoleRules を生成します。
func NewRoleRules(mapping map[Role][]Permission) *RoleRules {
	rules := &RoleRules{byRole: make(map[Role]PermissionSet, len(mapping))}
	for role, perms := range mapping {
		rules.byRole[role] = Permissions(perms...)
	}
	return rules
}

// DefaultRoleRules は組み込みのロール定義を返します。
func DefaultRoleRules() *RoleRules {
	return NewRoleRules(map[Role][]Permission{
		RoleAdmin: AllPermissions(),
		RoleManager: {
			PermViewAllEmployees,
			PermManagePresence,
			PermViewAllReports,
			PermGenerateReports,
		},
		RoleRH:    AllPermissions(),
		RoleStaff: {PermManagePresence},
	})
}

// PermissionsFor は role に対応する権限を返します。
func (r *RoleRules) PermissionsFor(role Role) PermissionSet {
	if r == nil {
		return PermissionSet{}
	}
	return r.byRole[role]
}

// Grants は role が required のいずれかを持つかを返します。
func (r *RoleRules) Grants(role Role, required PermissionSet) bool {
	granted := r.PermissionsFor(role)
	for p := range required.items {
		if granted.Has(p) {
			return true
		}
	}
	return false
}
