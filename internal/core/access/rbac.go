package access

// RBAC はロール定義と付与権限からアクション単位の可否を判定します。
type RBAC struct {
	rules *RoleRules
}

// NewRBAC は RBAC を生成します。rules が nil の場合は組み込み定義を使います。
func NewRBAC(rules *RoleRules) RBAC {
	if rules == nil {
		rules = DefaultRoleRules()
	}
	return RBAC{rules: rules}
}

// HasPermission は actor が required のいずれかを持つかを返します。required が空なら常に許可します。
// 管理者とスーパーユーザーはロール定義に関係なく常に許可されます。
func (e RBAC) HasPermission(actor *Actor, required PermissionSet) bool {
	if required.Empty() {
		return true
	}
	if actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	if e.rules.Grants(actor.Role, required) {
		return true
	}
	if matchesAny(actor.DirectPermissions, required) {
		return true
	}
	for _, group := range actor.Groups {
		if matchesAny(actor.GroupPermissions[group], required) {
			return true
		}
	}
	return false
}

// matchesAny は付与権限をコード名で比較します。
func matchesAny(granted []Permission, required PermissionSet) bool {
	for _, g := range granted {
		code := g.Codename()
		for r := range required.items {
			if r.Codename() == code {
				return true
			}
		}
	}
	return false
}
