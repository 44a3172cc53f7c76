package access

import "strings"

// Role は認証済みアカウントが持つロールです。
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleRH      Role = "rh"
	RoleStaff   Role = "staff"
)

// ParseRole は保存されたロール名を正規化します。未知のロールはルールファイルで拡張できるようそのまま残します。
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Elevated は組織全体を参照できるロールかどうかを返します。
func (r Role) Elevated() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleRH:
		return true
	default:
		return false
	}
}

// Actor はポリシー判定の対象となる認証済みの呼び出し元です。
type Actor struct {
	ID        string
	Role      Role
	Superuser bool
	Groups    []string
	// EmployeeID は紐づく社員 ID です。紐づきがない場合は空です。
	EmployeeID string
	// DirectPermissions はアカウントに直接付与された権限です。
	DirectPermissions []Permission
	// GroupPermissions はグループ経由で付与された権限です。キーはグループ名です。
	GroupPermissions map[string][]Permission
}

// InGroup は指定グループに所属しているかを返します。
func (a *Actor) InGroup(name string) bool {
	if a == nil {
		return false
	}
	for _, g := range a.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// HasLinkedEmployee は社員レコードに紐づいているかを返します。
func (a *Actor) HasLinkedEmployee() bool {
	return a != nil && a.EmployeeID != ""
}

// IsAdmin は管理者またはスーパーユーザーかを返します。
func (a *Actor) IsAdmin() bool {
	return a != nil && (a.Superuser || a.Role == RoleAdmin)
}

// IsElevated は所有者チェックを免除されるかを返します。
func (a *Actor) IsElevated() bool {
	return a != nil && (a.Superuser || a.Role.Elevated())
}
