package user

import (
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// User は認可判定に必要なアカウント情報です。資格情報は扱いません。
type User struct {
	ID          string
	Username    string
	Email       string
	Role        access.Role
	Superuser   bool
	Active      bool
	EmployeeID  string
	Groups      []string
	Permissions []access.Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Group は権限をまとめたグループです。
type Group struct {
	Name        string
	Permissions []access.Permission
}

const (
	GroupAdmin    = "Admin"
	GroupManagers = "Managers"
	GroupRH       = "RH"
	GroupStaff    = "Staff"
)

// GroupFor はアカウントが所属すべきグループ名を返します。
func GroupFor(u *User) string {
	if u.Superuser {
		return GroupAdmin
	}
	switch u.Role {
	case access.RoleAdmin:
		return GroupAdmin
	case access.RoleManager:
		return GroupManagers
	case access.RoleRH:
		return GroupRH
	default:
		return GroupStaff
	}
}

// DefaultGroups はロール定義から標準グループを組み立てます。
func DefaultGroups(rules *access.RoleRules) []Group {
	if rules == nil {
		rules = access.DefaultRoleRules()
	}
	return []Group{
		{Name: GroupAdmin, Permissions: rules.PermissionsFor(access.RoleAdmin).Slice()},
		{Name: GroupManagers, Permissions: rules.PermissionsFor(access.RoleManager).Slice()},
		{Name: GroupRH, Permissions: rules.PermissionsFor(access.RoleRH).Slice()},
		{Name: GroupStaff, Permissions: rules.PermissionsFor(access.RoleStaff).Slice()},
	}
}
