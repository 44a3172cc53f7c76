package access

import (
	"sort"
	"strings"
)

// Permission は完全一致で比較される権限名です。
type Permission string

const (
	PermViewAllEmployees Permission = "can_view_all_employees"
	PermManageEmployee   Permission = "can_manage_employee"
	PermManagePresence   Permission = "can_manage_presence"
	PermViewAllReports   Permission = "can_view_all_reports"
	PermGenerateReports  Permission = "can_generate_reports"
)

// AllPermissions は全権限を固定順で返します。
func AllPermissions() []Permission {
	return []Permission{
		PermViewAllEmployees,
		PermManageEmployee,
		PermManagePresence,
		PermViewAllReports,
		PermGenerateReports,
	}
}

// Codename は "api.can_manage_presence" のようなアプリラベルを取り除いた名前を返します。
func (p Permission) Codename() Permission {
	s := string(p)
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		return Permission(s[idx+1:])
	}
	return p
}

// PermissionSet は不変の権限集合です。
type PermissionSet struct {
	items map[Permission]struct{}
}

// Permissions は PermissionSet を生成します。空文字は無視します。
func Permissions(perms ...Permission) PermissionSet {
	set := PermissionSet{items: make(map[Permission]struct{}, len(perms))}
	for _, p := range perms {
		if strings.TrimSpace(string(p)) == "" {
			continue
		}
		set.items[p] = struct{}{}
	}
	return set
}

// Empty は集合が空かを返します。
func (s PermissionSet) Empty() bool {
	return len(s.items) == 0
}

func (s PermissionSet) Len() int {
	return len(s.items)
}

// Has は p が含まれるかを返します。
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s.items[p]
	return ok
}

// Slice は名前順に並べた権限を返します。
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s.items))
	for p := range s.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s PermissionSet) String() string {
	names := make([]string, 0, len(s.items))
	for _, p := range s.Slice() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// GroupSet は不変のグループ名集合です。
type GroupSet struct {
	items map[string]struct{}
}

// Groups は GroupSet を生成します。空文字は無視します。
func Groups(names ...string) GroupSet {
	set := GroupSet{items: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		set.items[n] = struct{}{}
	}
	return set
}

func (s GroupSet) Empty() bool {
	return len(s.items) == 0
}

func (s GroupSet) Has(name string) bool {
	_, ok := s.items[name]
	return ok
}

func (s GroupSet) String() string {
	names := make([]string, 0, len(s.items))
	for n := range s.items {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
