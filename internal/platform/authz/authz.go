package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

//go:embed model.conf
var embeddedModel string

// LoadRoleRules は Casbin のポリシーファイルからロールと権限の対応表を構築します。
// path が空なら組み込みの定義を返します。
//
// ファイルは "p, <role>, <permission>" と "g, <role>, <parent>" の行からなり、
// 継承した権限も含めて起動時に確定させます。
func LoadRoleRules(path string) (*access.RoleRules, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return access.DefaultRoleRules(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("authz: policy file: %w", err)
	}

	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("authz: load model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(path))
	if err != nil {
		return nil, fmt.Errorf("authz: load policy %s: %w", path, err)
	}

	return freeze(enforcer)
}

func freeze(enforcer *casbin.Enforcer) (*access.RoleRules, error) {
	policies, err := enforcer.GetPolicy()
	if err != nil {
		return nil, fmt.Errorf("authz: read policy: %w", err)
	}
	groupings, err := enforcer.GetGroupingPolicy()
	if err != nil {
		return nil, fmt.Errorf("authz: read grouping policy: %w", err)
	}

	known := make(map[access.Permission]bool)
	for _, p := range access.AllPermissions() {
		known[p] = true
	}

	roles := make(map[access.Role]string)
	for _, rule := range policies {
		if len(rule) < 2 {
			continue
		}
		if perm := access.Permission(rule[1]); !known[perm] {
			return nil, fmt.Errorf("authz: unknown permission %q for role %q", rule[1], rule[0])
		}
		roles[access.ParseRole(rule[0])] = rule[0]
	}
	for _, rule := range groupings {
		for _, name := range rule {
			roles[access.ParseRole(name)] = name
		}
	}

	mapping := make(map[access.Role][]access.Permission, len(roles))
	for role, subject := range roles {
		granted := []access.Permission{}
		for _, perm := range access.AllPermissions() {
			ok, err := enforcer.Enforce(subject, string(perm))
			if err != nil {
				return nil, fmt.Errorf("authz: evaluate %s/%s: %w", role, perm, err)
			}
			if ok {
				granted = append(granted, perm)
			}
		}
		mapping[role] = granted
	}

	return access.NewRoleRules(mapping), nil
}
