package user

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// DefaultEmployeePosition はグループ設定で自動作成する社員の職位です。
const DefaultEmployeePosition = "Employee"

// Service はアカウントに関するユースケースをまとめます。
type Service struct {
	repo  Repository
	rules *access.RoleRules
	tx    TransactionManager
}

// ActorResolver は認証済みのアカウント ID から Actor を組み立てます。
type ActorResolver interface {
	ResolveActor(ctx context.Context, id string) (*access.Actor, error)
}

// UseCase はアカウントユースケースの公開インターフェースです。
type UseCase interface {
	ActorResolver
	SetupGroups(ctx context.Context, in SetupGroupsInput) (*SetupGroupsResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, rules *access.RoleRules, tx TransactionManager) *Service {
	if rules == nil {
		rules = access.DefaultRoleRules()
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, rules: rules, tx: tx}
}

// SetupGroupsInput はグループ設定の入力です。
type SetupGroupsInput struct {
	DryRun          bool
	CreateEmployees bool
}

// Assignment はアカウントに割り当てたグループです。
type Assignment struct {
	UserID   string
	Username string
	Group    string
	Changed  bool
}

// SetupGroupsResult はグループ設定の結果です。
type SetupGroupsResult struct {
	DryRun             bool
	PermissionsCreated []access.Permission
	Groups             []Group
	GroupsCreated      []string
	Assignments        []Assignment
	Members            map[string]int
	EmployeesCreated   []string
}

// ResolveActor はアカウントを読み込み Actor を返します。存在しない、または無効なアカウントは
// access.ErrUnauthenticated になります。
func (s *Service) ResolveActor(ctx context.Context, id string) (*access.Actor, error) {
	if strings.TrimSpace(id) == "" {
		return nil, access.ErrUnauthenticated
	}

	var actor *access.Actor
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		u, err := s.repo.FindByID(txCtx, id)
		if errors.Is(err, ErrUserNotFound) {
			return access.ErrUnauthenticated
		}
		if err != nil {
			return err
		}
		if !u.Active {
			return access.ErrUnauthenticated
		}

		groupPerms, err := s.repo.GroupPermissions(txCtx, u.Groups)
		if err != nil {
			return err
		}

		actor = &access.Actor{
			ID:                u.ID,
			Role:              u.Role,
			Superuser:         u.Superuser,
			Groups:            append([]string(nil), u.Groups...),
			EmployeeID:        u.EmployeeID,
			DirectPermissions: append([]access.Permission(nil), u.Permissions...),
			GroupPermissions:  groupPerms,
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return actor, nil
}

// SetupGroups は権限と標準グループを用意し、全アカウントをロールに応じたグループへ一つだけ割り当てます。
// DryRun の場合は何も書き込まず、実行予定の内容を返します。
func (s *Service) SetupGroups(ctx context.Context, in SetupGroupsInput) (*SetupGroupsResult, error) {
	groups := DefaultGroups(s.rules)
	result := &SetupGroupsResult{
		DryRun:  in.DryRun,
		Groups:  groups,
		Members: make(map[string]int, len(groups)),
	}

	run := s.tx.WithinReadWrite
	if in.DryRun {
		run = s.tx.WithinReadOnly
	}

	if err := run(ctx, func(txCtx context.Context) error {
		if !in.DryRun {
			for _, perm := range access.AllPermissions() {
				created, err := s.repo.EnsurePermission(txCtx, perm)
				if err != nil {
					return err
				}
				if created {
					result.PermissionsCreated = append(result.PermissionsCreated, perm)
				}
			}
			for _, g := range groups {
				created, err := s.repo.EnsureGroup(txCtx, g)
				if err != nil {
					return err
				}
				if created {
					result.GroupsCreated = append(result.GroupsCreated, g.Name)
				}
			}
		}

		users, err := s.repo.List(txCtx)
		if err != nil {
			return err
		}
		sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

		for _, u := range users {
			target := GroupFor(u)
			changed := len(u.Groups) != 1 || u.Groups[0] != target
			if changed && !in.DryRun {
				if err := s.repo.SetGroups(txCtx, u.ID, []string{target}); err != nil {
					return err
				}
			}
			result.Assignments = append(result.Assignments, Assignment{
				UserID:   u.ID,
				Username: u.Username,
				Group:    target,
				Changed:  changed,
			})
			result.Members[target]++

			if in.CreateEmployees && u.EmployeeID == "" {
				if !in.DryRun {
					if err := s.repo.CreateEmployee(txCtx, u, DefaultEmployeePosition); err != nil {
						return err
					}
				}
				result.EmployeesCreated = append(result.EmployeesCreated, u.Username)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}
