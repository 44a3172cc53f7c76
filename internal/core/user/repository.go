package user

import (
	"context"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// Repository はユーザーとグループの永続化を行うインターフェースです。
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	GroupPermissions(ctx context.Context, groups []string) (map[string][]access.Permission, error)
	EnsurePermission(ctx context.Context, perm access.Permission) (bool, error)
	EnsureGroup(ctx context.Context, group Group) (bool, error)
	SetGroups(ctx context.Context, userID string, groups []string) error
	CreateEmployee(ctx context.Context, u *User, position string) error
}
