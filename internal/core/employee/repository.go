package employee

import (
	"context"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// Repository は社員永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string, scope access.Scope) (*Employee, error)
	FindByUserID(ctx context.Context, userID string) (*Employee, error)
	List(ctx context.Context, filter ListEmployeesFilter) ([]*Employee, string, error)
}

// ListEmployeesFilter は一覧取得用フィルタです。
type ListEmployeesFilter struct {
	Scope  access.Scope
	Search string
	Limit  int
	Offset int
}
