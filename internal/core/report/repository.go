package report

import (
	"context"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// Repository はレポート永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, report *Report) (*Report, error)
	Update(ctx context.Context, report *Report) (*Report, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string, scope access.Scope) (*Report, error)
	List(ctx context.Context, filter ListReportsFilter) ([]*Report, string, error)
	FindEmployee(ctx context.Context, id string) (*EmployeeSnapshot, error)
}

// ListReportsFilter は一覧取得用フィルタです。
type ListReportsFilter struct {
	Scope      access.Scope
	EmployeeID string
	Type       *Type
	Limit      int
	Offset     int
}
