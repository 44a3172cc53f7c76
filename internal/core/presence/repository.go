package presence

import (
	"context"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// Repository は出勤記録の永続化を行うインターフェースです。
// (社員, 日付) の一意性はストアが保証し、違反は ErrDuplicatePresence になります。
type Repository interface {
	Create(ctx context.Context, p *Presence) (*Presence, error)
	Update(ctx context.Context, p *Presence) (*Presence, error)
	SaveArrival(ctx context.Context, p *Presence) (*Presence, error)
	SaveDeparture(ctx context.Context, p *Presence) (*Presence, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string, scope access.Scope) (*Presence, error)
	FindByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*Presence, error)
	List(ctx context.Context, filter ListFilter) ([]*Presence, string, error)
	ListRange(ctx context.Context, filter RangeFilter) ([]*Presence, error)
	FindEmployee(ctx context.Context, id string) (*EmployeeSnapshot, error)
}

// ListFilter は一覧取得用フィルタです。Scope は常に適用されます。
type ListFilter struct {
	Scope      access.Scope
	EmployeeID string
	From       *time.Time
	To         *time.Time
	Status     *Status
	Limit      int
	Offset     int
}

// RangeFilter は期間指定でページングせずに取得するためのフィルタです。
type RangeFilter struct {
	Scope      access.Scope
	EmployeeID string
	From       time.Time
	To         time.Time
}
