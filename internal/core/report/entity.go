package report

import (
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// Type はレポートの種別です。
type Type string

const (
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
	TypeAnnual  Type = "annual"
	TypeCustom  Type = "custom"
)

// Report は社員に紐づく期間レポートです。
type Report struct {
	ID         string
	EmployeeID string
	Type       Type
	StartDate  time.Time
	EndDate    time.Time
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Employee   *EmployeeSnapshot
}

// EmployeeSnapshot はレポートに結合された社員情報です。
type EmployeeSnapshot struct {
	ID     string
	UserID string
	Name   string
}

// Resource は認可判定用のリソース表現を返します。
func (r *Report) Resource() access.ReportResource {
	res := access.ReportResource{ID: r.ID, Employee: access.EmployeeResource{ID: r.EmployeeID}}
	if r.Employee != nil {
		res.Employee.OwnerID = r.Employee.UserID
	}
	return res
}

// Validate は保存前にレポートの整合性を検証します。
func (r *Report) Validate() error {
	if !isValidType(r.Type) {
		return ErrInvalidType
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return ErrInvalidDateRange
	}
	if r.EndDate.Before(r.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

func isValidType(t Type) bool {
	switch t {
	case TypeDaily, TypeWeekly, TypeMonthly, TypeAnnual, TypeCustom:
		return true
	default:
		return false
	}
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
