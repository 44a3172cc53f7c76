package employee

import (
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// Employee は社員エンティティです。アカウント一つにつき社員は一人です。
type Employee struct {
	ID        string
	UserID    string
	Name      string
	Position  string
	Phone     *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
	User      *UserSnapshot
}

// UserSnapshot は社員に紐づくユーザー情報のスナップショットです。
type UserSnapshot struct {
	ID       string
	Username string
	Email    string
	Role     string
}

// Resource は認可判定用のリソース表現を返します。
func (e *Employee) Resource() access.EmployeeResource {
	return access.EmployeeResource{ID: e.ID, OwnerID: e.UserID}
}
