package presence

import (
	"fmt"
	"strings"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// Status は一日の出勤状態です。
type Status string

const (
	StatusAbsent   Status = "absent"
	StatusArrived  Status = "arrived"
	StatusDeparted Status = "departed"
)

// Presence は社員一人の一日分の出勤記録です。
type Presence struct {
	ID            string
	EmployeeID    string
	Date          time.Time
	ArrivalTime   *TimeOfDay
	DepartureTime *TimeOfDay
	Status        Status
	Note          *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Employee      *EmployeeSnapshot
}

// EmployeeSnapshot は出勤記録に結合された社員情報です。
type EmployeeSnapshot struct {
	ID     string
	UserID string
	Name   string
}

// OwnerID は社員を通じて記録を所有するアカウント ID を返します。
func (p *Presence) OwnerID() string {
	if p == nil || p.Employee == nil {
		return ""
	}
	return p.Employee.UserID
}

// TimeOfDay は 0 時からの経過時間で表す時刻です。
type TimeOfDay time.Duration

const timeOfDayLayout = "15:04:05"

// TimeOfDayOf は t の時刻部分をマイクロ秒精度で取り出します。
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	d += time.Duration(t.Nanosecond()).Truncate(time.Microsecond)
	return TimeOfDay(d)
}

// ParseTimeOfDay は "15:04:05" または "15:04" 形式を解析します。
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{timeOfDayLayout, "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t)
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format(timeOfDayLayout)
}

// DateOf は t の暦日を UTC の 0 時として返します。
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusAbsent, StatusArrived, StatusDeparted:
		return true
	default:
		return false
	}
}

// Resource は認可判定用のリソース表現を返します。
func (p *Presence) Resource() access.PresenceResource {
	res := access.PresenceResource{ID: p.ID, Employee: access.EmployeeResource{ID: p.EmployeeID}}
	if p.Employee != nil {
		res.Employee.OwnerID = p.Employee.UserID
	}
	return res
}
