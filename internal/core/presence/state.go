package presence

import "time"

// WorkState は勤務時間の算出可否を表します。
type WorkState int

const (
	WorkNotComputable WorkState = iota
	WorkInProgress
	WorkComplete
)

func (s WorkState) String() string {
	switch s {
	case WorkInProgress:
		return "in_progress"
	case WorkComplete:
		return "complete"
	default:
		return "not_computable"
	}
}

// RecordArrival は出勤を記録します。エラー時は記録を変更しません。
func (p *Presence) RecordArrival(now time.Time) error {
	if p.ArrivalTime != nil {
		return ErrAlreadyRecorded
	}
	arrival := TimeOfDayOf(now)
	p.ArrivalTime = &arrival
	p.Status = StatusArrived
	p.UpdatedAt = now
	return nil
}

// RecordDeparture は退勤を記録します。エラー時は記録を変更しません。
func (p *Presence) RecordDeparture(now time.Time) error {
	if p.ArrivalTime == nil {
		return ErrArrivalMissing
	}
	if p.DepartureTime != nil {
		return ErrAlreadyRecorded
	}
	departure := TimeOfDayOf(now)
	if departure <= *p.ArrivalTime {
		return ErrInvalidTimeOrder
	}
	p.DepartureTime = &departure
	p.Status = StatusDeparted
	p.UpdatedAt = now
	return nil
}

// WorkedDuration は出勤から退勤までの時間を返します。日付をまたぐ勤務は扱いません。
func (p *Presence) WorkedDuration() (time.Duration, WorkState) {
	switch {
	case p.ArrivalTime != nil && p.DepartureTime != nil:
		return p.DepartureTime.Duration() - p.ArrivalTime.Duration(), WorkComplete
	case p.ArrivalTime != nil:
		return 0, WorkInProgress
	default:
		return 0, WorkNotComputable
	}
}

// Validate は保存前に記録の整合性を検証します。
func (p *Presence) Validate() error {
	if p.ArrivalTime == nil && p.DepartureTime != nil {
		return ErrArrivalMissing
	}
	if p.ArrivalTime != nil && p.DepartureTime != nil && *p.DepartureTime <= *p.ArrivalTime {
		return ErrInvalidTimeOrder
	}
	if !isValidStatus(p.Status) {
		return ErrInvalidStatus
	}
	if p.Status != DeriveStatus(p.ArrivalTime, p.DepartureTime) {
		return ErrStatusMismatch
	}
	return nil
}

// DeriveStatus は記録された時刻から状態を導出します。
func DeriveStatus(arrival, departure *TimeOfDay) Status {
	switch {
	case arrival != nil && departure != nil:
		return StatusDeparted
	case arrival != nil:
		return StatusArrived
	default:
		return StatusAbsent
	}
}
