package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type localClock struct {
	loc *time.Location
}

func (c localClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// LocalClock は loc の壁時計を返します。「今日」の判定はこのタイムゾーンで行われます。
func LocalClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return localClock{loc: loc}
}

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

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

var (
	// Endpoint は出勤記録 API のアクセス宣言です。
	Endpoint = access.Endpoint{
		Name:      "presence",
		Required:  access.Permissions(access.PermManagePresence),
		ViewAll:   access.Permissions(access.PermViewAllEmployees),
		AdminOnly: []access.Action{access.ActionDelete},
		ABAC:      true,
	}
	// BoardEndpoint は日次ボードのアクセス宣言です。
	BoardEndpoint = access.Endpoint{
		Name:          "presence.board",
		Required:      access.Permissions(access.PermManagePresence),
		AllowedGroups: access.Groups("Admin", "Managers", "RH"),
	}
)

// Service は出勤記録に関するユースケースをまとめます。
type Service struct {
	repo   Repository
	policy *access.Policy
	clock  Clock
	tx     TransactionManager
}

// UseCase は出勤記録ユースケースの公開インターフェースです。
type UseCase interface {
	CreatePresence(ctx context.Context, in CreatePresenceInput) (*Presence, error)
	GetPresence(ctx context.Context, in GetPresenceInput) (*Presence, error)
	ListPresences(ctx context.Context, in ListPresencesInput) (*ListPresencesResult, error)
	UpdatePresence(ctx context.Context, in UpdatePresenceInput) (*Presence, error)
	DeletePresence(ctx context.Context, in DeletePresenceInput) error
	RecordArrival(ctx context.Context, in RecordArrivalInput) (*Presence, error)
	RecordDeparture(ctx context.Context, in RecordDepartureInput) (*Presence, error)
	CheckIn(ctx context.Context) (*Presence, error)
	CheckOut(ctx context.Context) (*Presence, error)
	Today(ctx context.Context) (*Presence, error)
	Stats(ctx context.Context, in StatsInput) (*Stats, error)
	Board(ctx context.Context, in BoardInput) (*Board, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, policy *access.Policy, clock Clock, tx TransactionManager) *Service {
	if policy == nil {
		policy = access.NewPolicy(nil)
	}
	if clock == nil {
		clock = LocalClock(time.UTC)
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, policy: policy, clock: clock, tx: tx}
}

// CreatePresenceInput は出勤記録作成時の入力です。
type CreatePresenceInput struct {
	EmployeeID    string
	Date          *time.Time
	ArrivalTime   *TimeOfDay
	DepartureTime *TimeOfDay
	Note          *string
}

// GetPresenceInput は出勤記録取得時の入力です。
type GetPresenceInput struct {
	ID string
}

// ListPresencesInput は一覧取得時の入力です。
type ListPresencesInput struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
	Status     *Status
	PageSize   int
	PageToken  string
}

// ListPresencesResult は一覧取得結果を表します。
type ListPresencesResult struct {
	Presences     []*Presence
	NextPageToken string
}

// UpdatePresenceInput は出勤記録更新時の入力です。
type UpdatePresenceInput struct {
	ID               string
	Date             *time.Time
	ArrivalTime      *TimeOfDay
	ArrivalTimeSet   bool
	DepartureTime    *TimeOfDay
	DepartureTimeSet bool
	Note             *string
	NoteSet          bool
}

// DeletePresenceInput は出勤記録削除時の入力です。
type DeletePresenceInput struct {
	ID string
}

// RecordArrivalInput は出勤打刻の入力です。
type RecordArrivalInput struct {
	ID string
}

// RecordDepartureInput は退勤打刻の入力です。
type RecordDepartureInput struct {
	ID string
}

// StatsInput は勤務統計の入力です。EmployeeID が空なら本人の統計です。
type StatsInput struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
}

// Stats は期間内の勤務統計です。
type Stats struct {
	EmployeeID    string
	From          time.Time
	To            time.Time
	DaysRecorded  int
	DaysArrived   int
	DaysCompleted int
	TotalWorked   time.Duration
	AverageWorked time.Duration
}

// BoardInput は日次ボードの入力です。
type BoardInput struct {
	Date *time.Time
}

// Board は一日分の出勤状況です。
type Board struct {
	Date      time.Time
	Presences []*Presence
	Absent    int
	Arrived   int
	Departed  int
}

// CreatePresence は出勤記録を作成します。一般ユーザーは本人の当日分のみ作成できます。
func (s *Service) CreatePresence(ctx context.Context, in CreatePresenceInput) (*Presence, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	res, d := s.policy.AuthorizeCreate(actor, Endpoint, access.PresenceResource{
		Employee: access.EmployeeResource{ID: strings.TrimSpace(in.EmployeeID)},
	})
	if !d.Allowed() {
		return nil, d.Err()
	}
	target := res.(access.PresenceResource)

	now := s.clock.Now()
	today := DateOf(now)
	date := today
	if in.Date != nil {
		date = DateOf(*in.Date)
	}

	if !s.policy.ActsForOthers(actor, Endpoint) {
		if !date.Equal(today) {
			return nil, access.DenyObject(access.CodeNotToday, "only today's presence can be recorded")
		}
		if in.ArrivalTime != nil || in.DepartureTime != nil {
			return nil, access.DenyObject(access.CodeFieldRestricted, "only the note can be set")
		}
	}

	p := &Presence{
		EmployeeID:    target.Employee.ID,
		Date:          date,
		ArrivalTime:   in.ArrivalTime,
		DepartureTime: in.DepartureTime,
		Note:          normalizeNote(in.Note),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.Status = DeriveStatus(p.ArrivalTime, p.DepartureTime)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var created *Presence
	err = s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindEmployee(ctx, p.EmployeeID); err != nil {
			return err
		}
		if err := s.ensureNotRecorded(ctx, p.EmployeeID, p.Date); err != nil {
			return err
		}
		var err error
		created, err = s.repo.Create(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetPresence は参照可能な範囲から出勤記録を取得します。
func (s *Service) GetPresence(ctx context.Context, in GetPresenceInput) (*Presence, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var p *Presence
	err = s.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.loadVisible(ctx, actor, in.ID, access.ActionRetrieve)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPresences は参照可能な出勤記録の一覧を取得します。
func (s *Service) ListPresences(ctx context.Context, in ListPresencesInput) (*ListPresencesResult, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if d := s.policy.AuthorizeList(actor, Endpoint); !d.Allowed() {
		return nil, d.Err()
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}
	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}
	from, to, err := normalizeRange(in.From, in.To)
	if err != nil {
		return nil, err
	}

	var statusPtr *Status
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		status := *in.Status
		statusPtr = &status
	}

	presences, nextToken, err := s.repo.List(ctx, ListFilter{
		Scope:      s.policy.FilterScope(actor, Endpoint),
		EmployeeID: strings.TrimSpace(in.EmployeeID),
		From:       from,
		To:         to,
		Status:     statusPtr,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}

	return &ListPresencesResult{
		Presences:     presences,
		NextPageToken: nextToken,
	}, nil
}

// UpdatePresence は出勤記録を更新します。一般ユーザーは当日分の備考のみ変更できます。
func (s *Service) UpdatePresence(ctx context.Context, in UpdatePresenceInput) (*Presence, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var updated *Presence
	err = s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		existing, err := s.loadVisible(ctx, actor, in.ID, access.ActionUpdate)
		if err != nil {
			return err
		}
		if err := s.checkSelfService(actor, existing, now); err != nil {
			return err
		}
		if !s.policy.ActsForOthers(actor, Endpoint) && (in.Date != nil || in.ArrivalTimeSet || in.DepartureTimeSet) {
			return access.DenyObject(access.CodeFieldRestricted, "only the note can be changed")
		}

		dateChanged := false
		if in.Date != nil {
			date := DateOf(*in.Date)
			dateChanged = !date.Equal(existing.Date)
			existing.Date = date
		}
		if in.ArrivalTimeSet {
			existing.ArrivalTime = in.ArrivalTime
		}
		if in.DepartureTimeSet {
			existing.DepartureTime = in.DepartureTime
		}
		if in.NoteSet {
			existing.Note = normalizeNote(in.Note)
		}
		existing.Status = DeriveStatus(existing.ArrivalTime, existing.DepartureTime)
		existing.UpdatedAt = now

		if err := existing.Validate(); err != nil {
			return err
		}
		if dateChanged {
			if err := s.ensureNotRecorded(ctx, existing.EmployeeID, existing.Date); err != nil {
				return err
			}
		}

		updated, err = s.repo.Update(ctx, existing)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePresence は出勤記録を削除します。管理者のみ実行できます。
func (s *Service) DeletePresence(ctx context.Context, in DeletePresenceInput) error {
	if strings.TrimSpace(in.ID) == "" {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return err
	}

	return s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		if _, err := s.loadVisible(ctx, actor, in.ID, access.ActionDelete); err != nil {
			return err
		}
		return s.repo.Delete(ctx, in.ID)
	})
}

// RecordArrival は指定された出勤記録に出勤時刻を記録します。
func (s *Service) RecordArrival(ctx context.Context, in RecordArrivalInput) (*Presence, error) {
	return s.transition(ctx, in.ID, func(p *Presence, now time.Time) error {
		return p.RecordArrival(now)
	}, s.repo.SaveArrival)
}

// RecordDeparture は指定された出勤記録に退勤時刻を記録します。
func (s *Service) RecordDeparture(ctx context.Context, in RecordDepartureInput) (*Presence, error) {
	return s.transition(ctx, in.ID, func(p *Presence, now time.Time) error {
		return p.RecordDeparture(now)
	}, s.repo.SaveDeparture)
}

func (s *Service) transition(
	ctx context.Context,
	id string,
	apply func(*Presence, time.Time) error,
	save func(context.Context, *Presence) (*Presence, error),
) (*Presence, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var saved *Presence
	err = s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		p, err := s.loadVisible(ctx, actor, id, access.ActionUpdate)
		if err != nil {
			return err
		}
		if err := s.checkSelfService(actor, p, now); err != nil {
			return err
		}
		if err := apply(p, now); err != nil {
			return err
		}
		saved, err = save(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// CheckIn は本人の当日の出勤を記録します。当日の記録がなければ作成してから打刻します。
func (s *Service) CheckIn(ctx context.Context) (*Presence, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	emp, d := s.policy.BindEmployee(actor, Endpoint, access.ActionCreate, access.EmployeeResource{})
	if !d.Allowed() {
		return nil, d.Err()
	}
	now := s.clock.Now()
	today := DateOf(now)

	var saved *Presence
	err = s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		p, err := s.repo.FindByEmployeeAndDate(ctx, emp.ID, today)
		switch {
		case errors.Is(err, ErrPresenceNotFound):
			p, err = s.repo.Create(ctx, &Presence{
				EmployeeID: emp.ID,
				Date:       today,
				Status:     StatusAbsent,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if err := p.RecordArrival(now); err != nil {
			return err
		}
		saved, err = s.repo.SaveArrival(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// CheckOut は本人の当日の退勤を記録します。
func (s *Service) CheckOut(ctx context.Context) (*Presence, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	emp, d := s.policy.BindEmployee(actor, Endpoint, access.ActionUpdate, access.EmployeeResource{})
	if !d.Allowed() {
		return nil, d.Err()
	}
	now := s.clock.Now()

	var saved *Presence
	err = s.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		p, err := s.repo.FindByEmployeeAndDate(ctx, emp.ID, DateOf(now))
		if err != nil {
			return err
		}
		if err := p.RecordDeparture(now); err != nil {
			return err
		}
		saved, err = s.repo.SaveDeparture(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Today は本人の当日の出勤記録を返します。
func (s *Service) Today(ctx context.Context) (*Presence, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	emp, d := s.policy.BindEmployee(actor, Endpoint, access.ActionRetrieve, access.EmployeeResource{})
	if !d.Allowed() {
		return nil, d.Err()
	}
	return s.repo.FindByEmployeeAndDate(ctx, emp.ID, DateOf(s.clock.Now()))
}

// Stats は期間内の勤務統計を返します。期間の既定値は当月です。
func (s *Service) Stats(ctx context.Context, in StatsInput) (*Stats, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	requested := strings.TrimSpace(in.EmployeeID)
	emp, d := s.policy.BindEmployee(actor, Endpoint, access.ActionRetrieve, access.EmployeeResource{ID: requested})
	if !d.Allowed() {
		return nil, d.Err()
	}

	from, to := monthOf(s.clock.Now())
	if in.From != nil {
		from = DateOf(*in.From)
	}
	if in.To != nil {
		to = DateOf(*in.To)
	}
	if to.Before(from) {
		return nil, ErrInvalidDateRange
	}

	var presences []*Presence
	err = s.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		if requested != "" {
			if _, err := s.repo.FindEmployee(ctx, emp.ID); err != nil {
				return err
			}
		}
		var err error
		presences, err = s.repo.ListRange(ctx, RangeFilter{
			Scope:      s.policy.FilterScope(actor, Endpoint),
			EmployeeID: emp.ID,
			From:       from,
			To:         to,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	stats := &Stats{EmployeeID: emp.ID, From: from, To: to}
	for _, p := range presences {
		stats.DaysRecorded++
		worked, state := p.WorkedDuration()
		switch state {
		case WorkComplete:
			stats.DaysArrived++
			stats.DaysCompleted++
			stats.TotalWorked += worked
		case WorkInProgress:
			stats.DaysArrived++
		}
	}
	if stats.DaysCompleted > 0 {
		stats.AverageWorked = stats.TotalWorked / time.Duration(stats.DaysCompleted)
	}
	return stats, nil
}

// Board は指定日の出勤状況を返します。Admin / Managers / RH グループのみ参照できます。
func (s *Service) Board(ctx context.Context, in BoardInput) (*Board, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if d := s.policy.AuthorizeList(actor, BoardEndpoint); !d.Allowed() {
		return nil, d.Err()
	}

	date := DateOf(s.clock.Now())
	if in.Date != nil {
		date = DateOf(*in.Date)
	}

	presences, err := s.repo.ListRange(ctx, RangeFilter{
		Scope: s.policy.FilterScope(actor, Endpoint),
		From:  date,
		To:    date,
	})
	if err != nil {
		return nil, err
	}

	board := &Board{Date: date, Presences: presences}
	for _, p := range presences {
		switch p.Status {
		case StatusAbsent:
			board.Absent++
		case StatusArrived:
			board.Arrived++
		case StatusDeparted:
			board.Departed++
		}
	}
	return board, nil
}

// loadVisible は権限チェック後に Scope 内から記録を読み込み、対象操作の可否を判定します。
// Scope 外の記録は ErrPresenceNotFound になります。
func (s *Service) loadVisible(ctx context.Context, actor *access.Actor, id string, action access.Action) (*Presence, error) {
	if d := s.policy.AuthorizeList(actor, Endpoint); !d.Allowed() {
		return nil, d.Err()
	}
	p, err := s.repo.FindByID(ctx, id, s.policy.FilterScope(actor, Endpoint))
	if err != nil {
		return nil, err
	}
	if d := s.policy.AuthorizeObjectAccess(actor, Endpoint, p.Resource(), action); !d.Allowed() {
		return nil, d.Err()
	}
	return p, nil
}

func (s *Service) checkSelfService(actor *access.Actor, p *Presence, now time.Time) error {
	if s.policy.ActsForOthers(actor, Endpoint) {
		return nil
	}
	if !p.Date.Equal(DateOf(now)) {
		return access.DenyObject(access.CodeNotToday, "only today's presence can be modified")
	}
	return nil
}

func (s *Service) ensureNotRecorded(ctx context.Context, employeeID string, date time.Time) error {
	p, err := s.repo.FindByEmployeeAndDate(ctx, employeeID, date)
	if err != nil && !errors.Is(err, ErrPresenceNotFound) {
		return err
	}
	if p != nil {
		return ErrDuplicatePresence
	}
	return nil
}

func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeRange(from, to *time.Time) (*time.Time, *time.Time, error) {
	var fromPtr, toPtr *time.Time
	if from != nil {
		d := DateOf(*from)
		fromPtr = &d
	}
	if to != nil {
		d := DateOf(*to)
		toPtr = &d
	}
	if fromPtr != nil && toPtr != nil && toPtr.Before(*fromPtr) {
		return nil, nil, ErrInvalidDateRange
	}
	return fromPtr, toPtr, nil
}

func monthOf(now time.Time) (time.Time, time.Time) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
