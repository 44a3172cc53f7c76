package report

import (
	"context"
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

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
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
	maxContentLength    = 20000
)

// Endpoint はレポート API のアクセス宣言です。
var Endpoint = access.Endpoint{
	Name:      "report",
	ViewAll:   access.Permissions(access.PermViewAllReports),
	Delegate:  access.Permissions(access.PermGenerateReports),
	AdminOnly: []access.Action{access.ActionDelete},
	ABAC:      true,
}

// Service はレポートに関するユースケースをまとめます。
type Service struct {
	repo   Repository
	policy *access.Policy
	clock  Clock
	tx     TransactionManager
}

// UseCase はレポートユースケースの公開インターフェースです。
type UseCase interface {
	CreateReport(ctx context.Context, in CreateReportInput) (*Report, error)
	GetReport(ctx context.Context, in GetReportInput) (*Report, error)
	ListReports(ctx context.Context, in ListReportsInput) (*ListReportsResult, error)
	UpdateReport(ctx context.Context, in UpdateReportInput) (*Report, error)
	DeleteReport(ctx context.Context, in DeleteReportInput) error
}

// NewService は Service を生成します。
func NewService(repo Repository, policy *access.Policy, clock Clock, tx TransactionManager) *Service {
	if policy == nil {
		policy = access.NewPolicy(nil)
	}
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, policy: policy, clock: clock, tx: tx}
}

// CreateReportInput はレポート作成時の入力です。EmployeeID が空なら本人のレポートです。
type CreateReportInput struct {
	EmployeeID string
	Type       Type
	StartDate  time.Time
	EndDate    time.Time
	Content    string
}

// UpdateReportInput はレポート更新時の入力です。
type UpdateReportInput struct {
	ID        string
	Type      *Type
	StartDate *time.Time
	EndDate   *time.Time
	Content   *string
}

// DeleteReportInput はレポート削除時の入力です。
type DeleteReportInput struct {
	ID string
}

// GetReportInput はレポート取得時の入力です。
type GetReportInput struct {
	ID string
}

// ListReportsInput は一覧取得時の入力です。
type ListReportsInput struct {
	EmployeeID string
	Type       *Type
	PageSize   int
	PageToken  string
}

// ListReportsResult は一覧取得結果を表します。
type ListReportsResult struct {
	Reports       []*Report
	NextPageToken string
}

// CreateReport はレポートを作成します。
func (s *Service) CreateReport(ctx context.Context, in CreateReportInput) (*Report, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	res, d := s.policy.AuthorizeCreate(actor, Endpoint, access.ReportResource{
		Employee: access.EmployeeResource{ID: strings.TrimSpace(in.EmployeeID)},
	})
	if !d.Allowed() {
		return nil, d.Err()
	}
	target := res.(access.ReportResource)

	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	r := &Report{
		EmployeeID: target.Employee.ID,
		Type:       Type(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		StartDate:  dateOf(in.StartDate),
		EndDate:    dateOf(in.EndDate),
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var created *Report
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindEmployee(txCtx, r.EmployeeID); err != nil {
			return err
		}
		result, err := s.repo.Create(txCtx, r)
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateReport はレポートを更新します。
func (s *Service) UpdateReport(ctx context.Context, in UpdateReportInput) (*Report, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var updated *Report
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.loadVisible(txCtx, actor, in.ID, access.ActionUpdate)
		if err != nil {
			return err
		}

		if in.Type != nil {
			existing.Type = Type(strings.ToLower(strings.TrimSpace(string(*in.Type))))
		}
		if in.StartDate != nil {
			existing.StartDate = dateOf(*in.StartDate)
		}
		if in.EndDate != nil {
			existing.EndDate = dateOf(*in.EndDate)
		}
		if in.Content != nil {
			content, err := normalizeContent(*in.Content)
			if err != nil {
				return err
			}
			existing.Content = content
		}
		if err := existing.Validate(); err != nil {
			return err
		}

		existing.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteReport はレポートを削除します。管理者のみ実行できます。
func (s *Service) DeleteReport(ctx context.Context, in DeleteReportInput) error {
	if strings.TrimSpace(in.ID) == "" {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return err
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.loadVisible(txCtx, actor, in.ID, access.ActionDelete); err != nil {
			return err
		}
		return s.repo.Delete(txCtx, in.ID)
	})
}

// GetReport はレポートを取得します。
func (s *Service) GetReport(ctx context.Context, in GetReportInput) (*Report, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var result *Report
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.loadVisible(txCtx, actor, in.ID, access.ActionRetrieve)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListReports は参照可能なレポートの一覧を取得します。
func (s *Service) ListReports(ctx context.Context, in ListReportsInput) (*ListReportsResult, error) {
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

	var typePtr *Type
	if in.Type != nil {
		if !isValidType(*in.Type) {
			return nil, ErrInvalidType
		}
		t := *in.Type
		typePtr = &t
	}

	reports, nextToken, err := s.repo.List(ctx, ListReportsFilter{
		Scope:      s.policy.FilterScope(actor, Endpoint),
		EmployeeID: strings.TrimSpace(in.EmployeeID),
		Type:       typePtr,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}

	return &ListReportsResult{Reports: reports, NextPageToken: nextToken}, nil
}

func (s *Service) loadVisible(ctx context.Context, actor *access.Actor, id string, action access.Action) (*Report, error) {
	if d := s.policy.AuthorizeList(actor, Endpoint); !d.Allowed() {
		return nil, d.Err()
	}
	r, err := s.repo.FindByID(ctx, id, s.policy.FilterScope(actor, Endpoint))
	if err != nil {
		return nil, err
	}
	if d := s.policy.AuthorizeObjectAccess(actor, Endpoint, r.Resource(), action); !d.Allowed() {
		return nil, d.Err()
	}
	return r, nil
}

func normalizeContent(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxContentLength {
		return "", ErrInvalidContent
	}
	return trimmed, nil
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
