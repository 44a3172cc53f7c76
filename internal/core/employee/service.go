package employee

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
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

	maxNameLength     = 100
	maxPositionLength = 100
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ().-]{4,20}$`)

// Endpoint は社員 API のアクセス宣言です。本人登録は誰でも、代理作成と削除は can_manage_employee が必要です。
var Endpoint = access.Endpoint{
	Name:     "employee",
	ViewAll:  access.Permissions(access.PermViewAllEmployees),
	Delegate: access.Permissions(access.PermManageEmployee),
	ActionRequired: map[access.Action]access.PermissionSet{
		access.ActionDelete: access.Permissions(access.PermManageEmployee),
	},
	ABAC: true,
}

// Service は社員に関するユースケースをまとめます。
type Service struct {
	repo   Repository
	policy *access.Policy
	clock  Clock
	tx     TransactionManager
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error
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

// CreateEmployeeInput は社員作成時の入力です。UserID が空なら本人として登録します。
type CreateEmployeeInput struct {
	UserID   string
	Name     string
	Position string
	Phone    *string
	Email    *string
}

// UpdateEmployeeInput は社員更新時の入力です。
type UpdateEmployeeInput struct {
	ID       string
	UserID   *string
	Name     *string
	Position *string
	Phone    *string
	PhoneSet bool
	Email    *string
	EmailSet bool
}

// DeleteEmployeeInput は社員削除時の入力です。
type DeleteEmployeeInput struct {
	ID string
}

// GetEmployeeInput は社員取得時の入力です。
type GetEmployeeInput struct {
	ID string
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	Search    string
	PageSize  int
	PageToken string
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees     []*Employee
	NextPageToken string
}

// CreateEmployee は新しい社員を作成します。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	res, d := s.policy.AuthorizeCreate(actor, Endpoint, access.EmployeeResource{OwnerID: strings.TrimSpace(in.UserID)})
	if !d.Allowed() {
		return nil, d.Err()
	}
	userID := res.(access.EmployeeResource).OwnerID

	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	position, err := normalizePosition(in.Position)
	if err != nil {
		return nil, err
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureUserHasNoEmployee(txCtx, userID); err != nil {
			return err
		}

		now := s.clock.Now()
		emp := &Employee{
			UserID:    userID,
			Name:      name,
			Position:  position,
			Phone:     phone,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}

		result, err := s.repo.Create(txCtx, emp)
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

// UpdateEmployee は社員情報を更新します。紐づくユーザーの変更は代理権限を持つ場合のみ可能です。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.loadVisible(txCtx, actor, in.ID, access.ActionUpdate)
		if err != nil {
			return err
		}

		if in.UserID != nil {
			userID := strings.TrimSpace(*in.UserID)
			if userID == "" {
				return ErrInvalidUserID
			}
			if userID != existing.UserID {
				if !s.policy.ActsForOthers(actor, Endpoint) {
					return access.DenyObject(access.CodeFieldRestricted, "only delegated actors may reassign the account")
				}
				if err := s.ensureUserHasNoEmployee(txCtx, userID); err != nil {
					return err
				}
				existing.UserID = userID
			}
		}

		if in.Name != nil {
			name, err := normalizeName(*in.Name)
			if err != nil {
				return err
			}
			existing.Name = name
		}

		if in.Position != nil {
			position, err := normalizePosition(*in.Position)
			if err != nil {
				return err
			}
			existing.Position = position
		}

		if in.PhoneSet {
			phone, err := normalizePhone(in.Phone)
			if err != nil {
				return err
			}
			existing.Phone = phone
		}

		if in.EmailSet {
			email, err := normalizeEmail(in.Email)
			if err != nil {
				return err
			}
			existing.Email = email
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

// DeleteEmployee は社員を削除します。
func (s *Service) DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error {
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

// GetEmployee は社員を取得します。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	actor, err := access.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var result *Employee
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

// ListEmployees は参照可能な社員の一覧を取得します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
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

	var (
		employees []*Employee
		nextToken string
	)

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		resultEmployees, token, err := s.repo.List(txCtx, ListEmployeesFilter{
			Scope:  s.policy.FilterScope(actor, Endpoint),
			Search: strings.TrimSpace(in.Search),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		employees = resultEmployees
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListEmployeesResult{Employees: employees, NextPageToken: nextToken}, nil
}

func (s *Service) loadVisible(ctx context.Context, actor *access.Actor, id string, action access.Action) (*Employee, error) {
	if d := s.policy.AuthorizeList(actor, Endpoint); !d.Allowed() {
		return nil, d.Err()
	}
	emp, err := s.repo.FindByID(ctx, id, s.policy.FilterScope(actor, Endpoint))
	if err != nil {
		return nil, err
	}
	if d := s.policy.AuthorizeObjectAccess(actor, Endpoint, emp.Resource(), action); !d.Allowed() {
		return nil, d.Err()
	}
	return emp, nil
}

func (s *Service) ensureUserHasNoEmployee(ctx context.Context, userID string) error {
	emp, err := s.repo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil {
		return ErrEmployeeAlreadyExists
	}
	return nil
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len([]rune(trimmed)) > maxNameLength {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func normalizePosition(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len([]rune(trimmed)) > maxPositionLength {
		return "", ErrInvalidPosition
	}
	return trimmed, nil
}

func normalizePhone(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	if !phonePattern.MatchString(trimmed) {
		return nil, ErrInvalidPhone
	}
	return &trimmed, nil
}

func normalizeEmail(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	lower := strings.ToLower(addr.Address)
	return &lower, nil
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
