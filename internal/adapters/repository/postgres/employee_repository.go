package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/employee"
	pgdb "github.com/esperancehsu/Gestion-Presence/internal/platform/db/postgres"
	"github.com/jackc/pgx/v5"
)

const employeeColumns = `e.id, e.user_id, e.name, e.position, e.phone, e.email, e.created_at, e.updated_at,
               u.id, u.username, u.email, u.role`

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は社員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH inserted AS (
            INSERT INTO employees (user_id, name, position, phone, email, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING *
        )
        SELECT `+employeeColumns+`
          FROM inserted e
          JOIN users u ON u.id = e.user_id
    `,
		e.UserID,
		e.Name,
		e.Position,
		nullableString(e.Phone),
		nullableString(e.Email),
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return created, nil
}

// Update は社員情報を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH updated AS (
            UPDATE employees
               SET user_id = $1,
                   name = $2,
                   position = $3,
                   phone = $4,
                   email = $5,
                   updated_at = $6
             WHERE id = $7
            RETURNING *
        )
        SELECT `+employeeColumns+`
          FROM updated e
          JOIN users u ON u.id = e.user_id
    `,
		e.UserID,
		e.Name,
		e.Position,
		nullableString(e.Phone),
		nullableString(e.Email),
		e.UpdatedAt,
		e.ID,
	)

	updated, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return updated, nil
}

// Delete は社員を削除します。出勤記録とレポートも連鎖して削除されます。
func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// FindByID は scope の範囲内から ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string, scope access.Scope) (*employee.Employee, error) {
	var c conditions
	c.add("e.id = " + c.arg(id))
	c.scope(scope, "e.user_id")

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees e
          JOIN users u ON u.id = e.user_id`+c.where()+`
         LIMIT 1
    `, c.args...)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// FindByUserID はアカウントに紐づく社員を取得します。
func (r *EmployeeRepository) FindByUserID(ctx context.Context, userID string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees e
          JOIN users u ON u.id = e.user_id
         WHERE e.user_id = $1
         LIMIT 1
    `, userID)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// List は社員の一覧を名前順に取得します。Search は名前・職位・メールの部分一致です。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, string, error) {
	if filter.Limit <= 0 {
		return nil, "", employee.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", employee.ErrInvalidPageToken
	}

	var c conditions
	c.scope(filter.Scope, "e.user_id")
	if search := strings.TrimSpace(filter.Search); search != "" {
		placeholder := c.arg("%" + escapeLike(search) + "%")
		c.add("(e.name ILIKE " + placeholder + " OR e.position ILIKE " + placeholder + " OR e.email ILIKE " + placeholder + ")")
	}

	query := `
        SELECT ` + employeeColumns + `
          FROM employees e
          JOIN users u ON u.id = e.user_id` + c.where() + `
         ORDER BY e.name ASC, e.id ASC` + c.page(filter.Limit, filter.Offset)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, c.args...)
	if err != nil {
		return nil, "", translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0, filter.Limit)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, "", translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, "", translateEmployeePgError(err)
	}

	items, next := nextPage(employees, filter.Limit, filter.Offset)
	return items, next, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		e     employee.Employee
		u     employee.UserSnapshot
		phone sql.NullString
		email sql.NullString
	)

	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Name,
		&e.Position,
		&phone,
		&email,
		&e.CreatedAt,
		&e.UpdatedAt,
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Role,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	e.Phone = stringPtr(phone)
	e.Email = stringPtr(email)
	e.User = &u
	return &e, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	code, _, ok := pgdb.Violation(err)
	if !ok {
		return err
	}
	switch code {
	case pgdb.UniqueViolation:
		return employee.ErrEmployeeAlreadyExists
	case pgdb.ForeignKeyViolation:
		return employee.ErrUserNotFound
	case pgdb.CheckViolation:
		return employee.ErrInvalidName
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
