package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/report"
	pgdb "github.com/esperancehsu/Gestion-Presence/internal/platform/db/postgres"
	"github.com/jackc/pgx/v5"
)

const reportColumns = `r.id, r.employee_id, r.type, r.start_date, r.end_date, r.content, r.created_at, r.updated_at,
               e.user_id, e.name`

// ReportRepository は PostgreSQL を利用したレポート永続化の実装です。
type ReportRepository struct {
	pool pgdb.Queryer
}

// NewReportRepository は ReportRepository を生成します。
func NewReportRepository(pool pgdb.Queryer) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Create はレポートを作成します。
func (r *ReportRepository) Create(ctx context.Context, rep *report.Report) (*report.Report, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH inserted AS (
            INSERT INTO reports (employee_id, type, start_date, end_date, content, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING *
        )
        SELECT `+reportColumns+`
          FROM inserted r
          JOIN employees e ON e.id = r.employee_id
    `,
		rep.EmployeeID,
		string(rep.Type),
		rep.StartDate,
		rep.EndDate,
		rep.Content,
		rep.CreatedAt,
		rep.UpdatedAt,
	)

	created, err := scanReport(row)
	if err != nil {
		return nil, translateReportPgError(err)
	}
	return created, nil
}

// Update はレポートを更新します。
func (r *ReportRepository) Update(ctx context.Context, rep *report.Report) (*report.Report, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH updated AS (
            UPDATE reports
               SET type = $1,
                   start_date = $2,
                   end_date = $3,
                   content = $4,
                   updated_at = $5
             WHERE id = $6
            RETURNING *
        )
        SELECT `+reportColumns+`
          FROM updated r
          JOIN employees e ON e.id = r.employee_id
    `,
		string(rep.Type),
		rep.StartDate,
		rep.EndDate,
		rep.Content,
		rep.UpdatedAt,
		rep.ID,
	)

	updated, err := scanReport(row)
	if err != nil {
		return nil, translateReportPgError(err)
	}
	return updated, nil
}

// Delete はレポートを削除します。
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return translateReportPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return report.ErrReportNotFound
	}
	return nil
}

// FindByID は scope の範囲内から ID でレポートを取得します。
func (r *ReportRepository) FindByID(ctx context.Context, id string, scope access.Scope) (*report.Report, error) {
	var c conditions
	c.add("r.id = " + c.arg(id))
	c.scope(scope, "e.user_id")

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+reportColumns+`
          FROM reports r
          JOIN employees e ON e.id = r.employee_id`+c.where()+`
         LIMIT 1
    `, c.args...)

	found, err := scanReport(row)
	if err != nil {
		return nil, translateReportPgError(err)
	}
	return found, nil
}

// List はレポートの一覧を作成日時の新しい順に取得します。
func (r *ReportRepository) List(ctx context.Context, filter report.ListReportsFilter) ([]*report.Report, string, error) {
	if filter.Limit <= 0 {
		return nil, "", report.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", report.ErrInvalidPageToken
	}

	var c conditions
	c.scope(filter.Scope, "e.user_id")
	if filter.EmployeeID != "" {
		c.add("r.employee_id = " + c.arg(filter.EmployeeID))
	}
	if filter.Type != nil {
		c.add("r.type = " + c.arg(string(*filter.Type)))
	}

	query := `
        SELECT ` + reportColumns + `
          FROM reports r
          JOIN employees e ON e.id = r.employee_id` + c.where() + `
         ORDER BY r.created_at DESC, r.id DESC` + c.page(filter.Limit, filter.Offset)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, c.args...)
	if err != nil {
		return nil, "", translateReportPgError(err)
	}
	defer rows.Close()

	reports := make([]*report.Report, 0, filter.Limit)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, "", translateReportPgError(err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, "", translateReportPgError(err)
	}

	items, next := nextPage(reports, filter.Limit, filter.Offset)
	return items, next, nil
}

// FindEmployee はレポートの対象となる社員を取得します。
func (r *ReportRepository) FindEmployee(ctx context.Context, id string) (*report.EmployeeSnapshot, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var snap report.EmployeeSnapshot
	err := exec.QueryRow(ctx, `SELECT id, user_id, name FROM employees WHERE id = $1`, id).
		Scan(&snap.ID, &snap.UserID, &snap.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, report.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func scanReport(row pgx.Row) (*report.Report, error) {
	var (
		rep     report.Report
		typ     string
		start   time.Time
		end     time.Time
		userID  string
		empName string
	)

	if err := row.Scan(
		&rep.ID,
		&rep.EmployeeID,
		&typ,
		&start,
		&end,
		&rep.Content,
		&rep.CreatedAt,
		&rep.UpdatedAt,
		&userID,
		&empName,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, report.ErrReportNotFound
		}
		return nil, err
	}

	rep.Type = report.Type(typ)
	rep.StartDate = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	rep.EndDate = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	rep.Employee = &report.EmployeeSnapshot{ID: rep.EmployeeID, UserID: userID, Name: empName}
	return &rep, nil
}

func translateReportPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return report.ErrReportNotFound
	}

	code, constraint, ok := pgdb.Violation(err)
	if !ok {
		return err
	}
	switch code {
	case pgdb.ForeignKeyViolation:
		return report.ErrEmployeeNotFound
	case pgdb.CheckViolation:
		if constraint == "reports_type_check" {
			return report.ErrInvalidType
		}
		return report.ErrInvalidDateRange
	}
	return err
}
