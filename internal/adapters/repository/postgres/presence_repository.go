package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/presence"
	pgdb "github.com/esperancehsu/Gestion-Presence/internal/platform/db/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const presenceColumns = `p.id, p.employee_id, p.date,
               (EXTRACT(EPOCH FROM p.arrival_time) * 1000000)::bigint,
               (EXTRACT(EPOCH FROM p.departure_time) * 1000000)::bigint,
               p.status, p.note, p.created_at, p.updated_at,
               e.user_id, e.name`

// PresenceRepository は PostgreSQL を利用した出勤記録永続化の実装です。
type PresenceRepository struct {
	pool pgdb.Queryer
}

// NewPresenceRepository は PresenceRepository を生成します。
func NewPresenceRepository(pool pgdb.Queryer) *PresenceRepository {
	return &PresenceRepository{pool: pool}
}

// Create は出勤記録を作成します。(社員, 日付) が重複すると ErrDuplicatePresence を返します。
func (r *PresenceRepository) Create(ctx context.Context, p *presence.Presence) (*presence.Presence, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH inserted AS (
            INSERT INTO presences (employee_id, date, arrival_time, departure_time, status, note, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING *
        )
        SELECT `+presenceColumns+`
          FROM inserted p
          JOIN employees e ON e.id = p.employee_id
    `,
		p.EmployeeID,
		presence.DateOf(p.Date),
		timeOfDayArg(p.ArrivalTime),
		timeOfDayArg(p.DepartureTime),
		string(p.Status),
		nullableString(p.Note),
		p.CreatedAt,
		p.UpdatedAt,
	)

	created, err := scanPresence(row)
	if err != nil {
		return nil, translatePresencePgError(err)
	}
	return created, nil
}

// Update は出勤記録の全項目を更新します。
func (r *PresenceRepository) Update(ctx context.Context, p *presence.Presence) (*presence.Presence, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH updated AS (
            UPDATE presences
               SET date = $1,
                   arrival_time = $2,
                   departure_time = $3,
                   status = $4,
                   note = $5,
                   updated_at = $6
             WHERE id = $7
            RETURNING *
        )
        SELECT `+presenceColumns+`
          FROM updated p
          JOIN employees e ON e.id = p.employee_id
    `,
		presence.DateOf(p.Date),
		timeOfDayArg(p.ArrivalTime),
		timeOfDayArg(p.DepartureTime),
		string(p.Status),
		nullableString(p.Note),
		p.UpdatedAt,
		p.ID,
	)

	updated, err := scanPresence(row)
	if err != nil {
		return nil, translatePresencePgError(err)
	}
	return updated, nil
}

// SaveArrival は出勤時刻が未記録の場合に限り書き込みます。既に記録済みなら ErrAlreadyRecorded です。
func (r *PresenceRepository) SaveArrival(ctx context.Context, p *presence.Presence) (*presence.Presence, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH updated AS (
            UPDATE presences
               SET arrival_time = $1,
                   status = $2,
                   updated_at = $3
             WHERE id = $4 AND arrival_time IS NULL
            RETURNING *
        )
        SELECT `+presenceColumns+`
          FROM updated p
          JOIN employees e ON e.id = p.employee_id
    `,
		timeOfDayArg(p.ArrivalTime),
		string(p.Status),
		p.UpdatedAt,
		p.ID,
	)
	return r.saveTransition(row)
}

// SaveDeparture は出勤済みかつ退勤未記録の場合に限り書き込みます。
func (r *PresenceRepository) SaveDeparture(ctx context.Context, p *presence.Presence) (*presence.Presence, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH updated AS (
            UPDATE presences
               SET departure_time = $1,
                   status = $2,
                   updated_at = $3
             WHERE id = $4 AND arrival_time IS NOT NULL AND departure_time IS NULL
            RETURNING *
        )
        SELECT `+presenceColumns+`
          FROM updated p
          JOIN employees e ON e.id = p.employee_id
    `,
		timeOfDayArg(p.DepartureTime),
		string(p.Status),
		p.UpdatedAt,
		p.ID,
	)
	return r.saveTransition(row)
}

func (r *PresenceRepository) saveTransition(row pgx.Row) (*presence.Presence, error) {
	saved, err := scanPresence(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, presence.ErrAlreadyRecorded
	}
	if err != nil {
		return nil, translatePresencePgError(err)
	}
	return saved, nil
}

// Delete は出勤記録を削除します。
func (r *PresenceRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM presences WHERE id = $1`, id)
	if err != nil {
		return translatePresencePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return presence.ErrPresenceNotFound
	}
	return nil
}

// FindByID は scope の範囲内から ID で出勤記録を取得します。
func (r *PresenceRepository) FindByID(ctx context.Context, id string, scope access.Scope) (*presence.Presence, error) {
	var c conditions
	c.add("p.id = " + c.arg(id))
	c.scope(scope, "e.user_id")

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+presenceColumns+`
          FROM presences p
          JOIN employees e ON e.id = p.employee_id`+c.where()+`
         LIMIT 1
    `, c.args...)

	found, err := scanPresence(row)
	if err != nil {
		return nil, translatePresencePgError(err)
	}
	return found, nil
}

// FindByEmployeeAndDate は社員と日付で出勤記録を取得します。
func (r *PresenceRepository) FindByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*presence.Presence, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+presenceColumns+`
          FROM presences p
          JOIN employees e ON e.id = p.employee_id
         WHERE p.employee_id = $1 AND p.date = $2
         LIMIT 1
    `, employeeID, presence.DateOf(date))

	found, err := scanPresence(row)
	if err != nil {
		return nil, translatePresencePgError(err)
	}
	return found, nil
}

// List は出勤記録の一覧を日付の新しい順に取得します。
func (r *PresenceRepository) List(ctx context.Context, filter presence.ListFilter) ([]*presence.Presence, string, error) {
	if filter.Limit <= 0 {
		return nil, "", presence.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", presence.ErrInvalidPageToken
	}

	var c conditions
	c.scope(filter.Scope, "e.user_id")
	if filter.EmployeeID != "" {
		c.add("p.employee_id = " + c.arg(filter.EmployeeID))
	}
	if filter.From != nil {
		c.add("p.date >= " + c.arg(presence.DateOf(*filter.From)))
	}
	if filter.To != nil {
		c.add("p.date <= " + c.arg(presence.DateOf(*filter.To)))
	}
	if filter.Status != nil {
		c.add("p.status = " + c.arg(string(*filter.Status)))
	}

	query := `
        SELECT ` + presenceColumns + `
          FROM presences p
          JOIN employees e ON e.id = p.employee_id` + c.where() + `
         ORDER BY p.date DESC, p.created_at DESC, p.id DESC` + c.page(filter.Limit, filter.Offset)

	presences, err := r.query(ctx, query, c.args, filter.Limit)
	if err != nil {
		return nil, "", err
	}
	items, next := nextPage(presences, filter.Limit, filter.Offset)
	return items, next, nil
}

// ListRange は期間内の出勤記録を日付順にすべて取得します。
func (r *PresenceRepository) ListRange(ctx context.Context, filter presence.RangeFilter) ([]*presence.Presence, error) {
	var c conditions
	c.scope(filter.Scope, "e.user_id")
	if filter.EmployeeID != "" {
		c.add("p.employee_id = " + c.arg(filter.EmployeeID))
	}
	c.add("p.date >= " + c.arg(presence.DateOf(filter.From)))
	c.add("p.date <= " + c.arg(presence.DateOf(filter.To)))

	query := `
        SELECT ` + presenceColumns + `
          FROM presences p
          JOIN employees e ON e.id = p.employee_id` + c.where() + `
         ORDER BY p.date ASC, e.name ASC, p.id ASC`

	return r.query(ctx, query, c.args, 0)
}

// FindEmployee は出勤記録の対象となる社員を取得します。
func (r *PresenceRepository) FindEmployee(ctx context.Context, id string) (*presence.EmployeeSnapshot, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var snap presence.EmployeeSnapshot
	err := exec.QueryRow(ctx, `SELECT id, user_id, name FROM employees WHERE id = $1`, id).
		Scan(&snap.ID, &snap.UserID, &snap.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, presence.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *PresenceRepository) query(ctx context.Context, query string, args []any, capacity int) ([]*presence.Presence, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translatePresencePgError(err)
	}
	defer rows.Close()

	presences := make([]*presence.Presence, 0, capacity)
	for rows.Next() {
		p, err := scanPresence(rows)
		if err != nil {
			return nil, translatePresencePgError(err)
		}
		presences = append(presences, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePresencePgError(err)
	}
	return presences, nil
}

func scanPresence(row pgx.Row) (*presence.Presence, error) {
	var (
		p          presence.Presence
		date       time.Time
		arrival    sql.NullInt64
		departure  sql.NullInt64
		status     string
		note       sql.NullString
		userID     string
		employeeNm string
	)

	if err := row.Scan(
		&p.ID,
		&p.EmployeeID,
		&date,
		&arrival,
		&departure,
		&status,
		&note,
		&p.CreatedAt,
		&p.UpdatedAt,
		&userID,
		&employeeNm,
	); err != nil {
		return nil, err
	}

	p.Date = presence.DateOf(date)
	p.ArrivalTime = timeOfDayFromMicros(arrival)
	p.DepartureTime = timeOfDayFromMicros(departure)
	p.Status = presence.Status(status)
	p.Note = stringPtr(note)
	p.Employee = &presence.EmployeeSnapshot{ID: p.EmployeeID, UserID: userID, Name: employeeNm}
	return &p, nil
}

func timeOfDayArg(t *presence.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func timeOfDayFromMicros(v sql.NullInt64) *presence.TimeOfDay {
	if !v.Valid {
		return nil
	}
	t := presence.TimeOfDay(time.Duration(v.Int64) * time.Microsecond)
	return &t
}

func translatePresencePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return presence.ErrPresenceNotFound
	}

	code, constraint, ok := pgdb.Violation(err)
	if !ok {
		return err
	}
	switch code {
	case pgdb.UniqueViolation:
		return presence.ErrDuplicatePresence
	case pgdb.ForeignKeyViolation:
		return presence.ErrEmployeeNotFound
	case pgdb.CheckViolation:
		if constraint == "presences_status_check" {
			return presence.ErrInvalidStatus
		}
		return presence.ErrInvalidTimeOrder
	}
	return err
}
