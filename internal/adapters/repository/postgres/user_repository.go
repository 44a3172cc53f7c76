package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/user"
	pgdb "github.com/esperancehsu/Gestion-Presence/internal/platform/db/postgres"
	"github.com/jackc/pgx/v5"
)

// permissionAppLabel は権限テーブルに保存するアプリラベルです。
const permissionAppLabel = "api"

const userColumns = `u.id, u.username, u.email, u.role, u.is_superuser, u.is_active, u.created_at, u.updated_at,
               e.id,
               ARRAY(SELECT g.name FROM user_groups ug JOIN groups g ON g.id = ug.group_id
                      WHERE ug.user_id = u.id ORDER BY g.name),
               ARRAY(SELECT p.app_label || '.' || p.codename FROM user_permissions up JOIN permissions p ON p.id = up.permission_id
                      WHERE up.user_id = u.id ORDER BY p.codename)`

// UserRepository は PostgreSQL を利用したアカウントとグループの永続化実装です。
type UserRepository struct {
	pool pgdb.Queryer
}

// NewUserRepository は UserRepository を生成します。
func NewUserRepository(pool pgdb.Queryer) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByID はグループと直接付与された権限を含めてアカウントを取得します。
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+userColumns+`
          FROM users u
          LEFT JOIN employees e ON e.user_id = u.id
         WHERE u.id = $1
         LIMIT 1
    `, id)

	found, err := scanUser(row)
	if err != nil {
		return nil, translateUserPgError(err)
	}
	return found, nil
}

// List はすべてのアカウントを取得します。
func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+userColumns+`
          FROM users u
          LEFT JOIN employees e ON e.user_id = u.id
         ORDER BY u.username ASC
    `)
	if err != nil {
		return nil, translateUserPgError(err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translateUserPgError(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, translateUserPgError(err)
	}
	return users, nil
}

// GroupPermissions はグループごとの権限を返します。
func (r *UserRepository) GroupPermissions(ctx context.Context, groups []string) (map[string][]access.Permission, error) {
	out := make(map[string][]access.Permission, len(groups))
	if len(groups) == 0 {
		return out, nil
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT g.name, p.app_label || '.' || p.codename
          FROM groups g
          JOIN group_permissions gp ON gp.group_id = g.id
          JOIN permissions p ON p.id = gp.permission_id
         WHERE g.name = ANY($1)
         ORDER BY g.name, p.codename
    `, groups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var group, perm string
		if err := rows.Scan(&group, &perm); err != nil {
			return nil, err
		}
		out[group] = append(out[group], access.Permission(perm))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsurePermission は権限が存在しなければ作成し、作成したかを返します。
func (r *UserRepository) EnsurePermission(ctx context.Context, perm access.Permission) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        INSERT INTO permissions (app_label, codename, name)
        VALUES ($1, $2, $3)
        ON CONFLICT (app_label, codename) DO NOTHING
    `, permissionAppLabel, string(perm.Codename()), permissionLabel(perm))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// EnsureGroup はグループが存在しなければ作成し、権限を group.Permissions と一致させます。
func (r *UserRepository) EnsureGroup(ctx context.Context, group user.Group) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `INSERT INTO groups (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, group.Name)
	if err != nil {
		return false, err
	}
	created := tag.RowsAffected() == 1

	codenames := make([]string, 0, len(group.Permissions))
	for _, p := range group.Permissions {
		codenames = append(codenames, string(p.Codename()))
	}

	if _, err := exec.Exec(ctx, `
        DELETE FROM group_permissions
         WHERE group_id = (SELECT id FROM groups WHERE name = $1)
    `, group.Name); err != nil {
		return false, err
	}
	if _, err := exec.Exec(ctx, `
        INSERT INTO group_permissions (group_id, permission_id)
        SELECT g.id, p.id
          FROM groups g, permissions p
         WHERE g.name = $1 AND p.app_label = $2 AND p.codename = ANY($3)
    `, group.Name, permissionAppLabel, codenames); err != nil {
		return false, err
	}

	return created, nil
}

// SetGroups はアカウントの所属グループを groups に置き換えます。
func (r *UserRepository) SetGroups(ctx context.Context, userID string, groups []string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
		return translateUserPgError(err)
	}
	if _, err := exec.Exec(ctx, `
        INSERT INTO user_groups (user_id, group_id)
        SELECT $1, id FROM groups WHERE name = ANY($2)
    `, userID, groups); err != nil {
		return translateUserPgError(err)
	}
	return nil
}

// CreateEmployee はアカウントに社員レコードがなければ作成します。
func (r *UserRepository) CreateEmployee(ctx context.Context, u *user.User, position string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var email any
	if u.Email != "" {
		email = u.Email
	}
	if _, err := exec.Exec(ctx, `
        INSERT INTO employees (user_id, name, position, email, created_at, updated_at)
        VALUES ($1, $2, $3, $4, now(), now())
        ON CONFLICT (user_id) DO NOTHING
    `, u.ID, u.Username, position, email); err != nil {
		return translateUserPgError(err)
	}
	return nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u          user.User
		role       string
		employeeID sql.NullString
		perms      []string
	)

	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&role,
		&u.Superuser,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
		&employeeID,
		&u.Groups,
		&perms,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}

	u.Role = access.ParseRole(role)
	u.EmployeeID = employeeID.String
	for _, p := range perms {
		u.Permissions = append(u.Permissions, access.Permission(p))
	}
	return &u, nil
}

func translateUserPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return user.ErrUserNotFound
	}
	if code, _, ok := pgdb.Violation(err); ok && code == pgdb.ForeignKeyViolation {
		return user.ErrUserNotFound
	}
	return err
}

func permissionLabel(perm access.Permission) string {
	name := strings.ReplaceAll(strings.TrimPrefix(string(perm.Codename()), "can_"), "_", " ")
	return "Can " + name
}
