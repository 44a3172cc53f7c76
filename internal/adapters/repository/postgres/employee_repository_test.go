package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/employee"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var employeeRowColumns = []string{"id", "user_id", "name", "position", "phone", "email", "created_at", "updated_at", "u_id", "username", "u_email", "role"}

func TestEmployeeRepository_Create(t *testing.T) {
	t.Parallel()

	mock := newPgxMock(t)
	repo := NewEmployeeRepository(mock)

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	phone := "+225 07 00 00 00"
	emp := &employee.Employee{UserID: "user-1", Name: "Awa Koné", Position: "Comptable", Phone: &phone, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO employees (user_id, name, position, phone, email, created_at, updated_at)")).
		WithArgs("user-1", "Awa Koné", "Comptable", phone, nil, now, now).
		WillReturnRows(pgxmock.NewRows(employeeRowColumns).
			AddRow("emp-1", "user-1", "Awa Koné", "Comptable", phone, nil, now, now, "user-1", "awa", "awa@example.com", "staff"))

	created, err := repo.Create(context.Background(), emp)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", created.ID)
	require.NotNil(t, created.Phone)
	assert.Equal(t, phone, *created.Phone)
	assert.Nil(t, created.Email)
	require.NotNil(t, created.User)
	assert.Equal(t, "awa", created.User.Username)
}

func TestEmployeeRepository_Create_Conflicts(t *testing.T) {
	t.Parallel()

	mock := newPgxMock(t)
	repo := NewEmployeeRepository(mock)

	mock.ExpectQuery("INSERT INTO employees").
		WithArgs("user-1", "Awa", "Clerk", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "employees_user_id_key"})
	mock.ExpectQuery("INSERT INTO employees").
		WithArgs("user-404", "Awa", "Clerk", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "employees_user_id_fkey"})

	_, err := repo.Create(context.Background(), &employee.Employee{UserID: "user-1", Name: "Awa", Position: "Clerk"})
	assert.ErrorIs(t, err, employee.ErrEmployeeAlreadyExists)

	_, err = repo.Create(context.Background(), &employee.Employee{UserID: "user-404", Name: "Awa", Position: "Clerk"})
	assert.ErrorIs(t, err, employee.ErrUserNotFound)
}

func TestEmployeeRepository_FindByUserID_NotFound(t *testing.T) {
	t.Parallel()

	mock := newPgxMock(t)
	repo := NewEmployeeRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.user_id = $1")).
		WithArgs("user-9").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByUserID(context.Background(), "user-9")
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestEmployeeRepository_List_SearchAndScope(t *testing.T) {
	t.Parallel()

	mock := newPgxMock(t)
	repo := NewEmployeeRepository(mock)

	query := regexp.QuoteMeta(`WHERE e.user_id = $1 AND (e.name ILIKE $2 OR e.position ILIKE $2 OR e.email ILIKE $2) ORDER BY e.name ASC, e.id ASC LIMIT $3 OFFSET $4`)
	now := time.Now().UTC()
	mock.ExpectQuery(query).
		WithArgs("user-1", `%50\%%`, 51, 0).
		WillReturnRows(pgxmock.NewRows(employeeRowColumns).
			AddRow("emp-1", "user-1", "Awa", "50% time", nil, "awa@example.com", now, now, "user-1", "awa", "awa@example.com", "staff"))

	items, next, err := repo.List(context.Background(), employee.ListEmployeesFilter{
		Scope:  access.OwnedBy("user-1"),
		Search: " 50% ",
		Limit:  50,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, next)
	require.NotNil(t, items[0].Email)
	assert.Equal(t, "awa@example.com", *items[0].Email)
}

func TestEmployeeRepository_List_Unrestricted(t *testing.T) {
	t.Parallel()

	mock := newPgxMock(t)
	repo := NewEmployeeRepository(mock)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`JOIN users u ON u.id = e.user_id ORDER BY e.name ASC, e.id ASC LIMIT $1 OFFSET $2`)).
		WithArgs(2, 0).
		WillReturnRows(pgxmock.NewRows(employeeRowColumns).
			AddRow("emp-1", "user-1", "Awa", "Comptable", nil, nil, now, now, "user-1", "awa", "a@example.com", "staff").
			AddRow("emp-2", "user-2", "Kossi", "Chef", nil, nil, now, now, "user-2", "kossi", "k@example.com", "manager"))

	items, next, err := repo.List(context.Background(), employee.ListEmployeesFilter{Scope: access.All(), Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "1", next)
}

func TestEmployeeRepository_Delete(t *testing.T) {
	t.Parallel()

	mock := newPgxMock(t)
	repo := NewEmployeeRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM employees WHERE id = $1")).
		WithArgs("emp-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, repo.Delete(context.Background(), "emp-1"))
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `a\_b\%c\\d`, escapeLike(`a_b%c\d`))
}
