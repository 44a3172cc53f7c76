package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL のエラーコードです。
const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
	CheckViolation      = "23514"
)

// Violation は制約違反であればそのコードと制約名を返します。
func Violation(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}
	switch pgErr.Code {
	case UniqueViolation, ForeignKeyViolation, CheckViolation:
		return pgErr.Code, pgErr.ConstraintName, true
	default:
		return "", "", false
	}
}
