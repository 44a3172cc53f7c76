package postgres

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
)

// conditions は WHERE 句とプレースホルダ引数を組み立てます。
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) arg(v any) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *conditions) add(clause string) {
	c.clauses = append(c.clauses, clause)
}

// scope は所有者で絞り込む述語を追加します。所有者が空なら常に偽になります。
func (c *conditions) scope(s access.Scope, ownerColumn string) {
	if !s.Restricts() {
		return
	}
	if s.OwnerID == "" {
		c.add("FALSE")
		return
	}
	c.add(ownerColumn + " = " + c.arg(s.OwnerID))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return "\n         WHERE " + strings.Join(c.clauses, " AND ")
}

// page は LIMIT / OFFSET を追加します。次ページ判定のため一件多く取得します。
func (c *conditions) page(limit, offset int) string {
	return "\n         LIMIT " + c.arg(limit+1) + "\n        OFFSET " + c.arg(offset)
}

func nextPage[T any](items []T, limit, offset int) ([]T, string) {
	if len(items) > limit {
		return items[:limit], strconv.Itoa(offset + limit)
	}
	return items, ""
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
