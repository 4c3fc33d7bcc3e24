package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// conditions accumulates AND-ed predicates with positional arguments.
// A "?" in an expression is replaced by the next $n placeholder; repeating
// "?" in one expression binds the same argument twice.
type conditions struct {
	exprs []string
	args  []interface{}
}

func where() *conditions {
	return &conditions{exprs: []string{"1=1"}}
}

func (c *conditions) and(expr string, arg interface{}) *conditions {
	c.args = append(c.args, arg)
	c.exprs = append(c.exprs, strings.ReplaceAll(expr, "?", fmt.Sprintf("$%d", len(c.args))))
	return c
}

func (c *conditions) String() string {
	return strings.Join(c.exprs, " AND ")
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// pageWindow clamps 1-based paging into LIMIT/OFFSET values. Sizes outside
// (0, max] fall back to def.
func pageWindow(page, size, def, max int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > max {
		size = def
	}
	return size, (page - 1) * size
}

// sortClause resolves a caller-supplied sort key against a whitelist.
func sortClause(allowed map[string]string, key, fallback, order, defOrder string) string {
	column, ok := allowed[key]
	if !ok {
		column = allowed[fallback]
	}
	order = strings.ToUpper(order)
	if order != "ASC" && order != "DESC" {
		order = defOrder
	}
	return column + " " + order
}

// selectPage runs the row query and the matching COUNT(*) over the same
// FROM/WHERE fragment.
func selectPage(ctx context.Context, db *sqlx.DB, dest interface{}, columns, from, orderBy string, limit, offset int, args []interface{}) (int, error) {
	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", columns, from, orderBy, limit, offset)
	if err := db.SelectContext(ctx, dest, query, args...); err != nil {
		return 0, err
	}
	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) "+from, args...); err != nil {
		return 0, err
	}
	return total, nil
}

// inTx runs fn inside a transaction, rolling back when fn fails.
func inTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// wrapNotFound passes sql.ErrNoRows through untouched so services can map it.
func wrapNotFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
