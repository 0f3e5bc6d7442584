package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

// PostgresStore implements Store on top of sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Select loads all rows matching q into dest (pointer to slice).
func (s *PostgresStore) Select(ctx context.Context, q Query, dest interface{}) error {
	if err := validateQuery(q); err != nil {
		return err
	}
	where, args := buildWhere(q.Filters, 1)
	query := fmt.Sprintf("SELECT * FROM %s%s%s%s", q.Table, where, buildOrder(q.Sort), buildPage(q.Limit, q.Offset))
	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return classify(err, "select "+q.Table)
	}
	return nil
}

// Count returns the number of rows matching q's filters.
func (s *PostgresStore) Count(ctx context.Context, q Query) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}
	where, args := buildWhere(q.Filters, 1)
	var total int
	if err := s.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.Table, where), args...); err != nil {
		return 0, classify(err, "count "+q.Table)
	}
	return total, nil
}

// Get loads the first row matching q into dest.
func (s *PostgresStore) Get(ctx context.Context, q Query, dest interface{}) error {
	if err := validateQuery(q); err != nil {
		return err
	}
	where, args := buildWhere(q.Filters, 1)
	query := fmt.Sprintf("SELECT * FROM %s%s%s LIMIT 1", q.Table, where, buildOrder(q.Sort))
	if err := s.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return classify(err, "get "+q.Table)
	}
	return nil
}

// Insert writes row and scans the stored row into dest when dest is non-nil.
func (s *PostgresStore) Insert(ctx context.Context, table string, row Row, dest interface{}) error {
	cols, err := validateRow(table, row)
	if err != nil {
		return err
	}
	query, args := insertSQL(table, cols, row)
	return s.writeReturning(ctx, query+" RETURNING *", args, dest, "insert "+table)
}

// Upsert inserts row or, on a conflict over the natural key, overwrites every
// non-key column with the new values. Last write wins.
func (s *PostgresStore) Upsert(ctx context.Context, table string, conflict []string, row Row, dest interface{}) error {
	cols, err := validateRow(table, row)
	if err != nil {
		return err
	}
	if len(conflict) == 0 {
		return fmt.Errorf("upsert %s: conflict columns required", table)
	}
	if err := checkColumns(table, conflict...); err != nil {
		return err
	}
	query, args := insertSQL(table, cols, row)
	keys := make(map[string]struct{}, len(conflict))
	for _, c := range conflict {
		keys[c] = struct{}{}
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, isKey := keys[c]; isKey || c == "id" || c == "created_at" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	if len(sets) == 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflict, ", "))
	} else {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(sets, ", "))
	}
	return s.writeReturning(ctx, query+" RETURNING *", args, dest, "upsert "+table)
}

// InsertIgnore inserts rows skipping those that collide on conflict and returns the number inserted.
func (s *PostgresStore) InsertIgnore(ctx context.Context, table string, conflict []string, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := checkColumns(table, conflict...); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, classify(err, "begin insert "+table)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()
	inserted := 0
	for _, row := range rows {
		cols, err := validateRow(table, row)
		if err != nil {
			return 0, err
		}
		query, args := insertSQL(table, cols, row)
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflict, ", "))
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, classify(err, "insert "+table)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, classify(err, "commit insert "+table)
	}
	commit = true
	return inserted, nil
}

// Update applies patch to rows matching filters and scans the first updated row into dest.
func (s *PostgresStore) Update(ctx context.Context, table string, filters []Filter, patch Row, dest interface{}) error {
	cols, err := validateRow(table, patch)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("update %s: refusing unfiltered update", table)
	}
	if err := validateQuery(Query{Table: table, Filters: filters}); err != nil {
		return err
	}
	sets := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+len(filters))
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, bindValue(patch[c]))
	}
	where, whereArgs := buildWhere(filters, len(args)+1)
	args = append(args, whereArgs...)
	query := fmt.Sprintf("UPDATE %s SET %s%s RETURNING *", table, strings.Join(sets, ", "), where)
	if dest == nil {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return classify(err, "update "+table)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	}
	return s.writeReturning(ctx, query, args, dest, "update "+table)
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err, "ping")
	}
	return nil
}

func (s *PostgresStore) writeReturning(ctx context.Context, query string, args []interface{}, dest interface{}, op string) error {
	if dest == nil {
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return classify(err, op)
		}
		return nil
	}
	if err := s.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return classify(err, op)
	}
	return nil
}

func insertSQL(table string, cols []string, row Row) (string, []interface{}) {
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = bindValue(row[c])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", ")), args
}

func buildWhere(filters []Filter, start int) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]interface{}, 0, len(filters))
	n := start
	for _, f := range filters {
		switch f.Op {
		case OpIs:
			if f.Value == nil {
				conds = append(conds, f.Column+" IS NULL")
			} else {
				conds = append(conds, f.Column+" IS NOT NULL")
			}
			continue
		case OpIn:
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", f.Column, n))
			args = append(args, pq.Array(f.Value))
		default:
			conds = append(conds, fmt.Sprintf("%s %s $%d", f.Column, sqlOp(f.Op), n))
			args = append(args, bindValue(f.Value))
		}
		n++
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildOrder(sorts []Sort) string {
	if len(sorts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		if s.Desc {
			parts = append(parts, s.Column+" DESC NULLS LAST")
		} else {
			parts = append(parts, s.Column+" ASC")
		}
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func buildPage(limit, offset int) string {
	var out string
	if limit > 0 {
		out += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		out += fmt.Sprintf(" OFFSET %d", offset)
	}
	return out
}

func sqlOp(op Op) string {
	switch op {
	case OpNeq:
		return "<>"
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	default:
		return "="
	}
}

func bindValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case []string:
		return pq.Array(typed)
	case pq.StringArray:
		return typed
	case json.RawMessage:
		if typed == nil {
			return nil
		}
		return string(typed)
	default:
		return v
	}
}

// classify maps driver errors onto the application error taxonomy. Both lib/pq
// and pgx report SQLSTATE codes; the class decides the mapping.
func classify(err error, op string) error {
	code := ""
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	case errors.As(err, &pgErr):
		code = pgErr.Code
	}
	if len(code) == 5 {
		switch code[:2] {
		case "23":
			if code == "23505" {
				return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, op+": duplicate row")
			}
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, op+": constraint violated")
		case "22":
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, op+": invalid value")
		case "08", "57":
			return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, op+": database unavailable")
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, op+": database unavailable")
	}
	return fmt.Errorf("%s: %w", op, err)
}
