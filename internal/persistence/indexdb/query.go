package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type CommandRow struct {
	Seq      int64
	At       time.Time
	Hash     string
	Kind     string
	Priority string
	Load     int
	Budget   int
	Error    string
	Script   string
}

type RequestRow struct {
	Seq      int64
	At       time.Time
	Username string
	Role     string
	Intent   string
	Status   string
	Hash     string
	Reason   string
}

type CommandFilter struct {
	Hash       string
	Kind       string
	FailedOnly bool
	Since      time.Time
	Limit      int
}

type RequestFilter struct {
	Username string
	Status   string
	Since    time.Time
	Limit    int
}

// Reader runs queries against an index database, possibly while a
// SQLiteIndex in another process writes to it.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) Commands(ctx context.Context, f CommandFilter) ([]CommandRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Hash != "" {
		where = append(where, "hash = ?")
		args = append(args, f.Hash)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.FailedOnly {
		where = append(where, "error IS NOT NULL")
	}
	if !f.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	q := "SELECT seq, at, hash, kind, priority, load, budget, error, script FROM commands" + clause(where) + " ORDER BY seq DESC" + limit(f.Limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var out []CommandRow
	for rows.Next() {
		var (
			c      CommandRow
			at     int64
			errCol sql.NullString
		)
		if err := rows.Scan(&c.Seq, &at, &c.Hash, &c.Kind, &c.Priority, &c.Load, &c.Budget, &errCol, &c.Script); err != nil {
			return nil, err
		}
		c.At = time.UnixMilli(at)
		c.Error = errCol.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Reader) Requests(ctx context.Context, f RequestFilter) ([]RequestRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Username != "" {
		where = append(where, "username = ?")
		args = append(args, f.Username)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if !f.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	q := "SELECT seq, at, username, role, intent, status, hash, reason FROM requests" + clause(where) + " ORDER BY seq DESC" + limit(f.Limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []RequestRow
	for rows.Next() {
		var (
			row       RequestRow
			at        int64
			hash, why sql.NullString
		)
		if err := rows.Scan(&row.Seq, &at, &row.Username, &row.Role, &row.Intent, &row.Status, &hash, &why); err != nil {
			return nil, err
		}
		row.At = time.UnixMilli(at)
		row.Hash = hash.String
		row.Reason = why.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// KindStats counts executed and failed commands per kind.
type KindStats struct {
	Kind     string
	Executed int
	Failed   int
}

func (r *Reader) CommandStats(ctx context.Context) ([]KindStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, COUNT(*), COUNT(error) FROM commands GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("query command stats: %w", err)
	}
	defer rows.Close()
	var out []KindStats
	for rows.Next() {
		var k KindStats
		if err := rows.Scan(&k.Kind, &k.Executed, &k.Failed); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func clause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func limit(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}
