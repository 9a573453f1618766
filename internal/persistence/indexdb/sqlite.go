// Package indexdb keeps a queryable sqlite read model of the audit trail.
// The zstd JSONL logs remain the source of truth; rows that cannot be
// queued in time are dropped.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"simbridge.dev/internal/catalogs"
	"simbridge.dev/internal/persistence/snapshot"
	"simbridge.dev/internal/sim/bridge"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders enqueues against close(ch).
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqCommand reqKind = iota + 1
	reqRequest
	reqSnapshot
)

type req struct {
	kind reqKind

	command  bridge.CommandRecord
	request  bridge.RequestRecord
	snapshot snapshotRow
}

type snapshotRow struct {
	Time     int64
	Path     string
	Session  string
	Pending  int
	Executed int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			category TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			unit_types INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			hash TEXT NOT NULL,
			kind TEXT NOT NULL,
			priority TEXT NOT NULL,
			load INTEGER NOT NULL,
			budget INTEGER NOT NULL,
			error TEXT,
			script TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_hash ON commands(hash);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_kind_at ON commands(kind, at);`,
		`CREATE TABLE IF NOT EXISTS requests (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			username TEXT NOT NULL,
			role TEXT NOT NULL,
			intent TEXT NOT NULL,
			status TEXT NOT NULL,
			hash TEXT,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_user_at ON requests(username, at);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			at INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			session TEXT NOT NULL,
			pending INTEGER NOT NULL,
			executed INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts rows discarded because the writer fell behind.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) CommandExecuted(rec bridge.CommandRecord) {
	s.enqueue(req{kind: reqCommand, command: rec})
}

func (s *SQLiteIndex) RequestHandled(rec bridge.RequestRecord) {
	s.enqueue(req{kind: reqRequest, request: rec})
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Time:     snap.Header.Time,
		Path:     path,
		Session:  snap.Header.SessionHash,
		Pending:  len(snap.Pending),
		Executed: snap.Executed,
	}})
}

// UpsertCatalogs records the digest of every loaded unit database.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(category,digest,unit_types,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for category, db := range cats.ByCategory {
		if _, err := stmt.Exec(category, db.Digest, len(db.Types), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertCommand, _ := s.db.Prepare(`INSERT INTO commands(at,hash,kind,priority,load,budget,error,script) VALUES(?,?,?,?,?,?,?,?)`)
	insertRequest, _ := s.db.Prepare(`INSERT INTO requests(at,username,role,intent,status,hash,reason) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(at,path,session,pending,executed) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertCommand, insertRequest, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqCommand:
			c := r.command
			exec(insertCommand, c.Time.UnixMilli(), c.Hash, c.Kind, c.Priority, c.Load, c.Budget, nullString(c.Error), c.Script)
		case reqRequest:
			q := r.request
			exec(insertRequest, q.Time.UnixMilli(), q.Username, q.Role, q.Intent, q.Status, nullString(q.Hash), nullString(q.Reason))
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.Time, sn.Path, sn.Session, sn.Pending, sn.Executed)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0) {
			commit()
		}
	}

	commit()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
