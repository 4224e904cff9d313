package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"envoy.ai/internal/sim/scenario"
	"envoy.ai/internal/sim/session"
	"envoy.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of treaty records. Writes are
// queued and applied by one goroutine; the JSONL audit log stays the source
// of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan session.TreatyRecord
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropTotal atomic.Uint64
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTotal     uint64
}

// TreatyHistory is one treaty as seen from the index.
type TreatyHistory struct {
	TreatyID   string `json:"treaty_id"`
	P0         int    `json:"p0"`
	P1         int    `json:"p1"`
	OpenedAt   string `json:"opened_at"`
	OpenedTurn int    `json:"opened_turn"`
	ClosedAt   string `json:"closed_at,omitempty"`
	// Outcome is empty while the treaty is open, else FINALIZED, FAILED or CANCELLED.
	Outcome string `json:"outcome,omitempty"`
	Clauses int    `json:"clauses"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
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
		ch: make(chan session.TreatyRecord, queue),
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
		`CREATE TABLE IF NOT EXISTS treaties (
			treaty_id TEXT PRIMARY KEY,
			p0 INTEGER NOT NULL,
			p1 INTEGER NOT NULL,
			opened_at TEXT NOT NULL,
			opened_turn INTEGER NOT NULL,
			closed_at TEXT,
			outcome TEXT,
			clauses INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_treaties_p0 ON treaties(p0, opened_at);`,
		`CREATE INDEX IF NOT EXISTS idx_treaties_p1 ON treaties(p1, opened_at);`,
		`CREATE TABLE IF NOT EXISTS treaty_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			turn INTEGER NOT NULL,
			kind TEXT NOT NULL,
			treaty_id TEXT,
			p0 INTEGER NOT NULL,
			p1 INTEGER NOT NULL,
			actor INTEGER NOT NULL,
			code TEXT,
			reason TEXT,
			text TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_treaty_events_treaty ON treaty_events(treaty_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_treaty_events_kind ON treaty_events(kind, seq);`,
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
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteTreaty queues r. It never blocks: when the writer falls behind the
// record is dropped and counted.
func (s *SQLiteIndex) WriteTreaty(r session.TreatyRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- r:
	default:
		s.dropTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropTotal.Load(),
	}
}

// UpsertMeta stores the scenario and tuning a server runs with.
func (s *SQLiteIndex) UpsertMeta(sc *scenario.Scenario, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	tb, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(tb)
	rows := [][2]string{
		{"schema_version", "1"},
		{"tuning", string(tb)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"updated_at", time.Now().UTC().Format(time.RFC3339Nano)},
	}
	if sc != nil {
		rows = append(rows, [2]string{"scenario_name", sc.Name}, [2]string{"scenario_digest", sc.Digest})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r[0], r[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// History returns the most recent treaties player took part in, newest first.
func (s *SQLiteIndex) History(ctx context.Context, player, limit int) ([]TreatyHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT treaty_id, p0, p1, opened_at, opened_turn, COALESCE(closed_at,''), COALESCE(outcome,''), clauses
		FROM treaties
		WHERE p0=? OR p1=?
		ORDER BY opened_at DESC, treaty_id
		LIMIT ?`, player, player, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TreatyHistory
	for rows.Next() {
		var h TreatyHistory
		if err := rows.Scan(&h.TreatyID, &h.P0, &h.P1, &h.OpenedAt, &h.OpenedTurn, &h.ClosedAt, &h.Outcome, &h.Clauses); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Events returns every indexed record of one treaty in write order.
func (s *SQLiteIndex) Events(ctx context.Context, treatyID string) ([]session.TreatyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM treaty_events WHERE treaty_id=? ORDER BY seq`, treatyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.TreatyRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r session.TreatyRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT INTO treaty_events(time,turn,kind,treaty_id,p0,p1,actor,code,reason,text,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertTreaty, _ := s.db.Prepare(`INSERT OR IGNORE INTO treaties(treaty_id,p0,p1,opened_at,opened_turn) VALUES(?,?,?,?,?)`)
	closeTreaty, _ := s.db.Prepare(`UPDATE treaties SET closed_at=?, outcome=? WHERE treaty_id=?`)
	countClause, _ := s.db.Prepare(`UPDATE treaties SET clauses=clauses+? WHERE treaty_id=? AND outcome IS NULL`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEvent, insertTreaty, closeTreaty, countClause} {
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
		commitMaxWait = 2 * time.Second
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
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		ts := r.Time.UTC().Format(time.RFC3339Nano)
		raw, _ := json.Marshal(r)
		if !exec(insertEvent, ts, r.Turn, string(r.Kind), r.TreatyID, r.P0, r.P1, r.Actor, r.Code, r.Reason, r.Text, string(raw)) {
			continue
		}
		switch r.Kind {
		case session.RecordOpened:
			exec(insertTreaty, r.TreatyID, r.P0, r.P1, ts, r.Turn)
		case session.RecordClauseAdded:
			exec(countClause, 1, r.TreatyID)
		case session.RecordClauseRemoved:
			exec(countClause, -1, r.TreatyID)
		case session.RecordFinalized, session.RecordFailed, session.RecordCancelled:
			exec(closeTreaty, ts, string(r.Kind), r.TreatyID)
		}
		// Commit when idle so readers sharing the single connection are not
		// held behind an open transaction.
		if tx != nil && (len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
