package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger is a supplemented sqlite-backed migration/sync-cursor table: it
// does not hold bundle records (those are plain RLP files under Service),
// it only remembers each wallet manager's last-synced begin/end block and
// completed/success flags
// across process restarts, so a fresh process resumes rather than
// re-requesting from genesis. Grounded in internal/storage.Storage's
// WAL/single-writer pattern.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if absent) the sqlite migration ledger under
// <basePath>/<fsIdentifier>/ledger.db.
func OpenLedger(basePath, fsIdentifier string) (*Ledger, error) {
	dir := filepath.Join(basePath, fsIdentifier)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("store: ledger dir: %w", err)
	}
	dbPath := filepath.Join(dir, "ledger.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ledger schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS sync_cursor (
		network TEXT NOT NULL,
		currency TEXT NOT NULL,
		begin_block INTEGER NOT NULL,
		end_block INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		success INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (network, currency)
	);
	`)
	return err
}

// Cursor is the persisted sync progress marker for one (network,
// currency) pair.
type Cursor struct {
	BeginBlock uint64
	EndBlock uint64
	Completed bool
	Success bool
}

// SaveCursor upserts the sync cursor for (network, currency).
func (l *Ledger) SaveCursor(network, currency string, c Cursor) error {
	_, err := l.db.Exec(`
	INSERT INTO sync_cursor (network, currency, begin_block, end_block, completed, success, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(network, currency) DO UPDATE SET
		begin_block = excluded.begin_block,
		end_block = excluded.end_block,
		completed = excluded.completed,
		success = excluded.success,
		updated_at = excluded.updated_at
	`, network, currency, c.BeginBlock, c.EndBlock, c.Completed, c.Success, time.Now().Unix())
	return err
}

// LoadCursor returns the persisted cursor, if any.
func (l *Ledger) LoadCursor(network, currency string) (Cursor, bool, error) {
	row := l.db.QueryRow(`
	SELECT begin_block, end_block, completed, success FROM sync_cursor
	WHERE network = ? AND currency = ?
	`, network, currency)

	var c Cursor
	if err := row.Scan(&c.BeginBlock, &c.EndBlock, &c.Completed, &c.Success); err != nil {
		if err == sql.ErrNoRows {
			return Cursor{}, false, nil
		}
		return Cursor{}, false, err
	}
	return c, true, nil
}

// Close closes the underlying database handle.
func (l *Ledger) Close() error { return l.db.Close() }
