// Package store provides the SQLite-backed persistence layer for trade
// groups and their members. It never interprets runtime/warning semantics
// itself (that is statusengine's job) — it only persists whatever the
// caller hands it and guarantees config_version is monotonically
// increasing per invariant.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tradecopy/relayd/pkg/logging"
)

// Sentinel errors returned by CRUD operations; callers test with errors.Is.
var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

// Config configures the store's on-disk location.
type Config struct {
	DataDir string
}

// Store is a single-writer SQLite handle shared across the relay. All
// public methods take s.mu themselves; callers never lock directly.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	log    *logging.Logger
}

// New opens (creating if necessary) the SQLite database under cfg.DataDir
// and applies the schema and any pending migrations.
func New(cfg Config) (*Store, error) {
	dataDir, err := expandPath(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("store: expand data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "relayd.db")
	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	// SQLite only tolerates one writer; a single pooled connection avoids
	// SQLITE_BUSY churn instead of fighting it with retries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath, log: logging.GetDefault().Component("store")}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

const schema = `
CREATE TABLE IF NOT EXISTS trade_groups (
	id TEXT PRIMARY KEY,
	master_account_id TEXT NOT NULL UNIQUE,
	enabled_flag INTEGER NOT NULL DEFAULT 1,
	symbol_prefix TEXT NOT NULL DEFAULT '',
	symbol_suffix TEXT NOT NULL DEFAULT '',
	runtime_status INTEGER NOT NULL DEFAULT 0,
	warning_codes TEXT NOT NULL DEFAULT '',
	config_version INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_group_members (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL REFERENCES trade_groups(id) ON DELETE CASCADE,
	slave_account_id TEXT NOT NULL,
	enabled_flag INTEGER NOT NULL DEFAULT 1,
	lot_mode TEXT NOT NULL DEFAULT 'multiplier',
	multiplier REAL,
	reverse_trade INTEGER NOT NULL DEFAULT 0,
	symbol_prefix TEXT NOT NULL DEFAULT '',
	symbol_suffix TEXT NOT NULL DEFAULT '',
	symbol_mappings TEXT NOT NULL DEFAULT '',
	copy_pending_orders INTEGER NOT NULL DEFAULT 0,
	source_lot_min REAL,
	source_lot_max REAL,
	allowed_symbols TEXT NOT NULL DEFAULT '',
	blocked_symbols TEXT NOT NULL DEFAULT '',
	allowed_magic_numbers TEXT NOT NULL DEFAULT '',
	blocked_magic_numbers TEXT NOT NULL DEFAULT '',
	sync_policy TEXT NOT NULL DEFAULT 'full',
	max_slippage_points INTEGER NOT NULL DEFAULT 0,
	runtime_status INTEGER NOT NULL DEFAULT 0,
	warning_codes TEXT NOT NULL DEFAULT '',
	allow_new_orders INTEGER NOT NULL DEFAULT 0,
	config_version INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(group_id, slave_account_id)
);

CREATE INDEX IF NOT EXISTS idx_members_group ON trade_group_members(group_id);
CREATE INDEX IF NOT EXISTS idx_members_slave ON trade_group_members(slave_account_id);
`

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	s.runMigrations()
	return nil
}

// runMigrations applies additive ALTER TABLE statements for columns added
// after the initial schema. Errors are ignored: sqlite has no "IF NOT
// EXISTS" for columns, and ErrNotFound-style duplicate-column errors are
// the expected steady state once a migration has already landed.
func (s *Store) runMigrations() {
	migrations := []string{
		`ALTER TABLE trade_group_members ADD COLUMN last_copy_at INTEGER`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			s.log.Debug("migration skipped", "stmt", m, "err", err)
		}
	}
}

func expandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int64) bool {
	return i != 0
}
