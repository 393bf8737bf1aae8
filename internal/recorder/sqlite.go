package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"AllowanceLogger/internal/model"
)

// SQLiteRecorder keeps a queryable history of changes and exports.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS allowance_changes (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			wallet    TEXT NOT NULL,
			name      TEXT,
			mode      TEXT,
			kind      TEXT,
			previous  TEXT,
			current   TEXT,
			diff      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_changes_wallet_ts ON allowance_changes(wallet, timestamp)`,

		`CREATE TABLE IF NOT EXISTS monthly_exports (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			wallet    TEXT NOT NULL,
			name      TEXT,
			month     TEXT NOT NULL,
			total     TEXT,
			path      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_wallet_month ON monthly_exports(wallet, month)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordChange(evt *model.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO allowance_changes
		(timestamp, wallet, name, mode, kind, previous, current, diff)
		VALUES (?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.Wallet, evt.Name, string(evt.Mode), string(evt.Kind),
		evt.Previous.String(), evt.Current.String(), evt.Diff.String(),
	)
	return err
}

func (r *SQLiteRecorder) RecordExport(evt *model.ExportEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO monthly_exports
		(timestamp, wallet, name, month, total, path)
		VALUES (?,?,?,?,?,?)`,
		evt.At.Unix(), evt.Wallet, evt.Name, evt.Month, evt.Total.String(), evt.Path,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
