package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	// PostgreSQL driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store wraps the database handle and hands out repositories. Queries are
// built with ent's dialect-aware SQL builder so the same code runs against
// the hosted PostgreSQL database and a local SQLite file.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string
}

// Open connects to the database described by driver and dsn.
func Open(driver, dsn string) (*Store, error) {
	var (
		db          *sql.DB
		err         error
		dialectName string
	)

	switch driver {
	case DriverSQLite, "":
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		// One connection keeps in-memory databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
		dialectName = dialect.SQLite
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		dialectName = dialect.Postgres
	default:
		return nil, fmt.Errorf("unknown database driver: %q", driver)
	}

	return &Store{
		db:      db,
		drv:     entsql.OpenDB(dialectName, db),
		dialect: dialectName,
	}, nil
}

// Migrate creates or updates the tables this service reads and writes.
// Production tables are owned by the hosted database; this is meant for
// local SQLite files and tests.
func (s *Store) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the ent dialect name ("sqlite3" or "postgres").
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Activity returns the student_activity repository.
func (s *Store) Activity() ActivityRepo { return &activityRepo{s: s} }

// Snapshots returns the mastery_snapshots repository.
func (s *Store) Snapshots() SnapshotRepo { return &snapshotRepo{s: s} }

// Profiles returns the profiles repository.
func (s *Store) Profiles() ProfileRepo { return &profileRepo{s: s} }

// Tasks returns the stories_and_telegram repository.
func (s *Store) Tasks() TaskRepo { return &taskRepo{s: s} }

// QuestionBank returns the question bank repository.
func (s *Store) QuestionBank() QuestionBankRepo { return &questionBankRepo{s: s} }

// Homework returns the homework_progress repository.
func (s *Store) Homework() HomeworkRepo { return &homeworkRepo{s: s} }

// Events returns the LLM request event repository.
func (s *Store) Events() EventRepo { return &eventRepo{s: s} }

// sqliteDSN pins the write time format so stored timestamps compare
// correctly as text.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

// applyPragmas configures SQLite for a single-process service.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultSQLitePath resolves the local database file path in priority order:
// 1. $XDG_DATA_HOME/taskforge/taskforge.db
// 2. ~/.local/share/taskforge/taskforge.db
func DefaultSQLitePath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "taskforge", "taskforge.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
