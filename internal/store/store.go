package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/datallboy/gothumb/internal/infra/config"
)

var ErrNotFound = errors.New("image not found in store")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// PersistentStore keeps raw image bytes on disk and their metadata in SQLite or Postgres.
type PersistentStore struct {
	db      *sql.DB
	driver  string
	blobDir string
}

func NewPersistentStore(ctx context.Context, cfg config.StoreConfig) (*PersistentStore, error) {
	// Ensure the blob directory exist
	if err := os.MkdirAll(cfg.BlobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		db, err = openSQLite(cfg.SQLitePath)
	case DriverPostgres:
		db, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			err = fmt.Errorf("failed to open postgres: %w", err)
		}
	default:
		err = fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	// Ping makes sure the database is actually reachable and the DSN is valid
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	store := &PersistentStore{db: db, driver: driver, blobDir: cfg.BlobDir}

	if err := store.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return store, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	// Ensure the database directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return db, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *PersistentStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *PersistentStore) blobPath(key string) string {
	return filepath.Join(s.blobDir, key+".img")
}

func (s *PersistentStore) Driver() string { return s.driver }

func (s *PersistentStore) Close() error {
	return s.db.Close()
}
