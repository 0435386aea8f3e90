// Package scaledb keeps the registry of monitored scales.
// Only the scale monitor writes to it.
package scaledb

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var (
	dbTypeOnce sync.Once
	// dbmigrator keeps package state, so migrations run one at a time.
	migrateMu sync.Mutex
)

type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; the poller writes concurrently.
	db.SetMaxOpenConns(1)

	// Create DB before migrations
	if _, err := db.Exec("SELECT 1;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		log.Warn().Err(err).Msg("failed to set sqlite busy timeout")
	}

	dbTypeOnce.Do(func() {
		dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	})
	migrateMu.Lock()
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
	migrateMu.Unlock()

	log.Info().Msgf("scale database ready at %s", path)
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
