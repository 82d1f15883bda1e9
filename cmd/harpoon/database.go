package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openDatabase dials a gorm handle from a DATABASE_URL style string:
// "sqlite://<path>" (or ":memory:") and "postgres://..." / "postgresql://...".
func openDatabase(dburl string, logger *slog.Logger) (*gorm.DB, error) {
	var dial gorm.Dialector
	isSqlite := false

	switch {
	case strings.HasPrefix(dburl, "sqlite://"):
		path := dburl[len("sqlite://"):]
		// ensure the directory exists when a db file is being initialized
		if !strings.Contains(path, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
				return nil, err
			}
		}
		dial = sqlite.Open(path)
		isSqlite = true
	case strings.HasPrefix(dburl, "postgres://"), strings.HasPrefix(dburl, "postgresql://"):
		dial = postgres.Open(dburl)
	default:
		return nil, fmt.Errorf("unsupported or unrecognized DATABASE_URL value: %s", dburl)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(slogGorm.WithLogger(logger)),
	})
	if err != nil {
		return nil, err
	}

	if isSqlite {
		sqldb, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}
