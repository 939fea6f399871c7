package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"praxis-website/internal/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// sqliteDialector opens path with the pure Go driver and foreign keys enforced
func sqliteDialector(path string) (gorm.Dialector, error) {
	if path == "" {
		path = "./data/praxis.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
		Conn:       sqlDB,
	}, nil
}

// OpenSQLite opens and migrates a SQLite database at path
func OpenSQLite(path string) (*GormDB, error) {
	gdb, err := Open(config.DatabaseConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: path},
	})
	if err != nil {
		return nil, err
	}
	if err := gdb.InitSchema(); err != nil {
		gdb.Close()
		return nil, err
	}
	return gdb, nil
}
