package database

import (
	"fmt"
	"os"
	"path/filepath"

	"nayancam/internal/config"
	"nayancam/internal/drive"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// In-memory databases are migrated on creation; on-disk databases must be
// migrated with "nayancam db migrate".
func NewDatabaseFromConfig(cfg config.DatabaseConfig, deviceID string, clock drive.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, deviceID+".db")
		return NewSQLiteDatabase(dbPath, clock)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
