// Package database provides the SQLite backing store connection.
//
// A Conn wraps one gorm session whose underlying *sql.DB is capped at a
// single open connection, so one Conn is one store connection. Workers each
// own their own Conn; nothing here is shared across workers.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kvstore-api/internal/apperrors"
	"kvstore-api/internal/connection"
	"kvstore-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Options controls how connections are opened.
type Options struct {
	// Path is the SQLite database file. It is created if missing.
	Path string
	// LogLevel is the gorm SQL log level.
	LogLevel logger.LogLevel
}

// DSN builds the SQLite connection string for path. WAL plus a busy timeout
// lets many worker connections write to the same file.
func DSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// ParseLogLevel maps a config string onto a gorm log level. Unknown values
// fall back to Warn.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Conn is a single backing store connection.
type Conn struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Open opens one store connection and verifies it with a ping.
func Open(ctx context.Context, opts Options) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	db, err := gorm.Open(sqlite.Open(DSN(opts.Path)), &gorm.Config{
		Logger:                 logger.Default.LogMode(opts.LogLevel),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Conn{db: db, sqlDB: sqlDB}, nil
}

// Migrate creates the kv_store table if it does not exist.
func Migrate(ctx context.Context, opts Options) error {
	conn, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.db.WithContext(ctx).AutoMigrate(&models.KVPair{}); err != nil {
		return fmt.Errorf("migrate kv_store: %w", err)
	}
	return nil
}

// Ping issues a minimal round-trip query.
func (c *Conn) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("connection is closed")
	}
	var one int
	if err := c.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("liveness probe: %w", err)
	}
	return nil
}

// Upsert inserts the row or overwrites the value of an existing key.
func (c *Conn) Upsert(ctx context.Context, key int64, value string) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("connection is closed")
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.KVPair{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("upsert key %d: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or apperrors.ErrNotFound.
func (c *Conn) Get(ctx context.Context, key int64) (string, error) {
	if c == nil || c.db == nil {
		return "", fmt.Errorf("connection is closed")
	}
	var row models.KVPair
	err := c.db.WithContext(ctx).Where(`"key" = ?`, key).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("select key %d: %w", key, err)
	}
	return row.Value, nil
}

// Delete removes key and returns the number of rows affected.
func (c *Conn) Delete(ctx context.Context, key int64) (int64, error) {
	if c == nil || c.db == nil {
		return 0, fmt.Errorf("connection is closed")
	}
	res := c.db.WithContext(ctx).Where(`"key" = ?`, key).Delete(&models.KVPair{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete key %d: %w", key, res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	if c == nil || c.sqlDB == nil {
		return nil
	}
	err := c.sqlDB.Close()
	c.db = nil
	c.sqlDB = nil
	return err
}

// NewDialer returns a connection.Dialer that opens SQLite connections with opts.
func NewDialer(opts Options) connection.Dialer {
	return func(ctx context.Context) (connection.Conn, error) {
		conn, err := Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
