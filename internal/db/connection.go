package db

import (
	"database/sql"
	"fmt"
	"time"

	"graphgate-go/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Connection manages the SQL database backing the query history.
type Connection struct {
	db     *sql.DB
	driver string
	config config.MySQLConfig
	logger *zap.Logger
}

// Open connects to the history database selected by cfg.Driver.
func Open(cfg config.HistoryConfig, mysqlCfg config.MySQLConfig, logger *zap.Logger) (*Connection, error) {
	switch cfg.Driver {
	case config.HistoryDriverMySQL:
		conn, err := NewMySQLConnection(mysqlCfg, logger)
		if err != nil {
			return nil, err
		}
		if mysqlCfg.Database != "" {
			if err := conn.EnsureDatabase(mysqlCfg.Database); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return conn, nil
	case config.HistoryDriverSQLite, "":
		return NewSQLiteConnection(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unsupported history driver: %s", cfg.Driver)
	}
}

// NewSQLiteConnection opens a SQLite database file. ":memory:" opens a private
// in-memory database.
func NewSQLiteConnection(path string, logger *zap.Logger) (*Connection, error) {
	logger.Info("Opening SQLite database", zap.String("path", path))

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows one writer; an in-memory database also lives in a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	logger.Info("SQLite database ready", zap.String("path", path))
	return &Connection{db: db, driver: config.HistoryDriverSQLite, logger: logger}, nil
}

// NewMySQLConnection creates a new MySQL connection pool
func NewMySQLConnection(cfg config.MySQLConfig, logger *zap.Logger) (*Connection, error) {
	logger.Info("Connecting to MySQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("username", cfg.Username))

	db, err := openMySQL(cfg, "")
	if err != nil {
		return nil, err
	}

	logger.Info("MySQL connection established successfully")
	return &Connection{
		db:     db,
		driver: config.HistoryDriverMySQL,
		config: cfg,
		logger: logger,
	}, nil
}

func mysqlDSN(cfg config.MySQLConfig, dbName string) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		dbName,
	)
	return dsn + "?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci"
}

func openMySQL(cfg config.MySQLConfig, dbName string) (*sql.DB, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg, dbName))
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}
	return db, nil
}

// EnsureDatabase creates the database if it doesn't exist and reconnects to use it
func (c *Connection) EnsureDatabase(dbName string) error {
	if c.driver != config.HistoryDriverMySQL {
		return nil
	}
	c.logger.Info("Ensuring database exists", zap.String("database", dbName))

	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", sanitizeTableName(dbName))
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	c.db.Close()

	db, err := openMySQL(c.config, sanitizeTableName(dbName))
	if err != nil {
		return fmt.Errorf("failed to reconnect to database %s: %w", dbName, err)
	}
	c.db = db

	c.logger.Info("Database ready", zap.String("database", dbName))
	return nil
}

// GetDB returns the underlying sql.DB connection
func (c *Connection) GetDB() *sql.DB {
	return c.db
}

// Driver returns the database/sql driver name in use.
func (c *Connection) Driver() string {
	return c.driver
}

func (c *Connection) Ping() error {
	return c.db.Ping()
}

func (c *Connection) Close() error {
	if c.db != nil {
		c.logger.Info("Closing history database", zap.String("driver", c.driver))
		return c.db.Close()
	}
	return nil
}

// Stats returns database statistics
func (c *Connection) Stats() sql.DBStats {
	return c.db.Stats()
}
