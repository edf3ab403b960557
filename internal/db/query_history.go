package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"graphgate-go/internal/config"

	"go.uber.org/zap"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// QueryRecord is one journaled graph operation.
type QueryRecord struct {
	ID            int64         `db:"id" json:"id"`
	CorrelationID string        `db:"correlation_id" json:"correlationId"`
	Function      string        `db:"function_name" json:"function"`
	Query         string        `db:"query_text" json:"query,omitempty"`
	Status        string        `db:"status" json:"status"`
	ErrorCode     string        `db:"error_code" json:"errorCode,omitempty"`
	ErrorMessage  string        `db:"error_message" json:"errorMessage,omitempty"`
	RecordCount   int           `db:"record_count" json:"recordCount"`
	Duration      time.Duration `db:"duration_ms" json:"durationMs"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}

// HistoryStats summarizes the journal.
type HistoryStats struct {
	Total    int64 `json:"total"`
	Failures int64 `json:"failures"`
}

// QueryHistoryRepository stores QueryRecords in a SQLite or MySQL table.
type QueryHistoryRepository struct {
	db      *sql.DB
	dialect string
	prefix  string
	logger  *zap.Logger
}

var (
	invalidTableNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	edgeUnderscores       = regexp.MustCompile(`^_+|_+$`)
	repeatedUnderscores   = regexp.MustCompile(`_+`)
)

// sanitizeTableName converts a free-form name into a valid SQL identifier.
// Every character other than letters, digits and underscores becomes an
// underscore; runs are collapsed and the edges trimmed.
func sanitizeTableName(name string) string {
	sanitized := invalidTableNameChars.ReplaceAllString(name, "_")
	sanitized = edgeUnderscores.ReplaceAllString(sanitized, "")
	return repeatedUnderscores.ReplaceAllString(sanitized, "_")
}

// NewQueryHistoryRepository creates the repository and its table.
func NewQueryHistoryRepository(conn *Connection, prefix string, logger *zap.Logger) (*QueryHistoryRepository, error) {
	repo := &QueryHistoryRepository{
		db:      conn.GetDB(),
		dialect: conn.Driver(),
		prefix:  prefix,
		logger:  logger,
	}

	if err := repo.EnsureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure table: %w", err)
	}
	return repo, nil
}

func (r *QueryHistoryRepository) bareTableName() string {
	return sanitizeTableName(r.prefix + "_query_history")
}

// tableName returns the sanitized table name with backticks. Both MySQL and
// SQLite accept backtick quoting.
func (r *QueryHistoryRepository) tableName() string {
	return fmt.Sprintf("`%s`", r.bareTableName())
}

// EnsureTable creates the history table and its correlation index.
func (r *QueryHistoryRepository) EnsureTable() error {
	tableName := r.tableName()
	r.logger.Info("Ensuring query history table exists", zap.String("table", tableName))

	var statements []string
	if r.dialect == config.HistoryDriverMySQL {
		statements = []string{fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				correlation_id VARCHAR(64) NOT NULL,
				function_name VARCHAR(64) NOT NULL,
				query_text TEXT,
				status VARCHAR(16) NOT NULL,
				error_code VARCHAR(255),
				error_message TEXT,
				record_count INT NOT NULL DEFAULT 0,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
				INDEX idx_correlation_id (correlation_id),
				INDEX idx_status (status)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
		`, tableName)}
	} else {
		bare := r.bareTableName()
		statements = []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					correlation_id TEXT NOT NULL,
					function_name TEXT NOT NULL,
					query_text TEXT,
					status TEXT NOT NULL,
					error_code TEXT,
					error_message TEXT,
					record_count INTEGER NOT NULL DEFAULT 0,
					duration_ms INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)
			`, tableName),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS `idx_%s_correlation_id` ON %s (correlation_id)", bare, tableName),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS `idx_%s_status` ON %s (status)", bare, tableName),
		}
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	r.logger.Info("Table ready", zap.String("table", tableName))
	return nil
}

// Record inserts rec and sets its ID. A zero CreatedAt is set to now.
func (r *QueryHistoryRepository) Record(ctx context.Context, rec *QueryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (correlation_id, function_name, query_text, status, error_code, error_message, record_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.tableName())

	result, err := r.db.ExecContext(ctx, query,
		rec.CorrelationID,
		rec.Function,
		nullString(rec.Query),
		rec.Status,
		nullString(rec.ErrorCode),
		nullString(rec.ErrorMessage),
		rec.RecordCount,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	rec.ID = id

	r.logger.Debug("Recorded query",
		zap.Int64("id", id),
		zap.String("correlation_id", rec.CorrelationID),
		zap.String("function", rec.Function),
		zap.String("status", rec.Status))
	return nil
}

// ListByCorrelation returns every record for correlationID in insertion order.
func (r *QueryHistoryRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]*QueryRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, correlation_id, function_name, query_text, status, error_code, error_message, record_count, duration_ms, created_at
		FROM %s
		WHERE correlation_id = ?
		ORDER BY id ASC
	`, r.tableName())

	rows, err := r.db.QueryContext(ctx, query, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*QueryRecord{}
	for rows.Next() {
		var (
			rec                        QueryRecord
			queryText, errCode, errMsg sql.NullString
			durationMs                 int64
		)
		err := rows.Scan(
			&rec.ID,
			&rec.CorrelationID,
			&rec.Function,
			&queryText,
			&rec.Status,
			&errCode,
			&errMsg,
			&rec.RecordCount,
			&durationMs,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Query = queryText.String
		rec.ErrorCode = errCode.String
		rec.ErrorMessage = errMsg.String
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// GetStats returns totals across the whole journal.
func (r *QueryHistoryRepository) GetStats(ctx context.Context) (HistoryStats, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failures
		FROM %s
	`, r.tableName())

	var stats HistoryStats
	err := r.db.QueryRowContext(ctx, query, StatusFailure).Scan(&stats.Total, &stats.Failures)
	return stats, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
