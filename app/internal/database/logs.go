package database

import (
	"time"

	"sysadvisor/app/internal/models"
)

// LogLevel constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogCategory constants
const (
	LogCategorySample    = "sample"
	LogCategoryEmail     = "email"
	LogCategoryRecommend = "recommend"
	LogCategoryTrend     = "trend"
	LogCategorySystem    = "system"
)

// timestampLayout is fixed width so rows sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// DefaultKeepLogs is how many journal rows PruneLogs keeps after each tick.
const DefaultKeepLogs = 10000

// InsertLog adds a journal entry. Subject is usually the tool name.
func InsertLog(level, category, subject, message, details string) error {
	if DB == nil {
		return nil
	}
	_, err := DB.Exec(`INSERT INTO system_logs (timestamp, level, category, subject, message, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(timestampLayout), level, category, subject, message, details)
	return err
}

// GetLogs returns the newest entries first, optionally filtered.
func GetLogs(limit int, level, category, subject string) ([]models.LogEntry, error) {
	if DB == nil {
		return nil, nil
	}

	query := `SELECT id, timestamp, level, category, COALESCE(subject, ''), message, COALESCE(details, '')
		FROM system_logs WHERE 1=1`
	args := []any{}

	if level != "" {
		query += " AND level = ?"
		args = append(args, level)
	}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if subject != "" {
		query += " AND subject = ?"
		args = append(args, subject)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Category, &e.Subject, &e.Message, &e.Details); err != nil {
			return nil, err
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

// CountLogs returns the number of journal rows.
func CountLogs() (int, error) {
	if DB == nil {
		return 0, nil
	}
	var n int
	err := DB.QueryRow(`SELECT COUNT(*) FROM system_logs`).Scan(&n)
	return n, err
}

// PruneLogs keeps only the newest keepCount rows.
func PruneLogs(keepCount int) error {
	if DB == nil {
		return nil
	}
	_, err := DB.Exec(`DELETE FROM system_logs WHERE id NOT IN (
		SELECT id FROM system_logs ORDER BY timestamp DESC, id DESC LIMIT ?
	)`, keepCount)
	return err
}
