package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// sqliteParams are appended to every SQLite DSN unless the caller already set the same
// pragma or parameter. Immediate transactions take the write lock up front so
// busy_timeout applies to writers.
var sqliteParams = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
	"_txlock=immediate",
}

// NewSQLite opens the embedded single-file store at path (a file path or file: URI).
func NewSQLite(ctx context.Context, path string, maxConns int, logger *zap.Logger) (*sql.DB, error) {
	dsn := sqliteDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	logger.Info("SQLite database opened", zap.String("path", path))
	return db, nil
}

func sqliteDSN(path string) string {
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	_, query, _ := strings.Cut(path, "?")
	set := map[string]bool{}
	for _, kv := range strings.Split(query, "&") {
		if key := paramKey(kv); key != "" {
			set[key] = true
		}
	}

	var missing []string
	for _, p := range sqliteParams {
		if !set[paramKey(p)] {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(missing, "&")
}

// paramKey names a DSN parameter: the pragma name for _pragma=name(value), else the key.
func paramKey(kv string) string {
	key, value, _ := strings.Cut(kv, "=")
	if !strings.EqualFold(key, "_pragma") {
		return strings.ToLower(key)
	}
	name, _, _ := strings.Cut(value, "(")
	return "_pragma:" + strings.ToLower(strings.TrimSpace(name))
}
