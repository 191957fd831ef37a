package surveys

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/workpulse/survey/internal/models"
	"github.com/workpulse/survey/pkg/database"
)

// SQLiteRepository stores survey responses in an embedded SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// EnsureSchema applies pending SQLite migrations.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	return storageErr("ensure schema", database.MigrateSQLite(ctx, r.db))
}

// Insert writes the response and its obstacle rows in one transaction.
func (r *SQLiteRepository) Insert(ctx context.Context, resp *models.SurveyResponse) (int64, error) {
	if err := checkRecord(resp); err != nil {
		return 0, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("insert", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO survey_v2
		(name, department, age, future_state, emotion_impact, obstacles, solution, help_channel, avoid, prefer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query,
		resp.Name, resp.Department, resp.Age, resp.FutureState, resp.EmotionImpact,
		models.JoinObstacles(resp.Obstacles), resp.Solution, resp.HelpChannel, resp.Avoid, resp.Prefer,
		resp.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, storageErr("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("insert", err)
	}

	const obstacleQuery = `INSERT INTO survey_v2_obstacle (response_id, position, label) VALUES (?, ?, ?)`
	for i, label := range resp.Obstacles {
		if _, err := tx.ExecContext(ctx, obstacleQuery, id, i, label); err != nil {
			return 0, storageErr("insert obstacle", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("insert", err)
	}

	resp.ID = id
	resp.ObstaclesText = models.JoinObstacles(resp.Obstacles)
	return id, nil
}

// Count returns the number of stored responses.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM survey_v2`).Scan(&n)
	return n, storageErr("count", err)
}

// CountByDepartment returns per-department counts, largest first.
func (r *SQLiteRepository) CountByDepartment(ctx context.Context) ([]models.DepartmentCount, error) {
	const query = `SELECT department, COUNT(*) AS cnt FROM survey_v2
		GROUP BY department
		ORDER BY cnt DESC, department ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("count by department", err)
	}
	defer rows.Close()

	var out []models.DepartmentCount
	for rows.Next() {
		var dc models.DepartmentCount
		if err := rows.Scan(&dc.Department, &dc.Count); err != nil {
			return nil, storageErr("count by department", err)
		}
		out = append(out, dc)
	}
	return out, storageErr("count by department", rows.Err())
}

// Recent returns up to limit responses, newest first, with their obstacle labels.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]models.SurveyResponse, error) {
	if limit <= 0 {
		return nil, nil
	}
	out, err := r.list(ctx, "recent", selectResponses+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	if err := r.loadObstacles(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// All returns every response, oldest first.
func (r *SQLiteRepository) All(ctx context.Context) ([]models.SurveyResponse, error) {
	out, err := r.list(ctx, "all", selectResponses+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT response_id, label FROM survey_v2_obstacle
		ORDER BY response_id, position`)
	if err != nil {
		return nil, storageErr("load obstacles", err)
	}
	defer rows.Close()
	if err := attachObstacles(out, rows.Next, rows.Scan); err != nil {
		return nil, storageErr("load obstacles", err)
	}
	return out, storageErr("load obstacles", rows.Err())
}

func (r *SQLiteRepository) list(ctx context.Context, op, query string, args ...any) ([]models.SurveyResponse, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var out []models.SurveyResponse
	for rows.Next() {
		var (
			resp      models.SurveyResponse
			createdAt string
		)
		if err := rows.Scan(&resp.ID, &resp.Name, &resp.Department, &resp.Age, &resp.FutureState,
			&resp.EmotionImpact, &resp.ObstaclesText, &resp.Solution, &resp.HelpChannel, &resp.Avoid,
			&resp.Prefer, &createdAt); err != nil {
			return nil, storageErr(op, err)
		}
		resp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, storageErr(op, fmt.Errorf("parse created_at of response %d: %w", resp.ID, err))
		}
		out = append(out, resp)
	}
	return out, storageErr(op, rows.Err())
}

func (r *SQLiteRepository) loadObstacles(ctx context.Context, responses []models.SurveyResponse) error {
	if len(responses) == 0 {
		return nil
	}
	args := make([]any, 0, len(responses))
	for _, resp := range responses {
		args = append(args, resp.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	query := `SELECT response_id, label FROM survey_v2_obstacle
		WHERE response_id IN (` + placeholders + `)
		ORDER BY response_id, position`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storageErr("load obstacles", err)
	}
	defer rows.Close()

	if err := attachObstacles(responses, rows.Next, rows.Scan); err != nil {
		return storageErr("load obstacles", err)
	}
	return storageErr("load obstacles", rows.Err())
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return storageErr("ping", r.db.PingContext(ctx))
}

// Close releases the underlying connection pool.
func (r *SQLiteRepository) Close() {
	_ = r.db.Close()
}
