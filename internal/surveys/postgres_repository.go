package surveys

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workpulse/survey/internal/models"
	"github.com/workpulse/survey/pkg/database"
)

// PostgresRepository stores survey responses in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema applies pending Postgres migrations.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	return storageErr("ensure schema", database.MigratePostgres(ctx, r.pool))
}

// Insert writes the response and its obstacle rows in one transaction.
func (r *PostgresRepository) Insert(ctx context.Context, resp *models.SurveyResponse) (int64, error) {
	if err := checkRecord(resp); err != nil {
		return 0, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, storageErr("insert", err)
	}
	defer tx.Rollback(ctx)

	const query = `INSERT INTO survey_v2
		(name, department, age, future_state, emotion_impact, obstacles, solution, help_channel, avoid, prefer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	var id int64
	err = tx.QueryRow(ctx, query,
		resp.Name, resp.Department, resp.Age, resp.FutureState, resp.EmotionImpact,
		models.JoinObstacles(resp.Obstacles), resp.Solution, resp.HelpChannel, resp.Avoid, resp.Prefer,
		resp.CreatedAt).Scan(&id)
	if err != nil {
		return 0, storageErr("insert", err)
	}

	batch := &pgx.Batch{}
	for i, label := range resp.Obstacles {
		batch.Queue(`INSERT INTO survey_v2_obstacle (response_id, position, label) VALUES ($1, $2, $3)`, id, i, label)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, storageErr("insert obstacle", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storageErr("insert", err)
	}

	resp.ID = id
	resp.ObstaclesText = models.JoinObstacles(resp.Obstacles)
	return id, nil
}

// Count returns the number of stored responses.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM survey_v2`).Scan(&n)
	return n, storageErr("count", err)
}

// CountByDepartment returns per-department counts, largest first.
func (r *PostgresRepository) CountByDepartment(ctx context.Context) ([]models.DepartmentCount, error) {
	const query = `SELECT department, COUNT(*) AS cnt FROM survey_v2
		GROUP BY department
		ORDER BY cnt DESC, department ASC`
	rows, err := r.pool.Query(ctx, query)
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
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]models.SurveyResponse, error) {
	if limit <= 0 {
		return nil, nil
	}
	out, err := r.list(ctx, "recent", selectResponses+` ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	if err := r.loadObstacles(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// All returns every response, oldest first.
func (r *PostgresRepository) All(ctx context.Context) ([]models.SurveyResponse, error) {
	out, err := r.list(ctx, "all", selectResponses+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT response_id, label FROM survey_v2_obstacle
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

func (r *PostgresRepository) list(ctx context.Context, op, query string, args ...any) ([]models.SurveyResponse, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var out []models.SurveyResponse
	for rows.Next() {
		var resp models.SurveyResponse
		if err := rows.Scan(&resp.ID, &resp.Name, &resp.Department, &resp.Age, &resp.FutureState,
			&resp.EmotionImpact, &resp.ObstaclesText, &resp.Solution, &resp.HelpChannel, &resp.Avoid,
			&resp.Prefer, &resp.CreatedAt); err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, resp)
	}
	return out, storageErr(op, rows.Err())
}

func (r *PostgresRepository) loadObstacles(ctx context.Context, responses []models.SurveyResponse) error {
	if len(responses) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(responses))
	for _, resp := range responses {
		ids = append(ids, resp.ID)
	}
	const query = `SELECT response_id, label FROM survey_v2_obstacle
		WHERE response_id = ANY($1)
		ORDER BY response_id, position`
	rows, err := r.pool.Query(ctx, query, ids)
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
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return storageErr("ping", r.pool.Ping(ctx))
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}
