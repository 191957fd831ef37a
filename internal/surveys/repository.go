package surveys

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/workpulse/survey/config"
	"github.com/workpulse/survey/internal/models"
	"github.com/workpulse/survey/pkg/database"
)

// Repository persists survey responses. Implementations must be safe for concurrent use.
type Repository interface {
	// EnsureSchema creates missing tables and indexes. It never drops or alters data.
	EnsureSchema(ctx context.Context) error
	// Insert stores r, assigns r.ID and returns it.
	Insert(ctx context.Context, r *models.SurveyResponse) (int64, error)
	// Count returns the number of stored responses.
	Count(ctx context.Context) (int64, error)
	// CountByDepartment returns per-department counts, count descending then department ascending.
	CountByDepartment(ctx context.Context) ([]models.DepartmentCount, error)
	// Recent returns up to limit full records, newest (highest ID) first.
	Recent(ctx context.Context, limit int) ([]models.SurveyResponse, error)
	// All returns every record, oldest first.
	All(ctx context.Context) ([]models.SurveyResponse, error)
	Ping(ctx context.Context) error
	Close()
}

// ErrStorage is matched by every StorageError via errors.Is.
var ErrStorage = errors.New("storage failure")

// StorageError reports a backend failure: connectivity, constraint violation or cancellation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("survey storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// ValidationError reports malformed or missing client input, keyed by form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "invalid survey response: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// checkRecord rejects records missing a NOT NULL column before they reach the database.
func checkRecord(r *models.SurveyResponse) error {
	if r == nil {
		return &ValidationError{Fields: map[string]string{"response": "is required"}}
	}
	var verr ValidationError
	for field, v := range map[string]string{
		FieldName:          r.Name,
		FieldDepartment:    r.Department,
		FieldFutureState:   r.FutureState,
		FieldEmotionImpact: r.EmotionImpact,
		FieldSolution:      r.Solution,
		FieldHelpChannel:   r.HelpChannel,
		FieldAvoid:         r.Avoid,
		FieldPrefer:        r.Prefer,
	} {
		if strings.TrimSpace(v) == "" {
			verr.add(field, msgRequired)
		}
	}
	if len(r.Obstacles) == 0 {
		verr.add(FieldObstacles, msgObstaclesRequired)
	}
	if r.CreatedAt.IsZero() {
		verr.add("created_at", msgRequired)
	}
	return verr.orNil()
}

const selectResponses = `SELECT id, name, department, age, future_state, emotion_impact, obstacles,
	solution, help_channel, avoid, prefer, created_at
	FROM survey_v2`

// attachObstacles appends (response_id, label) rows, already in position order,
// to the matching response. Rows for other responses are ignored.
func attachObstacles(responses []models.SurveyResponse, next func() bool, scan func(dest ...any) error) error {
	index := make(map[int64]int, len(responses))
	for i, resp := range responses {
		index[resp.ID] = i
	}
	for next() {
		var (
			id    int64
			label string
		)
		if err := scan(&id, &label); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			responses[i].Obstacles = append(responses[i].Obstacles, label)
		}
	}
	return nil
}

// Open connects to the backend selected by cfg, runs EnsureSchema and returns the repository.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Repository, error) {
	var repo Repository
	switch cfg.Driver() {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.DSN(), cfg.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		repo = NewPostgresRepository(pool)
	case config.DriverSQLite:
		db, err := database.NewSQLite(ctx, cfg.DSN(), cfg.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		repo = NewSQLiteRepository(db)
	default:
		return nil, errors.New("unsupported database URL scheme, want postgres:// or sqlite://")
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("survey schema ready", zap.String("driver", cfg.Driver()), zap.Int("schema_version", models.SchemaVersion))
	return repo, nil
}
