package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/playlens/pulse/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) SaveQuestion(ctx context.Context, q *models.Question) error {
	return s.saveQuestionIn(ctx, s.db, q)
}

// execer covers both *sql.DB and *sql.Tx so the same upsert serves the
// transactional path.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStorage) saveQuestionIn(ctx context.Context, db execer, q *models.Question) error {
	intentJSON, err := marshalNullable(q.Intent)
	if err != nil {
		return fmt.Errorf("error encoding intent: %v", err)
	}
	clarificationsJSON, err := marshalNullable(q.ClarifyingQuestions)
	if err != nil {
		return fmt.Errorf("error encoding clarifying questions: %v", err)
	}
	briefJSON, err := marshalNullable(q.Brief)
	if err != nil {
		return fmt.Errorf("error encoding brief: %v", err)
	}

	query := `
		INSERT INTO questions (id, user_id, question_text, source, status, intent, clarifying_questions, clarifications_final, brief, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			intent = EXCLUDED.intent,
			clarifying_questions = EXCLUDED.clarifying_questions,
			clarifications_final = EXCLUDED.clarifications_final,
			brief = EXCLUDED.brief`

	if _, err := db.ExecContext(ctx, query,
		q.ID, q.UserID, q.Text, string(q.Source), string(q.Status),
		intentJSON, clarificationsJSON, q.ClarificationsFinal, briefJSON, q.CreatedAt,
	); err != nil {
		return fmt.Errorf("error saving question: %v", err)
	}

	if q.Result != nil {
		metricsJSON, err := marshalNullable(q.Result.Metrics)
		if err != nil {
			return fmt.Errorf("error encoding result metrics: %v", err)
		}
		resultQuery := `
			INSERT INTO analysis_results (question_id, summary, metrics, computed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (question_id) DO NOTHING`
		if _, err := db.ExecContext(ctx, resultQuery,
			q.ID, q.Result.Summary, metricsJSON, q.Result.ComputedAt,
		); err != nil {
			return fmt.Errorf("error saving analysis result: %v", err)
		}
	}

	return nil
}

const questionColumns = `
	q.id, q.user_id, q.question_text, q.source, q.status,
	q.intent, q.clarifying_questions, q.clarifications_final, q.brief, q.created_at,
	r.summary, r.metrics, r.computed_at`

const questionFrom = `
	FROM questions q
	LEFT JOIN analysis_results r ON r.question_id = q.id`

func (s *PostgresStorage) GetQuestion(ctx context.Context, userID, id string) (*models.Question, error) {
	query := `SELECT ` + questionColumns + questionFrom + `
		WHERE q.id = $1 AND q.user_id = $2`

	q, err := scanQuestion(s.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying question: %v", err)
	}
	return q, nil
}

func (s *PostgresStorage) ListActive(ctx context.Context, userID string) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + questionFrom + `
		WHERE q.user_id = $1 AND q.status <> 'cancelled'
		ORDER BY q.created_at DESC`

	return s.queryQuestions(ctx, query, userID)
}

func (s *PostgresStorage) ListQuestionsBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + questionFrom + `
		WHERE q.user_id = $1 AND q.status <> 'cancelled'
			AND q.created_at >= $2 AND q.created_at < $3
		ORDER BY q.created_at ASC`

	return s.queryQuestions(ctx, query, userID, from, to)
}

func (s *PostgresStorage) queryQuestions(ctx context.Context, query string, args ...any) ([]*models.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying questions: %v", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning question: %v", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %v", err)
	}
	return questions, nil
}

func (s *PostgresStorage) GetWeights(ctx context.Context, userID string) (*models.UserWeights, error) {
	query := `SELECT weights, updated_at FROM user_weights WHERE user_id = $1`

	var weightsJSON []byte
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&weightsJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserWeights{
			UserID:    userID,
			Weights:   models.DefaultPillarWeights(),
			UpdatedAt: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying weights: %v", err)
	}

	var weights models.PillarWeights
	if err := json.Unmarshal(weightsJSON, &weights); err != nil {
		return nil, fmt.Errorf("error decoding weights: %v", err)
	}

	return &models.UserWeights{
		UserID:    userID,
		Weights:   weights.Normalized(),
		UpdatedAt: updatedAt,
	}, nil
}

func (s *PostgresStorage) SaveQuestionWithWeights(ctx context.Context, q *models.Question, w *models.UserWeights) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback()

	if err := s.saveQuestionIn(ctx, tx, q); err != nil {
		return err
	}

	weightsJSON, err := json.Marshal(w.Weights)
	if err != nil {
		return fmt.Errorf("error encoding weights: %v", err)
	}
	query := `
		INSERT INTO user_weights (user_id, weights, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			weights = EXCLUDED.weights,
			updated_at = EXCLUDED.updated_at`
	if _, err := tx.ExecContext(ctx, query, w.UserID, weightsJSON, w.UpdatedAt); err != nil {
		return fmt.Errorf("error saving weights: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q                  models.Question
		source, status     string
		intentJSON         []byte
		clarificationsJSON []byte
		briefJSON          []byte
		resultSummary      sql.NullString
		resultMetricsJSON  []byte
		resultComputedAt   sql.NullTime
	)

	err := row.Scan(
		&q.ID, &q.UserID, &q.Text, &source, &status,
		&intentJSON, &clarificationsJSON, &q.ClarificationsFinal, &briefJSON, &q.CreatedAt,
		&resultSummary, &resultMetricsJSON, &resultComputedAt,
	)
	if err != nil {
		return nil, err
	}

	q.Source = models.Source(source)
	q.Status = models.Status(status)
	if !models.IsValidStatus(q.Status) {
		return nil, fmt.Errorf("invalid status %q for question %s", status, q.ID)
	}

	if len(intentJSON) > 0 {
		q.Intent = &models.IntentClassification{}
		if err := json.Unmarshal(intentJSON, q.Intent); err != nil {
			return nil, fmt.Errorf("error decoding intent: %v", err)
		}
	}
	if len(clarificationsJSON) > 0 {
		if err := json.Unmarshal(clarificationsJSON, &q.ClarifyingQuestions); err != nil {
			return nil, fmt.Errorf("error decoding clarifying questions: %v", err)
		}
	}
	if len(briefJSON) > 0 {
		q.Brief = &models.AnalysisBrief{}
		if err := json.Unmarshal(briefJSON, q.Brief); err != nil {
			return nil, fmt.Errorf("error decoding brief: %v", err)
		}
	}
	if resultSummary.Valid {
		result := &models.AnalysisResult{
			QuestionID: q.ID,
			Summary:    resultSummary.String,
			ComputedAt: resultComputedAt.Time,
		}
		if len(resultMetricsJSON) > 0 {
			if err := json.Unmarshal(resultMetricsJSON, &result.Metrics); err != nil {
				return nil, fmt.Errorf("error decoding result metrics: %v", err)
			}
		}
		q.Result = result
	}

	return &q, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case *models.IntentClassification:
		if val == nil {
			return nil, nil
		}
	case *models.AnalysisBrief:
		if val == nil {
			return nil, nil
		}
	case []models.ClarifyingQuestion:
		if val == nil {
			return nil, nil
		}
	case map[string]any:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
