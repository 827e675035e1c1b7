package storage

import (
	"context"
	"time"

	"github.com/playlens/pulse/internal/models"
)

// Storage persists question records and per-user pillar weights. The engine
// is the only writer; the digest aggregator and HTTP layer only read.
type Storage interface {
	QuestionStorage
	WeightStorage
	Close() error
}

type QuestionStorage interface {
	// SaveQuestion upserts a question record, including its result row
	// when one is attached.
	SaveQuestion(ctx context.Context, q *models.Question) error

	// GetQuestion returns the question or models.ErrNotFound.
	GetQuestion(ctx context.Context, userID, id string) (*models.Question, error)

	// ListActive returns the user's questions newest first, excluding
	// cancelled records.
	ListActive(ctx context.Context, userID string) ([]*models.Question, error)

	// ListQuestionsBetween returns the user's questions with createdAt in
	// [from, to), oldest first, excluding cancelled records.
	ListQuestionsBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.Question, error)
}

type WeightStorage interface {
	// GetWeights returns the user's weight row, creating the default
	// vector on first use.
	GetWeights(ctx context.Context, userID string) (*models.UserWeights, error)

	// SaveQuestionWithWeights commits a lifecycle transition together
	// with its weight update. Both are written or neither is.
	SaveQuestionWithWeights(ctx context.Context, q *models.Question, w *models.UserWeights) error
}
