package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playlens/pulse/internal/models"
)

func newQuestion(id, userID string, status models.Status, createdAt time.Time) *models.Question {
	return &models.Question{
		ID:        id,
		UserID:    userID,
		Text:      "text for " + id,
		Source:    models.SourceWeb,
		Status:    status,
		CreatedAt: createdAt,
	}
}

func TestMemoryStorageQuestionRoundTrip(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now()

	answer := "30 days"
	q := newQuestion("q1", "u1", models.StatusWaitingForAnswers, now)
	q.ClarifyingQuestions = []models.ClarifyingQuestion{
		{Question: "Over what time window?", Answer: &answer},
	}
	require.NoError(t, store.SaveQuestion(ctx, q))

	// Mutating the caller's copy must not leak into the store.
	*q.ClarifyingQuestions[0].Answer = "mutated"
	q.Status = models.StatusCancelled

	got, err := store.GetQuestion(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingForAnswers, got.Status)
	assert.Equal(t, "30 days", *got.ClarifyingQuestions[0].Answer)

	_, err = store.GetQuestion(ctx, "u2", "q1")
	assert.True(t, errors.Is(err, models.ErrNotFound), "question ids are scoped to their user")

	_, err = store.GetQuestion(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestMemoryStorageListActiveExcludesCancelled(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveQuestion(ctx, newQuestion("q1", "u1", models.StatusQueued, now.Add(-2*time.Hour))))
	require.NoError(t, store.SaveQuestion(ctx, newQuestion("q2", "u1", models.StatusCancelled, now.Add(-time.Hour))))
	require.NoError(t, store.SaveQuestion(ctx, newQuestion("q3", "u1", models.StatusReady, now)))

	active, err := store.ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	// Newest first.
	assert.Equal(t, "q3", active[0].ID)
	assert.Equal(t, "q1", active[1].ID)
}

func TestMemoryStorageListBetween(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveQuestion(ctx, newQuestion("early", "u1", models.StatusQueued, base.Add(-time.Minute))))
	require.NoError(t, store.SaveQuestion(ctx, newQuestion("in1", "u1", models.StatusQueued, base)))
	require.NoError(t, store.SaveQuestion(ctx, newQuestion("in2", "u1", models.StatusReady, base.Add(time.Hour))))
	require.NoError(t, store.SaveQuestion(ctx, newQuestion("boundary", "u1", models.StatusQueued, base.Add(24*time.Hour))))

	got, err := store.ListQuestionsBetween(ctx, "u1", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2, "window is inclusive at the start, exclusive at the end")
	// Oldest first.
	assert.Equal(t, "in1", got[0].ID)
	assert.Equal(t, "in2", got[1].ID)
}

func TestMemoryStorageWeightsDefaultOnFirstUse(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	w, err := store.GetWeights(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPillarWeights(), w.Weights)
}

func TestMemoryStorageSaveQuestionWithWeights(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now()

	q := newQuestion("q1", "u1", models.StatusQueued, now)
	updated := models.DefaultPillarWeights()
	updated[models.PillarRetention] = 0.575
	require.NoError(t, store.SaveQuestionWithWeights(ctx, q, &models.UserWeights{
		UserID:    "u1",
		Weights:   updated,
		UpdatedAt: now,
	}))

	gotQ, err := store.GetQuestion(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, gotQ.Status)

	gotW, err := store.GetWeights(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.575, gotW.Weights[models.PillarRetention])
	assert.Equal(t, now, gotW.UpdatedAt)
}
