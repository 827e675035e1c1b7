package digest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playlens/pulse/internal/models"
	"github.com/playlens/pulse/internal/storage"
	"github.com/playlens/pulse/internal/weights"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newGenerator(store *storage.MemoryStorage, now time.Time) *Generator {
	return &Generator{
		Questions: store,
		Weights:   store,
		Policy:    weights.DefaultPolicy(),
		Clock:     fixedClock{now: now},
	}
}

func seedQuestion(t *testing.T, store *storage.MemoryStorage, userID string, pillar models.Pillar, text string, createdAt time.Time) {
	t.Helper()
	q := &models.Question{
		ID:        fmt.Sprintf("%s-%s-%d", userID, pillar, createdAt.UnixNano()),
		UserID:    userID,
		Text:      text,
		Source:    models.SourceWeb,
		CreatedAt: createdAt,
		Status:    models.StatusQueued,
		Intent: &models.IntentClassification{
			Pillars:       []models.Pillar{pillar},
			Confidence:    0.9,
			PrimaryPillar: pillar,
		},
	}
	require.NoError(t, store.SaveQuestion(context.Background(), q))
}

func TestGenerateWeeklyDigest(t *testing.T) {
	store := storage.NewMemoryStorage()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	gen := newGenerator(store, now)

	// Two retention questions, one monetization, inside the week.
	seedQuestion(t, store, "u1", models.PillarRetention, "Why did churn spike?", now.Add(-6*24*time.Hour))
	seedQuestion(t, store, "u1", models.PillarRetention, "Is D7 retention recovering?", now.Add(-3*24*time.Hour))
	seedQuestion(t, store, "u1", models.PillarMonetization, "How is ARPDAU doing?", now.Add(-24*time.Hour))
	// Outside the window: ignored.
	seedQuestion(t, store, "u1", models.PillarSocial, "Old guild question", now.Add(-10*24*time.Hour))
	// Another user: ignored.
	seedQuestion(t, store, "u2", models.PillarStore, "Store conversion?", now.Add(-24*time.Hour))

	report, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalQuestions)
	assert.Equal(t, now.Add(-7*24*time.Hour), report.WeekStart)
	assert.Equal(t, now, report.WeekEnd)

	require.Len(t, report.TopPillars, 2)
	assert.Equal(t, models.PillarRetention, report.TopPillars[0].Pillar)
	assert.InDelta(t, 66.7, report.TopPillars[0].SharePercent, 0.1)
	assert.Equal(t, models.PillarMonetization, report.TopPillars[1].Pillar)
	assert.InDelta(t, 33.3, report.TopPillars[1].SharePercent, 0.1)
	// Weight column carries the Weight Store value, not the share.
	assert.Equal(t, models.DefaultWeight, report.TopPillars[0].Weight)

	require.Len(t, report.Insights, 2)
	assert.Equal(t, models.TrendStable, report.Insights[0].Trend, "two questions split evenly")
	assert.NotEmpty(t, report.Insights[0].Summary)
	assert.NotEmpty(t, report.Insights[0].Recommendation)
	assert.Equal(t, []string{"Why did churn spike?", "Is D7 retention recovering?"}, report.Insights[0].SupportingQuestions)

	// The top share exceeds 60%, so a diversification item is appended.
	require.NotEmpty(t, report.ActionItems)
	assert.Contains(t, report.ActionItems[0], "retention")
	assert.Contains(t, report.ActionItems[0], "66.7")
	found := false
	for _, item := range report.ActionItems {
		if strings.Contains(item, "Diversify") {
			found = true
		}
	}
	assert.True(t, found, "expected a diversification action, got %v", report.ActionItems)

	// Focus includes a pillar absent from the top ranking.
	require.NotEmpty(t, report.NextWeekFocus)
	assert.Contains(t, report.NextWeekFocus[0], "engagement")
}

func TestDigestBounds(t *testing.T) {
	store := storage.NewMemoryStorage()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	gen := newGenerator(store, now)

	// Five pillars with rising volume so every item generator has input.
	pillars := models.AllPillars()
	for i, pillar := range pillars[:5] {
		for j := 0; j <= i; j++ {
			seedQuestion(t, store, "u1", pillar,
				fmt.Sprintf("%s question %d", pillar, j),
				now.Add(-time.Duration(6*24-i*24-j)*time.Hour))
		}
	}

	report, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(report.TopPillars), 3)
	assert.LessOrEqual(t, len(report.ActionItems), 3)
	assert.LessOrEqual(t, len(report.NextWeekFocus), 2)
	assert.LessOrEqual(t, len(report.Insights), 3)
	for _, insight := range report.Insights {
		assert.LessOrEqual(t, len(insight.SupportingQuestions), 3)
	}
}

func TestDigestTrendSplit(t *testing.T) {
	// The window's temporal midpoint sits 3.5 days before now; volume is
	// compared between the two halves.
	store := storage.NewMemoryStorage()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	gen := newGenerator(store, now)

	// One question in the first half, two in the second: 2 > 1.2*1, rising.
	seedQuestion(t, store, "u1", models.PillarTechHealth, "crash question 0", now.Add(-6*24*time.Hour))
	seedQuestion(t, store, "u1", models.PillarTechHealth, "crash question 1", now.Add(-2*24*time.Hour))
	seedQuestion(t, store, "u1", models.PillarTechHealth, "crash question 2", now.Add(-24*time.Hour))

	report, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, report.Insights, 1)
	assert.Equal(t, models.TrendUp, report.Insights[0].Trend)
}

func TestDigestTrendDown(t *testing.T) {
	store := storage.NewMemoryStorage()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	gen := newGenerator(store, now)

	// Two questions in the first half, one in the second: 1 < 0.8*2, falling.
	seedQuestion(t, store, "u1", models.PillarSocial, "guild question 0", now.Add(-6*24*time.Hour))
	seedQuestion(t, store, "u1", models.PillarSocial, "guild question 1", now.Add(-5*24*time.Hour))
	seedQuestion(t, store, "u1", models.PillarSocial, "guild question 2", now.Add(-24*time.Hour))

	report, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, report.Insights, 1)
	assert.Equal(t, models.TrendDown, report.Insights[0].Trend)

	// A falling pillar earns a re-engagement action.
	found := false
	for _, item := range report.ActionItems {
		if strings.Contains(item, "Re-engage") {
			found = true
		}
	}
	assert.True(t, found, "expected a re-engagement action, got %v", report.ActionItems)
}

func TestDigestSingleQuestionIsStable(t *testing.T) {
	store := storage.NewMemoryStorage()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	gen := newGenerator(store, now)

	seedQuestion(t, store, "u1", models.PillarSocial, "guild adoption?", now.Add(-time.Hour))

	report, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, report.Insights, 1)
	assert.Equal(t, models.TrendStable, report.Insights[0].Trend)
}

func TestDigestEmptyWeek(t *testing.T) {
	store := storage.NewMemoryStorage()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	gen := newGenerator(store, now)

	report, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Zero(t, report.TotalQuestions)
	assert.Empty(t, report.TopPillars)
	assert.Empty(t, report.Insights)
	assert.Empty(t, report.ActionItems)
	// Still something to do next week: everything is unexplored.
	require.Len(t, report.NextWeekFocus, 1)
	assert.Contains(t, report.NextWeekFocus[0], "engagement")
}

func TestInsightFallbackNeverErrors(t *testing.T) {
	c := lookupInsight(models.Pillar("mystery"), models.TrendUp)
	assert.NotEmpty(t, c.summary)
	assert.NotEmpty(t, c.recommendation)
}
