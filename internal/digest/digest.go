package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/playlens/pulse/internal/models"
	"github.com/playlens/pulse/internal/storage"
	"github.com/playlens/pulse/internal/weights"
)

const (
	window        = 7 * 24 * time.Hour
	maxTopPillars = 3
	maxActions    = 3
	maxFocus      = 2
	maxSupporting = 3

	trendUpRatio   = 1.2
	trendDownRatio = 0.8
	dominantShare  = 60.0
)

// Clock matches the engine's clock abstraction.
type Clock interface {
	Now() time.Time
}

// Generator computes the weekly trend digest. Pure read-only: it only looks
// at committed questions and the current weight snapshot, never mutates
// lifecycle state, and is safe to run concurrently with submissions. A
// slightly stale snapshot is acceptable.
type Generator struct {
	Questions storage.QuestionStorage
	Weights   storage.WeightStorage
	Policy    weights.Policy
	Clock     Clock
}

func (g *Generator) Generate(ctx context.Context, userID string) (*models.DigestReport, error) {
	now := g.Clock.Now()
	weekStart := now.Add(-window)

	questions, err := g.Questions.ListQuestionsBetween(ctx, userID, weekStart, now)
	if err != nil {
		return nil, err
	}
	userWeights, err := g.Weights.GetWeights(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := weights.ApplyElapsed(g.Policy, userWeights.Weights, userWeights.UpdatedAt, now)

	report := &models.DigestReport{
		UserID:         userID,
		WeekStart:      weekStart,
		WeekEnd:        now,
		TotalQuestions: len(questions),
	}

	byPillar := groupByPrimaryPillar(questions)
	report.TopPillars = topPillars(byPillar, len(questions), current)
	report.Insights = buildInsights(report.TopPillars, byPillar, weekStart, now)
	report.ActionItems = actionItems(report.TopPillars, report.Insights)
	report.NextWeekFocus = nextWeekFocus(report.TopPillars)

	return report, nil
}

// groupByPrimaryPillar buckets the week's questions by their classified
// primary pillar, preserving chronological order inside each bucket.
// Questions without an intent count toward the total but join no bucket.
func groupByPrimaryPillar(questions []*models.Question) map[models.Pillar][]*models.Question {
	byPillar := make(map[models.Pillar][]*models.Question)
	for _, q := range questions {
		if q.Intent == nil || q.Intent.PrimaryPillar == "" {
			continue
		}
		byPillar[q.Intent.PrimaryPillar] = append(byPillar[q.Intent.PrimaryPillar], q)
	}
	return byPillar
}

func topPillars(byPillar map[models.Pillar][]*models.Question, total int, current models.PillarWeights) []models.TopPillar {
	if total == 0 {
		return nil
	}

	ranked := make([]models.TopPillar, 0, len(byPillar))
	for pillar, qs := range byPillar {
		ranked = append(ranked, models.TopPillar{
			Pillar:       pillar,
			Weight:       current[pillar],
			SharePercent: float64(len(qs)) / float64(total) * 100,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].SharePercent != ranked[j].SharePercent {
			return ranked[i].SharePercent > ranked[j].SharePercent
		}
		// Tie-break on taxonomy order for a deterministic report.
		return pillarIndex(ranked[i].Pillar) < pillarIndex(ranked[j].Pillar)
	})
	if len(ranked) > maxTopPillars {
		ranked = ranked[:maxTopPillars]
	}
	return ranked
}

func pillarIndex(p models.Pillar) int {
	for i, candidate := range models.AllPillars() {
		if candidate == p {
			return i
		}
	}
	return len(models.AllPillars())
}

// pillarTrend splits the report window at its temporal midpoint and compares
// question volume between the two halves, so a pillar the user stopped asking
// about registers as falling.
func pillarTrend(qs []*models.Question, weekStart, weekEnd time.Time) models.Trend {
	if len(qs) < 2 {
		return models.TrendStable
	}
	mid := weekStart.Add(weekEnd.Sub(weekStart) / 2)
	var first, second float64
	for _, q := range qs {
		if q.CreatedAt.Before(mid) {
			first++
		} else {
			second++
		}
	}
	switch {
	case second > trendUpRatio*first:
		return models.TrendUp
	case second < trendDownRatio*first:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

func buildInsights(top []models.TopPillar, byPillar map[models.Pillar][]*models.Question, weekStart, weekEnd time.Time) []models.PillarInsight {
	insights := make([]models.PillarInsight, 0, len(top))
	for _, tp := range top {
		qs := byPillar[tp.Pillar]
		trend := pillarTrend(qs, weekStart, weekEnd)
		copyText := lookupInsight(tp.Pillar, trend)

		supporting := make([]string, 0, maxSupporting)
		for _, q := range qs {
			if len(supporting) == maxSupporting {
				break
			}
			supporting = append(supporting, q.Text)
		}

		insights = append(insights, models.PillarInsight{
			Pillar:              tp.Pillar,
			Title:               fmt.Sprintf("%s: %s", pillarDisplayName(tp.Pillar), trendLabel(trend)),
			Summary:             copyText.summary,
			Trend:               trend,
			Recommendation:      copyText.recommendation,
			SupportingQuestions: supporting,
		})
	}
	return insights
}

// actionItems assembles the week's recommended actions in priority order:
// top-pillar focus first, then scale-up items for rising pillars, then
// re-engagement items for falling ones, then a diversification nudge when a
// single pillar dominates. Capped at three.
func actionItems(top []models.TopPillar, insights []models.PillarInsight) []string {
	var items []string
	if len(top) > 0 {
		items = append(items, fmt.Sprintf("Focus on %s (%.1f%% of this week's questions)",
			pillarDisplayName(top[0].Pillar), top[0].SharePercent))
	}
	for _, insight := range insights {
		if insight.Trend == models.TrendUp {
			items = append(items, fmt.Sprintf("Scale up your %s analysis while interest is climbing",
				pillarDisplayName(insight.Pillar)))
		}
	}
	for _, insight := range insights {
		if insight.Trend == models.TrendDown {
			items = append(items, fmt.Sprintf("Re-engage with %s before it drops off your radar",
				pillarDisplayName(insight.Pillar)))
		}
	}
	if len(top) > 0 && top[0].SharePercent > dominantShare {
		items = append(items, fmt.Sprintf("Diversify beyond %s to avoid blind spots",
			pillarDisplayName(top[0].Pillar)))
	}
	if len(items) > maxActions {
		items = items[:maxActions]
	}
	return items
}

// nextWeekFocus fills at most two slots: an underexplored pillar outside the
// top ranking, a deep dive on the top pillar, and only if both of those were
// unavailable and at least two pillars ranked, a cross-pillar correlation.
func nextWeekFocus(top []models.TopPillar) []string {
	ranked := make(map[models.Pillar]struct{}, len(top))
	for _, tp := range top {
		ranked[tp.Pillar] = struct{}{}
	}

	var focus []string
	for _, p := range models.AllPillars() {
		if _, ok := ranked[p]; !ok {
			focus = append(focus, fmt.Sprintf("Explore %s: no questions touched it this week",
				pillarDisplayName(p)))
			break
		}
	}
	if len(top) > 0 {
		focus = append(focus, fmt.Sprintf("Deep-dive into %s, your most asked-about pillar",
			pillarDisplayName(top[0].Pillar)))
	}
	if len(focus) == 0 && len(top) >= 2 {
		focus = append(focus, fmt.Sprintf("Correlate %s with %s to find compounding effects",
			pillarDisplayName(top[0].Pillar), pillarDisplayName(top[1].Pillar)))
	}
	if len(focus) > maxFocus {
		focus = focus[:maxFocus]
	}
	return focus
}
