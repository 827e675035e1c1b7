package models

import "time"

// Trend is the week-over-half-week direction of a pillar's question volume.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// TopPillar is one row of the digest's ranking. Weight is the current
// Weight Store value for the pillar, not the share.
type TopPillar struct {
	Pillar       Pillar  `json:"pillar"`
	Weight       float64 `json:"weight"`
	SharePercent float64 `json:"share_percent"`
}

// PillarInsight is the narrative block generated for one top pillar.
type PillarInsight struct {
	Pillar              Pillar   `json:"pillar"`
	Title               string   `json:"title"`
	Summary             string   `json:"summary"`
	Trend               Trend    `json:"trend"`
	Recommendation      string   `json:"recommendation"`
	SupportingQuestions []string `json:"supporting_questions"`
}

// DigestReport is the weekly derived trend report. Stateless and recomputed
// on demand; never authoritative even if cached.
type DigestReport struct {
	UserID         string          `json:"user_id"`
	WeekStart      time.Time       `json:"week_start"`
	WeekEnd        time.Time       `json:"week_end"`
	TotalQuestions int             `json:"total_questions"`
	TopPillars     []TopPillar     `json:"top_pillars"`
	Insights       []PillarInsight `json:"insights"`
	ActionItems    []string        `json:"action_items"`
	NextWeekFocus  []string        `json:"next_week_focus"`
}
