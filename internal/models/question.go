package models

import "time"

// Source is the channel a question arrived through.
type Source string

const (
	SourceWeb   Source = "web"
	SourceSlack Source = "slack"
)

// Status is the lifecycle state of a question. The set is closed; storage
// and API boundaries reject any other value.
type Status string

const (
	// StatusQueued: intent known, no clarification outstanding, awaiting
	// downstream analysis.
	StatusQueued Status = "queued"
	// StatusWaitingForAnswers: clarification outstanding.
	StatusWaitingForAnswers Status = "waiting-for-answers"
	// StatusReady: terminal success, result populated.
	StatusReady Status = "ready"
	// StatusCancelled: terminal, user-initiated abort. Soft delete;
	// retained for audit, excluded from active listings.
	StatusCancelled Status = "cancelled"
)

// IsValidStatus reports whether s is one of the four lifecycle states.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusQueued, StatusWaitingForAnswers, StatusReady, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further lifecycle transition is legal from s.
func (s Status) IsTerminal() bool {
	return s == StatusReady || s == StatusCancelled
}

// IntentClassification is the normalized output of the external classifier.
type IntentClassification struct {
	Pillars       []Pillar `json:"pillars"`
	Confidence    float64  `json:"confidence"`
	PrimaryPillar Pillar   `json:"primary_pillar"`
}

// AffectedPillars returns the set of pillars a weight boost applies to.
// The upstream classifier is not trusted to keep PrimaryPillar inside
// Pillars; if it strays, the union is used.
func (ic IntentClassification) AffectedPillars() []Pillar {
	affected := make([]Pillar, 0, len(ic.Pillars)+1)
	seen := make(map[Pillar]struct{}, len(ic.Pillars)+1)
	for _, p := range ic.Pillars {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			affected = append(affected, p)
		}
	}
	if ic.PrimaryPillar != "" {
		if _, ok := seen[ic.PrimaryPillar]; !ok {
			affected = append(affected, ic.PrimaryPillar)
		}
	}
	return affected
}

// ClarifyingQuestion is one slot of the clarification sub-protocol.
// Answer is nil until the user supplies a non-empty answer.
type ClarifyingQuestion struct {
	Question    string  `json:"question"`
	Placeholder string  `json:"placeholder,omitempty"`
	Answer      *string `json:"answer"`
}

// AnalysisBrief is the structured statement of what a completed, well-formed
// question will investigate. Immutable once generated; produced once by the
// external setup generator and cached on the question.
type AnalysisBrief struct {
	Heading         string `json:"heading"`
	Description     string `json:"description"`
	Hypothesis      string `json:"hypothesis"`
	StatisticalTest string `json:"statistical_test"`
	UserCohort      string `json:"user_cohort"`
	TimeFrame       string `json:"time_frame"`
}

// AnalysisResult holds computed statistics for a ready question. The engine
// never computes these; it only accepts them as the payload completing a
// lifecycle transition. Keyed 1:1 to the question.
type AnalysisResult struct {
	QuestionID string         `json:"question_id"`
	Summary    string         `json:"summary"`
	Metrics    map[string]any `json:"metrics,omitempty"`
	ComputedAt time.Time      `json:"computed_at"`
}

// Question is the aggregate the lifecycle operates on.
type Question struct {
	ID                   string                `json:"id"`
	UserID               string                `json:"user_id"`
	Text                 string                `json:"text"`
	Source               Source                `json:"source"`
	CreatedAt            time.Time             `json:"created_at"`
	Status               Status                `json:"status"`
	Intent               *IntentClassification `json:"intent,omitempty"`
	ClarifyingQuestions  []ClarifyingQuestion  `json:"clarifying_questions,omitempty"`
	ClarificationsFinal  bool                  `json:"clarifications_final"`
	Brief                *AnalysisBrief        `json:"brief,omitempty"`
	Result               *AnalysisResult       `json:"result,omitempty"`
}

// ClarificationAnswers returns the collected answers in slot order, with ""
// for unanswered slots.
func (q *Question) ClarificationAnswers() []string {
	answers := make([]string, len(q.ClarifyingQuestions))
	for i, cq := range q.ClarifyingQuestions {
		if cq.Answer != nil {
			answers[i] = *cq.Answer
		}
	}
	return answers
}
