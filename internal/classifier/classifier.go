package classifier

import (
	"context"

	"github.com/playlens/pulse/internal/models"
)

// QA is one answered clarifying question passed back to the classifier as
// additional context when a question is re-classified.
type QA struct {
	Question string
	Answer   string
}

// ClarifyingPrompt is one follow-up the setup generator wants answered
// before an ambiguous question can proceed.
type ClarifyingPrompt struct {
	Question    string `json:"question"`
	Placeholder string `json:"placeholder"`
}

// Setup is the validated tagged union returned by the setup generator:
// either the question is complete and a brief could be produced, or it is
// incomplete and a non-empty list of clarifying prompts is needed.
type Setup struct {
	Complete  bool
	Brief     *models.AnalysisBrief
	Questions []ClarifyingPrompt
}

// Classifier is the boundary to the external natural-language classifier.
// Implementations may fail transiently; retry, backoff and timeouts are the
// caller's responsibility. Classification is idempotent, so retrying is
// always safe.
type Classifier interface {
	// ClassifyIntent maps free text (plus any collected clarification
	// context) onto the pillar taxonomy. Payloads naming pillars outside
	// the taxonomy fail with models.ErrUnknownPillar; transient provider
	// errors fail with models.ErrClassificationUnavailable.
	ClassifyIntent(ctx context.Context, text string, qas []QA) (models.IntentClassification, error)

	// GenerateSetup decides whether text is self-sufficient. Complete
	// questions come back with an AnalysisBrief; incomplete ones with the
	// clarifying prompts to collect.
	GenerateSetup(ctx context.Context, text string) (Setup, error)

	// SuggestAnswer drafts an answer to one clarifying question. Advisory
	// only: failures never block the lifecycle.
	SuggestAnswer(ctx context.Context, questionText, clarifyingQuestion string) (string, error)
}
