package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/playlens/pulse/internal/models"
)

type intentResponse struct {
	Pillars       []string `json:"pillars"`
	Confidence    float64  `json:"confidence"`
	PrimaryPillar string   `json:"primary_pillar"`
}

type setupResponse struct {
	Complete bool `json:"complete"`
	Brief    *struct {
		Heading         string `json:"heading"`
		Description     string `json:"description"`
		Hypothesis      string `json:"hypothesis"`
		StatisticalTest string `json:"statistical_test"`
		UserCohort      string `json:"user_cohort"`
		TimeFrame       string `json:"time_frame"`
	} `json:"brief"`
	Questions []ClarifyingPrompt `json:"clarifying_questions"`
}

// GPTClassifier implements Classifier on top of the OpenAI chat API.
type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTClassifier(apiKey string, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (c *GPTClassifier) ClassifyIntent(ctx context.Context, text string, qas []QA) (models.IntentClassification, error) {
	var contextBlock strings.Builder
	for _, qa := range qas {
		fmt.Fprintf(&contextBlock, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
	}

	prompt := fmt.Sprintf(`Classify the following gaming-analytics question into topic pillars.
The only valid pillars are: %s.

Return a JSON object with this structure:
{
    "pillars": ["pillar1", ...],
    "confidence": 0.0,
    "primary_pillar": "pillar1"
}

"pillars" must be non-empty, "confidence" must be between 0 and 1, and
"primary_pillar" must be one of "pillars".

%sQuestion: %s`, pillarList(), clarificationPreamble(contextBlock.String()), text)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		return models.IntentClassification{}, err
	}

	var resp intentResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		c.logger.Error("Failed to parse intent response",
			zap.Error(err),
			zap.String("response", content))
		return models.IntentClassification{}, fmt.Errorf("%w: malformed intent payload", models.ErrClassificationUnavailable)
	}

	return normalizeIntent(resp)
}

func (c *GPTClassifier) GenerateSetup(ctx context.Context, text string) (Setup, error) {
	prompt := fmt.Sprintf(`Decide whether the following gaming-analytics question is specific enough
to run an analysis without follow-up. If it is, produce an analysis brief.
If it is not, produce up to 3 clarifying questions with example placeholders.

Return a JSON object with this structure:
{
    "complete": true,
    "brief": {
        "heading": "...",
        "description": "...",
        "hypothesis": "...",
        "statistical_test": "...",
        "user_cohort": "...",
        "time_frame": "..."
    },
    "clarifying_questions": [{"question": "...", "placeholder": "e.g., ..."}]
}

Set "brief" only when complete is true, and "clarifying_questions" only when
complete is false.

Question: %s`, text)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		return Setup{}, err
	}

	var resp setupResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		c.logger.Error("Failed to parse setup response",
			zap.Error(err),
			zap.String("response", content))
		return Setup{}, fmt.Errorf("%w: malformed setup payload", models.ErrClassificationUnavailable)
	}

	return normalizeSetup(resp)
}

func (c *GPTClassifier) SuggestAnswer(ctx context.Context, questionText, clarifyingQuestion string) (string, error) {
	prompt := fmt.Sprintf(`A user asked the gaming-analytics question below and was asked a
clarifying follow-up. Draft a short, plausible answer to the follow-up the
user could accept or edit. Reply with the answer text only, no JSON.

Question: %s
Follow-up: %s`, questionText, clarifyingQuestion)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *GPTClassifier) chat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		c.logger.Error("Failed to get GPT response", zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrClassificationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", models.ErrClassificationUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// normalizeIntent validates the raw payload against the taxonomy. Unknown
// pillar names are a boundary rejection, not something to drop quietly.
func normalizeIntent(resp intentResponse) (models.IntentClassification, error) {
	if len(resp.Pillars) == 0 && resp.PrimaryPillar == "" {
		return models.IntentClassification{}, fmt.Errorf("%w: empty pillar set", models.ErrClassificationUnavailable)
	}

	pillars := make([]models.Pillar, 0, len(resp.Pillars))
	for _, name := range resp.Pillars {
		p, err := models.ParsePillar(name)
		if err != nil {
			return models.IntentClassification{}, err
		}
		pillars = append(pillars, p)
	}

	primary := models.Pillar(resp.PrimaryPillar)
	if resp.PrimaryPillar != "" {
		var err error
		primary, err = models.ParsePillar(resp.PrimaryPillar)
		if err != nil {
			return models.IntentClassification{}, err
		}
	} else {
		primary = pillars[0]
	}

	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	if len(pillars) == 0 {
		pillars = []models.Pillar{primary}
	}

	return models.IntentClassification{
		Pillars:       pillars,
		Confidence:    confidence,
		PrimaryPillar: primary,
	}, nil
}

func normalizeSetup(resp setupResponse) (Setup, error) {
	if resp.Complete {
		if resp.Brief == nil {
			return Setup{}, fmt.Errorf("%w: complete setup without brief", models.ErrClassificationUnavailable)
		}
		return Setup{
			Complete: true,
			Brief: &models.AnalysisBrief{
				Heading:         resp.Brief.Heading,
				Description:     resp.Brief.Description,
				Hypothesis:      resp.Brief.Hypothesis,
				StatisticalTest: resp.Brief.StatisticalTest,
				UserCohort:      resp.Brief.UserCohort,
				TimeFrame:       resp.Brief.TimeFrame,
			},
		}, nil
	}

	questions := make([]ClarifyingPrompt, 0, len(resp.Questions))
	for _, q := range resp.Questions {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return Setup{}, fmt.Errorf("%w: incomplete setup without clarifying questions", models.ErrClassificationUnavailable)
	}
	return Setup{Questions: questions}, nil
}

func pillarList() string {
	names := make([]string, 0, len(models.AllPillars()))
	for _, p := range models.AllPillars() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

func clarificationPreamble(block string) string {
	if block == "" {
		return ""
	}
	return "The user already answered these clarifying questions:\n" + block + "\n"
}
