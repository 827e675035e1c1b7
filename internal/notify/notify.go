package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/playlens/pulse/internal/models"
)

// EventType names a lifecycle transition worth telling subscribers about.
type EventType string

const (
	EventQuestionSubmitted      EventType = "question.submitted"
	EventClarificationCompleted EventType = "question.clarified"
	EventQuestionCompleted      EventType = "question.completed"
	EventQuestionCancelled      EventType = "question.cancelled"
)

// Event is the payload pushed to live listeners after a transition commits.
type Event struct {
	Type       EventType                    `json:"type"`
	UserID     string                       `json:"user_id"`
	QuestionID string                       `json:"question_id"`
	Status     models.Status                `json:"status"`
	Intent     *models.IntentClassification `json:"intent,omitempty"`
	Weights    models.PillarWeights         `json:"weights,omitempty"`
	OccurredAt time.Time                    `json:"occurred_at"`
}

// Notifier pushes events to one subscriber. Delivery is best-effort: the
// engine commits state before publishing and never fails a request because
// a subscriber was unreachable.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Fanout publishes to every subscriber.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, event Event) {
	for _, n := range f {
		n.Notify(ctx, event)
	}
}

// LogNotifier writes events to the structured log. Stands in for the live
// dashboard channel in development and tests.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) {
	n.Logger.Info("Lifecycle event",
		zap.String("type", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.String("question_id", event.QuestionID),
		zap.String("status", string(event.Status)))
}

// WebhookNotifier POSTs events as JSON to a subscriber URL.
type WebhookNotifier struct {
	URL     string
	Client  *http.Client
	Logger  *zap.Logger
	Timeout time.Duration
}

func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		URL:     url,
		Client:  &http.Client{Timeout: timeout},
		Logger:  logger,
		Timeout: timeout,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.Logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		n.Logger.Error("Failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		n.Logger.Warn("Webhook delivery failed",
			zap.Error(err),
			zap.String("url", n.URL),
			zap.String("question_id", event.QuestionID))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.Logger.Warn("Webhook delivery rejected",
			zap.String("url", n.URL),
			zap.String("status", fmt.Sprintf("%d", resp.StatusCode)))
	}
}
