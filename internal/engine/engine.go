package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/playlens/pulse/internal/classifier"
	"github.com/playlens/pulse/internal/models"
	"github.com/playlens/pulse/internal/notify"
	"github.com/playlens/pulse/internal/storage"
	"github.com/playlens/pulse/internal/weights"
)

// Clock abstraction so lifecycle timestamps are testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Options tune how the engine talks to the external classifier.
type Options struct {
	ClassifyTimeout time.Duration
	ClassifyRetries int
	ClassifyBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{
		ClassifyTimeout: 15 * time.Second,
		ClassifyRetries: 2,
		ClassifyBackoff: 500 * time.Millisecond,
	}
}

// Engine owns the question lifecycle and the per-user weight profile. It is
// the only component that mutates question records or weight rows; the HTTP
// and chat layers call its exported methods and nothing else.
//
// All lifecycle operations for one user are serialized through a per-user
// lock so a decay-and-boost update can never interleave with another
// submission for the same user. Different users proceed in parallel.
type Engine struct {
	store      storage.Storage
	classifier classifier.Classifier
	notifier   notify.Notifier
	policy     weights.Policy
	clock      Clock
	logger     *zap.Logger
	opts       Options

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func New(store storage.Storage, clf classifier.Classifier, notifier notify.Notifier, policy weights.Policy, clock Clock, logger *zap.Logger, opts Options) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.ClassifyTimeout <= 0 {
		opts.ClassifyTimeout = DefaultOptions().ClassifyTimeout
	}
	return &Engine{
		store:      store,
		classifier: clf,
		notifier:   notifier,
		policy:     policy,
		clock:      clock,
		logger:     logger,
		opts:       opts,
		userLocks:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.userLocks[userID] = l
	}
	return l
}

// SubmitCommand carries a new question into the engine. Answers, when
// supplied, are pre-answered clarifications that make the question
// self-sufficient.
type SubmitCommand struct {
	UserID  string
	Text    string
	Source  models.Source
	Answers []classifier.QA
}

func (c SubmitCommand) validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("user id is required")
	}
	if strings.TrimSpace(c.Text) == "" {
		return errors.New("question text is required")
	}
	if c.Source != models.SourceWeb && c.Source != models.SourceSlack {
		return fmt.Errorf("unknown source %q", c.Source)
	}
	// Pre-answered clarifications finalize immediately, so every supplied
	// slot must carry a real answer.
	for i, qa := range c.Answers {
		if strings.TrimSpace(qa.Answer) == "" {
			return fmt.Errorf("%w: pre-answered slot %d is blank", models.ErrIncompleteAnswers, i)
		}
	}
	return nil
}

// Submit creates a question record. A record is always persisted once
// submission is accepted, even when every classification call fails; in
// that case the question lands in queued with a nil intent and downstream
// enrichment happens later.
func (e *Engine) Submit(ctx context.Context, cmd SubmitCommand) (*models.Question, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	lock := e.userLock(cmd.UserID)
	lock.Lock()
	defer lock.Unlock()

	q := &models.Question{
		ID:        uuid.New().String(),
		UserID:    cmd.UserID,
		Text:      cmd.Text,
		Source:    cmd.Source,
		CreatedAt: e.clock.Now(),
		Status:    models.StatusQueued,
	}

	if len(cmd.Answers) > 0 {
		e.prepareWithAnswers(ctx, q, cmd.Answers)
	} else {
		e.prepareFromSetup(ctx, q)
	}

	updated, err := e.commitWithIntent(ctx, q)
	if err != nil {
		return nil, err
	}
	e.publish(notify.EventQuestionSubmitted, q, updated)
	return q, nil
}

// prepareWithAnswers handles submissions that arrive with their
// clarifications already answered: classify with the answers as context and
// eagerly generate the analysis brief.
func (e *Engine) prepareWithAnswers(ctx context.Context, q *models.Question, answers []classifier.QA) {
	q.ClarifyingQuestions = make([]models.ClarifyingQuestion, len(answers))
	for i, qa := range answers {
		answer := qa.Answer
		q.ClarifyingQuestions[i] = models.ClarifyingQuestion{
			Question: qa.Question,
			Answer:   &answer,
		}
	}
	q.ClarificationsFinal = true
	q.Intent = e.classifyWithRetry(ctx, q.Text, answers)
	q.Brief = e.generateBrief(ctx, q.Text, answers)
}

// prepareFromSetup asks the setup generator whether the question is
// self-sufficient and branches the lifecycle accordingly.
func (e *Engine) prepareFromSetup(ctx context.Context, q *models.Question) {
	setup, err := e.setupWithRetry(ctx, q.Text)
	if err != nil {
		// Setup unavailable: degrade like a classification failure. The
		// question still gets persisted; intent is best-effort.
		e.logger.Warn("Setup generation failed, submitting without clarification",
			zap.Error(err),
			zap.String("question_id", q.ID))
		q.Intent = e.classifyWithRetry(ctx, q.Text, nil)
		return
	}

	if setup.Complete {
		q.Brief = setup.Brief
		q.Intent = e.classifyWithRetry(ctx, q.Text, nil)
		return
	}

	q.Status = models.StatusWaitingForAnswers
	q.ClarifyingQuestions = make([]models.ClarifyingQuestion, len(setup.Questions))
	for i, prompt := range setup.Questions {
		q.ClarifyingQuestions[i] = models.ClarifyingQuestion{
			Question:    prompt.Question,
			Placeholder: prompt.Placeholder,
		}
	}
}

// commitWithIntent persists the question and, when a classified intent is
// present, the paired weight update. The two writes commit atomically; the
// returned weights reflect the committed state.
func (e *Engine) commitWithIntent(ctx context.Context, q *models.Question) (*models.UserWeights, error) {
	if q.Intent == nil || q.Status != models.StatusQueued {
		if err := e.store.SaveQuestion(ctx, q); err != nil {
			return nil, err
		}
		return nil, nil
	}

	prior, err := e.store.GetWeights(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	updated := &models.UserWeights{
		UserID:    q.UserID,
		Weights:   weights.Update(e.policy, e.effectiveWeights(prior, now), *q.Intent),
		UpdatedAt: now,
	}
	if err := e.store.SaveQuestionWithWeights(ctx, q, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// effectiveWeights applies lazy elapsed-time decay when that mode is
// configured; in event mode the stored vector is used as-is.
func (e *Engine) effectiveWeights(w *models.UserWeights, now time.Time) models.PillarWeights {
	return weights.ApplyElapsed(e.policy, w.Weights, w.UpdatedAt, now)
}

// Complete attaches an analysis result and moves the question to ready.
// Only legal from queued.
func (e *Engine) Complete(ctx context.Context, userID, questionID string, result models.AnalysisResult) (*models.Question, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	q, err := e.store.GetQuestion(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusQueued {
		return nil, models.NewInvalidTransitionError(q.ID, q.Status, "complete")
	}

	result.QuestionID = q.ID
	if result.ComputedAt.IsZero() {
		result.ComputedAt = e.clock.Now()
	}
	q.Status = models.StatusReady
	q.Result = &result

	if err := e.store.SaveQuestion(ctx, q); err != nil {
		return nil, err
	}
	e.publish(notify.EventQuestionCompleted, q, nil)
	return q, nil
}

// Cancel soft-deletes a question. Legal from queued and waiting-for-answers;
// a completed analysis cannot be retroactively cancelled.
func (e *Engine) Cancel(ctx context.Context, userID, questionID string) (*models.Question, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	q, err := e.store.GetQuestion(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusQueued && q.Status != models.StatusWaitingForAnswers {
		return nil, models.NewInvalidTransitionError(q.ID, q.Status, "cancel")
	}

	q.Status = models.StatusCancelled
	if err := e.store.SaveQuestion(ctx, q); err != nil {
		return nil, err
	}
	e.publish(notify.EventQuestionCancelled, q, nil)
	return q, nil
}

// ListActive returns the user's questions excluding cancelled records.
func (e *Engine) ListActive(ctx context.Context, userID string) ([]*models.Question, error) {
	return e.store.ListActive(ctx, userID)
}

// CurrentWeights returns the user's relevance vector, with elapsed-time
// decay applied on read when that mode is configured.
func (e *Engine) CurrentWeights(ctx context.Context, userID string) (models.PillarWeights, error) {
	w, err := e.store.GetWeights(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.effectiveWeights(w, e.clock.Now()), nil
}

// SuggestAnswer drafts an advisory answer for one outstanding clarifying
// question. Never required for progress.
func (e *Engine) SuggestAnswer(ctx context.Context, userID, questionID string, slot int) (string, error) {
	q, err := e.store.GetQuestion(ctx, userID, questionID)
	if err != nil {
		return "", err
	}
	if q.Status != models.StatusWaitingForAnswers {
		return "", models.NewInvalidTransitionError(q.ID, q.Status, "suggest an answer for")
	}
	if slot < 0 || slot >= len(q.ClarifyingQuestions) {
		return "", fmt.Errorf("%w: clarification slot %d", models.ErrNotFound, slot)
	}

	cctx, cancel := context.WithTimeout(ctx, e.opts.ClassifyTimeout)
	defer cancel()
	return e.classifier.SuggestAnswer(cctx, q.Text, q.ClarifyingQuestions[slot].Question)
}

// classifyWithRetry calls the classifier with a per-call timeout and backoff.
// Transient failures are retried; on exhaustion it returns nil so the caller
// can proceed without intent. Malformed payloads (unknown pillars) are not
// retried: the boundary already rejected them.
func (e *Engine) classifyWithRetry(ctx context.Context, text string, qas []classifier.QA) *models.IntentClassification {
	for attempt := 0; attempt <= e.opts.ClassifyRetries; attempt++ {
		if attempt > 0 && !e.backoff(ctx, attempt) {
			return nil
		}

		cctx, cancel := context.WithTimeout(ctx, e.opts.ClassifyTimeout)
		intent, err := e.classifier.ClassifyIntent(cctx, text, qas)
		cancel()
		if err == nil {
			return &intent
		}
		if errors.Is(err, models.ErrUnknownPillar) {
			e.logger.Error("Classifier returned unknown pillar", zap.Error(err))
			return nil
		}
		e.logger.Warn("Intent classification failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1))
	}
	return nil
}

func (e *Engine) setupWithRetry(ctx context.Context, text string) (classifier.Setup, error) {
	var lastErr error
	for attempt := 0; attempt <= e.opts.ClassifyRetries; attempt++ {
		if attempt > 0 && !e.backoff(ctx, attempt) {
			return classifier.Setup{}, ctx.Err()
		}

		cctx, cancel := context.WithTimeout(ctx, e.opts.ClassifyTimeout)
		setup, err := e.classifier.GenerateSetup(cctx, text)
		cancel()
		if err == nil {
			return setup, nil
		}
		lastErr = err
		e.logger.Warn("Setup generation failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1))
	}
	return classifier.Setup{}, lastErr
}

func (e *Engine) backoff(ctx context.Context, attempt int) bool {
	select {
	case <-time.After(time.Duration(attempt) * e.opts.ClassifyBackoff):
		return true
	case <-ctx.Done():
		return false
	}
}

// generateBrief eagerly produces the analysis brief for a self-sufficient
// question. Best-effort: a nil brief just means downstream generates it.
func (e *Engine) generateBrief(ctx context.Context, text string, answers []classifier.QA) *models.AnalysisBrief {
	var b strings.Builder
	b.WriteString(text)
	for _, qa := range answers {
		fmt.Fprintf(&b, "\n%s %s", qa.Question, qa.Answer)
	}

	setup, err := e.setupWithRetry(ctx, b.String())
	if err != nil {
		return nil
	}
	return setup.Brief
}

// publish pushes a lifecycle event to subscribers after the transition has
// committed. Fire-and-forget: a missed notification never corrupts state.
func (e *Engine) publish(eventType notify.EventType, q *models.Question, w *models.UserWeights) {
	if e.notifier == nil {
		return
	}
	event := notify.Event{
		Type:       eventType,
		UserID:     q.UserID,
		QuestionID: q.ID,
		Status:     q.Status,
		Intent:     q.Intent,
		OccurredAt: e.clock.Now(),
	}
	if w != nil {
		event.Weights = w.Weights.Clone()
	}
	go e.notifier.Notify(context.Background(), event)
}
