package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/playlens/pulse/internal/classifier"
	"github.com/playlens/pulse/internal/models"
	"github.com/playlens/pulse/internal/notify"
)

// Answers carries collected clarification answers into the engine. Channels
// supply either an ordered list aligned positionally to the outstanding
// questions, or explicit question-to-answer pairs; web forms use ByQuestion,
// chat replies use Ordered.
type Answers struct {
	Ordered    []string
	ByQuestion map[string]string
}

// ParseChatAnswers splits a free-text chat reply into positional answers:
// one non-empty line per outstanding question, in order. Channel-specific
// parsing lives here so every channel feeds the same structure.
func ParseChatAnswers(text string) Answers {
	var ordered []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ordered = append(ordered, line)
	}
	return Answers{Ordered: ordered}
}

// AnswerClarifications collects answers for a waiting question and, once
// every slot holds a non-empty answer, finalizes the clarification: the
// question is re-classified against its original text plus the collected
// answers, weights update exactly once, and the record moves to queued.
//
// Partial answers are recorded but the record stays in waiting-for-answers
// and the call fails with ErrIncompleteAnswers. Resubmitting identical
// answers for an already-finalized clarification is a no-op.
func (e *Engine) AnswerClarifications(ctx context.Context, userID, questionID string, answers Answers) (*models.Question, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	q, err := e.store.GetQuestion(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}

	if q.ClarificationsFinal && matchesFinalizedAnswers(q, answers) {
		// Duplicate delivery of the same answers; the weight update
		// already happened.
		return q, nil
	}
	if q.Status != models.StatusWaitingForAnswers {
		return nil, models.NewInvalidTransitionError(q.ID, q.Status, "answer clarifications for")
	}

	applyAnswers(q, answers)

	if missing := unansweredSlots(q); len(missing) > 0 {
		// Keep the progress, keep the status.
		if err := e.store.SaveQuestion(ctx, q); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: slots %v still unanswered", models.ErrIncompleteAnswers, missing)
	}

	qas := make([]classifier.QA, len(q.ClarifyingQuestions))
	for i, cq := range q.ClarifyingQuestions {
		qas[i] = classifier.QA{Question: cq.Question, Answer: *cq.Answer}
	}

	q.Intent = e.classifyWithRetry(ctx, q.Text, qas)
	if q.Brief == nil {
		q.Brief = e.generateBrief(ctx, q.Text, qas)
	}
	q.Status = models.StatusQueued
	q.ClarificationsFinal = true

	updated, err := e.commitWithIntent(ctx, q)
	if err != nil {
		return nil, err
	}
	e.publish(notify.EventClarificationCompleted, q, updated)
	return q, nil
}

// applyAnswers fills clarifying slots from either form. Empty strings never
// fill a slot: completeness requires a real answer.
func applyAnswers(q *models.Question, answers Answers) {
	for i := range q.ClarifyingQuestions {
		if i < len(answers.Ordered) {
			if a := strings.TrimSpace(answers.Ordered[i]); a != "" {
				q.ClarifyingQuestions[i].Answer = &a
			}
		}
		if answers.ByQuestion != nil {
			if a, ok := answers.ByQuestion[q.ClarifyingQuestions[i].Question]; ok {
				if a = strings.TrimSpace(a); a != "" {
					q.ClarifyingQuestions[i].Answer = &a
				}
			}
		}
	}
}

func unansweredSlots(q *models.Question) []int {
	var missing []int
	for i, cq := range q.ClarifyingQuestions {
		if cq.Answer == nil || strings.TrimSpace(*cq.Answer) == "" {
			missing = append(missing, i)
		}
	}
	return missing
}

// matchesFinalizedAnswers reports whether a resubmission carries exactly the
// answers already recorded, slot for slot.
func matchesFinalizedAnswers(q *models.Question, answers Answers) bool {
	for i, cq := range q.ClarifyingQuestions {
		if cq.Answer == nil {
			return false
		}
		var supplied string
		switch {
		case i < len(answers.Ordered):
			supplied = answers.Ordered[i]
		case answers.ByQuestion != nil:
			supplied = answers.ByQuestion[cq.Question]
		}
		if strings.TrimSpace(supplied) != *cq.Answer {
			return false
		}
	}
	return true
}
