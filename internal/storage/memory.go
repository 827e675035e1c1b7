package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/playlens/pulse/internal/models"
)

// MemoryStorage keeps everything in process. Used for tests and the
// use_in_memory configuration mode.
type MemoryStorage struct {
	mu        sync.RWMutex
	questions map[string]*models.Question
	weights   map[string]*models.UserWeights
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		questions: make(map[string]*models.Question),
		weights:   make(map[string]*models.UserWeights),
	}
}

func (s *MemoryStorage) SaveQuestion(ctx context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (s *MemoryStorage) GetQuestion(ctx context.Context, userID, id string) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, exists := s.questions[id]
	if !exists || q.UserID != userID {
		return nil, models.ErrNotFound
	}
	return cloneQuestion(q), nil
}

func (s *MemoryStorage) ListActive(ctx context.Context, userID string) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Question
	for _, q := range s.questions {
		if q.UserID != userID || q.Status == models.StatusCancelled {
			continue
		}
		result = append(result, cloneQuestion(q))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStorage) ListQuestionsBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Question
	for _, q := range s.questions {
		if q.UserID != userID || q.Status == models.StatusCancelled {
			continue
		}
		if q.CreatedAt.Before(from) || !q.CreatedAt.Before(to) {
			continue
		}
		result = append(result, cloneQuestion(q))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStorage) GetWeights(ctx context.Context, userID string) (*models.UserWeights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, exists := s.weights[userID]; exists {
		return cloneWeights(w), nil
	}
	return &models.UserWeights{
		UserID:    userID,
		Weights:   models.DefaultPillarWeights(),
		UpdatedAt: time.Now(),
	}, nil
}

func (s *MemoryStorage) SaveQuestionWithWeights(ctx context.Context, q *models.Question, w *models.UserWeights) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questions[q.ID] = cloneQuestion(q)
	s.weights[w.UserID] = cloneWeights(w)
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func cloneQuestion(q *models.Question) *models.Question {
	c := *q
	if q.Intent != nil {
		intent := *q.Intent
		intent.Pillars = append([]models.Pillar(nil), q.Intent.Pillars...)
		c.Intent = &intent
	}
	if q.ClarifyingQuestions != nil {
		c.ClarifyingQuestions = make([]models.ClarifyingQuestion, len(q.ClarifyingQuestions))
		for i, cq := range q.ClarifyingQuestions {
			c.ClarifyingQuestions[i] = cq
			if cq.Answer != nil {
				answer := *cq.Answer
				c.ClarifyingQuestions[i].Answer = &answer
			}
		}
	}
	if q.Brief != nil {
		brief := *q.Brief
		c.Brief = &brief
	}
	if q.Result != nil {
		result := *q.Result
		c.Result = &result
	}
	return &c
}

func cloneWeights(w *models.UserWeights) *models.UserWeights {
	return &models.UserWeights{
		UserID:    w.UserID,
		Weights:   w.Weights.Clone(),
		UpdatedAt: w.UpdatedAt,
	}
}
