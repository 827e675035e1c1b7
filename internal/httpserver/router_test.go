package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/playlens/pulse/internal/classifier"
	"github.com/playlens/pulse/internal/digest"
	"github.com/playlens/pulse/internal/engine"
	"github.com/playlens/pulse/internal/models"
	"github.com/playlens/pulse/internal/storage"
	"github.com/playlens/pulse/internal/weights"
)

// scriptedClassifier returns a fixed intent and a scripted setup sequence.
type scriptedClassifier struct {
	setups []classifier.Setup
}

func (s *scriptedClassifier) ClassifyIntent(ctx context.Context, text string, qas []classifier.QA) (models.IntentClassification, error) {
	return models.IntentClassification{
		Pillars:       []models.Pillar{models.PillarRetention},
		Confidence:    0.9,
		PrimaryPillar: models.PillarRetention,
	}, nil
}

func (s *scriptedClassifier) GenerateSetup(ctx context.Context, text string) (classifier.Setup, error) {
	if len(s.setups) == 0 {
		return classifier.Setup{Complete: true, Brief: &models.AnalysisBrief{Heading: "brief"}}, nil
	}
	setup := s.setups[0]
	if len(s.setups) > 1 {
		s.setups = s.setups[1:]
	}
	return setup, nil
}

func (s *scriptedClassifier) SuggestAnswer(ctx context.Context, questionText, clarifyingQuestion string) (string, error) {
	return "maybe 30 days", nil
}

func newTestServer(t *testing.T, clf classifier.Classifier) *httptest.Server {
	t.Helper()
	store := storage.NewMemoryStorage()
	policy := weights.DefaultPolicy()
	clock := engine.SystemClock{}
	eng := engine.New(store, clf, nil, policy, clock, zap.NewNop(), engine.Options{
		ClassifyTimeout: time.Second,
		ClassifyRetries: 0,
		ClassifyBackoff: time.Millisecond,
	})
	dig := &digest.Generator{Questions: store, Weights: store, Policy: policy, Clock: clock}

	srv := httptest.NewServer(NewRouter(eng, dig, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeQuestion(t *testing.T, resp *http.Response) models.Question {
	t.Helper()
	defer resp.Body.Close()
	var q models.Question
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&q))
	return q
}

func TestSubmitEndpoint(t *testing.T) {
	srv := newTestServer(t, &scriptedClassifier{})

	resp := postJSON(t, srv.URL+"/v1/users/u1/questions", map[string]any{
		"text": "How is D7 retention trending?",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	q := decodeQuestion(t, resp)
	assert.Equal(t, models.StatusQueued, q.Status)
	assert.Equal(t, models.SourceWeb, q.Source)
	require.NotNil(t, q.Intent)
}

func TestClarificationFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, &scriptedClassifier{
		setups: []classifier.Setup{
			{Questions: []classifier.ClarifyingPrompt{
				{Question: "Over what time window?", Placeholder: "e.g., 30 days"},
			}},
			{Complete: true, Brief: &models.AnalysisBrief{Heading: "Churn drivers"}},
		},
	})

	resp := postJSON(t, srv.URL+"/v1/users/u1/questions", map[string]any{
		"text": "What's driving churn?",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	q := decodeQuestion(t, resp)
	require.Equal(t, models.StatusWaitingForAnswers, q.Status)

	// Premature finalize with no answers.
	resp = postJSON(t, srv.URL+"/v1/users/u1/questions/"+q.ID+"/answers", map[string]any{
		"answers": []string{""},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Complete the clarification.
	resp = postJSON(t, srv.URL+"/v1/users/u1/questions/"+q.ID+"/answers", map[string]any{
		"answers": []string{"30 days"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	answered := decodeQuestion(t, resp)
	assert.Equal(t, models.StatusQueued, answered.Status)
}

func TestLifecycleErrorsOverHTTP(t *testing.T) {
	srv := newTestServer(t, &scriptedClassifier{})

	resp := postJSON(t, srv.URL+"/v1/users/u1/questions", map[string]any{"text": "How is retention?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	q := decodeQuestion(t, resp)

	resp = postJSON(t, srv.URL+"/v1/users/u1/questions/"+q.ID+"/complete", map[string]any{
		"summary": "retention is fine",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Cancelling a ready question conflicts.
	resp = postJSON(t, srv.URL+"/v1/users/u1/questions/"+q.ID+"/cancel", map[string]any{})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown ids are 404s.
	resp = postJSON(t, srv.URL+"/v1/users/u1/questions/nope/cancel", map[string]any{})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSlackEventEndpoint(t *testing.T) {
	srv := newTestServer(t, &scriptedClassifier{
		setups: []classifier.Setup{
			{Questions: []classifier.ClarifyingPrompt{
				{Question: "Over what time window?"},
				{Question: "Which platform?"},
			}},
			{Complete: true, Brief: &models.AnalysisBrief{Heading: "Churn drivers"}},
		},
	})

	resp := postJSON(t, srv.URL+"/v1/slack/events", map[string]any{
		"user_id": "u1",
		"text":    "What's driving churn?",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	q := decodeQuestion(t, resp)
	assert.Equal(t, models.SourceSlack, q.Source)
	require.Equal(t, models.StatusWaitingForAnswers, q.Status)

	// A chat reply answers positionally, one line per question.
	resp = postJSON(t, srv.URL+"/v1/slack/events", map[string]any{
		"user_id":     "u1",
		"question_id": q.ID,
		"text":        "30 days\niOS",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	answered := decodeQuestion(t, resp)
	assert.Equal(t, models.StatusQueued, answered.Status)
}

func TestWeightsAndDigestEndpoints(t *testing.T) {
	srv := newTestServer(t, &scriptedClassifier{})

	resp := postJSON(t, srv.URL+"/v1/users/u1/questions", map[string]any{"text": "How is retention?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/v1/users/u1/weights")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var w models.PillarWeights
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&w))
	resp.Body.Close()
	assert.Greater(t, w[models.PillarRetention], w[models.PillarSocial])

	resp, err = http.Get(srv.URL + "/v1/users/u1/digest")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report models.DigestReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	resp.Body.Close()
	assert.Equal(t, 1, report.TotalQuestions)
	require.Len(t, report.TopPillars, 1)
	assert.Equal(t, models.PillarRetention, report.TopPillars[0].Pillar)
}
