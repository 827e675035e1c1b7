package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/playlens/pulse/internal/classifier"
	"github.com/playlens/pulse/internal/digest"
	"github.com/playlens/pulse/internal/engine"
	"github.com/playlens/pulse/internal/models"
)

// Router is the thin HTTP boundary over the engine. It only translates
// requests into engine calls and engine errors into status codes; no
// lifecycle or weight logic lives here.
type Router struct {
	engine *engine.Engine
	digest *digest.Generator
	logger *zap.Logger
}

func NewRouter(eng *engine.Engine, dig *digest.Generator, logger *zap.Logger) http.Handler {
	r := &Router{engine: eng, digest: dig, logger: logger}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	mux.Use(LoggingMiddleware(logger))

	mux.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/v1/users/{user}", func(rt chi.Router) {
		rt.Post("/questions", r.wrap(r.handleSubmit))
		rt.Get("/questions", r.wrap(r.handleListActive))
		rt.Post("/questions/{id}/answers", r.wrap(r.handleAnswers))
		rt.Get("/questions/{id}/suggest", r.wrap(r.handleSuggest))
		rt.Post("/questions/{id}/complete", r.wrap(r.handleComplete))
		rt.Post("/questions/{id}/cancel", r.wrap(r.handleCancel))
		rt.Get("/weights", r.wrap(r.handleWeights))
		rt.Get("/digest", r.wrap(r.handleDigest))
	})

	mux.Post("/v1/slack/events", r.wrap(r.handleSlackEvent))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps the engine's error taxonomy onto status codes. Every taxonomy
// error is a 4xx with the engine's message so callers can decide what to do;
// only unknown failures become 500s.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, models.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, models.ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, models.ErrIncompleteAnswers),
			errors.Is(err, models.ErrUnknownPillar):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, models.ErrClassificationUnavailable):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			r.logger.Error("Request failed", zap.Error(err), zap.String("path", req.URL.Path))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

type submitRequest struct {
	Text    string `json:"text"`
	Answers []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"answers,omitempty"`
}

// POST /v1/users/{user}/questions
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var body submitRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return nil
	}
	if strings.TrimSpace(body.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return nil
	}

	cmd := engine.SubmitCommand{
		UserID: chi.URLParam(req, "user"),
		Text:   body.Text,
		Source: models.SourceWeb,
	}
	for _, qa := range body.Answers {
		cmd.Answers = append(cmd.Answers, classifier.QA{Question: qa.Question, Answer: qa.Answer})
	}

	q, err := r.engine.Submit(req.Context(), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, q)
}

type answersRequest struct {
	Answers    []string          `json:"answers,omitempty"`
	ByQuestion map[string]string `json:"by_question,omitempty"`
}

// POST /v1/users/{user}/questions/{id}/answers
func (r *Router) handleAnswers(w http.ResponseWriter, req *http.Request) error {
	var body answersRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return nil
	}

	q, err := r.engine.AnswerClarifications(
		req.Context(),
		chi.URLParam(req, "user"),
		chi.URLParam(req, "id"),
		engine.Answers{Ordered: body.Answers, ByQuestion: body.ByQuestion},
	)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, q)
}

// GET /v1/users/{user}/questions/{id}/suggest?slot=0
func (r *Router) handleSuggest(w http.ResponseWriter, req *http.Request) error {
	slot := 0
	if raw := req.URL.Query().Get("slot"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid slot", http.StatusBadRequest)
			return nil
		}
		slot = parsed
	}

	suggestion, err := r.engine.SuggestAnswer(req.Context(), chi.URLParam(req, "user"), chi.URLParam(req, "id"), slot)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

type completeRequest struct {
	Summary string         `json:"summary"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

// POST /v1/users/{user}/questions/{id}/complete
func (r *Router) handleComplete(w http.ResponseWriter, req *http.Request) error {
	var body completeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return nil
	}

	q, err := r.engine.Complete(
		req.Context(),
		chi.URLParam(req, "user"),
		chi.URLParam(req, "id"),
		models.AnalysisResult{Summary: body.Summary, Metrics: body.Metrics},
	)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, q)
}

// POST /v1/users/{user}/questions/{id}/cancel
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	q, err := r.engine.Cancel(req.Context(), chi.URLParam(req, "user"), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, q)
}

// GET /v1/users/{user}/questions
func (r *Router) handleListActive(w http.ResponseWriter, req *http.Request) error {
	questions, err := r.engine.ListActive(req.Context(), chi.URLParam(req, "user"))
	if err != nil {
		return err
	}
	if questions == nil {
		questions = []*models.Question{}
	}
	return writeJSON(w, http.StatusOK, questions)
}

// GET /v1/users/{user}/weights
func (r *Router) handleWeights(w http.ResponseWriter, req *http.Request) error {
	weights, err := r.engine.CurrentWeights(req.Context(), chi.URLParam(req, "user"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, weights)
}

// GET /v1/users/{user}/digest
func (r *Router) handleDigest(w http.ResponseWriter, req *http.Request) error {
	report, err := r.digest.Generate(req.Context(), chi.URLParam(req, "user"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, report)
}

type slackEventRequest struct {
	UserID     string `json:"user_id"`
	Text       string `json:"text"`
	QuestionID string `json:"question_id,omitempty"`
}

// POST /v1/slack/events
// A chat message either answers the outstanding clarifications of an
// existing question (one answer per line, positional) or submits a new
// slack-sourced question. Slack payload verification and block formatting
// live in the gateway in front of this route.
func (r *Router) handleSlackEvent(w http.ResponseWriter, req *http.Request) error {
	var body slackEventRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return nil
	}
	if strings.TrimSpace(body.UserID) == "" || strings.TrimSpace(body.Text) == "" {
		http.Error(w, "user_id and text are required", http.StatusBadRequest)
		return nil
	}

	if body.QuestionID != "" {
		q, err := r.engine.AnswerClarifications(
			req.Context(), body.UserID, body.QuestionID,
			engine.ParseChatAnswers(body.Text),
		)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, q)
	}

	q, err := r.engine.Submit(req.Context(), engine.SubmitCommand{
		UserID: body.UserID,
		Text:   body.Text,
		Source: models.SourceSlack,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, q)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
