// Package predictapi exposes triage over HTTP: the /predict inference
// endpoint, the /health readiness report, and the token-guarded /api/v1
// clinic routes.
package predictapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/medtriage/internal/authmw"
	"github.com/linnemanlabs/medtriage/internal/triage"
)

// TriageService defines the business operations predictapi needs.
type TriageService interface {
	Readiness() triage.Readiness
	Predict(ctx context.Context, payload map[string]any) (*triage.Record, error)
	Triage(ctx context.Context, req triage.TriageRequest) (*triage.TriageResponse, error)
	Get(ctx context.Context, id string) (*triage.Record, bool, error)
	Recent(ctx context.Context, limit int) ([]*triage.Record, error)
}

// PredictionIDHeader carries the audit record ID of a /predict response.
const PredictionIDHeader = "X-Prediction-Id"

// Error kinds produced by the HTTP layer itself.
const (
	kindInvalidRequest = "invalid_request"
	kindNotFound       = "not_found"
)

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
	tokens []string
}

// Option configures an API.
type Option func(*API)

// WithAPITokens guards the /api/v1 routes with bearer tokens. No tokens
// leaves them open.
func WithAPITokens(tokens ...string) Option {
	return func(a *API) {
		for _, t := range tokens {
			if t != "" {
				a.tokens = append(a.tokens, t)
			}
		}
	}
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	a := &API{
		logger: logger,
		svc:    svc,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Post("/predict", a.handlePredict)
	r.Get("/health", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if len(a.tokens) > 0 {
			r.Use(authmw.BearerToken(a.tokens...))
		}
		r.Post("/triage", a.handleTriage)
		r.Get("/predictions", a.handleRecent)
		r.Get("/predictions/{id}", a.handleGetPrediction)
	})
}

type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

// statusFor maps a triage error kind to its HTTP status.
func statusFor(kind triage.Kind) int {
	switch kind {
	case triage.KindModelNotLoaded:
		return http.StatusServiceUnavailable
	case triage.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeTriageError renders err as {error, kind}. Server-side failures are
// logged and reported without internal detail.
func (a *API) writeTriageError(w http.ResponseWriter, r *http.Request, err error, envelope bool) {
	var te *triage.Error
	if !errors.As(err, &te) {
		te = &triage.Error{Kind: triage.KindInternal, Msg: "internal error", Err: err}
	}

	status := statusFor(te.Kind)
	msg := te.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error(r.Context(), err, "triage request failed", "kind", te.Kind)
		msg = te.Msg
	}

	body := errorBody{Error: msg, Kind: string(te.Kind)}
	if envelope {
		body.Success = new(bool)
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, kind, msg string, envelope bool) {
	body := errorBody{Error: msg, Kind: kind}
	if envelope {
		body.Success = new(bool)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

// round4 rounds to four decimal places for presentation.
func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
