package predictapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/medtriage/internal/triage"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// Recent listing bounds.
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

var errTrailingData = errors.New("trailing data after JSON value")

type triageData struct {
	PredictionID     string        `json:"prediction_id"`
	Urgency          urgency.Level `json:"urgency"`
	TriageScore      int           `json:"triage_score"`
	Reasoning        string        `json:"reasoning"`
	Confidence       *float64      `json:"confidence,omitempty"`
	Source           triage.Source `json:"source"`
	EstimatedMinutes int           `json:"estimated_minutes"`
}

type triageEnvelope struct {
	Success bool       `json:"success"`
	Data    triageData `json:"data"`
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req triage.TriageRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid payload", true)
		return
	}

	resp, err := a.svc.Triage(r.Context(), req)
	if err != nil {
		a.writeTriageError(w, r, err, true)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("medtriage.prediction.id", resp.ID),
		attribute.String("medtriage.urgency", string(resp.Urgency)),
		attribute.String("medtriage.source", string(resp.Source)),
	)

	data := triageData{
		PredictionID:     resp.ID,
		Urgency:          resp.Urgency,
		TriageScore:      resp.TriageScore,
		Reasoning:        resp.Reasoning,
		Source:           resp.Source,
		EstimatedMinutes: resp.EstimatedMinutes,
	}
	if resp.Confidence != nil {
		c := round4(*resp.Confidence)
		data.Confidence = &c
	}

	writeJSON(w, http.StatusOK, triageEnvelope{Success: true, Data: data})
}

func (a *API) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("medtriage.prediction.id", id))

	rec, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get prediction", "id", id)
		writeError(w, http.StatusInternalServerError, string(triage.KindInternal), "internal error", false)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, kindNotFound, "not found", false)
		return
	}

	span.SetAttributes(attribute.String("medtriage.urgency", string(rec.Urgency)))

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRecentLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxRecentLimit {
			writeError(w, http.StatusBadRequest, kindInvalidRequest, "limit must be 1.."+strconv.Itoa(MaxRecentLimit), false)
			return
		}
		limit = n
	}

	recs, err := a.svc.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list predictions", "limit", limit)
		writeError(w, http.StatusInternalServerError, string(triage.KindInternal), "internal error", false)
		return
	}
	if recs == nil {
		recs = []*triage.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"predictions": recs})
}
