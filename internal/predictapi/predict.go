package predictapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// predictResponse is the /predict success body.
type predictResponse struct {
	Urgency     urgency.Level             `json:"urgency"`
	Confidence  float64                   `json:"confidence"`
	TriageScore int                       `json:"triage_score"`
	Reasoning   string                    `json:"reasoning"`
	AllProba    map[urgency.Level]float64 `json:"all_proba"`
}

type healthResponse struct {
	Status     string `json:"status"`
	ModelReady bool   `json:"model_ready"`
	ModelError string `json:"model_error,omitempty"`
	TrainingID string `json:"training_id,omitempty"`
	ModelDir   string `json:"model_dir,omitempty"`
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "request body must be a JSON object", false)
		return
	}

	rec, err := a.svc.Predict(r.Context(), payload)
	if err != nil {
		a.writeTriageError(w, r, err, false)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("medtriage.prediction.id", rec.ID),
		attribute.String("medtriage.urgency", string(rec.Urgency)),
	)

	proba := make(map[urgency.Level]float64, len(rec.Distribution))
	for l, p := range rec.Distribution {
		proba[l] = round4(p)
	}

	w.Header().Set(PredictionIDHeader, rec.ID)
	writeJSON(w, http.StatusOK, predictResponse{
		Urgency:     rec.Urgency,
		Confidence:  round4(rec.Confidence),
		TriageScore: rec.TriageScore,
		Reasoning:   rec.Reasoning,
		AllProba:    proba,
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	rd := a.svc.Readiness()

	resp := healthResponse{
		Status:     "ok",
		ModelReady: rd.Ready,
		TrainingID: rd.TrainingID,
		ModelDir:   rd.ModelDir,
	}
	if rd.Err != nil {
		resp.ModelError = rd.Err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodePayload reads a JSON object. An empty or null body is an empty
// object. Numbers are kept as json.Number so integers survive exactly.
func decodePayload(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errTrailingData
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}
