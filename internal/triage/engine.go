package triage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/model"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

var tracer = otel.Tracer("github.com/linnemanlabs/medtriage/internal/triage")

// Classifier maps a feature vector to an urgency prediction.
type Classifier interface {
	Classify(v features.Vector) (*model.Prediction, error)
}

// InferEvent describes one successful inference.
type InferEvent struct {
	Source     Source
	Urgency    urgency.Level
	Confidence float64
	Duration   float64
}

// EngineHooks are optional callbacks fired by the engine. Nil fields are
// skipped.
type EngineHooks struct {
	OnInfer func(e *InferEvent)
	OnError func(kind Kind)
}

// Engine turns a patient record into a classified, scored and explained
// result. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	clf        Classifier
	trainingID string
	logger     log.Logger
	hooks      EngineHooks
}

// NewEngine creates an engine over clf. trainingID is stamped on every result.
func NewEngine(clf Classifier, trainingID string, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		clf:        clf,
		trainingID: trainingID,
		logger:     logger,
		hooks:      hooks,
	}
}

// Infer extracts features from r, classifies them, and composes the score
// and reasoning. Failures are returned as *Error.
func (e *Engine) Infer(ctx context.Context, r features.Record) (*Result, error) {
	start := time.Now()

	_, span := tracer.Start(ctx, "triage.infer", trace.WithAttributes(
		attribute.String("medtriage.training.id", e.trainingID),
	))
	defer span.End()

	vec, flags := features.Extract(r)
	vitals := r.Vitals()

	if e.clf == nil {
		return nil, e.fail(ctx, span, wrap(model.ErrNotLoaded))
	}

	pred, err := e.clf.Classify(vec)
	if err != nil {
		return nil, e.fail(ctx, span, wrap(err))
	}

	res := &Result{
		Urgency:      pred.Urgency,
		Confidence:   pred.Confidence,
		TriageScore:  urgency.Score(pred.Urgency),
		Reasoning:    Compose(pred.Urgency, flags, vitals.PainLevel, vitals.Age, vitals.Temperature),
		Distribution: pred.Distribution,
		Flags:        flags,
		Vitals:       vitals,
		TrainingID:   e.trainingID,
	}

	span.SetAttributes(
		attribute.String("medtriage.urgency", string(res.Urgency)),
		attribute.Float64("medtriage.confidence", res.Confidence),
		attribute.StringSlice("medtriage.symptoms", flags.Names()),
	)

	if e.hooks.OnInfer != nil {
		e.hooks.OnInfer(&InferEvent{
			Source:     SourceModel,
			Urgency:    res.Urgency,
			Confidence: res.Confidence,
			Duration:   time.Since(start).Seconds(),
		})
	}

	return res, nil
}

func (e *Engine) fail(ctx context.Context, span trace.Span, te *Error) *Error {
	span.RecordError(te)
	span.SetStatus(codes.Error, string(te.Kind))
	span.SetAttributes(attribute.String("medtriage.error.kind", string(te.Kind)))

	if te.Kind == KindShapeMismatch || te.Kind == KindInternal {
		e.logger.Error(ctx, te, "inference failed", "kind", te.Kind)
	}
	if e.hooks.OnError != nil {
		e.hooks.OnError(te.Kind)
	}
	return te
}
