package triage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/model"
	"github.com/linnemanlabs/medtriage/internal/urgency"
	"github.com/oklog/ulid/v2"
)

// Intake defaults applied by Triage when the clinic form omits a value.
const (
	IntakeDefaultAge       = 30.0
	IntakeDefaultPainLevel = 3.0
)

// Readiness is the model state fixed at service construction.
type Readiness struct {
	Ready      bool
	Err        error
	TrainingID string
	ModelDir   string
	LoadedAt   time.Time
}

// Service is the business boundary for triage operations.
type Service struct {
	engine   *Engine
	ready    Readiness
	store    Store
	notifier Notifier
	logger   log.Logger
	hooks    EngineHooks

	wg sync.WaitGroup
}

// NewService creates a triage service from a model load outcome. store and
// notifier may be nil.
func NewService(lr model.LoadResult, store Store, notifier Notifier, logger log.Logger, hooks EngineHooks) *Service {
	if logger == nil {
		logger = log.Nop()
	}

	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		hooks:    hooks,
		ready: Readiness{
			Ready:    lr.Ready(),
			Err:      lr.Err,
			ModelDir: lr.Dir,
			LoadedAt: lr.LoadedAt,
		},
	}

	if lr.Ready() {
		s.ready.TrainingID = lr.Classifier.TrainingID()
		s.engine = NewEngine(lr.Classifier, s.ready.TrainingID, logger, hooks)
	}

	return s
}

// Readiness reports whether a model is loaded and, if not, why.
func (s *Service) Readiness() Readiness {
	return s.ready
}

// Predict decodes payload and classifies it with the loaded model. The audit
// record is written and emergency notifications are sent in the background.
func (s *Service) Predict(ctx context.Context, payload map[string]any) (*Record, error) {
	start := time.Now()

	if !s.ready.Ready {
		return nil, s.notReady()
	}

	r, err := features.Decode(payload)
	if err != nil {
		te := wrap(err)
		s.observeError(te.Kind)
		return nil, te
	}

	res, err := s.engine.Infer(ctx, r)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:           ulid.Make().String(),
		CreatedAt:    time.Now().UTC(),
		Source:       SourceModel,
		Vitals:       res.Vitals,
		SymptomsText: r.SymptomsText,
		Symptoms:     res.Flags.Names(),
		Urgency:      res.Urgency,
		Confidence:   res.Confidence,
		TriageScore:  res.TriageScore,
		Reasoning:    res.Reasoning,
		Distribution: res.Distribution,
		TrainingID:   res.TrainingID,
		Duration:     time.Since(start).Seconds(),
	}

	s.dispatch(ctx, rec)

	return rec, nil
}

// Triage runs the clinic intake flow: the model when one is loaded, the
// keyword rules otherwise, plus a consultation length estimate.
func (s *Service) Triage(ctx context.Context, req TriageRequest) (*TriageResponse, error) {
	start := time.Now()

	text := strings.TrimSpace(strings.TrimSpace(req.Symptoms) + " " + strings.TrimSpace(req.MedicalHistory))
	if strings.TrimSpace(req.Symptoms) == "" {
		te := &Error{Kind: KindInvalidInput, Msg: "symptoms is required", Err: features.ErrInvalidInput}
		s.observeError(te.Kind)
		return nil, te
	}

	age := req.Age
	if age == 0 {
		age = IntakeDefaultAge
	}
	pain := req.PainLevel
	if pain == 0 {
		pain = IntakeDefaultPainLevel
	}

	rec := &Record{
		ID:           ulid.Make().String(),
		SymptomsText: text,
		Vitals:       features.Record{Age: &age, PainLevel: &pain}.Vitals(),
	}

	var res *Result
	if s.ready.Ready {
		var err error
		res, err = s.engine.Infer(ctx, features.Record{Age: &age, PainLevel: &pain, SymptomsText: text})
		if err != nil {
			s.logger.Warn(ctx, "model inference failed, using keyword rules", "err", err)
			res = nil
		}
	}

	if res != nil {
		rec.Source = SourceModel
		rec.Symptoms = res.Flags.Names()
		rec.Urgency = res.Urgency
		rec.Confidence = res.Confidence
		rec.TriageScore = res.TriageScore
		rec.Reasoning = res.Reasoning
		rec.Distribution = res.Distribution
		rec.TrainingID = res.TrainingID
	} else {
		v := RuleBased(text, age)
		rec.Source = SourceRules
		rec.Symptoms = features.MatchSymptoms(text).Names()
		rec.Urgency = v.Urgency
		rec.TriageScore = v.TriageScore
		rec.Reasoning = v.Reasoning
		if s.hooks.OnInfer != nil {
			s.hooks.OnInfer(&InferEvent{Source: SourceRules, Urgency: v.Urgency, Duration: time.Since(start).Seconds()})
		}
	}

	rec.EstimatedMinutes = EstimateMinutes(text, age, rec.Urgency)
	rec.CreatedAt = time.Now().UTC()
	rec.Duration = time.Since(start).Seconds()

	s.dispatch(ctx, rec)

	resp := &TriageResponse{
		ID:               rec.ID,
		Urgency:          rec.Urgency,
		TriageScore:      rec.TriageScore,
		Reasoning:        rec.Reasoning,
		Source:           rec.Source,
		EstimatedMinutes: rec.EstimatedMinutes,
	}
	if rec.Source == SourceModel {
		c := rec.Confidence
		resp.Confidence = &c
	}
	return resp, nil
}

// Get retrieves an audit record by ID.
func (s *Service) Get(ctx context.Context, id string) (*Record, bool, error) {
	if s.store == nil {
		return nil, false, nil
	}
	return s.store.Get(ctx, id)
}

// Recent returns up to limit audit records, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Recent(ctx, limit)
}

// Wait blocks until background audit writes and notifications finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) notReady() *Error {
	err := s.ready.Err
	if err == nil {
		err = model.ErrNotLoaded
	}
	s.observeError(KindModelNotLoaded)
	return &Error{Kind: KindModelNotLoaded, Msg: "model not loaded", Err: err}
}

func (s *Service) observeError(kind Kind) {
	if s.hooks.OnError != nil {
		s.hooks.OnError(kind)
	}
}

// dispatch persists rec and, for emergencies, notifies. Both run detached
// from the request so the response never waits on I/O.
func (s *Service) dispatch(ctx context.Context, rec *Record) {
	if s.store == nil && (s.notifier == nil || rec.Urgency != urgency.Emergency) {
		return
	}

	cp := *rec
	bg := context.WithoutCancel(ctx)
	L := s.logger.With("prediction_id", cp.ID, "urgency", cp.Urgency)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.store != nil {
			if err := s.store.Put(bg, &cp); err != nil {
				L.Error(bg, fmt.Errorf("audit write: %w", err), "failed to persist prediction")
			}
		}
		if s.notifier != nil && cp.Urgency == urgency.Emergency {
			if err := s.notifier.Send(bg, &cp); err != nil {
				L.Error(bg, err, "failed to send emergency notification")
			}
		}
	}()
}
