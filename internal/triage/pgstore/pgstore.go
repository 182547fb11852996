// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/medtriage/internal/triage"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

var tracer = otel.Tracer("github.com/linnemanlabs/medtriage/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// MaxRecent bounds Recent regardless of the requested limit.
const MaxRecent = 500

// Store persists prediction audit records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const predictionColumns = `id, created_at, source, vitals, symptoms_text, symptoms, urgency,
	confidence, triage_score, reasoning, distribution, estimated_minutes, training_id, duration_s`

// Get retrieves a prediction record by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Record, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE id = $1`
	r, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		fail(span, err)
		return nil, false, err
	}
	return r, true, nil
}

// Put inserts or replaces a prediction record.
func (s *Store) Put(ctx context.Context, r *triage.Record) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()
	span.SetAttributes(
		attribute.String("medtriage.prediction.id", r.ID),
		attribute.String("medtriage.urgency", string(r.Urgency)),
	)

	vitalsJSON, err := json.Marshal(r.Vitals)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("marshal vitals: %w", err)
	}

	var distJSON []byte
	if r.Distribution != nil {
		if distJSON, err = json.Marshal(r.Distribution); err != nil {
			fail(span, err)
			return fmt.Errorf("marshal distribution: %w", err)
		}
	}

	symptoms := r.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}

	query := `INSERT INTO predictions (` + predictionColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (id) DO UPDATE SET
		created_at        = EXCLUDED.created_at,
		source            = EXCLUDED.source,
		vitals            = EXCLUDED.vitals,
		symptoms_text     = EXCLUDED.symptoms_text,
		symptoms          = EXCLUDED.symptoms,
		urgency           = EXCLUDED.urgency,
		confidence        = EXCLUDED.confidence,
		triage_score      = EXCLUDED.triage_score,
		reasoning         = EXCLUDED.reasoning,
		distribution      = EXCLUDED.distribution,
		estimated_minutes = EXCLUDED.estimated_minutes,
		training_id       = EXCLUDED.training_id,
		duration_s        = EXCLUDED.duration_s`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.CreatedAt, string(r.Source), vitalsJSON, r.SymptomsText, symptoms, string(r.Urgency),
		r.Confidence, r.TriageScore, r.Reasoning, distJSON, r.EstimatedMinutes, r.TrainingID, r.Duration,
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("upsert prediction: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*triage.Record, error) {
	ctx, span := startSpan(ctx, "pgstore.Recent", "SELECT")
	defer span.End()

	if limit <= 0 {
		return nil, nil
	}
	limit = min(limit, MaxRecent)
	span.SetAttributes(attribute.Int("db.query.limit", limit))

	rows, err := s.pool.Query(ctx,
		`SELECT `+predictionColumns+` FROM predictions ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []*triage.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			fail(span, err)
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

// scanRecord scans one row. pgx.ErrNoRows is returned unwrapped.
func scanRecord(row pgx.Row) (*triage.Record, error) {
	var (
		r          triage.Record
		source     string
		level      string
		vitalsJSON []byte
		distJSON   []byte
	)

	err := row.Scan(
		&r.ID, &r.CreatedAt, &source, &vitalsJSON, &r.SymptomsText, &r.Symptoms, &level,
		&r.Confidence, &r.TriageScore, &r.Reasoning, &distJSON, &r.EstimatedMinutes, &r.TrainingID, &r.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Source = triage.Source(source)
	r.Urgency = urgency.Level(level)

	if err := json.Unmarshal(vitalsJSON, &r.Vitals); err != nil {
		return nil, fmt.Errorf("unmarshal vitals %s: %w", r.ID, err)
	}
	if len(distJSON) > 0 {
		if err := json.Unmarshal(distJSON, &r.Distribution); err != nil {
			return nil, fmt.Errorf("unmarshal distribution %s: %w", r.ID, err)
		}
	}
	if len(r.Symptoms) == 0 {
		r.Symptoms = nil
	}

	return &r, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
