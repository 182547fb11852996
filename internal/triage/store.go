package triage

import "context"

// Store is the persistence interface for prediction audit records.
type Store interface {
	Get(ctx context.Context, id string) (*Record, bool, error)
	Put(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]*Record, error)
}

// Notifier is told about emergency verdicts.
type Notifier interface {
	Send(ctx context.Context, rec *Record) error
}
