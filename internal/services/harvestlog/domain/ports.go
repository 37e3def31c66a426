package domain

import "context"

// WriterPort writes log entries
type WriterPort interface {
	WriteBatch(ctx context.Context, xs []Entry) error
}

// QueryPort aggregates logged requests
type QueryPort interface {
	ByVerb(ctx context.Context, w Window) ([]VerbStat, error)
	BySet(ctx context.Context, w Window, limit int) ([]SetStat, error)
}
