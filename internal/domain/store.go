package domain

import (
	"context"
	"time"
)

// AlertStore persists level transitions.
type AlertStore interface {
	Insert(ctx context.Context, rec AlertRecord) error
	ListRecent(ctx context.Context, limit int) ([]AlertRecord, error)
	ListByPair(ctx context.Context, pair string, limit int) ([]AlertRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]AlertRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
