package domain

import "context"

// LayerRepository persists records of layers produced by operations.
type LayerRepository interface {
	Record(ctx context.Context, rec LayerRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]LayerRecord, error)
}
