package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

const defaultListLimit = 50

// LayerRepositoryPG implements domain.LayerRepository on PostgreSQL through
// the marker-checked SQL runner.
type LayerRepositoryPG struct {
	db  infra.SQLExecutor
	now func() time.Time
}

// NewLayerRepository constructs a layer repository on db.
func NewLayerRepository(db infra.SQLExecutor) *LayerRepositoryPG {
	return &LayerRepositoryPG{db: db, now: time.Now}
}

// EnsureSchema creates the layer_records table when missing.
func (r *LayerRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QEnsureLayerRecords); err != nil {
		return fmt.Errorf("repo: ensure layer_records: %w", err)
	}
	return nil
}

// Record upserts one layer record keyed by (session, layer).
func (r *LayerRepositoryPG) Record(ctx context.Context, rec domain.LayerRecord) error {
	if rec.LayerID == "" || rec.SessionID == "" {
		return fmt.Errorf("repo: record layer: %w", domain.ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("repo: encode metadata: %w", err)
	}
	if _, err := r.db.Exec(ctx, sqlinline.QInsertLayer,
		rec.LayerID,
		rec.SessionID,
		rec.Operation,
		rec.URL,
		rec.PublicID,
		payload,
		rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("repo: record layer %s: %w", rec.LayerID, err)
	}
	return nil
}

// ListBySession returns the newest records first.
func (r *LayerRepositoryPG) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.LayerRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("repo: list layers: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.Query(ctx, sqlinline.QListLayersBySession, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list layers: %w", err)
	}
	defer rows.Close()

	var records []domain.LayerRecord
	for rows.Next() {
		var (
			rec  domain.LayerRecord
			meta []byte
		)
		if err := rows.Scan(&rec.LayerID, &rec.SessionID, &rec.Operation, &rec.URL, &rec.PublicID, &meta, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("repo: scan layer: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("repo: decode metadata: %w", errors.Join(domain.ErrInvalidInput, err))
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list layers: %w", err)
	}
	return records, nil
}

var _ domain.LayerRepository = (*LayerRepositoryPG)(nil)
