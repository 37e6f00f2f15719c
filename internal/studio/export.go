package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"studio/internal/domain"
	"studio/internal/layers"
	"studio/pkg/zip"
)

// RecordLister lists persisted layer records for a session.
type RecordLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.LayerRecord, error)
}

// ManifestEntry describes one layer in an export.
type ManifestEntry struct {
	Position  int                 `json:"position"`
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	URL       string              `json:"url"`
	Type      domain.ResourceType `json:"resourceType,omitempty"`
	Active    bool                `json:"active"`
	Operation string              `json:"operation,omitempty"`
	Recorded  *time.Time          `json:"recordedAt,omitempty"`
}

// Export bundles the session snapshot and a layer manifest into a zip. The
// manifest is enriched with persisted records when the recorder can list
// them.
func (s *Service) Export(ctx context.Context, sessionID string) ([]byte, error) {
	st, err := s.sessions.Lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap := st.Snapshot()

	var records []domain.LayerRecord
	g, gctx := errgroup.WithContext(ctx)
	if lister, ok := s.recorder.(RecordLister); ok {
		g.Go(func() error {
			recs, err := lister.ListBySession(gctx, sessionID, len(snap.Layers)+1)
			if err != nil {
				s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("studio: export without layer records")
				return nil
			}
			records = recs
			return nil
		})
	}
	snapJSON, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		_ = g.Wait()
		return nil, fmt.Errorf("studio: encode snapshot: %w", err)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	manifestJSON, err := json.MarshalIndent(buildManifest(snap, records), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("studio: encode manifest: %w", err)
	}

	now := time.Now().UTC()
	return zip.Archive([]zip.Entry{
		{Filename: "snapshot.json", Data: snapJSON, Modified: now},
		{Filename: "manifest.json", Data: manifestJSON, Modified: now},
	})
}

func buildManifest(snap layers.Snapshot, records []domain.LayerRecord) []ManifestEntry {
	byID := make(map[string]domain.LayerRecord, len(records))
	for _, r := range records {
		byID[r.LayerID] = r
	}
	out := make([]ManifestEntry, 0, len(snap.Layers))
	for i, l := range snap.Layers {
		e := ManifestEntry{
			Position: i,
			ID:       l.ID,
			Name:     l.Name,
			URL:      l.URL,
			Type:     l.ResourceType,
			Active:   l.ID == snap.ActiveLayerID,
		}
		if r, ok := byID[l.ID]; ok {
			e.Operation = r.Operation
			at := r.CreatedAt
			e.Recorded = &at
		}
		out = append(out, e)
	}
	return out
}
