package store

import (
	"context"

	"go.uber.org/zap"
)

// Open connects to the graph backend and falls back transparently to the
// local file store when the backend is unreachable. Both implement the same
// contract, so callers never notice which one they got.
func Open(ctx context.Context, uri, username, password, dataDir string, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if uri != "" {
		gs, err := NewGraphStore(ctx, uri, username, password, log)
		if err == nil {
			if err := gs.BuildIndices(ctx); err != nil {
				log.Warn("failed to build indices", zap.Error(err))
			}
			return gs, nil
		}
		log.Warn("graph backend unavailable, falling back to file store",
			zap.String("uri", uri), zap.String("data_dir", dataDir), zap.Error(err))
	}
	return NewFileStore(dataDir, log)
}
