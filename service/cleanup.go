package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"audionote-backend/pkg/storage"
)

// CleanupReport counts best-effort deletions. Failures are logged and
// counted, never returned.
type CleanupReport struct {
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
}

func (r *CleanupReport) record(err error) {
	r.Attempted++
	if err != nil {
		r.Failed++
	}
}

func (r CleanupReport) merge(other CleanupReport) CleanupReport {
	return CleanupReport{
		Attempted: r.Attempted + other.Attempted,
		Failed:    r.Failed + other.Failed,
	}
}

func deleteObjects(ctx context.Context, store storage.ObjectStore, keys ...string) CleanupReport {
	var report CleanupReport
	for _, key := range keys {
		err := store.Delete(ctx, key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			err = nil
		}
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("object_key", key).Msg("failed to delete object")
		}
		report.record(err)
	}
	return report
}
