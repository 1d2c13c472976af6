package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"audionote-backend/entities"
	"audionote-backend/repository"
)

type DedupResult struct {
	IsDuplicate bool
	Signature   string
	// RecordingID is the recording the signature resolves to: the existing
	// one for a duplicate, the new one otherwise.
	RecordingID string
}

// DedupLedger collapses near-simultaneous uploads of the same size by the same
// user. The key ignores content, so identical audio sent outside the window or
// with a different size is never treated as a duplicate.
type DedupLedger struct {
	repo repository.DeduplicationRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewDedupLedger(repo repository.DeduplicationRepository, ttl time.Duration, now func() time.Time) *DedupLedger {
	if now == nil {
		now = time.Now
	}
	return &DedupLedger{repo: repo, ttl: ttl, now: now}
}

// Signature is "<owner>_<size>_<window>" where window counts whole TTL
// periods since the epoch.
func Signature(ownerID string, size int64, now time.Time, ttl time.Duration) string {
	window := now.UnixMilli()
	if ms := ttl.Milliseconds(); ms > 0 {
		window /= ms
	}
	return fmt.Sprintf("%s_%d_%d", ownerID, size, window)
}

func (l *DedupLedger) CheckAndRegister(ctx context.Context, ownerID string, size int64, recordingID string) (*DedupResult, error) {
	now := l.now()
	entry := &entities.Deduplication{
		Signature:   Signature(ownerID, size, now, l.ttl),
		RecordingID: recordingID,
		UserID:      ownerID,
		Timestamp:   now.UnixMilli(),
	}
	expiredBefore := now.Add(-l.ttl).UnixMilli()

	for attempt := 0; attempt < 2; attempt++ {
		created, err := l.repo.CreateDeduplication(ctx, entry)
		if err != nil {
			return nil, upstream(err)
		}
		if created {
			return &DedupResult{Signature: entry.Signature, RecordingID: recordingID}, nil
		}

		existing, err := l.repo.FindDeduplication(ctx, entry.Signature)
		if errors.Is(err, repository.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, upstream(err)
		}

		if existing.Timestamp < expiredBefore {
			replaced, err := l.repo.ReplaceDeduplication(ctx, entry, expiredBefore)
			if err != nil {
				return nil, upstream(err)
			}
			if replaced {
				return &DedupResult{Signature: entry.Signature, RecordingID: recordingID}, nil
			}
			continue
		}

		return &DedupResult{IsDuplicate: true, Signature: entry.Signature, RecordingID: existing.RecordingID}, nil
	}

	return nil, upstream(fmt.Errorf("dedup entry %s changed concurrently", entry.Signature))
}

// Release drops a registration whose recording was never created.
func (l *DedupLedger) Release(ctx context.Context, signature string) {
	if err := l.repo.DeleteDeduplication(ctx, signature); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("signature", signature).Msg("failed to release dedup entry")
	}
}

func (l *DedupLedger) Forget(ctx context.Context, recordingID string) error {
	return l.repo.DeleteDeduplicationsByRecording(ctx, recordingID)
}

// Sweep deletes entries older than the TTL and returns how many went.
func (l *DedupLedger) Sweep(ctx context.Context) (int64, error) {
	return l.repo.DeleteExpiredDeduplications(ctx, l.now().Add(-l.ttl).UnixMilli())
}
