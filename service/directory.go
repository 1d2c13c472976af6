package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"audionote-backend/constant"
	"audionote-backend/entities"
	"audionote-backend/pkg/storage"
	"audionote-backend/repository"
)

// Directory answers owner-scoped queries over recordings. A missing
// recording and one owned by someone else produce the same error.
type Directory interface {
	List(ctx context.Context, ownerID string) ([]*entities.Recording, error)
	Get(ctx context.Context, ownerID, recordingID string) (*entities.Recording, error)
	Delete(ctx context.Context, ownerID, recordingID string) (CleanupReport, error)
	DeleteAll(ctx context.Context, ownerID string) (int, CleanupReport, error)
}

type directory struct {
	repo   repository.Repository
	ledger *DedupLedger
	store  storage.ObjectStore
}

func NewDirectory(repo repository.Repository, ledger *DedupLedger, store storage.ObjectStore) Directory {
	return &directory{
		repo:   repo,
		ledger: ledger,
		store:  store,
	}
}

func (d *directory) List(ctx context.Context, ownerID string) ([]*entities.Recording, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	recordings, err := d.repo.ListRecordingsByUser(ctx, ownerID, constant.RecordingsListLimit)
	if err != nil {
		return nil, upstream(err)
	}
	return recordings, nil
}

func (d *directory) Get(ctx context.Context, ownerID, recordingID string) (*entities.Recording, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	recording, err := d.repo.FindRecordingById(ctx, recordingID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return nil, upstream(err)
	}
	if recording.UserID != ownerID {
		return nil, ErrNotFoundOrUnauthorized
	}
	return recording, nil
}

func (d *directory) Delete(ctx context.Context, ownerID, recordingID string) (CleanupReport, error) {
	recording, err := d.Get(ctx, ownerID, recordingID)
	if err != nil {
		return CleanupReport{}, err
	}
	return d.remove(ctx, recording)
}

func (d *directory) DeleteAll(ctx context.Context, ownerID string) (int, CleanupReport, error) {
	if ownerID == "" {
		return 0, CleanupReport{}, ErrUnauthorized
	}
	recordings, err := d.repo.ListRecordingsByUser(ctx, ownerID, 0)
	if err != nil {
		return 0, CleanupReport{}, upstream(err)
	}

	var report CleanupReport
	deleted := 0
	for _, recording := range recordings {
		r, err := d.remove(ctx, recording)
		report = report.merge(r)
		if err != nil {
			return deleted, report, err
		}
		deleted++
	}

	zerolog.Ctx(ctx).Info().
		Str("user_id", ownerID).
		Int("deleted", deleted).
		Int("cleanup_failed", report.Failed).
		Msg("deleted all recordings")
	return deleted, report, nil
}

// remove deletes the document first since it alone decides list visibility.
// Object and dedup cleanup are best-effort.
func (d *directory) remove(ctx context.Context, recording *entities.Recording) (CleanupReport, error) {
	if err := d.repo.DeleteRecording(ctx, recording.ID); err != nil {
		return CleanupReport{}, upstream(err)
	}

	report := deleteObjects(ctx, d.store, recording.FilePath)
	err := d.ledger.Forget(ctx, recording.ID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("recording_id", recording.ID).Msg("failed to delete dedup entries")
	}
	report.record(err)
	return report, nil
}
