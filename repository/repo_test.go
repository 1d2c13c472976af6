package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audionote-backend/constant"
	"audionote-backend/entities"
	"audionote-backend/repository"
)

// newTestRepo connects to TEST_DATABASE_URL and migrates the schema. The
// suite is skipped when no database is configured.
func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping(), "Failed to ping test database")

	repo, err := repository.NewRepo(db, false)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func newRecording(t *testing.T, repo repository.Repository) *entities.Recording {
	t.Helper()
	owner := uuid.NewString()
	path := fmt.Sprintf("audio/%s/%d-a.mp3", owner, time.Now().UnixMilli())
	recording := &entities.Recording{
		ID:        entities.RecordingID(path),
		FilePath:  path,
		Filename:  "a.mp3",
		MimeType:  "audio/mpeg",
		Size:      3,
		FileHash:  "900150983cd24fb0d6963f7d28e17f72",
		UserID:    owner,
		Status:    constant.RecordingStatusUploaded,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateRecording(context.Background(), recording))
	t.Cleanup(func() { _ = repo.DeleteRecording(context.Background(), recording.ID) })
	return recording
}

func TestRepo_RecordingStatusGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("duplicate id", func(t *testing.T) {
		recording := newRecording(t, repo)
		dup := *recording
		dup.FilePath += "-other"
		assert.ErrorIs(t, repo.CreateRecording(ctx, &dup), repository.ErrDuplicateKey)
	})

	t.Run("claim once", func(t *testing.T) {
		recording := newRecording(t, repo)

		err := repo.MarkProcessing(ctx, recording.ID, recording.FilePath, "someone-else", now)
		assert.ErrorIs(t, err, repository.ErrStatusGuard)

		require.NoError(t, repo.MarkProcessing(ctx, recording.ID, recording.FilePath, recording.UserID, now))
		err = repo.MarkProcessing(ctx, recording.ID, recording.FilePath, recording.UserID, now)
		assert.ErrorIs(t, err, repository.ErrStatusGuard)

		require.NoError(t, repo.MarkProcessed(ctx, recording.ID, "t", "r", now))
		assert.ErrorIs(t, repo.MarkFailed(ctx, recording.ID, "late", now), repository.ErrStatusGuard)

		found, err := repo.FindRecordingById(ctx, recording.ID)
		require.NoError(t, err)
		assert.Equal(t, constant.RecordingStatusProcessed, found.Status)
		require.NotNil(t, found.Transcript)
		assert.Equal(t, "t", *found.Transcript)
	})

	t.Run("concurrent claims", func(t *testing.T) {
		recording := newRecording(t, repo)

		var wg sync.WaitGroup
		results := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- repo.MarkProcessing(ctx, recording.ID, recording.FilePath, recording.UserID, now)
			}()
		}
		wg.Wait()
		close(results)

		won := 0
		for err := range results {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, repository.ErrStatusGuard)
		}
		assert.Equal(t, 1, won)
	})

	t.Run("stuck recordings fail", func(t *testing.T) {
		recording := newRecording(t, repo)
		started := now.Add(-time.Hour)
		require.NoError(t, repo.MarkProcessing(ctx, recording.ID, recording.FilePath, recording.UserID, started))

		count, err := repo.FailStuckRecordings(ctx, now.Add(-15*time.Minute), "processing timed out", now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, int64(1))

		found, err := repo.FindRecordingById(ctx, recording.ID)
		require.NoError(t, err)
		assert.Equal(t, constant.RecordingStatusFailed, found.Status)
	})
}

func TestRepo_Deduplication(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	signature := uuid.NewString()
	t.Cleanup(func() { _ = repo.DeleteDeduplication(ctx, signature) })

	created, err := repo.CreateDeduplication(ctx, &entities.Deduplication{Signature: signature, RecordingID: "r1", UserID: "u", Timestamp: 100})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateDeduplication(ctx, &entities.Deduplication{Signature: signature, RecordingID: "r2", UserID: "u", Timestamp: 200})
	require.NoError(t, err)
	assert.False(t, created)

	replaced, err := repo.ReplaceDeduplication(ctx, &entities.Deduplication{Signature: signature, RecordingID: "r2", UserID: "u", Timestamp: 200}, 100)
	require.NoError(t, err)
	assert.False(t, replaced)

	replaced, err = repo.ReplaceDeduplication(ctx, &entities.Deduplication{Signature: signature, RecordingID: "r2", UserID: "u", Timestamp: 200}, 101)
	require.NoError(t, err)
	assert.True(t, replaced)

	found, err := repo.FindDeduplication(ctx, signature)
	require.NoError(t, err)
	assert.Equal(t, "r2", found.RecordingID)

	require.NoError(t, repo.DeleteDeduplicationsByRecording(ctx, "r2"))
	_, err = repo.FindDeduplication(ctx, signature)
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestRepo_MergeChunk(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	t.Cleanup(func() { _ = repo.DeleteChunkSession(ctx, sessionID) })

	session := &entities.ChunkSession{
		ID:          sessionID,
		UserID:      "alice",
		Filename:    "long.mp3",
		MimeType:    "audio/mpeg",
		TotalChunks: 6,
		UpdatedAt:   time.Now(),
	}

	var wg sync.WaitGroup
	for index := 6; index >= 1; index-- {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			assert.NoError(t, repo.MergeChunk(ctx, session, &entities.UploadChunk{
				ChunkIndex: index,
				Path:       fmt.Sprintf("chunks/alice/%s/%d", sessionID, index),
				Size:       int64(index),
			}))
		}(index)
	}
	wg.Wait()

	require.NoError(t, repo.MergeChunk(ctx, session, &entities.UploadChunk{ChunkIndex: 2, Path: "replaced", Size: 20}))

	err := repo.MergeChunk(ctx, &entities.ChunkSession{ID: sessionID, UserID: "mallory", Filename: "x.mp3", MimeType: "audio/mpeg", TotalChunks: 6, UpdatedAt: time.Now()},
		&entities.UploadChunk{ChunkIndex: 1, Path: "stolen", Size: 1})
	assert.ErrorIs(t, err, repository.ErrChunkOwnerMismatch)

	found, err := repo.FindChunkSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.UserID)
	require.Len(t, found.Chunks, 6)
	for i, chunk := range found.Chunks {
		assert.Equal(t, i+1, chunk.ChunkIndex)
	}
	assert.Equal(t, "replaced", found.Chunks[1].Path)
	assert.Equal(t, int64(20), found.Chunks[1].Size)
	assert.NotEqual(t, "stolen", found.Chunks[0].Path)

	require.NoError(t, repo.DeleteChunkSession(ctx, sessionID))
	_, err = repo.FindChunkSession(ctx, sessionID)
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}
