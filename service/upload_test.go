package service_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audionote-backend/constant"
	"audionote-backend/dto"
	"audionote-backend/service"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(ctx context.Context, message dto.ProcessMessage) (*dto.ProcessResult, error) {
	return nil, nil
}

func upload(owner, filename, body string) service.AudioUpload {
	return service.AudioUpload{
		OwnerID:  owner,
		Filename: filename,
		MimeType: "audio/mpeg",
		Body:     strings.NewReader(body),
	}
}

func TestIngestor_Upload(t *testing.T) {
	ctx := testContext()

	t.Run("creates recording and processes inline", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.ingestor.Upload(ctx, upload("alice", "note.mp3", "abc"))
		require.NoError(t, err)
		assert.False(t, res.IsDuplicate)
		assert.NoError(t, res.ProcessingErr)

		expectedPath := "audio/alice/1714557600000-note.mp3"
		assert.Equal(t, expectedPath, res.FilePath)
		assert.Equal(t, "audio_alice_1714557600000-note.mp3", res.RecordingID)
		require.NotNil(t, res.Processed)
		assert.Equal(t, "transcript:abc", res.Processed.Transcript)
		assert.Equal(t, "summary:transcript:abc", res.Processed.Recommendations)

		recording, err := f.repo.FindRecordingById(ctx, res.RecordingID)
		require.NoError(t, err)
		assert.Equal(t, constant.RecordingStatusProcessed, recording.Status)
		assert.Equal(t, int64(3), recording.Size)
		assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", recording.FileHash)
		assert.Equal(t, "note.mp3", recording.Filename)
	})

	t.Run("queued dispatch leaves recording uploaded", func(t *testing.T) {
		f := newFixture(t, withQueuedDispatch())

		res, err := f.ingestor.Upload(ctx, upload("alice", "note.mp3", "abc"))
		require.NoError(t, err)
		assert.Nil(t, res.Processed)

		recording, err := f.repo.FindRecordingById(ctx, res.RecordingID)
		require.NoError(t, err)
		assert.Equal(t, constant.RecordingStatusUploaded, recording.Status)
	})

	t.Run("duplicate within window short-circuits", func(t *testing.T) {
		f := newFixture(t, withQueuedDispatch())

		first, err := f.ingestor.Upload(ctx, upload("alice", "a.mp3", "same-size"))
		require.NoError(t, err)
		f.clock.Advance(5 * time.Millisecond)
		second, err := f.ingestor.Upload(ctx, upload("alice", "b.mp3", "other-one"))
		require.NoError(t, err)

		assert.True(t, second.IsDuplicate)
		assert.Equal(t, first.RecordingID, second.RecordingID)
		assert.Equal(t, first.FilePath, second.FilePath)

		recordings, err := f.repo.ListRecordingsByUser(ctx, "alice", 0)
		require.NoError(t, err)
		assert.Len(t, recordings, 1)
		assert.Equal(t, []string{first.FilePath}, f.store.Keys())
	})

	t.Run("different size or owner is not a duplicate", func(t *testing.T) {
		f := newFixture(t, withQueuedDispatch())

		_, err := f.ingestor.Upload(ctx, upload("alice", "a.mp3", "abc"))
		require.NoError(t, err)
		f.clock.Advance(time.Millisecond)
		res, err := f.ingestor.Upload(ctx, upload("alice", "a.mp3", "abcd"))
		require.NoError(t, err)
		assert.False(t, res.IsDuplicate)
		res, err = f.ingestor.Upload(ctx, upload("bob", "a.mp3", "abc"))
		require.NoError(t, err)
		assert.False(t, res.IsDuplicate)
	})

	t.Run("same size after window is accepted", func(t *testing.T) {
		f := newFixture(t, withQueuedDispatch())

		_, err := f.ingestor.Upload(ctx, upload("alice", "a.mp3", "abc"))
		require.NoError(t, err)
		f.clock.Advance(constant.DedupTTL + time.Second)
		res, err := f.ingestor.Upload(ctx, upload("alice", "a.mp3", "abc"))
		require.NoError(t, err)
		assert.False(t, res.IsDuplicate)
	})

	t.Run("rejects unsupported type", func(t *testing.T) {
		f := newFixture(t)

		u := upload("alice", "a.ogg", "abc")
		u.MimeType = "audio/ogg"
		_, err := f.ingestor.Upload(ctx, u)
		assert.ErrorIs(t, err, service.ErrUnsupportedMediaType)
		assert.ErrorIs(t, err, service.ErrValidation)
		assert.Empty(t, f.store.Keys())
	})

	t.Run("rejects oversized payload", func(t *testing.T) {
		f := newFixture(t, withLimits(8, 4))

		_, err := f.ingestor.Upload(ctx, service.AudioUpload{
			OwnerID:  "alice",
			Filename: "a.mp3",
			MimeType: "audio/mpeg",
			Body:     bytes.NewReader(make([]byte, 9)),
		})
		assert.ErrorIs(t, err, service.ErrPayloadTooLarge)
		assert.Empty(t, f.store.Keys())

		recordings, err := f.repo.ListRecordingsByUser(ctx, "alice", 0)
		require.NoError(t, err)
		assert.Empty(t, recordings)
	})

	t.Run("accepts payload exactly at the limit", func(t *testing.T) {
		f := newFixture(t, withLimits(8, 4), withQueuedDispatch())

		res, err := f.ingestor.Upload(ctx, service.AudioUpload{
			OwnerID:  "alice",
			Filename: "a.mp3",
			MimeType: "audio/wav",
			Body:     bytes.NewReader(make([]byte, 8)),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.RecordingID)
	})

	t.Run("filename cannot escape the owner namespace", func(t *testing.T) {
		f := newFixture(t, withQueuedDispatch())

		res, err := f.ingestor.Upload(ctx, upload("alice", "../../bob/evil.mp3", "abc"))
		require.NoError(t, err)
		assert.Equal(t, "audio/alice/1714557600000-evil.mp3", res.FilePath)
	})

	t.Run("requires an owner", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.ingestor.Upload(ctx, upload("", "a.mp3", "abc"))
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("pipeline failure still returns the recording", func(t *testing.T) {
		f := newFixture(t)
		f.summarizer.err = errModelDown

		res, err := f.ingestor.Upload(ctx, upload("alice", "a.mp3", "abc"))
		require.NoError(t, err)
		assert.ErrorIs(t, res.ProcessingErr, service.ErrUpstreamFailure)

		recording, err := f.repo.FindRecordingById(ctx, res.RecordingID)
		require.NoError(t, err)
		assert.Equal(t, constant.RecordingStatusFailed, recording.Status)
	})
}
