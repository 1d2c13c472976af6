package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"audionote-backend/constant"
	"audionote-backend/dto"
	"audionote-backend/entities"
	"audionote-backend/pkg/storage"
	"audionote-backend/repository"
)

// AudioUpload is one single-shot audio payload. Body is read at most once.
type AudioUpload struct {
	OwnerID  string
	Filename string
	MimeType string
	Body     io.Reader
}

type UploadResult struct {
	RecordingID string
	FilePath    string
	IsDuplicate bool
	// Processed is set when the dispatcher ran the pipeline inline.
	Processed *dto.ProcessResult
	// ProcessingErr is the dispatch failure. The upload itself succeeded.
	ProcessingErr error
}

type Ingestor interface {
	Upload(ctx context.Context, upload AudioUpload) (*UploadResult, error)
}

type IngestOptions struct {
	Repo          repository.Repository
	Ledger        *DedupLedger
	Store         storage.ObjectStore
	Dispatcher    Dispatcher
	MaxFileBytes  int64
	MaxChunkBytes int64
	// Timeout bounds the work that runs after the client's bytes are stored.
	Timeout time.Duration
	Now     func() time.Time
}

type ingestor struct {
	repo          repository.Repository
	ledger        *DedupLedger
	store         storage.ObjectStore
	dispatcher    Dispatcher
	maxFileBytes  int64
	maxChunkBytes int64
	timeout       time.Duration
	now           func() time.Time
}

func newIngestor(opts IngestOptions) *ingestor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = constant.MaxFileBytes
	}
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = constant.MaxChunkBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constant.RequestTimeout
	}
	return &ingestor{
		repo:          opts.Repo,
		ledger:        opts.Ledger,
		store:         opts.Store,
		dispatcher:    opts.Dispatcher,
		maxFileBytes:  opts.MaxFileBytes,
		maxChunkBytes: opts.MaxChunkBytes,
		timeout:       opts.Timeout,
		now:           opts.Now,
	}
}

func NewIngestor(opts IngestOptions) Ingestor {
	return newIngestor(opts)
}

func validateAudio(filename, mimeType string) error {
	if filename == "" {
		return missingField("filename")
	}
	if !constant.IsAllowedMimeType(mimeType) {
		return ErrUnsupportedMediaType
	}
	return nil
}

// cleanFilename keeps only the last path element so a client-supplied name
// cannot escape the owner's namespace.
func cleanFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func (i *ingestor) audioKey(ownerID, filename string) string {
	return fmt.Sprintf("%s/%s/%d-%s", constant.AudioPrefix, ownerID, i.now().UnixMilli(), filename)
}

func (i *ingestor) Upload(ctx context.Context, upload AudioUpload) (*UploadResult, error) {
	if upload.OwnerID == "" {
		return nil, ErrUnauthorized
	}
	filename := cleanFilename(upload.Filename)
	if err := validateAudio(filename, upload.MimeType); err != nil {
		return nil, err
	}

	key := i.audioKey(upload.OwnerID, filename)
	if err := putCapped(ctx, i.store, key, upload.Body, i.maxFileBytes, upload.MimeType); err != nil {
		return nil, err
	}

	ctx, cancel := detach(ctx, i.timeout)
	defer cancel()
	return i.register(ctx, upload.OwnerID, key, filename, upload.MimeType)
}

// detach keeps the values of ctx, such as its logger, but not its
// cancellation. Once ingestion has stored the client's bytes the remaining
// steps finish even if the client goes away, bounded by timeout.
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// register turns a persisted object into a recording: measure and hash the
// stored copy, consult the dedup ledger, create the recording and dispatch
// it. Single-shot and chunked uploads both end here, on a detached context.
func (i *ingestor) register(ctx context.Context, ownerID, key, filename, mimeType string) (*UploadResult, error) {
	logger := zerolog.Ctx(ctx).With().Str("user_id", ownerID).Str("file_path", key).Logger()

	size, hash, err := HashObject(ctx, i.store, key)
	if err != nil {
		logger.Error().Err(err).Msg("failed to hash stored object")
		deleteObjects(ctx, i.store, key)
		return nil, err
	}

	recordingID := entities.RecordingID(key)
	dedup, err := i.ledger.CheckAndRegister(ctx, ownerID, size, recordingID)
	if err != nil {
		logger.Error().Err(err).Msg("dedup check failed")
		deleteObjects(ctx, i.store, key)
		return nil, err
	}
	if dedup.IsDuplicate {
		logger.Info().Str("recording_id", dedup.RecordingID).Msg("duplicate upload")
		if dedup.RecordingID != recordingID {
			deleteObjects(ctx, i.store, key)
		}
		result := &UploadResult{RecordingID: dedup.RecordingID, IsDuplicate: true}
		if existing, err := i.repo.FindRecordingById(ctx, dedup.RecordingID); err == nil {
			result.FilePath = existing.FilePath
		}
		return result, nil
	}

	recording := &entities.Recording{
		ID:        recordingID,
		FilePath:  key,
		Filename:  filename,
		MimeType:  mimeType,
		Size:      size,
		FileHash:  hash,
		UserID:    ownerID,
		Status:    constant.RecordingStatusUploaded,
		CreatedAt: i.now(),
	}
	if err := i.repo.CreateRecording(ctx, recording); err != nil {
		logger.Error().Err(err).Msg("failed to create recording")
		i.ledger.Release(ctx, dedup.Signature)
		deleteObjects(ctx, i.store, key)
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: recording %s already exists", ErrInternal, recordingID)
		}
		return nil, upstream(err)
	}
	logger.Info().Str("recording_id", recordingID).Int64("size", size).Msg("recording created")

	result := &UploadResult{RecordingID: recordingID, FilePath: key}
	result.Processed, result.ProcessingErr = i.dispatcher.Dispatch(ctx, dto.ProcessMessage{
		FilePath:    key,
		RecordingID: recordingID,
		UserID:      ownerID,
		FileHash:    hash,
	})
	if result.ProcessingErr != nil {
		logger.Error().Err(result.ProcessingErr).Str("recording_id", recordingID).Msg("dispatch failed")
	}
	return result, nil
}

// putCapped streams body into the store and fails with ErrPayloadTooLarge as
// soon as more than max bytes have been read.
func putCapped(ctx context.Context, store storage.ObjectStore, key string, body io.Reader, max int64, contentType string) error {
	if body == nil {
		return missingField(constant.AudioFieldName)
	}
	capped := &capReader{r: body, remaining: max}
	err := store.Put(ctx, key, capped, -1, contentType)
	if capped.exceeded {
		deleteObjects(ctx, store, key)
		return ErrPayloadTooLarge
	}
	if err != nil {
		return upstream(err)
	}
	return nil
}

type capReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.exceeded {
		return 0, ErrPayloadTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	if int64(n) > c.remaining {
		c.exceeded = true
		return int(c.remaining), ErrPayloadTooLarge
	}
	c.remaining -= int64(n)
	return n, err
}
