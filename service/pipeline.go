package service

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/rs/zerolog"

	"audionote-backend/constant"
	"audionote-backend/dto"
	"audionote-backend/entities"
	"audionote-backend/pkg/ai"
	"audionote-backend/pkg/storage"
	"audionote-backend/repository"
)

// statusWriteTimeout bounds the final status update, which still runs when
// the processing deadline has already passed.
const statusWriteTimeout = 10 * time.Second

type Pipeline interface {
	Process(ctx context.Context, message dto.ProcessMessage) (*dto.ProcessResult, error)
}

type pipeline struct {
	repo        repository.Repository
	store       storage.ObjectStore
	transcriber ai.Transcriber
	summarizer  ai.Summarizer
	timeout     time.Duration
	deadline    time.Duration
	now         func() time.Time
}

type PipelineOptions struct {
	Repo              repository.Repository
	Store             storage.ObjectStore
	Transcriber       ai.Transcriber
	Summarizer        ai.Summarizer
	CapabilityTimeout time.Duration
	// Timeout bounds a whole Process call, which ignores the caller's
	// cancellation once it starts.
	Timeout time.Duration
	Now     func() time.Time
}

func NewPipeline(opts PipelineOptions) Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constant.RequestTimeout
	}
	return &pipeline{
		repo:        opts.Repo,
		store:       opts.Store,
		transcriber: opts.Transcriber,
		summarizer:  opts.Summarizer,
		timeout:     opts.CapabilityTimeout,
		deadline:    opts.Timeout,
		now:         opts.Now,
	}
}

func validateMessage(message dto.ProcessMessage) error {
	switch {
	case message.FilePath == "":
		return missingField("filePath")
	case message.RecordingID == "":
		return missingField("recordingId")
	case message.UserID == "":
		return missingField("userId")
	case message.FileHash == "":
		return missingField("fileHash")
	}
	return nil
}

// Process runs one recording from uploaded to processed or failed. Only the
// first invocation for a recording gets past the status guard; every later
// one returns ErrInvalidOrAlreadyProcessed.
func (p *pipeline) Process(ctx context.Context, message dto.ProcessMessage) (result *dto.ProcessResult, err error) {
	if err := validateMessage(message); err != nil {
		return nil, err
	}

	ctx, cancel := detach(ctx, p.deadline)
	defer cancel()
	logger := zerolog.Ctx(ctx).With().Str("recording_id", message.RecordingID).Str("file_path", message.FilePath).Logger()
	ctx = logger.WithContext(ctx)

	err = p.repo.MarkProcessing(ctx, message.RecordingID, message.FilePath, message.UserID, p.now())
	if errors.Is(err, repository.ErrStatusGuard) {
		logger.Info().Msg("recording is not awaiting processing")
		return nil, ErrInvalidOrAlreadyProcessed
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to mark recording as processing")
		return nil, upstream(err)
	}

	defer func() {
		if err == nil {
			return
		}
		logger.Error().Err(err).Msg("processing failed")
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
		defer cancel()
		if markErr := p.repo.MarkFailed(writeCtx, message.RecordingID, err.Error(), p.now()); markErr != nil {
			logger.Error().Err(markErr).Msg("failed to mark recording as failed")
		}
		err = errors.Join(ErrProcessingFailed, err)
	}()

	recording, err := p.repo.FindRecordingById(ctx, message.RecordingID)
	if err != nil {
		return nil, err
	}
	if recording.FileHash != message.FileHash {
		logger.Warn().Str("file_hash", message.FileHash).Str("stored_hash", recording.FileHash).Msg("ignoring mismatched file hash")
	}

	transcript, err := p.transcript(ctx, recording)
	if err != nil {
		return nil, err
	}

	summaryCtx, cancel := p.capabilityContext(ctx)
	defer cancel()
	recommendations, err := p.summarizer.Summarize(summaryCtx, transcript)
	if err != nil {
		return nil, err
	}

	if err = p.repo.MarkProcessed(ctx, recording.ID, transcript, recommendations, p.now()); err != nil {
		return nil, err
	}

	logger.Info().Msg("recording processed")
	return &dto.ProcessResult{
		Transcript:      transcript,
		Recommendations: recommendations,
	}, nil
}

// transcript serves from the hash-keyed cache and transcribes only on a miss.
func (p *pipeline) transcript(ctx context.Context, recording *entities.Recording) (string, error) {
	cached, err := p.repo.FindTranscription(ctx, recording.FileHash)
	if err == nil {
		zerolog.Ctx(ctx).Debug().Str("file_hash", recording.FileHash).Msg("transcription cache hit")
		return cached.Transcript, nil
	}
	if !errors.Is(err, repository.ErrRecordNotFound) {
		return "", err
	}

	audio, err := p.store.Get(ctx, recording.FilePath)
	if err != nil {
		return "", err
	}
	defer audio.Close()

	transcribeCtx, cancel := p.capabilityContext(ctx)
	defer cancel()
	transcript, err := p.transcriber.Transcribe(transcribeCtx, path.Base(recording.FilePath), audio)
	if err != nil {
		return "", err
	}

	err = p.repo.SaveTranscription(ctx, &entities.Transcription{
		FileHash:   recording.FileHash,
		Transcript: transcript,
		CreatedAt:  p.now(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file_hash", recording.FileHash).Msg("failed to cache transcription")
	}
	return transcript, nil
}

func (p *pipeline) capabilityContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
