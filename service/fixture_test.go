package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"audionote-backend/constant"
	"audionote-backend/pkg/ai"
	"audionote-backend/pkg/storage"
	"audionote-backend/repository/memory"
	"audionote-backend/service"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingTranscriber struct {
	calls atomic.Int32
	err   error
}

func (t *countingTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	t.calls.Add(1)
	if t.err != nil {
		return "", t.err
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	return "transcript:" + string(data), nil
}

type blockingTranscriber struct{}

func (blockingTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type countingSummarizer struct {
	calls atomic.Int32
	err   error
}

func (s *countingSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "summary:" + transcript, nil
}

var errModelDown = errors.New("model unavailable")

type fixture struct {
	clock       *clock
	repo        *memory.Repo
	store       *storage.MemoryStore
	ledger      *service.DedupLedger
	transcriber *countingTranscriber
	summarizer  *countingSummarizer
	pipeline    service.Pipeline
	ingestor    service.Ingestor
	assembler   service.ChunkAssembler
	directory   service.Directory
	sweeper     service.Sweeper
}

type fixtureOption func(*service.PipelineOptions, *service.IngestOptions)

func withTranscriber(t ai.Transcriber) fixtureOption {
	return func(p *service.PipelineOptions, _ *service.IngestOptions) {
		p.Transcriber = t
	}
}

func withCapabilityTimeout(d time.Duration) fixtureOption {
	return func(p *service.PipelineOptions, _ *service.IngestOptions) {
		p.CapabilityTimeout = d
	}
}

// withQueuedDispatch replaces inline processing with a dispatcher that does
// nothing, leaving recordings at uploaded.
func withQueuedDispatch() fixtureOption {
	return func(_ *service.PipelineOptions, i *service.IngestOptions) {
		i.Dispatcher = noopDispatcher{}
	}
}

func withLimits(file, chunk int64) fixtureOption {
	return func(_ *service.PipelineOptions, i *service.IngestOptions) {
		i.MaxFileBytes = file
		i.MaxChunkBytes = chunk
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		clock:       newClock(),
		repo:        memory.NewRepo(),
		store:       storage.NewMemoryStore(),
		transcriber: &countingTranscriber{},
		summarizer:  &countingSummarizer{},
	}
	f.ledger = service.NewDedupLedger(f.repo, constant.DedupTTL, f.clock.Now)

	pipelineOpts := service.PipelineOptions{
		Repo:              f.repo,
		Store:             f.store,
		Transcriber:       f.transcriber,
		Summarizer:        f.summarizer,
		CapabilityTimeout: time.Second,
		Now:               f.clock.Now,
	}
	ingestOpts := service.IngestOptions{
		Repo:   f.repo,
		Ledger: f.ledger,
		Store:  f.store,
		Now:    f.clock.Now,
	}
	for _, opt := range opts {
		opt(&pipelineOpts, &ingestOpts)
	}

	f.pipeline = service.NewPipeline(pipelineOpts)
	if ingestOpts.Dispatcher == nil {
		ingestOpts.Dispatcher = service.NewInlineDispatcher(f.pipeline)
	}
	f.ingestor = service.NewIngestor(ingestOpts)
	f.assembler = service.NewChunkAssembler(ingestOpts)
	f.directory = service.NewDirectory(f.repo, f.ledger, f.store)
	f.sweeper = service.NewSweeper(f.repo, f.ledger, constant.StuckProcessingAge, f.clock.Now)
	return f
}

func testContext() context.Context {
	return zerolog.Nop().WithContext(context.Background())
}
