package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"audionote-backend/config"
	"audionote-backend/constant"
	"audionote-backend/handler"
	"audionote-backend/pkg/ai"
	"audionote-backend/pkg/rabbitmq"
	"audionote-backend/pkg/storage"
	"audionote-backend/repository"
	"audionote-backend/repository/memory"
	redisrepo "audionote-backend/repository/redis"
	"audionote-backend/service"
)

type backends struct {
	repo   repository.Repository
	ledger *service.DedupLedger
	store  storage.ObjectStore
}

func newBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	switch cfg.Store.Backend {
	case constant.StoreBackendMemory:
		zerolog.Ctx(ctx).Warn().Msg("using in-memory store, data is lost on exit")
		b.repo = memory.NewRepo()
		b.store = storage.NewMemoryStore()
	default:
		db, err := config.NewDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		repo, err := repository.NewRepo(db, cfg.App.Environment == constant.EnvironmentDevelop.String())
		if err != nil {
			return nil, fmt.Errorf("open gorm: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		b.repo = repo

		client, err := config.NewMinIOClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		if err := storage.EnsureBucket(ctx, client, cfg.MinIO.Bucket); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.MinIO.Bucket, err)
		}
		b.store = storage.NewMinioStore(client, cfg.MinIO.Bucket)
	}

	var dedupRepo repository.DeduplicationRepository = b.repo
	if cfg.Dedup.Backend == constant.StoreBackendRedis {
		client, err := config.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		go func() {
			<-ctx.Done()
			client.Close()
		}()
		dedupRepo = redisrepo.NewLedger(client, cfg.Dedup.TTL)
	}
	b.ledger = service.NewDedupLedger(dedupRepo, cfg.Dedup.TTL, nil)

	return b, nil
}

func newCapabilities(cfg *config.Config) (ai.Transcriber, ai.Summarizer, error) {
	if cfg.AI.Backend == constant.AIBackendMock {
		return ai.NewMockTranscriber(), ai.NewMockSummarizer(), nil
	}

	transcriber := ai.NewWhisperTranscriber(http.DefaultClient, cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIAPIKey, cfg.AI.TranscriptionModel, cfg.AI.TranscriptionLanguage)
	summarizer, err := ai.NewOpenAISummarizer(cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIAPIKey, cfg.AI.SummaryModel)
	if err != nil {
		return nil, nil, fmt.Errorf("summarizer: %w", err)
	}
	return transcriber, summarizer, nil
}

func newPipeline(cfg *config.Config, b *backends) (service.Pipeline, error) {
	transcriber, summarizer, err := newCapabilities(cfg)
	if err != nil {
		return nil, err
	}
	return service.NewPipeline(service.PipelineOptions{
		Repo:              b.repo,
		Store:             b.store,
		Transcriber:       transcriber,
		Summarizer:        summarizer,
		CapabilityTimeout: cfg.Processing.CapabilityTimeout,
		Timeout:           cfg.Server.RequestTimeout,
	}), nil
}

// newDispatcher picks inline or queued processing once at startup.
func newDispatcher(ctx context.Context, cfg *config.Config, pipeline service.Pipeline) (service.Dispatcher, error) {
	if cfg.Processing.Mode == constant.ProcessingModeInline {
		return service.NewInlineDispatcher(pipeline), nil
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		return nil, err
	}
	return rabbitmq.NewPublisher(ctx, conn, cfg.Queue, rabbitmq.ProcessTopology())
}

func newServiceDependencies(cfg *config.Config, b *backends, pipeline service.Pipeline, dispatcher service.Dispatcher) handler.ServiceDependencies {
	opts := service.IngestOptions{
		Repo:          b.repo,
		Ledger:        b.ledger,
		Store:         b.store,
		Dispatcher:    dispatcher,
		MaxFileBytes:  cfg.Upload.MaxFileBytes,
		MaxChunkBytes: cfg.Upload.MaxChunkBytes,
		Timeout:       cfg.Server.RequestTimeout,
	}
	return handler.ServiceDependencies{
		Ingestor:       service.NewIngestor(opts),
		ChunkAssembler: service.NewChunkAssembler(opts),
		Directory:      service.NewDirectory(b.repo, b.ledger, b.store),
		Pipeline:       pipeline,
		MaxFileBytes:   cfg.Upload.MaxFileBytes,
		MaxChunkBytes:  cfg.Upload.MaxChunkBytes,
	}
}
