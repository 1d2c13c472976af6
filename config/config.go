package config

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"audionote-backend/constant"
)

type Config struct {
	App         App
	Server      Server
	PostgresDSN string
	MinIO       MinIO
	Queue       *RabbitMQ
	Auth        Auth
	Processing  Processing
	AI          AI
	Dedup       Dedup
	Redis       Redis
	Upload      Upload
	Store       Store
}

type App struct {
	Environment string
}

func (a App) IsProduction() bool {
	return a.Environment == constant.EnvironmentProduction.String()
}

type Server struct {
	HttpPort       string
	Workers        int
	RequestTimeout time.Duration
}

type MinIO struct {
	URL             string
	AccessID        string
	SecretAccessKey string
	Bucket          string
	Secure          bool
}

type RabbitMQ struct {
	Host string
	Port int
	User string
	Pass string
	Kind string
}

func (r RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Pass, r.Host, r.Port)
}

type Auth struct {
	JWTSecret string
	Issuer    string
}

type Processing struct {
	Mode              constant.ProcessingMode
	CapabilityTimeout time.Duration
	StuckAfter        time.Duration
}

// AI selects the capability backend. TranscriptionLanguage is an ISO-639-1
// hint; empty lets the API detect the language.
type AI struct {
	Backend               constant.AIBackend
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	TranscriptionModel    string
	TranscriptionLanguage string
	SummaryModel          string
}

type Dedup struct {
	Backend       constant.StoreBackend
	TTL           time.Duration
	SweepInterval time.Duration
}

type Redis struct {
	URL string
}

type Upload struct {
	MaxFileBytes  int64
	MaxChunkBytes int64
}

type Store struct {
	Backend constant.StoreBackend
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 4)
	v.SetDefault("server.request_timeout", constant.RequestTimeout)
	v.SetDefault("rabbitmq_kind", "direct")
	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("auth.issuer", "audionote")
	v.SetDefault("processing.mode", string(constant.ProcessingModeInline))
	v.SetDefault("processing.capability_timeout", constant.CapabilityTimeout)
	v.SetDefault("processing.stuck_after", constant.StuckProcessingAge)
	v.SetDefault("ai.backend", string(constant.AIBackendMock))
	v.SetDefault("ai.transcription_model", "whisper-1")
	v.SetDefault("ai.transcription_language", "en")
	v.SetDefault("ai.summary_model", "gpt-4")
	v.SetDefault("dedup.backend", string(constant.StoreBackendPostgres))
	v.SetDefault("dedup.ttl", constant.DedupTTL)
	v.SetDefault("dedup.sweep_interval", constant.SweepInterval)
	v.SetDefault("upload.max_file_bytes", constant.MaxFileBytes)
	v.SetDefault("upload.max_chunk_bytes", constant.MaxChunkBytes)
	v.SetDefault("store.backend", string(constant.StoreBackendPostgres))
}

// Load reads config.yaml from path. Every key can be overridden with an
// AUDIONOTE_ environment variable, dots replaced by underscores.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AUDIONOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{
		App: App{
			Environment: v.GetString("app.environment"),
		},
		Server: Server{
			HttpPort:       v.GetString("server.port"),
			Workers:        v.GetInt("server.workers"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		PostgresDSN: v.GetString("postgresql_host"),
		MinIO: MinIO{
			URL:             v.GetString("minio.url"),
			AccessID:        v.GetString("minio.access_id"),
			SecretAccessKey: v.GetString("minio.secret_access_key"),
			Bucket:          v.GetString("minio.bucket"),
			Secure:          v.GetBool("minio.secure"),
		},
		Queue: &RabbitMQ{
			Host: v.GetString("rabbitmq_host"),
			Port: v.GetInt("rabbitmq_port"),
			User: v.GetString("rabbitmq_user"),
			Pass: v.GetString("rabbitmq_pass"),
			Kind: v.GetString("rabbitmq_kind"),
		},
		Auth: Auth{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Processing: Processing{
			Mode:              constant.ProcessingMode(v.GetString("processing.mode")),
			CapabilityTimeout: v.GetDuration("processing.capability_timeout"),
			StuckAfter:        v.GetDuration("processing.stuck_after"),
		},
		AI: AI{
			Backend:               constant.AIBackend(v.GetString("ai.backend")),
			OpenAIAPIKey:          v.GetString("ai.openai_api_key"),
			OpenAIBaseURL:         v.GetString("ai.openai_base_url"),
			TranscriptionModel:    v.GetString("ai.transcription_model"),
			TranscriptionLanguage: v.GetString("ai.transcription_language"),
			SummaryModel:          v.GetString("ai.summary_model"),
		},
		Dedup: Dedup{
			Backend:       constant.StoreBackend(v.GetString("dedup.backend")),
			TTL:           v.GetDuration("dedup.ttl"),
			SweepInterval: v.GetDuration("dedup.sweep_interval"),
		},
		Redis: Redis{
			URL: v.GetString("redis.url"),
		},
		Upload: Upload{
			MaxFileBytes:  v.GetInt64("upload.max_file_bytes"),
			MaxChunkBytes: v.GetInt64("upload.max_chunk_bytes"),
		},
		Store: Store{
			Backend: constant.StoreBackend(v.GetString("store.backend")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Processing.Mode {
	case constant.ProcessingModeInline, constant.ProcessingModeQueued:
	default:
		return fmt.Errorf("unknown processing.mode %q", c.Processing.Mode)
	}
	switch c.AI.Backend {
	case constant.AIBackendMock, constant.AIBackendOpenAI:
	default:
		return fmt.Errorf("unknown ai.backend %q", c.AI.Backend)
	}
	switch c.Dedup.Backend {
	case constant.StoreBackendPostgres, constant.StoreBackendRedis:
	default:
		return fmt.Errorf("unknown dedup.backend %q", c.Dedup.Backend)
	}
	switch c.Store.Backend {
	case constant.StoreBackendPostgres, constant.StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Dedup.TTL <= 0 {
		return fmt.Errorf("dedup.ttl must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}

func NewDB(cfg *Config) (*sql.DB, error) {
	return sql.Open("postgres", cfg.PostgresDSN)
}

func NewMinIOClient(cfg *Config) (*minio.Client, error) {
	return minio.New(cfg.MinIO.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.Secure,
	})
}

func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
