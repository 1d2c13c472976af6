package constant

import "time"

type RecordingStatus string

const (
	RecordingStatusUploaded   RecordingStatus = "uploaded"
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusProcessed  RecordingStatus = "processed"
	RecordingStatusFailed     RecordingStatus = "failed"
)

// IsTerminal reports whether no further transitions are permitted.
func (s RecordingStatus) IsTerminal() bool {
	return s == RecordingStatusProcessed || s == RecordingStatusFailed
}

type ProcessingMode string

const (
	ProcessingModeInline ProcessingMode = "inline"
	ProcessingModeQueued ProcessingMode = "queued"
)

type AIBackend string

const (
	AIBackendMock   AIBackend = "mock"
	AIBackendOpenAI AIBackend = "openai"
)

type StoreBackend string

const (
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendRedis    StoreBackend = "redis"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

const (
	AudioFieldName = "audio"

	MaxFileBytes  int64 = 100 * 1024 * 1024
	MaxChunkBytes int64 = 25 * 1024 * 1024

	DedupTTL           = 30 * time.Second
	SweepInterval      = 5 * time.Minute
	RequestTimeout     = 5 * time.Minute
	CapabilityTimeout  = 2 * time.Minute
	StuckProcessingAge = 15 * time.Minute

	RecordingsListLimit = 100

	AudioPrefix = "audio"
	ChunkPrefix = "chunks"
)

var allowedMimeTypes = map[string]struct{}{
	"audio/mpeg": {},
	"audio/wav":  {},
	"audio/mp3":  {},
}

func IsAllowedMimeType(mimeType string) bool {
	_, ok := allowedMimeTypes[mimeType]
	return ok
}
