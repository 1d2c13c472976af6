// Package ai holds the transcription and summarization capabilities used by
// the processing pipeline. Each has a mock variant for local runs and an
// OpenAI-backed variant.
package ai

import (
	"context"
	"io"
)

const (
	MockTranscript      = "Mocked transcription text"
	MockRecommendations = "Mocked medical recommendations"

	SummaryPrompt = "You are a medical assistant. Provide a concise report with symptoms, diagnosis, tests, treatment, and follow-up."
)

type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type mockTranscriber struct{}

func NewMockTranscriber() Transcriber {
	return mockTranscriber{}
}

func (mockTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, audio); err != nil {
		return "", err
	}
	return MockTranscript, ctx.Err()
}

type mockSummarizer struct{}

func NewMockSummarizer() Summarizer {
	return mockSummarizer{}
}

func (mockSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	return MockRecommendations, ctx.Err()
}
