package ai

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type llmSummarizer struct {
	llm llms.Model
}

func NewOpenAISummarizer(baseURL, apiKey, model string) (Summarizer, error) {
	if model == "" {
		model = "gpt-4"
	}
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewLLMSummarizer(llm), nil
}

func NewLLMSummarizer(llm llms.Model) Summarizer {
	return &llmSummarizer{llm: llm}
}

func (s *llmSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := s.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SummaryPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, transcript),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summarizer returned no choices")
	}
	return resp.Choices[0].Content, nil
}
