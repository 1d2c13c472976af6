package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type whisperTranscriber struct {
	client  *http.Client
	baseURL string
	apiKey   string
	model    string
	language string
}

// NewWhisperTranscriber builds an OpenAI-compatible transcriber. An empty
// language lets the API detect it.
func NewWhisperTranscriber(client *http.Client, baseURL, apiKey, model, language string) Transcriber {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = "whisper-1"
	}
	return &whisperTranscriber{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe streams the audio to the transcription endpoint as a multipart
// form without buffering the whole file.
func (w *whisperTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		part, err := form.CreateFormFile("file", filename)
		if err != nil {
			writer.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audio); err != nil {
			writer.CloseWithError(err)
			return
		}
		if err := form.WriteField("model", w.model); err != nil {
			writer.CloseWithError(err)
			return
		}
		if w.language != "" {
			if err := form.WriteField("language", w.language); err != nil {
				writer.CloseWithError(err)
				return
			}
		}
		writer.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", body)
	if err != nil {
		body.Close()
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", w.apiKey))

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription api error: %d %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return out.Text, nil
}
