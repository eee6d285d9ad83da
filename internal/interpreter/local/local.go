// Package local implements the Interpreter interface using self-hosted models.
//
// It supports any Whisper-compatible transcription endpoint (whisper.cpp
// server, faster-whisper, whisper-asr-webservice) and either Ollama's native
// /api/generate or an OpenAI-compatible /v1/completions endpoint for text
// generation (vLLM, llama.cpp server, LocalAI).
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/confidant/internal/config"
	"github.com/nadzzz/confidant/internal/interpreter"
)

// Interpreter uses self-hosted models for transcription and completion.
type Interpreter struct {
	whisperEndpoint string
	whisperType     string // "openai" or "asr"
	llmEndpoint     string
	llmModel        string
	vadFilter       bool
	defaultLanguage string
	client          *http.Client
}

// New creates a new local interpreter from config.
func New(cfg config.LocalConfig) *Interpreter {
	wt := cfg.WhisperType
	if wt == "" {
		wt = "openai"
	}
	model := cfg.LLMModel
	if model == "" {
		model = "llama3"
	}
	return &Interpreter{
		whisperEndpoint: cfg.WhisperEndpoint,
		whisperType:     wt,
		llmEndpoint:     cfg.LLMEndpoint,
		llmModel:        model,
		vadFilter:       cfg.VADFilter,
		defaultLanguage: cfg.Language,
		client:          &http.Client{},
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "local" }

// Transcribe sends audio to the local Whisper-compatible endpoint.
// Supports two flavors:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	lang := opts.Language
	if lang == "" {
		lang = i.defaultLanguage
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	field := "file"
	if i.whisperType == "asr" {
		field = "audio_file"
	}
	part, err := writer.CreateFormFile(field, "audio"+interpreter.ExtFromContentType(contentType))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}

	reqURL := i.whisperEndpoint
	if i.whisperType == "asr" {
		// API: POST /asr?task=transcribe&language=en&output=json&vad_filter=true
		q := make(url.Values)
		q.Set("task", "transcribe")
		q.Set("output", "json")
		q.Set("encode", "true")
		if lang != "" {
			q.Set("language", lang)
		}
		if opts.Prompt != "" {
			q.Set("initial_prompt", opts.Prompt)
		}
		if i.vadFilter {
			q.Set("vad_filter", "true")
		}
		reqURL += "?" + q.Encode()
	} else {
		if opts.Model != "" {
			_ = writer.WriteField("model", opts.Model)
		}
		if lang != "" {
			_ = writer.WriteField("language", lang)
		}
		if opts.Prompt != "" {
			_ = writer.WriteField("prompt", opts.Prompt)
		}
		_ = writer.WriteField("response_format", "verbose_json")
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := i.do(req, &result); err != nil {
		return nil, fmt.Errorf("%s transcription: %w", i.whisperType, err)
	}

	lang = interpreter.NormalizeLanguage(result.Language)
	slog.Debug("local transcription complete", "text_length", len(result.Text), "language", lang)
	return &interpreter.TranscribeResult{
		Text:     strings.TrimSpace(result.Text),
		Language: lang,
	}, nil
}

// Complete sends the prompt to the local LLM endpoint. An endpoint ending in
// /api/generate is spoken to in Ollama's format; anything else is treated as
// an OpenAI-compatible completions endpoint.
func (i *Interpreter) Complete(ctx context.Context, creq interpreter.CompletionRequest) (string, error) {
	var reqBody map[string]any
	if strings.HasSuffix(i.llmEndpoint, "/api/generate") {
		options := map[string]any{"temperature": creq.Temperature}
		if creq.MaxTokens > 0 {
			options["num_predict"] = creq.MaxTokens
		}
		if len(creq.Stop) > 0 {
			options["stop"] = creq.Stop
		}
		reqBody = map[string]any{
			"model":   i.llmModel,
			"prompt":  creq.Prompt,
			"raw":     true,
			"stream":  false,
			"options": options,
		}
	} else {
		reqBody = map[string]any{
			"model":       i.llmModel,
			"prompt":      creq.Prompt,
			"temperature": creq.Temperature,
			"stream":      false,
		}
		if creq.MaxTokens > 0 {
			reqBody["max_tokens"] = creq.MaxTokens
		}
		if len(creq.Stop) > 0 {
			reqBody["stop"] = creq.Stop
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.llmEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var raw json.RawMessage
	if err := i.do(req, &raw); err != nil {
		return "", fmt.Errorf("local LLM: %w", err)
	}

	content, ok := extractContent(raw)
	if !ok {
		return "", fmt.Errorf("unrecognized local LLM response: %.200s", raw)
	}

	slog.Debug("local completion finished", "model", i.llmModel, "chars", len(content))
	return interpreter.TruncateAtStop(content, creq.Stop), nil
}

// Close is a no-op for the local interpreter.
func (i *Interpreter) Close() error { return nil }

func (i *Interpreter) do(req *http.Request, out any) error {
	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("failed (status %d): %s", resp.StatusCode, respBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// extractContent reads the generated text from an Ollama
// ({"response": "..."}), completions ({"choices": [{"text": "..."}]}) or chat
// ({"choices": [{"message": {"content": "..."}}]}) response.
func extractContent(data []byte) (string, bool) {
	var resp struct {
		Response *string `json:"response"`
		Choices  []struct {
			Text    *string `json:"text"`
			Message *struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", false
	}
	if resp.Response != nil {
		return *resp.Response, true
	}
	if len(resp.Choices) > 0 {
		c := resp.Choices[0]
		if c.Text != nil {
			return *c.Text, true
		}
		if c.Message != nil {
			return c.Message.Content, true
		}
	}
	return "", false
}
