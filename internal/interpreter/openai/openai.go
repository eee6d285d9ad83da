// Package openai implements the Interpreter interface using OpenAI's APIs.
//
// It uses the Audio Transcription API (Whisper / gpt-4o-transcribe) for
// speech-to-text, and the Completions API to continue the conversation
// prompt. Chat-only models are driven through Chat Completions with the
// rendered prompt as a single user message.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/confidant/internal/config"
	"github.com/nadzzz/confidant/internal/interpreter"
)

// Interpreter uses OpenAI APIs for transcription and completion.
type Interpreter struct {
	client             *goopenai.Client
	transcriptionModel string
	completionModel    string
}

// New creates a new OpenAI interpreter from config.
func New(cfg config.OpenAIConfig) *Interpreter {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Interpreter{
		client:             goopenai.NewClientWithConfig(clientCfg),
		transcriptionModel: cfg.TranscriptionModel,
		completionModel:    cfg.CompletionModel,
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "openai" }

// Transcribe sends audio to the OpenAI Transcription API.
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	model := i.transcriptionModel
	if opts.Model != "" {
		model = opts.Model
	}

	resp, err := i.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    model,
		FilePath: "audio" + interpreter.ExtFromContentType(contentType),
		Reader:   bytes.NewReader(audio),
		Prompt:   opts.Prompt,
		Language: opts.Language,
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}

	// OpenAI returns full language names ("english"); normalise to ISO-639-1.
	lang := interpreter.NormalizeLanguage(resp.Language)

	slog.Debug("transcription complete", "text_length", len(resp.Text), "language", lang)
	return &interpreter.TranscribeResult{
		Text:     resp.Text,
		Language: lang,
	}, nil
}

// Complete continues the prompt with the configured completion model.
func (i *Interpreter) Complete(ctx context.Context, req interpreter.CompletionRequest) (string, error) {
	resp, err := i.client.CreateCompletion(ctx, goopenai.CompletionRequest{
		Model:       i.completionModel,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	})
	if errors.Is(err, goopenai.ErrCompletionUnsupportedModel) {
		return i.completeChat(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from completions API")
	}

	text := interpreter.TruncateAtStop(resp.Choices[0].Text, req.Stop)
	slog.Debug("completion finished", "model", i.completionModel, "chars", len(text), "finish_reason", resp.Choices[0].FinishReason)
	return text, nil
}

func (i *Interpreter) completeChat(ctx context.Context, req interpreter.CompletionRequest) (string, error) {
	resp, err := i.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: i.completionModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from chat API")
	}
	return interpreter.TruncateAtStop(resp.Choices[0].Message.Content, req.Stop), nil
}

// Close is a no-op for the OpenAI interpreter.
func (i *Interpreter) Close() error { return nil }
