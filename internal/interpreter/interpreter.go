// Package interpreter defines the interface to the speech and language
// models confidant talks to.
//
// An interpreter transcribes audio into text and completes a rendered
// conversation prompt into the assistant's reply. Confidant ships with two
// backends: OpenAI (any OpenAI-compatible API) and Local (self-hosted
// whisper + Ollama).
package interpreter

import (
	"context"
	"strings"
)

// TranscribeOpts controls transcription behavior.
type TranscribeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr") to guide transcription.
	Language string

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string

	// Model overrides the default transcription model.
	Model string
}

// TranscribeResult is the recognized text and the language it was spoken in.
type TranscribeResult struct {
	Text string

	// Language is the ISO-639-1 code reported by the engine, if any.
	Language string
}

// CompletionRequest is a single text completion call.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Stop        []string
	Temperature float32
}

// Interpreter is the interface for audio transcription and reply generation.
type Interpreter interface {
	// Name returns the backend identifier (e.g., "openai", "local").
	Name() string

	// Transcribe converts audio bytes to text.
	Transcribe(ctx context.Context, audio []byte, contentType string, opts TranscribeOpts) (*TranscribeResult, error)

	// Complete continues the prompt. The returned text never contains any of
	// the request's stop sequences.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Close releases any resources held by the interpreter.
	Close() error
}

// TruncateAtStop cuts text at the earliest occurrence of any stop sequence.
func TruncateAtStop(text string, stop []string) string {
	cut := len(text)
	for _, s := range stop {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && i < cut {
			cut = i
		}
	}
	return text[:cut]
}

// ExtFromContentType maps an audio MIME type to a file extension.
func ExtFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"):
		return ".m4a"
	default:
		return ".wav"
	}
}

var languageCodes = map[string]string{
	"english":    "en",
	"french":     "fr",
	"spanish":    "es",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"polish":     "pl",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"arabic":     "ar",
	"hindi":      "hi",
	"turkish":    "tr",
	"urdu":       "ur",
	"bengali":    "bn",
}

// NormalizeLanguage converts full language names (as returned by Whisper) to
// ISO-639-1 codes.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if len(lang) == 2 {
		return lang
	}
	if code, ok := languageCodes[lang]; ok {
		return code
	}
	return lang
}
