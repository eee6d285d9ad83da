// Package openai implements the TTS Synthesizer with OpenAI's speech API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/confidant/internal/config"
	"github.com/nadzzz/confidant/internal/tts"
)

// Synthesizer calls /v1/audio/speech. OpenAI voices are multilingual, so it
// does not implement tts.LanguageChecker.
type Synthesizer struct {
	client *goopenai.Client
	model  string
	voice  string
}

// New creates an OpenAI synthesizer. Credentials come from the interpreter's
// OpenAI settings.
func New(creds config.OpenAIConfig, cfg config.OpenAITTS) *Synthesizer {
	clientCfg := goopenai.DefaultConfig(creds.APIKey)
	if creds.BaseURL != "" {
		clientCfg.BaseURL = creds.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = string(goopenai.TTSModel1)
	}
	voice := cfg.Voice
	if voice == "" {
		voice = string(goopenai.VoiceAlloy)
	}
	return &Synthesizer{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  model,
		voice:  voice,
	}
}

// Synthesize returns the spoken text as MP3.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, errors.New("empty text for synthesis")
	}
	voice := s.voice
	if opts.Voice != "" {
		voice = opts.Voice
	}

	resp, err := s.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(s.model),
		Input:          text,
		Voice:          goopenai.SpeechVoice(voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading speech: %w", err)
	}

	slog.Debug("openai speech complete", "bytes", len(audio), "voice", voice, "language", opts.Language)
	return &tts.SynthesizeResult{
		Audio:       audio,
		ContentType: "audio/mpeg",
	}, nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }
