// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. Each synthesis
// opens one connection, sends a synthesize event and collects the audio
// chunks until audio-stop.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/confidant/internal/config"
	"github.com/nadzzz/confidant/internal/tts"
)

// defaultVoices maps ISO-639-1 language codes to Piper voice model names.
var defaultVoices = map[string]string{
	"en": "en_US-lessac-medium",
	"fr": "fr_FR-siwis-medium",
	"es": "es_ES-mls_10246-low",
	"de": "de_DE-thorsten-medium",
	"it": "it_IT-riccardo-x_low",
	"pt": "pt_BR-faber-medium",
	"nl": "nl_NL-mls-medium",
	"pl": "pl_PL-darkman-medium",
	"ru": "ru_RU-ruslan-medium",
	"ja": "ja_JP-amitaro-medium",
	"ko": "ko_KR-kss-x_low",
	"zh": "zh_CN-huayan-medium",
}

const fallbackLanguage = "en"

// Synthesizer implements tts.Synthesizer over the Wyoming protocol.
type Synthesizer struct {
	endpoint  string            // default host:port
	endpoints map[string]string // language -> host:port for per-language instances
	voices    map[string]string // language -> voice name
	timeout   time.Duration
}

// New creates a new Piper synthesizer from config. timeout bounds a
// synthesis when the context carries no deadline.
func New(cfg config.PiperConfig, timeout time.Duration) *Synthesizer {
	voices := maps.Clone(defaultVoices)
	maps.Copy(voices, cfg.Voices)

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[lang] = hostPort(ep)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{
		endpoint:  hostPort(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
		timeout:   timeout,
	}
}

func hostPort(ep string) string {
	ep = strings.TrimPrefix(ep, "tcp://")
	return strings.TrimPrefix(ep, "http://")
}

// SupportsLanguage reports whether a voice is known for lang.
func (s *Synthesizer) SupportsLanguage(lang string) bool {
	_, ok := s.voices[lang]
	return ok
}

// Synthesize sends text to the Piper server and returns the speech as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text for synthesis")
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.voices[opts.Language]
	}
	if voice == "" {
		voice = s.voices[fallbackLanguage]
	}

	endpoint := s.endpoints[opts.Language]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	if endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured for language %q", opts.Language)
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "language", opts.Language, "endpoint", endpoint)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.timeout)
	}
	_ = conn.SetDeadline(deadline)

	req := event{
		Type: eventSynthesize,
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, req, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	return collect(bufio.NewReader(conn))
}

// collect reads audio-start, audio-chunk* and audio-stop into a WAV file.
func collect(r *bufio.Reader) (*tts.SynthesizeResult, error) {
	var (
		pcm        bytes.Buffer
		sampleRate = 22050
		channels   = 1
		width      = 2
	)

	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case eventAudioStart:
			sampleRate = evt.intField("rate", sampleRate)
			channels = evt.intField("channels", channels)
			width = evt.intField("width", width)

		case eventAudioChunk:
			pcm.Write(payload)

		case eventAudioStop:
			slog.Debug("piper audio complete", "pcm_bytes", pcm.Len(), "rate", sampleRate)
			return &tts.SynthesizeResult{
				Audio:       pcmToWAV(pcm.Bytes(), sampleRate, channels, width),
				ContentType: "audio/wav",
				SampleRate:  sampleRate,
				Channels:    channels,
			}, nil

		case eventError:
			msg, _ := evt.Data["text"].(string)
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("piper error: %s", msg)

		default:
			slog.Debug("piper event ignored", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }
