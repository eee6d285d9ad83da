// Package roundtrip answers a user utterance through the language model in
// the pivot language, translating in and out when the user speaks another
// language. It never consults the semantic cache.
package roundtrip

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/confidant/internal/errs"
	"github.com/nadzzz/confidant/internal/interpreter"
	"github.com/nadzzz/confidant/internal/metrics"
	"github.com/nadzzz/confidant/internal/session"
	"github.com/nadzzz/confidant/internal/translate"
)

// Completer is the part of an interpreter the round-trip needs.
type Completer interface {
	Complete(ctx context.Context, req interpreter.CompletionRequest) (string, error)
}

// Config holds the generation parameters.
type Config struct {
	Pivot       string
	MaxTokens   int
	Temperature float32
	Stop        []string
	Timeout     time.Duration
}

// Reply is the answer to one utterance.
type Reply struct {
	// Text is what the user receives: in their language when translation
	// succeeded, otherwise in the pivot language.
	Text string

	// Language is the language of Text.
	Language string

	// Detected is the user's language.
	Detected string

	// Pivot is the model's answer before translation.
	Pivot string
}

// Responder runs the round-trip.
type Responder struct {
	cfg        Config
	completer  Completer
	translator translate.Translator
	metrics    *metrics.Metrics
}

// New creates a Responder.
func New(cfg Config, c Completer, t translate.Translator, m *metrics.Metrics) *Responder {
	if cfg.Pivot == "" {
		cfg.Pivot = "en"
	}
	if t == nil {
		t = translate.None{Pivot: cfg.Pivot}
	}
	return &Responder{cfg: cfg, completer: c, translator: t, metrics: m}
}

// Pivot returns the pivot language.
func (r *Responder) Pivot() string { return r.cfg.Pivot }

// Detect returns the language of text, or the pivot language when detection
// fails.
func (r *Responder) Detect(ctx context.Context, text string) string {
	lang, err := r.translator.Detect(ctx, text)
	if err != nil || lang == "" {
		slog.Warn("language detection failed, assuming pivot", "error", err, "pivot", r.cfg.Pivot)
		r.metrics.Degraded("detection")
		return r.cfg.Pivot
	}
	return lang
}

// Respond answers utterance within sess. lang is the utterance's language
// when already known (e.g. from the transcriber); empty means detect it.
//
// Translation failures degrade: an untranslated prompt goes to the model, an
// untranslated answer goes to the user. Generation failures are returned
// and leave sess unchanged.
func (r *Responder) Respond(ctx context.Context, sess *session.Session, utterance, lang string) (*Reply, error) {
	if lang == "" {
		lang = r.Detect(ctx, utterance)
	}
	foreign := !translate.SameLanguage(lang, r.cfg.Pivot)

	prompt := utterance
	if foreign {
		if out, err := r.translate(ctx, utterance, lang, r.cfg.Pivot); err != nil {
			r.degradeTranslation("in", lang, err)
		} else {
			prompt = out
		}
	}

	answer, err := sess.Converse(ctx, prompt, r.generate)
	if err != nil {
		return nil, err
	}

	reply := &Reply{Text: answer, Language: r.cfg.Pivot, Detected: lang, Pivot: answer}
	if foreign {
		out, err := r.translate(ctx, answer, r.cfg.Pivot, lang)
		if err != nil {
			r.degradeTranslation("out", lang, err)
		} else {
			reply.Text = out
			reply.Language = lang
		}
	}
	return reply, nil
}

// Translate converts text between languages, returning the input unchanged
// on failure.
func (r *Responder) Translate(ctx context.Context, text, src, dst string) (string, bool) {
	if translate.SameLanguage(src, dst) {
		return text, true
	}
	out, err := r.translate(ctx, text, src, dst)
	if err != nil {
		r.degradeTranslation("cached", dst, err)
		return text, false
	}
	return out, true
}

// translate calls the translator and rejects a blank result for non-blank input.
func (r *Responder) translate(ctx context.Context, text, src, dst string) (string, error) {
	out, err := r.translator.Translate(ctx, text, src, dst)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" && strings.TrimSpace(text) != "" {
		return "", errs.Newf(errs.TranslationFailure, "translate", "%s->%s returned empty text", src, dst)
	}
	return out, nil
}

func (r *Responder) generate(ctx context.Context, prompt string) (string, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.completer.Complete(ctx, interpreter.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   r.cfg.MaxTokens,
		Stop:        r.cfg.Stop,
		Temperature: r.cfg.Temperature,
	})
	r.metrics.ObserveGeneration(time.Since(start), err)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(err, context.DeadlineExceeded)
		}
		return "", errs.Generation("generate", err)
	}
	return out, nil
}

func (r *Responder) degradeTranslation(direction, lang string, err error) {
	slog.Warn("translation failed, continuing untranslated",
		"direction", direction, "language", lang, "error", err, "code", errs.TranslationFailure)
	r.metrics.Degraded("translation")
}
