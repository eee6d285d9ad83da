// Package dispatch implements the orchestrator that turns one user message
// into one reply.
//
// A turn runs: transcribe (audio input only), look up the semantic cache,
// then either serve the cached answer or generate one through the language
// round-trip and record it, and finally synthesize speech when the caller
// asked for audio. The sender always receives a Result; failures are
// reported in it rather than as Go errors.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/confidant/internal/errs"
	"github.com/nadzzz/confidant/internal/interpreter"
	"github.com/nadzzz/confidant/internal/ledger"
	"github.com/nadzzz/confidant/internal/message"
	"github.com/nadzzz/confidant/internal/metrics"
	"github.com/nadzzz/confidant/internal/roundtrip"
	"github.com/nadzzz/confidant/internal/semcache"
	"github.com/nadzzz/confidant/internal/session"
	"github.com/nadzzz/confidant/internal/store"
	"github.com/nadzzz/confidant/internal/tts"
)

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error)
}

// Cache is the semantic cache as seen by the orchestrator.
type Cache interface {
	Lookup(ctx context.Context, query string) (semcache.Result, error)
	Record(ctx context.Context, query, answer, lang string) error
	Seed(ctx context.Context, query, answer, lang string) (*ledger.Record, error)
	Frequent(ctx context.Context, prefix string) ([]*ledger.Record, error)
	Indexed(query string) bool
}

// Config holds the orchestrator's timeouts and audio settings.
type Config struct {
	TranscribeTimeout time.Duration
	CacheTimeout      time.Duration
	SynthesisTimeout  time.Duration

	// AudioKeyPrefix is where synthesized replies are stored in the blob store.
	AudioKeyPrefix string

	// InlineAudio also returns the audio bytes in the Result.
	InlineAudio bool

	// RetranslateOnHit translates a cached answer recorded in another
	// language into the requester's language.
	RetranslateOnHit bool
}

// Deps are the collaborators of a Dispatcher. Synthesizer and Blob may be nil.
type Deps struct {
	Transcriber Transcriber
	Cache       Cache
	Responder   *roundtrip.Responder
	Sessions    *session.Store
	Synthesizer tts.Synthesizer
	Blob        store.Blob
	Metrics     *metrics.Metrics
}

// Dispatcher is the orchestrator.
type Dispatcher struct {
	cfg         Config
	transcriber Transcriber
	cache       Cache
	responder   *roundtrip.Responder
	sessions    *session.Store
	synthesizer tts.Synthesizer
	blob        store.Blob
	metrics     *metrics.Metrics
	now         func() time.Time
}

// New creates a Dispatcher.
func New(cfg Config, deps Deps) (*Dispatcher, error) {
	if deps.Transcriber == nil || deps.Cache == nil || deps.Responder == nil || deps.Sessions == nil {
		return nil, errors.New("dispatch: transcriber, cache, responder and sessions are required")
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = 10 * time.Second
	}
	if cfg.AudioKeyPrefix == "" {
		cfg.AudioKeyPrefix = "audioMessages/response"
	}
	cfg.AudioKeyPrefix = strings.Trim(cfg.AudioKeyPrefix, "/")
	return &Dispatcher{
		cfg:         cfg,
		transcriber: deps.Transcriber,
		cache:       deps.Cache,
		responder:   deps.Responder,
		sessions:    deps.Sessions,
		synthesizer: deps.Synthesizer,
		blob:        deps.Blob,
		metrics:     deps.Metrics,
		now:         time.Now,
	}, nil
}

// resolveResponseMode determines the effective ResponseMode for a request.
// If the caller didn't specify one, the default depends on whether TTS is available.
func (d *Dispatcher) resolveResponseMode(mode message.ResponseMode) (message.ResponseMode, error) {
	if mode == "" {
		if d.synthesizer != nil {
			return message.ResponseModeBoth, nil
		}
		return message.ResponseModeText, nil
	}
	if !mode.Valid() {
		return "", errs.Newf(errs.InvalidRequest, "dispatch", "unknown response_mode %q", mode)
	}
	return mode, nil
}

// Handle processes a single request through the full pipeline.
// This function is passed as the transport.Handler to each transport.
func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) (*message.Result, error) {
	start := d.now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = start
	}

	sess := d.sessions.Get(req.SessionID)
	result := &message.Result{RequestID: req.ID, SessionID: sess.ID()}
	logger := slog.With("request_id", req.ID, "session_id", sess.ID(), "source", req.Source)

	defer func() {
		d.metrics.Request(req.Source, result.ErrorCode)
	}()

	mode, err := d.resolveResponseMode(req.ResponseMode)
	if err != nil {
		return d.fail(logger, result, err), nil
	}
	logger.Info("turn started", "response_mode", mode, "audio", req.HasAudio())

	// Step 1: Transcribe audio (if present).
	query, lang, err := d.input(ctx, logger, req)
	if err != nil {
		return d.fail(logger, result, err), nil
	}
	result.Transcript = transcriptOf(req, query)
	result.Language = lang

	// Step 2: Consult the semantic cache.
	hit, err := d.lookup(ctx, query)
	if err != nil {
		return d.fail(logger, result, err), nil
	}

	var replyLang string
	if hit.Found {
		// Step 3a: Serve the cached answer without touching the model or the session.
		result.Cached = true
		result.ResponseText, replyLang = d.cachedReply(ctx, hit, lang)
		logger.Info("served from cache", "distance", hit.Distance, "matched", hit.Record.Key)
	} else {
		// Step 3b: Generate through the round-trip, then record the answer.
		reply, err := d.responder.Respond(ctx, sess, query, lang)
		if err != nil {
			return d.fail(logger, result, err), nil
		}
		result.ResponseText = reply.Text
		replyLang = reply.Language
		if result.Language == "" {
			result.Language = reply.Detected
		}
		d.record(ctx, logger, query, reply.Text, reply.Language)
	}
	if result.Language == "" {
		result.Language = replyLang
	}

	// Step 4: Synthesize the reply when audio was requested.
	if mode.WantsAudio() {
		d.synthesize(ctx, logger, result, replyLang)
	}

	logger.Info("turn complete", "duration", d.now().Sub(start), "cached", result.Cached)
	return result, nil
}

func (d *Dispatcher) input(ctx context.Context, logger *slog.Logger, req *message.Request) (string, string, error) {
	if req.HasAudio() {
		res, err := d.transcribe(ctx, req.Audio, req.ContentType)
		if err != nil {
			return "", "", err
		}
		logger.Info("transcription complete", "text_length", len(res.Text), "language", res.Language)
		if strings.TrimSpace(res.Text) == "" {
			return "", "", errs.Newf(errs.TranscriptionFailure, "transcribe", "no speech recognized")
		}
		return strings.TrimSpace(res.Text), res.Language, nil
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		return "", "", errs.Newf(errs.InvalidRequest, "dispatch", "request has no audio and no message")
	}
	return text, "", nil
}

func (d *Dispatcher) transcribe(ctx context.Context, audio []byte, contentType string) (*interpreter.TranscribeResult, error) {
	ctx, cancel := withTimeout(ctx, d.cfg.TranscribeTimeout)
	defer cancel()

	res, err := d.transcriber.Transcribe(ctx, audio, contentType, interpreter.TranscribeOpts{})
	if err != nil {
		return nil, errs.New(errs.TranscriptionFailure, "transcribe", err)
	}
	return res, nil
}

func (d *Dispatcher) lookup(ctx context.Context, query string) (semcache.Result, error) {
	ctx, cancel := withTimeout(ctx, d.cfg.CacheTimeout)
	defer cancel()
	return d.cache.Lookup(ctx, query)
}

// cachedReply returns the cached answer and its language, translated into
// lang when RetranslateOnHit is set and the languages differ.
func (d *Dispatcher) cachedReply(ctx context.Context, hit semcache.Result, lang string) (string, string) {
	answer := hit.Answer
	answerLang := hit.Record.Language
	if answerLang == "" {
		answerLang = d.responder.Pivot()
	}
	if !d.cfg.RetranslateOnHit {
		return answer, answerLang
	}

	if lang == "" {
		lang = d.responder.Detect(ctx, hit.Record.Raw)
	}
	if out, ok := d.responder.Translate(ctx, answer, answerLang, lang); ok {
		return out, lang
	}
	return answer, answerLang
}

// record updates the cache. The answer has already been produced, so a
// failure here is logged rather than returned. It ignores the caller's
// cancellation: a client that hangs up after generation still leaves the
// count and any promotion behind.
func (d *Dispatcher) record(ctx context.Context, logger *slog.Logger, query, answer, lang string) {
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), d.cfg.CacheTimeout)
	defer cancel()

	if err := d.cache.Record(ctx, query, answer, lang); err != nil {
		logger.Warn("cache update failed", "error", err, "code", errs.CodeOf(err))
		d.metrics.Degraded("cache_update")
	}
}

// synthesize attaches spoken audio to result. Failures leave the text reply intact.
func (d *Dispatcher) synthesize(ctx context.Context, logger *slog.Logger, result *message.Result, lang string) {
	if d.synthesizer == nil || result.ResponseText == "" {
		return
	}
	if lang == "" || !tts.Supports(d.synthesizer, lang) {
		lang = d.responder.Pivot()
	}

	sctx, cancel := withTimeout(ctx, d.cfg.SynthesisTimeout)
	defer cancel()

	logger.Debug("synthesizing response", "language", lang, "text_length", len(result.ResponseText))
	audio, err := d.synthesizer.Synthesize(sctx, result.ResponseText, tts.SynthesizeOpts{Language: lang})
	if err != nil {
		logger.Warn("TTS synthesis failed, continuing without audio", "error", err, "code", errs.SynthesisFailure)
		d.metrics.Degraded("synthesis")
		return
	}
	result.ResponseContentType = audio.ContentType

	stored := false
	if d.blob != nil {
		key := d.audioKey(result.SessionID, result.RequestID, audio.ContentType)
		if err := d.blob.Put(sctx, key, audio.Audio, audio.ContentType); err != nil {
			logger.Warn("storing synthesized audio failed", "key", key, "error", err)
			d.metrics.Degraded("audio_store")
		} else {
			result.AudioRef = key
			stored = true
		}
	}
	if d.cfg.InlineAudio || !stored {
		result.SetResponseAudioBytes(audio.Audio)
	}
	logger.Info("TTS synthesis complete", "audio_bytes", len(audio.Audio), "audio_ref", result.AudioRef)
}

func (d *Dispatcher) audioKey(sessionID, requestID, contentType string) string {
	name := fmt.Sprintf("response_%s_%d_%s%s", sessionID, d.now().Unix(), requestID, tts.Extension(contentType))
	return path.Join(d.cfg.AudioKeyPrefix, name)
}

// fail records err on result and returns it.
func (d *Dispatcher) fail(logger *slog.Logger, result *message.Result, err error) *message.Result {
	code := errs.CodeOf(err)
	if code == "" {
		code = "internal"
	}
	result.Error = err.Error()
	result.ErrorCode = string(code)
	if code == errs.InvalidRequest {
		logger.Warn("request rejected", "error", err)
	} else {
		logger.Error("turn failed", "error", err, "code", code)
	}
	return result
}

func transcriptOf(req *message.Request, query string) string {
	if req.HasAudio() {
		return query
	}
	return ""
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
