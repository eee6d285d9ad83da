// Confidant is a conversational assistant daemon that answers frequently
// asked questions from a semantic cache and everything else through a
// language model, in the user's own language.
//
// Usage:
//
//	confidant [flags]
//	confidant --config /path/to/confidant.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	_ "github.com/nadzzz/confidant/docs"
	"github.com/nadzzz/confidant/internal/config"
	"github.com/nadzzz/confidant/internal/dispatch"
	"github.com/nadzzz/confidant/internal/health"
	"github.com/nadzzz/confidant/internal/metrics"
	"github.com/nadzzz/confidant/internal/roundtrip"
	"github.com/nadzzz/confidant/internal/semcache"
	"github.com/nadzzz/confidant/internal/session"
	"github.com/nadzzz/confidant/internal/transport"
	grpctransport "github.com/nadzzz/confidant/internal/transport/grpc"
	httptransport "github.com/nadzzz/confidant/internal/transport/http"
	natstransport "github.com/nadzzz/confidant/internal/transport/nats"
	"github.com/nadzzz/confidant/internal/vectorindex"
)

// version is set at build time via ldflags.
var version = "dev"

// @title       Confidant API
// @version     1.0
// @description Multilingual conversational assistant with a frequency-gated semantic cache.
// @BasePath    /
func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/confidant.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("confidant %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("confidant starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("confidant failed", "error", err)
		os.Exit(1)
	}
	slog.Info("confidant stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Storage: blob store for the index snapshot and audio, ledger for counts.
	blob, err := newBlob(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	defer blob.Close()

	led, err := newLedger(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer led.Close()

	emb, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}
	defer emb.Close()

	// Restore the vector index and bring it in line with the ledger.
	persister := vectorindex.NewPersister(blob, cfg.Cache.IndexKey)
	idx, err := persister.Load(ctx, emb.Dimensions())
	if err != nil {
		return err
	}
	cache, err := semcache.New(semcache.Config{
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		PromotionThreshold:  cfg.Cache.PromotionThreshold,
		FlushInterval:       cfg.Cache.FlushInterval,
	}, emb, led, idx, persister, m)
	if err != nil {
		return err
	}
	if n, err := cache.Reconcile(ctx); err != nil {
		slog.Warn("reconciling index with ledger failed", "error", err)
	} else if n > 0 {
		slog.Info("indexed frequent questions missing from snapshot", "count", n)
	}

	// Language model, translation and speech.
	interp, err := newInterpreter(cfg.Interpreter)
	if err != nil {
		return err
	}
	defer interp.Close()

	translator, err := newTranslator(cfg.Translate)
	if err != nil {
		return err
	}

	synth, err := newSynthesizer(cfg.TTS, cfg.Interpreter.OpenAI)
	if err != nil {
		return err
	}
	if synth != nil {
		defer synth.Close()
	}

	responder := roundtrip.New(roundtrip.Config{
		Pivot:       cfg.Translate.Pivot,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
		Stop:        cfg.Generation.Stop,
		Timeout:     cfg.Generation.Timeout,
	}, interp, translator, m)

	sessions := session.NewStore(session.StoreConfig{
		MaxSessions: cfg.Session.MaxSessions,
		IdleTTL:     cfg.Session.IdleTTL,
		MaxChars:    cfg.Session.MaxChars,
		OnChange:    m.Sessions,
	})

	deps := dispatch.Deps{
		Transcriber: interp,
		Cache:       cache,
		Responder:   responder,
		Sessions:    sessions,
		Synthesizer: synth,
		Blob:        blob,
		Metrics:     m,
	}
	dispatcher, err := dispatch.New(dispatch.Config{
		TranscribeTimeout: cfg.Interpreter.TranscribeTimeout,
		CacheTimeout:      cfg.Embedding.Timeout,
		SynthesisTimeout:  cfg.TTS.Timeout,
		AudioKeyPrefix:    cfg.Audio.KeyPrefix,
		InlineAudio:       cfg.Audio.Inline,
		RetranslateOnHit:  cfg.Cache.RetranslateOnHit,
	}, deps)
	if err != nil {
		return err
	}

	// Initialize enabled transports.
	var transports []transport.Transport
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port, dispatcher))
	}
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.NATS.Enabled {
		transports = append(transports, natstransport.New(natstransport.Config{
			URL:        cfg.Transports.NATS.URL,
			Subject:    cfg.Transports.NATS.Subject,
			QueueGroup: cfg.Transports.NATS.QueueGroup,
		}))
	}
	if len(transports) == 0 {
		return errors.New("no transports enabled, enable at least one in config")
	}

	healthServer := health.New(cfg.Server.HealthPort, reg, func() map[string]any {
		st := cache.Stats()
		return map[string]any{"index_entries": st.Entries, "index_dirty": st.Dirty, "sessions": sessions.Len()}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.ListenAndServe(gctx) })
	g.Go(func() error { return cache.Run(gctx) })
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, dispatcher.Handle); err != nil {
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("confidant ready",
		"transports", len(transports),
		"index_entries", cache.Stats().Entries,
		"health_port", cfg.Server.HealthPort)

	<-gctx.Done()
	healthServer.SetReady(false)
	slog.Info("shutdown signal received, draining...")

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}
	err = g.Wait()

	// Persist whatever the periodic flush has not.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFlush()
	if cerr := cache.Close(flushCtx); cerr != nil {
		slog.Error("final index flush failed", "error", cerr)
	}
	return err
}
