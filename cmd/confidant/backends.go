package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/confidant/internal/config"
	"github.com/nadzzz/confidant/internal/embedding"
	"github.com/nadzzz/confidant/internal/interpreter"
	localinterp "github.com/nadzzz/confidant/internal/interpreter/local"
	openaiinterp "github.com/nadzzz/confidant/internal/interpreter/openai"
	"github.com/nadzzz/confidant/internal/ledger"
	"github.com/nadzzz/confidant/internal/store"
	"github.com/nadzzz/confidant/internal/translate"
	"github.com/nadzzz/confidant/internal/tts"
	openaitts "github.com/nadzzz/confidant/internal/tts/openai"
	"github.com/nadzzz/confidant/internal/tts/piper"
)

func newBlob(ctx context.Context, cfg config.BlobConfig) (store.Blob, error) {
	switch cfg.Backend {
	case "file":
		slog.Info("using file blob store", "dir", cfg.Dir)
		return store.NewFile(cfg.Dir)
	case "minio":
		slog.Info("using minio blob store", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
		return store.NewMinio(ctx, store.MinioConfig{
			Endpoint:        cfg.Minio.Endpoint,
			AccessKeyID:     cfg.Minio.AccessKeyID,
			SecretAccessKey: cfg.Minio.SecretAccessKey,
			Bucket:          cfg.Minio.Bucket,
			Region:          cfg.Minio.Region,
			UseSSL:          cfg.Minio.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

func newLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Ledger, error) {
	switch cfg.Backend {
	case "memory":
		slog.Warn("using in-memory ledger, question counts are lost on restart")
		return ledger.NewMemory(), nil
	case "postgres":
		slog.Info("using postgres ledger", "table", cfg.Postgres.Table)
		return ledger.NewPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
	case "nats":
		slog.Info("using nats key-value ledger", "url", cfg.NATS.URL, "bucket", cfg.NATS.Bucket)
		return ledger.NewNATS(ctx, cfg.NATS.URL, cfg.NATS.Bucket)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	var emb embedding.Embedder
	switch cfg.Backend {
	case "hash":
		emb = embedding.NewHashEmbedder(embedding.HashConfig{Dimensions: cfg.Dimensions})
	case "openai":
		oe, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		emb = oe
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
	slog.Info("using embedder", "model", emb.Model(), "dimensions", emb.Dimensions())

	if cfg.MemoSize <= 0 {
		return emb, nil
	}
	return embedding.NewMemo(emb, cfg.MemoSize)
}

func newInterpreter(cfg config.InterpreterConfig) (interpreter.Interpreter, error) {
	switch cfg.Backend {
	case "openai":
		slog.Info("using OpenAI interpreter",
			"transcription_model", cfg.OpenAI.TranscriptionModel,
			"completion_model", cfg.OpenAI.CompletionModel)
		return openaiinterp.New(cfg.OpenAI), nil
	case "local":
		slog.Info("using local interpreter",
			"whisper", cfg.Local.WhisperEndpoint,
			"llm", cfg.Local.LLMEndpoint)
		return localinterp.New(cfg.Local), nil
	default:
		return nil, fmt.Errorf("unknown interpreter backend %q", cfg.Backend)
	}
}

func newTranslator(cfg config.TranslateConfig) (translate.Translator, error) {
	switch cfg.Backend {
	case "none":
		slog.Info("translation disabled, all text treated as pivot language", "pivot", cfg.Pivot)
		return translate.None{Pivot: cfg.Pivot}, nil
	case "libretranslate":
		slog.Info("using LibreTranslate", "endpoint", cfg.Endpoint, "pivot", cfg.Pivot)
		return translate.NewLibre(translate.LibreConfig{
			Endpoint:  cfg.Endpoint,
			APIKey:    cfg.APIKey,
			RateLimit: cfg.RateLimit,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown translate backend %q", cfg.Backend)
	}
}

// newSynthesizer returns nil when TTS is disabled.
func newSynthesizer(cfg config.TTSConfig, creds config.OpenAIConfig) (tts.Synthesizer, error) {
	if !cfg.Enabled {
		slog.Info("TTS disabled")
		return nil, nil
	}
	switch cfg.Backend {
	case "piper":
		slog.Info("using Piper TTS", "endpoint", cfg.Piper.Endpoint, "languages", len(cfg.Piper.Endpoints))
		return piper.New(cfg.Piper, cfg.Timeout), nil
	case "openai":
		slog.Info("using OpenAI TTS", "model", cfg.OpenAI.Model, "voice", cfg.OpenAI.Voice)
		return openaitts.New(creds, cfg.OpenAI), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}
