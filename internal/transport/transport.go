// Package transport defines the interface for pluggable chat transports.
//
// Each transport (HTTP/WebSocket, gRPC, NATS) implements this interface and
// is handed the dispatcher's Handler. The dispatcher doesn't care how
// messages arrive; it only works with the Transport contract.
package transport

import (
	"context"
	"net/http"

	"github.com/nadzzz/confidant/internal/errs"
	"github.com/nadzzz/confidant/internal/message"
)

// Handler processes one chat turn and returns its result.
// The dispatcher provides this handler to each transport.
type Handler func(ctx context.Context, req *message.Request) (*message.Result, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http", "nats").
	Name() string

	// Listen starts accepting incoming requests and passes them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Service is the non-chat surface some transports expose next to Handler.
type Service interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (*message.TranscriptResult, error)
	Seed(ctx context.Context, req message.SeedRequest) (*message.FrequentQuestion, error)
	Frequent(ctx context.Context, prefix string) ([]message.FrequentQuestion, error)
	Audio(ctx context.Context, key string) ([]byte, string, error)
	History(ctx context.Context, sessionID string) (*message.SessionHistory, error)
	EndSession(ctx context.Context, sessionID string) error
}

// Status maps an error code to the HTTP status a transport should report.
func Status(code string) int {
	switch errs.Code(code) {
	case "":
		return http.StatusOK
	case errs.InvalidRequest:
		return http.StatusBadRequest
	case errs.GenerationTimeout:
		return http.StatusGatewayTimeout
	case errs.TranscriptionFailure, errs.GenerationFailure, errs.EmbeddingFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
