// Package nats implements a NATS request/reply transport for confidant.
//
// Clients publish a JSON message.Request to the configured subject with a
// reply inbox (nats.Conn.Request) and receive a JSON message.Result. Every
// instance subscribes in the same queue group, so each request is answered
// once however many confidant replicas are running.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	gonats "github.com/nats-io/nats.go"

	"github.com/nadzzz/confidant/internal/errs"
	"github.com/nadzzz/confidant/internal/message"
	"github.com/nadzzz/confidant/internal/transport"
)

// Config configures the transport.
type Config struct {
	URL        string
	Subject    string
	QueueGroup string

	// Timeout bounds one turn. 0 means no limit beyond the dispatcher's own.
	Timeout time.Duration
}

// Transport implements transport.Transport over NATS.
type Transport struct {
	cfg  Config
	conn *gonats.Conn
	sub  *gonats.Subscription
}

// New creates a new NATS transport.
func New(cfg Config) *Transport {
	if cfg.Subject == "" {
		cfg.Subject = "confidant.chat"
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = "confidant"
	}
	return &Transport{cfg: cfg}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "nats" }

// Listen connects to the server and answers requests until ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	conn, err := gonats.Connect(t.cfg.URL,
		gonats.Name("confidant"),
		gonats.MaxReconnects(-1),
		gonats.DisconnectErrHandler(func(_ *gonats.Conn, err error) {
			if err != nil {
				slog.Warn("nats transport disconnected", "error", err)
			}
		}),
		gonats.ReconnectHandler(func(c *gonats.Conn) {
			slog.Info("nats transport reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	t.conn = conn

	sub, err := conn.QueueSubscribe(t.cfg.Subject, t.cfg.QueueGroup, func(msg *gonats.Msg) {
		go t.serve(ctx, msg, handler)
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("nats subscribe %s: %w", t.cfg.Subject, err)
	}
	t.sub = sub

	slog.Info("nats transport listening", "subject", t.cfg.Subject, "queue", t.cfg.QueueGroup)

	<-ctx.Done()
	slog.Info("nats transport shutting down")
	return t.Close()
}

func (t *Transport) serve(ctx context.Context, msg *gonats.Msg, handler transport.Handler) {
	if msg.Reply == "" {
		slog.Warn("nats request without reply subject dropped", "subject", msg.Subject)
		return
	}
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}
	if err := msg.Respond(Handle(ctx, msg.Data, handler)); err != nil {
		slog.Warn("nats reply failed", "error", err)
	}
}

// Handle decodes one request payload, runs it and encodes the result.
func Handle(ctx context.Context, data []byte, handler transport.Handler) []byte {
	var req message.Request
	var res *message.Result
	if err := json.Unmarshal(data, &req); err != nil {
		res = &message.Result{Error: "invalid json: " + err.Error(), ErrorCode: string(errs.InvalidRequest)}
	} else {
		req.Source = "nats"
		res, err = handler(ctx, &req)
		if err != nil {
			res = &message.Result{RequestID: req.ID, SessionID: req.SessionID, Error: err.Error(), ErrorCode: "internal"}
		}
	}
	out, err := json.Marshal(res)
	if err != nil {
		// Result only holds strings and bools.
		return []byte(`{"error_code":"internal"}`)
	}
	return out
}

// Close drains the subscription and the connection.
func (t *Transport) Close() error {
	if t.conn == nil || t.conn.IsClosed() {
		return nil
	}
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
