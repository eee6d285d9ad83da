// Package http implements the HTTP/WebSocket transport for confidant.
//
// It exposes a REST API for single chat turns, transcription, conversation
// history and the frequent-question ledger, a WebSocket endpoint for conversational clients
// that keep a connection open, and the generated Swagger UI.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/confidant/internal/errs"
	"github.com/nadzzz/confidant/internal/message"
	"github.com/nadzzz/confidant/internal/session"
	"github.com/nadzzz/confidant/internal/store"
	"github.com/nadzzz/confidant/internal/transport"
)

const (
	maxBodyBytes = 25 << 20 // 25 MB

	headerSession      = "X-Confidant-Session"
	headerResponseMode = "X-Confidant-Response-Mode"
)

// Transport implements transport.Transport over HTTP and WebSocket.
type Transport struct {
	port     int
	svc      transport.Service
	server   *http.Server
	upgrader websocket.Upgrader
}

// New creates a new HTTP transport on the given port. svc serves the
// non-chat endpoints and may be nil, in which case they are not mounted.
func New(port int, svc transport.Service) *Transport {
	return &Transport{
		port: port,
		svc:  svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Routes builds the request multiplexer.
func (t *Transport) Routes(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		t.handleChat(w, r, handler)
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		t.handleWebSocket(w, r, handler)
	})

	if t.svc != nil {
		mux.HandleFunc("POST /transcribe", t.handleTranscribe)
		mux.HandleFunc("GET /faq", t.handleListFrequent)
		mux.HandleFunc("POST /faq", t.handleSeed)
		mux.HandleFunc("GET /audio/{key...}", t.handleAudio)
		mux.HandleFunc("GET /sessions/{id}", t.handleHistory)
		mux.HandleFunc("DELETE /sessions/{id}", t.handleEndSession)
	}

	// Swagger UI serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// handleChat processes a POST /chat request.
//
// @Summary     Send one chat message
// @Description Accepts a JSON request (text or base64 audio) or raw audio bytes.
// @Description Frequent questions are answered from the semantic cache; everything else
// @Description goes through translation and the language model.
// @Tags        chat
// @Accept      json
// @Accept      audio/wav
// @Accept      audio/webm
// @Produce     json
// @Param       request  body      message.Request  true  "Chat request (JSON). For raw audio, POST the bytes directly with the appropriate Content-Type."
// @Param       X-Confidant-Session        header  string  false  "Session identifier (used with raw audio uploads)"
// @Param       X-Confidant-Response-Mode  header  string  false  "text, audio or both (used with raw audio uploads)"
// @Success     200  {object}  message.Result  "Reply"
// @Failure     400  {object}  message.Result  "Invalid request"
// @Failure     502  {object}  message.Result  "Upstream model failure"
// @Failure     504  {object}  message.Result  "Model timeout"
// @Router      /chat [post]
func (t *Transport) handleChat(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req message.Request

	if isJSON(r.Header.Get("Content-Type")) {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		// Treat body as raw audio; read session and mode from headers.
		audio, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "reading audio: "+err.Error(), http.StatusBadRequest)
			return
		}
		req.Audio = audio
		req.ContentType = r.Header.Get("Content-Type")
		req.SessionID = r.Header.Get(headerSession)
		req.ResponseMode = message.ResponseMode(r.Header.Get(headerResponseMode))
	}
	req.Source = "http"

	result, err := handler(r.Context(), &req)
	if err != nil {
		slog.Error("chat failed", "error", err)
		http.Error(w, "chat error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, transport.Status(result.ErrorCode), result)
}

// handleTranscribe processes a POST /transcribe request.
//
// @Summary     Transcribe audio
// @Tags        chat
// @Accept      audio/wav
// @Accept      audio/webm
// @Produce     json
// @Success     200  {object}  message.TranscriptResult
// @Failure     400  {string}  string  "No audio"
// @Failure     502  {string}  string  "Transcription failed"
// @Router      /transcribe [post]
func (t *Transport) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "reading audio: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := t.svc.Transcribe(r.Context(), audio, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleListFrequent processes a GET /faq request.
//
// @Summary     List frequent questions
// @Tags        faq
// @Produce     json
// @Param       prefix  query  string  false  "Only questions starting with this text"
// @Success     200  {array}  message.FrequentQuestion
// @Router      /faq [get]
func (t *Transport) handleListFrequent(w http.ResponseWriter, r *http.Request) {
	list, err := t.svc.Frequent(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSeed processes a POST /faq request.
//
// @Summary     Add a curated answer
// @Description The question is stored as frequent and served from the cache immediately.
// @Tags        faq
// @Accept      json
// @Produce     json
// @Param       request  body  message.SeedRequest  true  "Question and answer"
// @Success     201  {object}  message.FrequentQuestion
// @Failure     400  {string}  string  "Invalid request"
// @Router      /faq [post]
func (t *Transport) handleSeed(w http.ResponseWriter, r *http.Request) {
	var req message.SeedRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	fq, err := t.svc.Seed(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fq)
}

// handleAudio processes a GET /audio/{key} request.
//
// @Summary     Fetch a synthesized reply
// @Tags        chat
// @Produce     audio/wav
// @Produce     audio/mpeg
// @Param       key  path  string  true  "audio_ref from a chat result"
// @Success     200  {file}    binary
// @Failure     404  {string}  string  "Unknown key"
// @Router      /audio/{key} [get]
func (t *Transport) handleAudio(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := t.svc.Audio(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(data)
}

// handleHistory processes a GET /sessions/{id} request.
//
// @Summary     Conversation history
// @Description Returns the turns the model sees for the session, in the pivot language.
// @Tags        sessions
// @Produce     json
// @Param       id  path  string  true  "Session identifier"
// @Success     200  {object}  message.SessionHistory
// @Failure     404  {string}  string  "Unknown or expired session"
// @Router      /sessions/{id} [get]
func (t *Transport) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := t.svc.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// handleEndSession processes a DELETE /sessions/{id} request.
//
// @Summary     Forget a conversation
// @Tags        sessions
// @Param       id  path  string  true  "Session identifier"
// @Success     204
// @Failure     404  {string}  string  "Unknown or expired session"
// @Router      /sessions/{id} [delete]
func (t *Transport) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := t.svc.EndSession(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWebSocket runs a chat over one connection. Text frames carry JSON
// requests; binary frames carry raw audio whose content type comes from the
// content_type query parameter. Each frame is answered with one JSON result.
func (t *Transport) handleWebSocket(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	q := r.URL.Query()
	sessionID := q.Get("session_id")
	mode := message.ResponseMode(q.Get("response_mode"))
	contentType := q.Get("content_type")
	if contentType == "" {
		contentType = "audio/wav"
	}
	slog.Info("websocket client connected", "remote", r.RemoteAddr, "session_id", sessionID)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}

		req := message.Request{SessionID: sessionID, ResponseMode: mode, Source: "ws"}
		switch kind {
		case websocket.TextMessage:
			if err := json.Unmarshal(data, &req); err != nil {
				_ = conn.WriteJSON(&message.Result{SessionID: sessionID, Error: "invalid json: " + err.Error(), ErrorCode: string(errs.InvalidRequest)})
				continue
			}
			req.Source = "ws"
		case websocket.BinaryMessage:
			req.Audio = data
			req.ContentType = contentType
		default:
			continue
		}

		result, err := handler(r.Context(), &req)
		if err != nil {
			result = &message.Result{SessionID: req.SessionID, Error: err.Error(), ErrorCode: "internal"}
		}
		// Later frames continue the session the server assigned.
		if sessionID == "" {
			sessionID = result.SessionID
		}
		if err := conn.WriteJSON(result); err != nil {
			slog.Warn("websocket write failed", "error", err)
			return
		}
	}
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch code := errs.CodeOf(err); {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case code != "":
		status = transport.Status(string(code))
	}
	http.Error(w, err.Error(), status)
}
