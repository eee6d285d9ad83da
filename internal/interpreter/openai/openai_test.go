package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/confidant/internal/config"
	"github.com/nadzzz/confidant/internal/interpreter"
)

func newTestInterpreter(t *testing.T, model string, h http.HandlerFunc) *Interpreter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.OpenAIConfig{
		APIKey:             "test",
		BaseURL:            srv.URL + "/v1",
		TranscriptionModel: "whisper-1",
		CompletionModel:    model,
	})
}

func TestComplete(t *testing.T) {
	interp := newTestInterpreter(t, "gpt-3.5-turbo-instruct", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "User: hi\nAssistant:", body["prompt"])
		assert.EqualValues(t, 150, body["max_tokens"])
		assert.Equal(t, []any{"User:", "Assistant:"}, body["stop"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"text":" Hello there.\nUser: more","finish_reason":"stop"}]}`)
	})

	out, err := interp.Complete(t.Context(), interpreter.CompletionRequest{
		Prompt:      "User: hi\nAssistant:",
		MaxTokens:   150,
		Stop:        []string{"User:", "Assistant:"},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, " Hello there.\n", out)
}

func TestComplete_ChatModelFallsBackToChat(t *testing.T) {
	interp := newTestInterpreter(t, "gpt-4", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Sure."}}]}`)
	})

	out, err := interp.Complete(t.Context(), interpreter.CompletionRequest{Prompt: "User: hi\nAssistant:"})
	require.NoError(t, err)
	assert.Equal(t, "Sure.", out)
}

func TestComplete_ServerError(t *testing.T) {
	interp := newTestInterpreter(t, "gpt-3.5-turbo-instruct", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
	})

	_, err := interp.Complete(t.Context(), interpreter.CompletionRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestTranscribe(t *testing.T) {
	interp := newTestInterpreter(t, "gpt-3.5-turbo-instruct", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "audio.webm", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"bonjour","language":"french"}`)
	})

	res, err := interp.Transcribe(t.Context(), []byte("fake"), "audio/webm", interpreter.TranscribeOpts{})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", res.Text)
	assert.Equal(t, "fr", res.Language)
}
