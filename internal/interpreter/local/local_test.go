package local

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

var stops = []string{"User:", "Assistant:"}

func TestComplete_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body struct {
			Model   string         `json:"model"`
			Prompt  string         `json:"prompt"`
			Stream  bool           `json:"stream"`
			Options map[string]any `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body.Model)
		assert.Equal(t, "User: hi\nAssistant:", body.Prompt)
		assert.False(t, body.Stream)
		assert.EqualValues(t, 150, body.Options["num_predict"])
		assert.InDelta(t, 0.7, body.Options["temperature"], 1e-6)

		_, _ = io.WriteString(w, `{"response":" Hello!\nUser: again","done":true}`)
	}))
	defer srv.Close()

	interp := New(config.LocalConfig{LLMEndpoint: srv.URL + "/api/generate"})
	out, err := interp.Complete(t.Context(), interpreter.CompletionRequest{
		Prompt: "User: hi\nAssistant:", MaxTokens: 150, Stop: stops, Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, " Hello!\n", out)
}

func TestComplete_OpenAICompatible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{"User:", "Assistant:"}, body["stop"])
		_, _ = io.WriteString(w, `{"choices":[{"text":"Take a breath."}]}`)
	}))
	defer srv.Close()

	interp := New(config.LocalConfig{LLMEndpoint: srv.URL + "/v1/completions", LLMModel: "mistral"})
	out, err := interp.Complete(t.Context(), interpreter.CompletionRequest{Prompt: "p", Stop: stops})
	require.NoError(t, err)
	assert.Equal(t, "Take a breath.", out)
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"oom"}`},
		{name: "unknown shape", status: http.StatusOK, body: `{"foo":"bar"}`},
		{name: "not json", status: http.StatusOK, body: `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			interp := New(config.LocalConfig{LLMEndpoint: srv.URL + "/api/generate"})
			_, err := interp.Complete(t.Context(), interpreter.CompletionRequest{Prompt: "p"})
			assert.Error(t, err)
		})
	}
}

func TestTranscribe_Flavors(t *testing.T) {
	tests := []struct {
		name        string
		whisperType string
		field       string
	}{
		{name: "openai compatible", whisperType: "openai", field: "file"},
		{name: "whisper asr webservice", whisperType: "asr", field: "audio_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseMultipartForm(1<<20))
				f, _, err := r.FormFile(tt.field)
				require.NoError(t, err)
				data, _ := io.ReadAll(f)
				assert.Equal(t, "RIFF", string(data))
				if tt.whisperType == "asr" {
					assert.Equal(t, "fr", r.URL.Query().Get("language"))
				} else {
					assert.Equal(t, "fr", r.FormValue("language"))
				}
				_, _ = io.WriteString(w, `{"text":" je suis stressé ","language":"french"}`)
			}))
			defer srv.Close()

			interp := New(config.LocalConfig{WhisperEndpoint: srv.URL, WhisperType: tt.whisperType, Language: "fr"})
			res, err := interp.Transcribe(t.Context(), []byte("RIFF"), "audio/wav", interpreter.TranscribeOpts{})
			require.NoError(t, err)
			assert.Equal(t, "je suis stressé", res.Text)
			assert.Equal(t, "fr", res.Language)
		})
	}
}
