package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/confidant/internal/config"
	"github.com/nadzzz/confidant/internal/tts"
)

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello", body["input"])
		assert.Equal(t, "nova", body["voice"])
		assert.Equal(t, "tts-1", body["model"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	s := New(config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1"}, config.OpenAITTS{Voice: "nova"})
	res, err := s.Synthesize(t.Context(), "Hello", tts.SynthesizeOpts{Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3fake"), res.Audio)
	assert.Equal(t, "audio/mpeg", res.ContentType)
	assert.True(t, tts.Supports(s, "ur"))
}
