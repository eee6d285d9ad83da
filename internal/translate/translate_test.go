package translate

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNone(t *testing.T) {
	n := None{Pivot: "en"}
	lang, err := n.Detect(t.Context(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "en", lang)

	out, err := n.Translate(t.Context(), "bonjour", "fr", "en")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", out)
}

func TestSameLanguage(t *testing.T) {
	assert.True(t, SameLanguage("en", "EN"))
	assert.True(t, SameLanguage("en-US", "en"))
	assert.True(t, SameLanguage("zh_Hans", "zh"))
	assert.False(t, SameLanguage("fr", "en"))
}

func newLibreServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "secret", body["api_key"])

		switch r.URL.Path {
		case "/detect":
			_, _ = io.WriteString(w, `[{"language":"de","confidence":20},{"language":"fr","confidence":91}]`)
		case "/translate":
			if body["q"] == "fail" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"unsupported"}`)
				return
			}
			_, _ = io.WriteString(w, `{"translatedText":"`+body["source"].(string)+">"+body["target"].(string)+`:`+body["q"].(string)+`"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestLibre(t *testing.T) {
	srv := newLibreServer(t)
	defer srv.Close()

	l, err := NewLibre(LibreConfig{Endpoint: srv.URL + "/", APIKey: "secret", RateLimit: 100})
	require.NoError(t, err)

	lang, err := l.Detect(t.Context(), "je suis stressé")
	require.NoError(t, err)
	assert.Equal(t, "fr", lang)

	out, err := l.Translate(t.Context(), "bonjour", "fr", "en-US")
	require.NoError(t, err)
	assert.Equal(t, "fr>en:bonjour", out)

	out, err = l.Translate(t.Context(), "hello", "en", "en")
	require.NoError(t, err)
	assert.Equal(t, "hello", out, "same language skips the server")

	_, err = l.Translate(t.Context(), "fail", "fr", "en")
	assert.Error(t, err)
}

func TestNewLibre_RequiresEndpoint(t *testing.T) {
	_, err := NewLibre(LibreConfig{})
	assert.Error(t, err)
}
