package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/confidant/internal/errs"
	"github.com/nadzzz/confidant/internal/message"
	"github.com/nadzzz/confidant/internal/session"
	"github.com/nadzzz/confidant/internal/store"
)

type fakeService struct {
	seeded   []message.SeedRequest
	sessions map[string][]message.Turn
}

func (f *fakeService) Transcribe(_ context.Context, audio []byte, contentType string) (*message.TranscriptResult, error) {
	if len(audio) == 0 {
		return nil, errs.Newf(errs.InvalidRequest, "transcribe", "no audio provided")
	}
	return &message.TranscriptResult{Transcription: "hello from " + contentType, Language: "en"}, nil
}

func (f *fakeService) Seed(_ context.Context, req message.SeedRequest) (*message.FrequentQuestion, error) {
	f.seeded = append(f.seeded, req)
	return &message.FrequentQuestion{Question: strings.ToLower(req.Question), Count: 5, Response: req.Response, Indexed: true}, nil
}

func (f *fakeService) Frequent(_ context.Context, prefix string) ([]message.FrequentQuestion, error) {
	return []message.FrequentQuestion{{Question: prefix + " anxiety", Count: 4}}, nil
}

func (f *fakeService) Audio(_ context.Context, key string) ([]byte, string, error) {
	if key == "audioMessages/response/a.wav" {
		return []byte("RIFF"), "audio/wav", nil
	}
	return nil, "", store.ErrNotFound
}

func (f *fakeService) History(_ context.Context, id string) (*message.SessionHistory, error) {
	turns, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("history %q: %w", id, session.ErrNotFound)
	}
	return &message.SessionHistory{SessionID: id, Turns: turns}, nil
}

func (f *fakeService) EndSession(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

// echoHandler answers with the message text, or with the audio size for audio input.
func echoHandler(_ context.Context, req *message.Request) (*message.Result, error) {
	res := &message.Result{RequestID: "r1", SessionID: req.SessionID}
	if res.SessionID == "" {
		res.SessionID = "assigned"
	}
	switch {
	case req.Message == "boom":
		res.Error, res.ErrorCode = "model timed out", string(errs.GenerationTimeout)
	case req.HasAudio():
		res.Transcript = req.ContentType
		res.ResponseText = strings.Repeat("a", len(req.Audio))
	default:
		res.ResponseText = "echo: " + req.Message + " via " + req.Source + " mode " + string(req.ResponseMode)
	}
	return res, nil
}

func newServer(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	svc := &fakeService{sessions: map[string][]message.Turn{
		"s1": {{Role: "user", Text: "what is anxiety"}, {Role: "assistant", Text: "Worry."}},
	}}
	srv := httptest.NewServer(New(0, svc).Routes(echoHandler))
	t.Cleanup(srv.Close)
	return srv, svc
}

func decodeResult(t *testing.T, resp *http.Response) message.Result {
	t.Helper()
	defer resp.Body.Close()
	var res message.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestChat_JSON(t *testing.T) {
	srv, _ := newServer(t)

	body := `{"session_id":"s1","message":"hi","response_mode":"text"}`
	resp, err := http.Post(srv.URL+"/chat", "application/json; charset=utf-8", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := decodeResult(t, resp)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, "echo: hi via http mode text", res.ResponseText)
}

func TestChat_RawAudio(t *testing.T) {
	srv, _ := newServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat", bytes.NewReader([]byte("RIFF1234")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set(headerSession, "s2")
	req.Header.Set(headerResponseMode, "both")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res := decodeResult(t, resp)
	assert.Equal(t, "s2", res.SessionID)
	assert.Equal(t, "audio/wav", res.Transcript)
	assert.Equal(t, "aaaaaaaa", res.ResponseText)
}

func TestChat_ErrorStatus(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"message":"boom"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	res := decodeResult(t, resp)
	assert.Equal(t, string(errs.GenerationTimeout), res.ErrorCode)

	resp, err = http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"message":`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTranscribe(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Post(srv.URL+"/transcribe", "audio/webm", strings.NewReader("OggS"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out message.TranscriptResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "hello from audio/webm", out.Transcription)

	resp, err = http.Post(srv.URL+"/transcribe", "audio/webm", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFAQ(t *testing.T) {
	srv, svc := newServer(t)

	resp, err := http.Post(srv.URL+"/faq", "application/json", strings.NewReader(`{"question":"What is anxiety","response":"Worry."}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, svc.seeded, 1)
	assert.Equal(t, "Worry.", svc.seeded[0].Response)

	resp2, err := http.Get(srv.URL + "/faq?prefix=what")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var list []message.FrequentQuestion
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "what anxiety", list[0].Question)
}

func TestAudio(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/audio/audioMessages/response/a.wav")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, "RIFF", string(body))

	resp, err = http.Get(srv.URL + "/audio/audioMessages/response/missing.wav")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket(t *testing.T) {
	srv, _ := newServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?response_mode=text&content_type=audio/ogg"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"message":"hi"}`)))
	var first message.Result
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "assigned", first.SessionID)
	assert.Equal(t, "echo: hi via ws mode text", first.ResponseText)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("abc")))
	var second message.Result
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "assigned", second.SessionID, "later frames reuse the assigned session")
	assert.Equal(t, "audio/ogg", second.Transcript)
	assert.Equal(t, "aaa", second.ResponseText)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{`)))
	var bad message.Result
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, string(errs.InvalidRequest), bad.ErrorCode)
}

func TestIsJSON(t *testing.T) {
	assert.True(t, isJSON("application/json"))
	assert.True(t, isJSON("application/json; charset=utf-8"))
	assert.True(t, isJSON("application/vnd.confidant+json"))
	assert.False(t, isJSON("audio/wav"))
	assert.False(t, isJSON(""))
}

func TestSessions(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/sessions/s1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist message.SessionHistory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hist))
	resp.Body.Close()
	assert.Equal(t, "s1", hist.SessionID)
	require.Len(t, hist.Turns, 2)
	assert.Equal(t, "assistant", hist.Turns[1].Role)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/s1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sessions/s1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
