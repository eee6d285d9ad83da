// Package message defines the core data types flowing through the confidant pipeline.
package message

import (
	"encoding/base64"
	"time"
)

// ResponseMode controls what output the caller wants back.
// The caller declares desired output in the request body, and the server
// populates or omits response fields accordingly.
type ResponseMode string

const (
	// ResponseModeText returns the text response only.
	ResponseModeText ResponseMode = "text"

	// ResponseModeAudio returns synthesized audio alongside the text.
	// The text is always present because it is what gets cached.
	ResponseModeAudio ResponseMode = "audio"

	// ResponseModeBoth returns text and synthesized audio.
	ResponseModeBoth ResponseMode = "both"
)

// WantsAudio reports whether the mode asks for synthesized speech.
func (m ResponseMode) WantsAudio() bool {
	return m == ResponseModeAudio || m == ResponseModeBoth
}

// Valid reports whether m is one of the recognized modes.
func (m ResponseMode) Valid() bool {
	switch m {
	case ResponseModeText, ResponseModeAudio, ResponseModeBoth:
		return true
	}
	return false
}

// Request is a single chat turn received from any transport.
type Request struct {
	// ID is a unique identifier for this request (UUID). Assigned if empty.
	ID string `json:"id,omitempty"`

	// SessionID scopes the conversation history. Assigned if empty.
	SessionID string `json:"session_id,omitempty"`

	// Message is the user's text. Ignored when Audio is present.
	Message string `json:"message,omitempty"`

	// Audio is the raw audio payload (base64 in JSON).
	Audio []byte `json:"audio,omitempty"`

	// ContentType is the MIME type of the audio (e.g., "audio/webm", "audio/wav").
	ContentType string `json:"content_type,omitempty"`

	// ResponseMode is one of "text", "audio", "both".
	ResponseMode ResponseMode `json:"response_mode,omitempty"`

	// Source is the transport that received the request (e.g., "http", "grpc").
	Source string `json:"source,omitempty"`

	// ReceivedAt is when the request entered the pipeline.
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// HasAudio returns true if the request carries an audio payload.
func (r *Request) HasAudio() bool {
	return len(r.Audio) > 0
}

// Result is the outcome of processing a Request.
type Result struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`

	// Transcript is the text recognized from audio input (empty for text input).
	Transcript string `json:"transcript,omitempty"`

	// Language is the ISO-639-1 code of the user's utterance.
	Language string `json:"language,omitempty"`

	// ResponseText is the final reply in the language the user received it.
	ResponseText string `json:"response_text,omitempty"`

	// Cached is true when the reply came from the semantic cache.
	Cached bool `json:"cached"`

	// AudioRef is the blob key of the synthesized reply, if any.
	AudioRef string `json:"audio_ref,omitempty"`

	// ResponseAudio is the synthesized audio as a base64-encoded string.
	ResponseAudio string `json:"response_audio,omitempty"`

	// ResponseContentType is the MIME type of ResponseAudio.
	ResponseContentType string `json:"response_content_type,omitempty"`

	// Error and ErrorCode are set when the turn failed.
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// SetResponseAudioBytes base64-encodes raw audio bytes into ResponseAudio.
func (r *Result) SetResponseAudioBytes(audio []byte) {
	if len(audio) > 0 {
		r.ResponseAudio = base64.StdEncoding.EncodeToString(audio)
	}
}

// FrequentQuestion is the public view of a ledger record.
type FrequentQuestion struct {
	Question  string    `json:"question"`
	Count     int64     `json:"count"`
	Response  string    `json:"response"`
	Language  string    `json:"language,omitempty"`
	Indexed   bool      `json:"indexed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeedRequest manually adds a frequently asked question.
type SeedRequest struct {
	Question string `json:"question"`
	Response string `json:"response"`
	Language string `json:"language,omitempty"`
}

// Turn is one entry of a conversation history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SessionHistory is the pivot-language history the model sees for a session.
type SessionHistory struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
}

// TranscriptResult is returned by the standalone transcription operation.
type TranscriptResult struct {
	Transcription string `json:"transcription"`
	Language      string `json:"language,omitempty"`
}
