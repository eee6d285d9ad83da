// Package tts defines the interface for text-to-speech synthesis.
//
// Confidant speaks its reply in the language the user wrote or spoke in when
// the synthesizer has a voice for it, and in the pivot language otherwise.
package tts

import (
	"context"
	"strings"
)

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr", "es") to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates an audio file for the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// LanguageChecker is implemented by synthesizers that only have voices for
// some languages.
type LanguageChecker interface {
	SupportsLanguage(lang string) bool
}

// Supports reports whether s can speak lang. Synthesizers that do not
// implement LanguageChecker are assumed to speak every language.
func Supports(s Synthesizer, lang string) bool {
	if lc, ok := s.(LanguageChecker); ok {
		return lc.SupportsLanguage(lang)
	}
	return true
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the encoded audio file.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz (e.g., 22050). Zero if unknown.
	SampleRate int

	// Channels is the number of audio channels (typically 1). Zero if unknown.
	Channels int
}

// Extension returns the file extension for an audio content type.
func Extension(contentType string) string {
	switch {
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return ".mp3"
	case strings.Contains(contentType, "ogg"), strings.Contains(contentType, "opus"):
		return ".ogg"
	case strings.Contains(contentType, "flac"):
		return ".flac"
	case strings.Contains(contentType, "aac"):
		return ".aac"
	case strings.Contains(contentType, "webm"):
		return ".webm"
	default:
		return ".wav"
	}
}
