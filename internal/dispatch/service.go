package dispatch

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/nadzzz/confidant/internal/errs"
	"github.com/nadzzz/confidant/internal/message"
	"github.com/nadzzz/confidant/internal/session"
)

// Transcribe converts audio to text without answering it.
func (d *Dispatcher) Transcribe(ctx context.Context, audio []byte, contentType string) (*message.TranscriptResult, error) {
	if len(audio) == 0 {
		return nil, errs.Newf(errs.InvalidRequest, "transcribe", "no audio provided")
	}
	res, err := d.transcribe(ctx, audio, contentType)
	if err != nil {
		return nil, err
	}
	return &message.TranscriptResult{Transcription: strings.TrimSpace(res.Text), Language: res.Language}, nil
}

// Seed stores a curated answer as a frequent question.
func (d *Dispatcher) Seed(ctx context.Context, req message.SeedRequest) (*message.FrequentQuestion, error) {
	lang := req.Language
	if lang == "" {
		lang = d.responder.Pivot()
	}
	rec, err := d.cache.Seed(ctx, req.Question, req.Response, lang)
	if err != nil {
		return nil, err
	}
	return &message.FrequentQuestion{
		Question:  rec.Key,
		Count:     rec.HitCount,
		Response:  rec.Answer,
		Language:  rec.Language,
		Indexed:   d.cache.Indexed(rec.Key),
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Frequent lists recorded questions starting with prefix.
func (d *Dispatcher) Frequent(ctx context.Context, prefix string) ([]message.FrequentQuestion, error) {
	recs, err := d.cache.Frequent(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]message.FrequentQuestion, 0, len(recs))
	for _, rec := range recs {
		out = append(out, message.FrequentQuestion{
			Question:  rec.Key,
			Count:     rec.HitCount,
			Response:  rec.Answer,
			Language:  rec.Language,
			Indexed:   d.cache.Indexed(rec.Key),
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return out, nil
}

// Audio returns a stored reply and its content type. Only keys under the
// audio prefix are served.
func (d *Dispatcher) Audio(ctx context.Context, key string) ([]byte, string, error) {
	key = path.Clean("/" + key)[1:]
	if d.blob == nil || !strings.HasPrefix(key, d.cfg.AudioKeyPrefix+"/") {
		return nil, "", errs.Newf(errs.InvalidRequest, "audio", "unknown audio key %q", key)
	}
	data, err := d.blob.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	ct, ok := audioTypes[path.Ext(key)]
	if !ok {
		ct = "application/octet-stream"
	}
	return data, ct, nil
}

var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".webm": "audio/webm",
}

// History returns the turns kept for a session without refreshing its
// idle timer.
func (d *Dispatcher) History(_ context.Context, id string) (*message.SessionHistory, error) {
	sess, ok := d.sessions.Peek(id)
	if !ok {
		return nil, fmt.Errorf("history %q: %w", id, session.ErrNotFound)
	}
	turns := sess.Turns()
	out := &message.SessionHistory{SessionID: sess.ID(), Turns: make([]message.Turn, 0, len(turns))}
	for _, t := range turns {
		out.Turns = append(out.Turns, message.Turn{Role: string(t.Role), Text: t.Text})
	}
	return out, nil
}

// EndSession forgets a session's history.
func (d *Dispatcher) EndSession(_ context.Context, id string) error {
	if !d.sessions.Remove(id) {
		return fmt.Errorf("end session %q: %w", id, session.ErrNotFound)
	}
	return nil
}
