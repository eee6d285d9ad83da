package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// LibreConfig configures a LibreTranslate client.
type LibreConfig struct {
	Endpoint  string
	APIKey    string
	RateLimit float64 // requests per second, 0 = unlimited
	Timeout   time.Duration
}

// Libre talks to a LibreTranslate server (/detect and /translate).
type Libre struct {
	endpoint string
	apiKey   string
	limiter  *rate.Limiter
	client   *http.Client
}

// NewLibre creates a LibreTranslate client.
func NewLibre(cfg LibreConfig) (*Libre, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("libretranslate: endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = max(1, int(cfg.RateLimit))
	}
	return &Libre{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		limiter:  rate.NewLimiter(limit, burst),
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the backend identifier.
func (l *Libre) Name() string { return "libretranslate" }

// Detect returns the most confident detected language.
func (l *Libre) Detect(ctx context.Context, text string) (string, error) {
	var out []struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	if err := l.post(ctx, "/detect", map[string]any{"q": text}, &out); err != nil {
		return "", fmt.Errorf("detecting language: %w", err)
	}
	if len(out) == 0 || out[0].Language == "" {
		return "", errors.New("detecting language: no candidates")
	}
	best := out[0]
	for _, c := range out[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	slog.Debug("language detected", "language", best.Language, "confidence", best.Confidence)
	return best.Language, nil
}

// Translate converts text from src to dst.
func (l *Libre) Translate(ctx context.Context, text, src, dst string) (string, error) {
	if SameLanguage(src, dst) || strings.TrimSpace(text) == "" {
		return text, nil
	}
	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	body := map[string]any{"q": text, "source": base(src), "target": base(dst), "format": "text"}
	if err := l.post(ctx, "/translate", body, &out); err != nil {
		return "", fmt.Errorf("translating %s->%s: %w", src, dst, err)
	}
	return out.TranslatedText, nil
}

func (l *Libre) post(ctx context.Context, path string, body map[string]any, out any) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if l.apiKey != "" {
		body["api_key"] = l.apiKey
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
