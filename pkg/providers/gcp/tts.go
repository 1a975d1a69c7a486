// Package gcp implements the cloud synthesis provider against the Google
// text-to-speech HTTP API.
package gcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
	"github.com/morioka22/ncb-tts-r2/pkg/synth"
)

const (
	defaultEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"
	defaultTimeout  = 30 * time.Second
)

type Config struct {
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = int(defaultTimeout / time.Second)
	}
	return c
}

// TokenProvider supplies bearer credentials shared across synthesis calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type Provider struct {
	cfg        Config
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, tokens TokenProvider, logger *slog.Logger) *Provider {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger.With(slog.String("component", "gcp_tts")),
	}
}

func (p *Provider) Name() string { return "gcp_tts" }

type synthesisInput struct {
	SSML string `json:"ssml"`
}

type synthesizeRequest struct {
	Input       synthesisInput       `json:"input"`
	Voice       synth.VoiceSelection `json:"voice"`
	AudioConfig synth.AudioConfig    `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize wraps the marked-up text in a speech document and exchanges it
// for audio bytes. The bearer token comes from the shared token cache; no
// lock is held across this call.
func (p *Provider) Synthesize(ctx context.Context, req synth.Request) ([]byte, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(synthesizeRequest{
		Input:       synthesisInput{SSML: "<speak>" + req.Text + "</speak>"},
		Voice:       req.Voice,
		AudioConfig: req.Audio,
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonProviderResponse)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint,
		bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonProviderNetwork)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("synthesize request: %w", err), errorsx.ReasonProviderNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp)
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("decode synthesize response: %w", err), errorsx.ReasonProviderResponse)
	}
	if sr.AudioContent == "" {
		return nil, errorsx.Wrap(fmt.Errorf("synthesize response missing audioContent"), errorsx.ReasonProviderResponse)
	}
	audio, err := base64.StdEncoding.DecodeString(sr.AudioContent)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("decode audioContent: %w", err), errorsx.ReasonProviderResponse)
	}

	p.logger.Debug("synthesized utterance",
		slog.Int("text_length", len(req.Text)),
		slog.Int("audio_bytes", len(audio)))
	return audio, nil
}

func (p *Provider) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("synthesize returned %s: %s", resp.Status, string(body))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errorsx.Wrap(err, errorsx.ReasonProviderAuth)
	case http.StatusTooManyRequests:
		return errorsx.Wrap(err, errorsx.ReasonProviderQuota)
	default:
		return errorsx.Wrap(err, errorsx.ReasonProviderNetwork)
	}
}
