// Package voicevox implements the local synthesis provider. The engine
// speaks plain text only, so markup pause fragments are converted to a
// full-width pause character before sending.
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
	"github.com/morioka22/ncb-tts-r2/pkg/synth"
)

const (
	defaultBaseURL = "http://localhost:50021"
	synthesizePath = "/synthesize"
	defaultSpeaker = 1
	defaultTimeout = 30 * time.Second

	// pauseCharacter replaces markup pause fragments for this engine.
	pauseCharacter = "、"
)

type Config struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = int(defaultTimeout / time.Second)
	}
	return c
}

type Provider struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Provider {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger.With(slog.String("component", "voicevox_tts")),
	}
}

func (p *Provider) Name() string { return "voicevox_tts" }

type synthesizeRequest struct {
	Text    string `json:"text"`
	Speaker int    `json:"speaker"`
}

// Synthesize posts plain text plus a speaker id and returns the raw audio
// bytes from the response body.
func (p *Provider) Synthesize(ctx context.Context, req synth.Request) ([]byte, error) {
	speaker := req.Speaker
	if speaker <= 0 {
		speaker = defaultSpeaker
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    PlainText(req.Text),
		Speaker: speaker,
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonProviderResponse)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+synthesizePath, bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonProviderNetwork)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("synthesize request: %w", err), errorsx.ReasonProviderNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, errorsx.Wrap(
			fmt.Errorf("synthesize returned %s: %s", resp.Status, string(msg)),
			errorsx.ReasonProviderNetwork)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("read audio: %w", err), errorsx.ReasonProviderResponse)
	}
	if len(audio) == 0 {
		return nil, errorsx.Wrap(fmt.Errorf("received empty audio"), errorsx.ReasonProviderResponse)
	}

	p.logger.Debug("synthesized utterance",
		slog.Int("speaker", speaker),
		slog.Int("audio_bytes", len(audio)))
	return audio, nil
}

// PlainText converts marked-up synthesis input to the engine's plain dialect.
func PlainText(text string) string {
	text = strings.ReplaceAll(text, synth.PauseMarker, pauseCharacter)
	return synth.UnescapeText(text)
}
