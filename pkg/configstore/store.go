// Package configstore reads per-guild and per-user narration settings from an
// external key-value service. The service is owned elsewhere; this side only
// reads, with or-default semantics for missing keys.
package configstore

import (
	"context"
	"fmt"

	"github.com/morioka22/ncb-tts-r2/pkg/synth"
)

// DictionaryRule is a single ordered text substitution. Regex rules are
// compiled at apply time; literal rules are plain replacements.
type DictionaryRule struct {
	Pattern     string `json:"pattern" mapstructure:"pattern"`
	Replacement string `json:"replacement" mapstructure:"replacement"`
	IsRegex     bool   `json:"is_regex" mapstructure:"is_regex"`
}

// ServerConfig holds per-guild settings. The dictionary order is the
// evaluation order.
type ServerConfig struct {
	Dictionary []DictionaryRule `json:"dictionary" mapstructure:"dictionary"`
}

// Validate rejects rule sets that could never apply safely. An empty pattern
// on a regex rule matches everywhere and is refused outright.
func (c ServerConfig) Validate() error {
	for i, rule := range c.Dictionary {
		if rule.IsRegex && rule.Pattern == "" {
			return fmt.Errorf("dictionary rule %d: regex rule with empty pattern", i)
		}
	}
	return nil
}

// UserConfig holds the author's provider choice and voice parameters. A zero
// value selects the cloud provider with default voice settings.
type UserConfig struct {
	Provider string               `json:"provider" mapstructure:"provider"`
	Voice    synth.VoiceSelection `json:"voice" mapstructure:"voice"`
	Speaker  int                  `json:"speaker" mapstructure:"speaker"`
}

// Default cloud voice, applied when a user never configured one.
var defaultVoice = synth.VoiceSelection{
	LanguageCode: "ja-JP",
	Name:         "ja-JP-Wavenet-B",
	SSMLGender:   "neutral",
}

// VoiceOrDefault returns the configured cloud voice or the service default.
func (c UserConfig) VoiceOrDefault() synth.VoiceSelection {
	if c.Voice.Name == "" {
		return defaultVoice
	}
	return c.Voice
}

// Store fetches narration configuration. Implementations return zero-value
// configs, not errors, when a key is absent.
type Store interface {
	GetServerConfig(ctx context.Context, guildID string) (ServerConfig, error)
	GetUserConfig(ctx context.Context, userID string) (UserConfig, error)
}
