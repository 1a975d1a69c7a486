// Package synth defines the contract between the narration pipeline and
// speech-synthesis providers.
package synth

import (
	"context"
	"strings"
)

// PauseMarker is a short speech pause directive understood by the cloud
// provider's markup dialect. Literal chat text must be escaped before markers
// are inserted so message content can never smuggle markup in.
const PauseMarker = `<break time="200ms"/>`

// VoiceSelection picks a cloud voice.
type VoiceSelection struct {
	LanguageCode string `json:"languageCode" mapstructure:"language_code"`
	Name         string `json:"name" mapstructure:"name"`
	SSMLGender   string `json:"ssmlGender" mapstructure:"ssml_gender"`
}

// AudioConfig fixes the encoding parameters of a synthesis request.
type AudioConfig struct {
	Encoding     string  `json:"audioEncoding" mapstructure:"encoding"`
	SpeakingRate float64 `json:"speakingRate" mapstructure:"speaking_rate"`
	Pitch        float64 `json:"pitch" mapstructure:"pitch"`
}

// Request is the per-utterance payload handed to a provider. Text carries
// escaped literal content plus PauseMarker fragments; each provider converts
// that to its own dialect.
type Request struct {
	Text    string
	Voice   VoiceSelection
	Audio   AudioConfig
	Speaker int
}

// Provider is a speech-synthesis backend. Synthesize returns raw audio bytes
// in the encoding the provider produces; failures are reason-coded and are
// never retried here.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

var markupUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// EscapeText escapes literal text for inclusion in marked-up synthesis input.
func EscapeText(text string) string {
	return markupEscaper.Replace(text)
}

// UnescapeText reverses EscapeText for providers that consume plain text.
func UnescapeText(text string) string {
	return markupUnescaper.Replace(text)
}
