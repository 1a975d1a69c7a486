package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
)

// Event types carried by the gateway envelope.
const (
	TypeMessage    = "message"
	TypeCommand    = "command"
	TypeDisconnect = "disconnect"
)

// Command names accepted on command events.
const (
	CommandSetup = "setup"
	CommandStop  = "stop"
)

// MessageEvent is a chat message observed in a guild text channel.
type MessageEvent struct {
	GuildID           string `json:"guild_id"`
	ChannelID         string `json:"channel_id"`
	AuthorID          string `json:"author_id"`
	AuthorDisplayName string `json:"author_display_name"`
	AuthorIsBot       bool   `json:"author_is_bot"`
	Content           string `json:"content"`
	AttachmentCount   int    `json:"attachment_count"`
}

// CommandEvent is a user-issued narration command. GuildID is empty when the
// command was sent outside a guild; VoiceChannelID is empty when the issuing
// user is not connected to a voice channel.
type CommandEvent struct {
	Command        string `json:"command"`
	GuildID        string `json:"guild_id"`
	ChannelID      string `json:"channel_id"`
	UserID         string `json:"user_id"`
	VoiceChannelID string `json:"voice_channel_id"`
}

// DisconnectEvent reports that the guild's voice connection is gone.
type DisconnectEvent struct {
	GuildID string `json:"guild_id"`
}

// Reply is the user-facing response to a command event.
type Reply struct {
	Text      string `json:"text"`
	Ephemeral bool   `json:"ephemeral"`
}

// Envelope is the wire format shared by the gateway sources. Exactly one
// payload field is set, matching Type.
type Envelope struct {
	Type       string           `json:"type"`
	ID         string           `json:"id,omitempty"`
	Message    *MessageEvent    `json:"message,omitempty"`
	Command    *CommandEvent    `json:"command,omitempty"`
	Disconnect *DisconnectEvent `json:"disconnect,omitempty"`
}

// DecodeEnvelope parses and validates a raw gateway event.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errorsx.Wrap(err, errorsx.ReasonGatewayDecode)
	}
	switch env.Type {
	case TypeMessage:
		if env.Message == nil {
			return Envelope{}, errorsx.Wrap(fmt.Errorf("message envelope without payload"), errorsx.ReasonGatewayDecode)
		}
	case TypeCommand:
		if env.Command == nil {
			return Envelope{}, errorsx.Wrap(fmt.Errorf("command envelope without payload"), errorsx.ReasonGatewayDecode)
		}
	case TypeDisconnect:
		if env.Disconnect == nil {
			return Envelope{}, errorsx.Wrap(fmt.Errorf("disconnect envelope without payload"), errorsx.ReasonGatewayDecode)
		}
	default:
		return Envelope{}, errorsx.Wrap(fmt.Errorf("unknown envelope type %q", env.Type), errorsx.ReasonGatewayDecode)
	}
	return env, nil
}
