package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
)

// Subjects the voice connector process listens on.
const (
	SubjectJoin    = "ncb.playback.join"
	SubjectLeave   = "ncb.playback.leave"
	SubjectEnqueue = "ncb.playback.enqueue"
)

// Command is the wire form of a playback instruction.
type Command struct {
	GuildID        string `json:"guild_id"`
	VoiceChannelID string `json:"voice_channel_id,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
}

// NATSConnector publishes playback commands to the external voice connector
// over the bus.
type NATSConnector struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewNATSConnector(conn *nats.Conn, logger *slog.Logger) *NATSConnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSConnector{
		conn:   conn,
		logger: logger.With(slog.String("component", "playback_connector")),
	}
}

func (c *NATSConnector) Join(_ context.Context, guildID, voiceChannelID string) error {
	return c.publish(SubjectJoin, Command{GuildID: guildID, VoiceChannelID: voiceChannelID})
}

func (c *NATSConnector) Leave(_ context.Context, guildID string) error {
	return c.publish(SubjectLeave, Command{GuildID: guildID})
}

func (c *NATSConnector) Enqueue(_ context.Context, guildID, filePath string) error {
	return c.publish(SubjectEnqueue, Command{GuildID: guildID, FilePath: filePath})
}

func (c *NATSConnector) publish(subject string, cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPlaybackSend)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return errorsx.Wrap(fmt.Errorf("publish %s: %w", subject, err), errorsx.ReasonPlaybackSend)
	}
	c.logger.Debug("published playback command",
		slog.String("subject", subject),
		slog.String("guild_id", cmd.GuildID))
	return nil
}

var _ Connector = (*NATSConnector)(nil)
