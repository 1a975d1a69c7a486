package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/morioka22/ncb-tts-r2/pkg/narrate"
)

// User-facing command replies. All replies are ephemeral.
const (
	ReplyGuildOnly     = "This command can only be used in a server."
	ReplyNoVoice       = "Join a voice channel first."
	ReplyAlreadySetUp  = "Narration is already set up in this server."
	ReplyNotSetUp      = "Narration is not set up in this server."
	ReplySetupOK       = "Narration started. Messages in this channel will be read aloud."
	ReplyStopOK        = "Narration stopped."
	ReplySetupFailed   = "Could not join the voice channel. Try again."
	ReplyStopFailed    = "Could not stop narration. Try again."
	ReplyUnknownAction = "Unknown command."
)

// Narrator is the pipeline surface the gateway drives.
type Narrator interface {
	Setup(ctx context.Context, guildID, textChannelID, voiceChannelID string) error
	Stop(ctx context.Context, guildID string) error
	HandleDisconnect(guildID string)
	HandleMessage(msg narrate.Message)
}

// SessionLookup reports whether a guild has an active session.
type SessionLookup interface {
	Lookup(guildID string) (narrate.Session, bool)
}

// Dispatcher validates gateway events and routes them to the narrator.
// Sources (NATS, websocket) decode the wire format and hand envelopes here.
type Dispatcher struct {
	narrator Narrator
	sessions SessionLookup
	logger   *slog.Logger
}

func NewDispatcher(narrator Narrator, sessions SessionLookup, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		narrator: narrator,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "gateway")),
	}
}

// HandleMessage forwards a chat message to the pipeline. Bot-authored
// messages and messages outside the session's configured text channel are
// ignored.
func (d *Dispatcher) HandleMessage(ev MessageEvent) {
	if ev.AuthorIsBot || ev.GuildID == "" {
		return
	}
	session, ok := d.sessions.Lookup(ev.GuildID)
	if !ok || session.TextChannelID != ev.ChannelID {
		return
	}
	d.narrator.HandleMessage(narrate.Message{
		GuildID:           ev.GuildID,
		AuthorID:          ev.AuthorID,
		AuthorDisplayName: ev.AuthorDisplayName,
		Content:           ev.Content,
		AttachmentCount:   ev.AttachmentCount,
	})
}

// HandleCommand runs a setup or stop command and returns the user-facing
// reply.
func (d *Dispatcher) HandleCommand(ctx context.Context, ev CommandEvent) Reply {
	if ev.GuildID == "" {
		return Reply{Text: ReplyGuildOnly, Ephemeral: true}
	}
	switch ev.Command {
	case CommandSetup:
		return d.setup(ctx, ev)
	case CommandStop:
		return d.stop(ctx, ev)
	default:
		return Reply{Text: ReplyUnknownAction, Ephemeral: true}
	}
}

func (d *Dispatcher) setup(ctx context.Context, ev CommandEvent) Reply {
	if ev.VoiceChannelID == "" {
		return Reply{Text: ReplyNoVoice, Ephemeral: true}
	}
	err := d.narrator.Setup(ctx, ev.GuildID, ev.ChannelID, ev.VoiceChannelID)
	switch {
	case err == nil:
		return Reply{Text: ReplySetupOK, Ephemeral: true}
	case errors.Is(err, narrate.ErrAlreadySetUp):
		return Reply{Text: ReplyAlreadySetUp, Ephemeral: true}
	default:
		d.logger.Error("setup command failed",
			slog.String("guild_id", ev.GuildID),
			slog.String("error", err.Error()))
		return Reply{Text: ReplySetupFailed, Ephemeral: true}
	}
}

func (d *Dispatcher) stop(ctx context.Context, ev CommandEvent) Reply {
	err := d.narrator.Stop(ctx, ev.GuildID)
	switch {
	case err == nil:
		return Reply{Text: ReplyStopOK, Ephemeral: true}
	case errors.Is(err, narrate.ErrNotSetUp):
		return Reply{Text: ReplyNotSetUp, Ephemeral: true}
	default:
		d.logger.Error("stop command failed",
			slog.String("guild_id", ev.GuildID),
			slog.String("error", err.Error()))
		return Reply{Text: ReplyStopFailed, Ephemeral: true}
	}
}

// HandleDisconnect purges the guild's session.
func (d *Dispatcher) HandleDisconnect(ev DisconnectEvent) {
	if ev.GuildID == "" {
		return
	}
	d.narrator.HandleDisconnect(ev.GuildID)
}

// Dispatch routes a decoded envelope. Command envelopes return a non-nil
// reply for the source to deliver.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) *Reply {
	switch env.Type {
	case TypeMessage:
		d.HandleMessage(*env.Message)
	case TypeCommand:
		reply := d.HandleCommand(ctx, *env.Command)
		return &reply
	case TypeDisconnect:
		d.HandleDisconnect(*env.Disconnect)
	}
	return nil
}
