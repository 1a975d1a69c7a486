package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
	"github.com/morioka22/ncb-tts-r2/pkg/narrate"
)

type fakeNarrator struct {
	setupErr    error
	stopErr     error
	setups      []CommandEvent
	messages    []narrate.Message
	disconnects []string
}

func (f *fakeNarrator) Setup(_ context.Context, guildID, textChannelID, voiceChannelID string) error {
	f.setups = append(f.setups, CommandEvent{GuildID: guildID, ChannelID: textChannelID, VoiceChannelID: voiceChannelID})
	return f.setupErr
}

func (f *fakeNarrator) Stop(_ context.Context, guildID string) error {
	return f.stopErr
}

func (f *fakeNarrator) HandleDisconnect(guildID string) {
	f.disconnects = append(f.disconnects, guildID)
}

func (f *fakeNarrator) HandleMessage(msg narrate.Message) {
	f.messages = append(f.messages, msg)
}

func TestCommandValidationReplies(t *testing.T) {
	tests := []struct {
		name      string
		narrator  *fakeNarrator
		event     CommandEvent
		wantReply string
	}{
		{
			name:      "setup outside a guild",
			narrator:  &fakeNarrator{},
			event:     CommandEvent{Command: CommandSetup, VoiceChannelID: "v"},
			wantReply: ReplyGuildOnly,
		},
		{
			name:      "setup without a voice channel",
			narrator:  &fakeNarrator{},
			event:     CommandEvent{Command: CommandSetup, GuildID: "G", ChannelID: "t"},
			wantReply: ReplyNoVoice,
		},
		{
			name:      "setup succeeds",
			narrator:  &fakeNarrator{},
			event:     CommandEvent{Command: CommandSetup, GuildID: "G", ChannelID: "t", VoiceChannelID: "v"},
			wantReply: ReplySetupOK,
		},
		{
			name:      "setup on active session",
			narrator:  &fakeNarrator{setupErr: narrate.ErrAlreadySetUp},
			event:     CommandEvent{Command: CommandSetup, GuildID: "G", ChannelID: "t", VoiceChannelID: "v"},
			wantReply: ReplyAlreadySetUp,
		},
		{
			name:      "setup join failure",
			narrator:  &fakeNarrator{setupErr: errorsx.Wrap(errors.New("no route"), errorsx.ReasonPlaybackSend)},
			event:     CommandEvent{Command: CommandSetup, GuildID: "G", ChannelID: "t", VoiceChannelID: "v"},
			wantReply: ReplySetupFailed,
		},
		{
			name:      "stop succeeds",
			narrator:  &fakeNarrator{},
			event:     CommandEvent{Command: CommandStop, GuildID: "G"},
			wantReply: ReplyStopOK,
		},
		{
			name:      "stop without session",
			narrator:  &fakeNarrator{stopErr: narrate.ErrNotSetUp},
			event:     CommandEvent{Command: CommandStop, GuildID: "G"},
			wantReply: ReplyNotSetUp,
		},
		{
			name:      "unknown command",
			narrator:  &fakeNarrator{},
			event:     CommandEvent{Command: "dance", GuildID: "G"},
			wantReply: ReplyUnknownAction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(tt.narrator, narrate.NewRegistry(), nil)
			reply := d.HandleCommand(context.Background(), tt.event)
			if reply.Text != tt.wantReply {
				t.Fatalf("reply = %q, want %q", reply.Text, tt.wantReply)
			}
			if !reply.Ephemeral {
				t.Fatalf("command replies must be ephemeral")
			}
		})
	}
}

func TestMessageFiltering(t *testing.T) {
	registry := narrate.NewRegistry()
	if _, err := registry.Create("G", "text-1", "voice-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	narrator := &fakeNarrator{}
	d := NewDispatcher(narrator, registry, nil)

	// Wrong channel, bot author, and inactive guild are all ignored.
	d.HandleMessage(MessageEvent{GuildID: "G", ChannelID: "text-2", AuthorID: "U", Content: "hi"})
	d.HandleMessage(MessageEvent{GuildID: "G", ChannelID: "text-1", AuthorID: "B", AuthorIsBot: true, Content: "hi"})
	d.HandleMessage(MessageEvent{GuildID: "other", ChannelID: "text-1", AuthorID: "U", Content: "hi"})
	if len(narrator.messages) != 0 {
		t.Fatalf("expected all messages filtered, got %d", len(narrator.messages))
	}

	d.HandleMessage(MessageEvent{GuildID: "G", ChannelID: "text-1", AuthorID: "U", AuthorDisplayName: "Umi", Content: "hi", AttachmentCount: 1})
	if len(narrator.messages) != 1 {
		t.Fatalf("expected one forwarded message, got %d", len(narrator.messages))
	}
	got := narrator.messages[0]
	if got.GuildID != "G" || got.AuthorID != "U" || got.Content != "hi" || got.AttachmentCount != 1 {
		t.Fatalf("unexpected forwarded message %+v", got)
	}
}

func TestDisconnectDispatch(t *testing.T) {
	narrator := &fakeNarrator{}
	d := NewDispatcher(narrator, narrate.NewRegistry(), nil)
	d.HandleDisconnect(DisconnectEvent{GuildID: "G"})
	d.HandleDisconnect(DisconnectEvent{})
	if len(narrator.disconnects) != 1 || narrator.disconnects[0] != "G" {
		t.Fatalf("unexpected disconnects %v", narrator.disconnects)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"command","id":"42","command":{"command":"setup","guild_id":"G","channel_id":"t","voice_channel_id":"v"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != TypeCommand || env.ID != "42" || env.Command.GuildID != "G" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	bad := [][]byte{
		[]byte(`not json`),
		[]byte(`{"type":"command"}`),
		[]byte(`{"type":"message"}`),
		[]byte(`{"type":"teleport","message":{}}`),
	}
	for _, data := range bad {
		if _, err := DecodeEnvelope(data); !errorsx.HasReason(err, errorsx.ReasonGatewayDecode) {
			t.Fatalf("expected gateway_decode for %q, got %v", data, err)
		}
	}
}
