package narrate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/morioka22/ncb-tts-r2/pkg/configstore"
	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
	"github.com/morioka22/ncb-tts-r2/pkg/metrics"
	"github.com/morioka22/ncb-tts-r2/pkg/playback"
	"github.com/morioka22/ncb-tts-r2/pkg/synth"
)

// Message is an inbound chat message to narrate.
type Message struct {
	GuildID           string
	AuthorID          string
	AuthorDisplayName string
	Content           string
	AttachmentCount   int
}

// Artifacts persists synthesized audio and returns a playable path.
type Artifacts interface {
	Store(audio []byte) (string, error)
}

// Options tunes the orchestrator. Zero values select service defaults.
type Options struct {
	Audio     synth.AudioConfig
	QueueSize int
	Observer  metrics.Observer
	Logger    *slog.Logger
}

const defaultQueueSize = 64

// DefaultAudioConfig matches the service's fixed encoding parameters.
func DefaultAudioConfig() synth.AudioConfig {
	return synth.AudioConfig{Encoding: "mp3", SpeakingRate: 1.2, Pitch: 1.0}
}

// Orchestrator runs the per-message pipeline: resolve session, fetch configs,
// transform, attribute, dispatch, persist, hand off. Messages for one guild
// are processed by a single worker, so narration order matches arrival order;
// different guilds run concurrently. The session lock is held only for the
// attribute step, never across synthesis or playback I/O.
type Orchestrator struct {
	registry   *Registry
	configs    configstore.Store
	dispatcher *synth.Dispatcher
	artifacts  Artifacts
	playback   playback.Connector

	audio     synth.AudioConfig
	queueSize int
	obs       metrics.Observer
	logger    *slog.Logger

	mu       sync.Mutex
	queues   map[string]chan Message
	draining bool
	wg       sync.WaitGroup
}

func NewOrchestrator(
	registry *Registry,
	configs configstore.Store,
	dispatcher *synth.Dispatcher,
	artifacts Artifacts,
	connector playback.Connector,
	opts Options,
) *Orchestrator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Audio.Encoding == "" {
		opts.Audio = DefaultAudioConfig()
	}
	if opts.Observer == nil {
		opts.Observer = metrics.NoopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		registry:   registry,
		configs:    configs,
		dispatcher: dispatcher,
		artifacts:  artifacts,
		playback:   connector,
		audio:      opts.Audio,
		queueSize:  opts.QueueSize,
		obs:        opts.Observer,
		logger:     opts.Logger.With(slog.String("component", "orchestrator")),
		queues:     make(map[string]chan Message),
	}
}

// Setup creates a session for the guild and joins its voice channel. The
// registry entry is rolled back if the join fails, so a session always
// implies a live voice connection.
func (o *Orchestrator) Setup(ctx context.Context, guildID, textChannelID, voiceChannelID string) error {
	if _, err := o.registry.Create(guildID, textChannelID, voiceChannelID); err != nil {
		return err
	}
	if err := o.playback.Join(ctx, guildID, voiceChannelID); err != nil {
		_, _ = o.registry.Remove(guildID)
		return errorsx.Wrap(err, errorsx.ReasonPlaybackSend)
	}
	o.logger.Info("session created",
		slog.String("guild_id", guildID),
		slog.String("voice_channel_id", voiceChannelID))
	return nil
}

// Stop tears down the guild's session and leaves the voice channel.
func (o *Orchestrator) Stop(ctx context.Context, guildID string) error {
	if _, err := o.registry.Remove(guildID); err != nil {
		return err
	}
	o.dropQueue(guildID)
	if err := o.playback.Leave(ctx, guildID); err != nil {
		o.logger.Warn("leave failed after session removal",
			slog.String("guild_id", guildID),
			slog.String("error", err.Error()))
	}
	o.logger.Info("session stopped", slog.String("guild_id", guildID))
	return nil
}

// HandleDisconnect purges the registry entry when the voice transport reports
// the guild's connection is gone.
func (o *Orchestrator) HandleDisconnect(guildID string) {
	if _, err := o.registry.Remove(guildID); err != nil {
		return
	}
	o.dropQueue(guildID)
	o.logger.Info("session purged after disconnect", slog.String("guild_id", guildID))
}

// HandleMessage enqueues a chat message for narration. Messages for guilds
// without an active session are dropped silently.
func (o *Orchestrator) HandleMessage(msg Message) {
	if _, ok := o.registry.Lookup(msg.GuildID); !ok {
		return
	}

	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return
	}
	queue, ok := o.queues[msg.GuildID]
	if !ok {
		queue = make(chan Message, o.queueSize)
		o.queues[msg.GuildID] = queue
		o.wg.Add(1)
		go o.worker(queue)
	}
	select {
	case queue <- msg:
		o.mu.Unlock()
	default:
		o.mu.Unlock()
		o.logger.Warn("narration queue full, dropping message",
			slog.String("guild_id", msg.GuildID))
		o.recordDrop(msg.GuildID, "queue_full")
	}
}

// Drain stops accepting messages and waits for in-flight narration to finish.
func (o *Orchestrator) Drain() error {
	o.mu.Lock()
	o.draining = true
	for guildID, queue := range o.queues {
		close(queue)
		delete(o.queues, guildID)
	}
	o.mu.Unlock()
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) dropQueue(guildID string) {
	o.mu.Lock()
	if queue, ok := o.queues[guildID]; ok {
		close(queue)
		delete(o.queues, guildID)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) worker(queue chan Message) {
	defer o.wg.Done()
	for msg := range queue {
		o.process(context.Background(), msg)
	}
}

func (o *Orchestrator) process(ctx context.Context, msg Message) {
	serverCfg, err := o.configs.GetServerConfig(ctx, msg.GuildID)
	if err != nil {
		o.drop(msg, errorsx.Wrap(err, errorsx.ReasonConfigFetch))
		return
	}
	userCfg, err := o.configs.GetUserConfig(ctx, msg.AuthorID)
	if err != nil {
		o.drop(msg, errorsx.Wrap(err, errorsx.ReasonConfigFetch))
		return
	}

	text := ApplyDictionary(serverCfg.Dictionary, msg.Content, func(rule configstore.DictionaryRule, ruleErr error) {
		o.logger.Warn("skipping malformed dictionary rule",
			slog.String("guild_id", msg.GuildID),
			slog.String("pattern", rule.Pattern),
			slog.String("error", ruleErr.Error()))
		o.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventRuleSkipped,
			Time: time.Now(),
			Tags: map[string]string{"guild_id": msg.GuildID},
		})
	})

	var utterance string
	err = o.registry.Mutate(msg.GuildID, func(session Session) Session {
		var last LastMessage
		utterance, last = Attribute(session.Last, msg.AuthorID, msg.AuthorDisplayName, text, msg.AttachmentCount)
		session.Last = &last
		return session
	})
	if err != nil {
		// Session torn down while the message was queued.
		return
	}

	provider := o.dispatcher.Select(userCfg.Provider)
	req := synth.Request{
		Text:    utterance,
		Voice:   userCfg.VoiceOrDefault(),
		Audio:   o.audio,
		Speaker: userCfg.Speaker,
	}

	started := time.Now()
	audio, err := provider.Synthesize(ctx, req)
	if err != nil {
		o.drop(msg, err)
		return
	}
	o.obs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventSynthesisTime,
		Time:  time.Now(),
		Value: float64(time.Since(started).Milliseconds()),
		Tags:  map[string]string{"guild_id": msg.GuildID, "provider": provider.Name()},
	})

	path, err := o.artifacts.Store(audio)
	if err != nil {
		o.drop(msg, err)
		return
	}

	// The session may have been torn down mid-synthesis; the finished
	// artifact is discarded and left to the sweeper.
	if _, ok := o.registry.Lookup(msg.GuildID); !ok {
		o.logger.Debug("session gone at handoff, discarding artifact",
			slog.String("guild_id", msg.GuildID),
			slog.String("file_path", path))
		return
	}

	if err := o.playback.Enqueue(ctx, msg.GuildID, path); err != nil {
		o.drop(msg, errorsx.Wrap(err, errorsx.ReasonPlaybackSend))
		return
	}

	o.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventNarrated,
		Time: time.Now(),
		Tags: map[string]string{"guild_id": msg.GuildID, "provider": provider.Name()},
	})
}

// drop logs a failed utterance and records it. Background narration has no
// user-facing surface; nothing here tears down the session.
func (o *Orchestrator) drop(msg Message, err error) {
	o.logger.Error("dropping utterance",
		slog.String("guild_id", msg.GuildID),
		slog.String("author_id", msg.AuthorID),
		slog.String("reason_code", string(errorsx.Reason(err))),
		slog.String("error", err.Error()))
	o.recordDrop(msg.GuildID, string(errorsx.Reason(err)))
}

func (o *Orchestrator) recordDrop(guildID, reason string) {
	o.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventDropped,
		Time: time.Now(),
		Tags: map[string]string{"guild_id": guildID, "reason": reason},
	})
}
