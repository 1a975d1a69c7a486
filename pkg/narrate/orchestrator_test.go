package narrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/morioka22/ncb-tts-r2/pkg/configstore"
	"github.com/morioka22/ncb-tts-r2/pkg/metrics"
	"github.com/morioka22/ncb-tts-r2/pkg/playback"
	"github.com/morioka22/ncb-tts-r2/pkg/synth"
)

type captureProvider struct {
	name string
	mu   sync.Mutex
	reqs []synth.Request
	err  error
}

func (p *captureProvider) Name() string { return p.name }

func (p *captureProvider) Synthesize(_ context.Context, req synth.Request) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return nil, p.err
	}
	return []byte("audio:" + req.Text), nil
}

func (p *captureProvider) Requests() []synth.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]synth.Request, len(p.reqs))
	copy(out, p.reqs)
	return out
}

type fakeArtifacts struct {
	mu    sync.Mutex
	count int
	err   error
}

func (f *fakeArtifacts) Store(audio []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.count++
	return fmt.Sprintf("audio/test-%d.mp3", f.count), nil
}

type fixture struct {
	orch      *Orchestrator
	registry  *Registry
	configs   *configstore.MemoryStore
	cloud     *captureProvider
	local     *captureProvider
	connector *playback.MockConnector
	obs       *metrics.InMemoryObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry:  NewRegistry(),
		configs:   configstore.NewMemoryStore(),
		cloud:     &captureProvider{name: "cloud_tts"},
		local:     &captureProvider{name: "local_tts"},
		connector: playback.NewMockConnector(),
		obs:       metrics.NewInMemoryObserver(),
	}
	f.orch = NewOrchestrator(
		f.registry,
		f.configs,
		synth.NewDispatcher(f.cloud, f.local),
		&fakeArtifacts{},
		f.connector,
		Options{Observer: f.obs},
	)
	return f
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.orch.Setup(ctx, "G", "text-3", "voice-7"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	joins := f.connector.CallsByOp("join")
	if len(joins) != 1 || joins[0].VoiceChannelID != "voice-7" {
		t.Fatalf("expected join of voice-7, got %+v", joins)
	}

	f.orch.HandleMessage(Message{
		GuildID:           "G",
		AuthorID:          "U1",
		AuthorDisplayName: "Umi",
		Content:           "hello",
	})
	if err := f.orch.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	enqueues := f.connector.CallsByOp("enqueue")
	if len(enqueues) != 1 {
		t.Fatalf("expected one handoff, got %d", len(enqueues))
	}
	if enqueues[0].GuildID != "G" || !strings.HasSuffix(enqueues[0].FilePath, ".mp3") {
		t.Fatalf("unexpected handoff %+v", enqueues[0])
	}
	if got := f.obs.CountByName(metrics.EventNarrated); got != 1 {
		t.Fatalf("expected 1 narrated event, got %d", got)
	}

	if err := f.orch.Stop(ctx, "G"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(f.connector.CallsByOp("leave")) != 1 {
		t.Fatalf("expected leave after stop")
	}

	// After stop the guild is inactive; messages drop silently.
	f.orch.HandleMessage(Message{GuildID: "G", AuthorID: "U1", Content: "again"})
	if err := f.orch.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := len(f.connector.CallsByOp("enqueue")); got != 1 {
		t.Fatalf("expected no handoff after stop, got %d", got)
	}
}

func TestPipelineSetupRollsBackOnJoinFailure(t *testing.T) {
	f := newFixture(t)
	f.connector.Fail(errors.New("no such channel"))

	if err := f.orch.Setup(context.Background(), "G", "t", "v"); err == nil {
		t.Fatalf("expected setup failure")
	}
	if _, ok := f.registry.Lookup("G"); ok {
		t.Fatalf("expected registry rollback after join failure")
	}
}

func TestPipelineSecondSetupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.orch.Setup(ctx, "G", "t", "v"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := f.orch.Setup(ctx, "G", "t", "v"); !errors.Is(err, ErrAlreadySetUp) {
		t.Fatalf("expected AlreadySetUp, got %v", err)
	}
	if err := f.orch.Stop(ctx, "missing"); !errors.Is(err, ErrNotSetUp) {
		t.Fatalf("expected NotSetUp, got %v", err)
	}
}

func TestPipelineOrderingWithinGuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.orch.Setup(ctx, "G", "t", "v"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	for i := 0; i < 10; i++ {
		f.orch.HandleMessage(Message{
			GuildID:           "G",
			AuthorID:          "U1",
			AuthorDisplayName: "Umi",
			Content:           fmt.Sprintf("msg-%d", i),
		})
	}
	if err := f.orch.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	reqs := f.cloud.Requests()
	if len(reqs) != 10 {
		t.Fatalf("expected 10 synthesized utterances, got %d", len(reqs))
	}
	for i, req := range reqs {
		if !strings.Contains(req.Text, fmt.Sprintf("msg-%d", i)) {
			t.Fatalf("utterance %d out of order: %q", i, req.Text)
		}
	}
	// Only the first utterance announces the speaker.
	if !strings.Contains(reqs[0].Text, "Umi's remark") {
		t.Fatalf("expected speaker prefix on first utterance: %q", reqs[0].Text)
	}
	if strings.Contains(reqs[1].Text, "Umi's remark") {
		t.Fatalf("unexpected speaker prefix on continuation: %q", reqs[1].Text)
	}
}

func TestPipelineProviderSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.orch.Setup(ctx, "G", "t", "v"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	f.configs.PutUserConfig("U2", configstore.UserConfig{Provider: synth.ChoiceLocal, Speaker: 8})

	f.orch.HandleMessage(Message{GuildID: "G", AuthorID: "U1", AuthorDisplayName: "A", Content: "cloud"})
	f.orch.HandleMessage(Message{GuildID: "G", AuthorID: "U2", AuthorDisplayName: "B", Content: "local"})
	if err := f.orch.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if got := len(f.cloud.Requests()); got != 1 {
		t.Fatalf("expected 1 cloud request, got %d", got)
	}
	localReqs := f.local.Requests()
	if len(localReqs) != 1 {
		t.Fatalf("expected 1 local request, got %d", len(localReqs))
	}
	if localReqs[0].Speaker != 8 {
		t.Fatalf("expected configured speaker, got %d", localReqs[0].Speaker)
	}
}

func TestPipelineDictionaryApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.orch.Setup(ctx, "G", "t", "v"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := f.configs.PutServerConfig("G", configstore.ServerConfig{
		Dictionary: []configstore.DictionaryRule{
			{Pattern: "www", Replacement: "laughing"},
		},
	}); err != nil {
		t.Fatalf("put server config: %v", err)
	}

	f.orch.HandleMessage(Message{GuildID: "G", AuthorID: "U1", AuthorDisplayName: "A", Content: "www"})
	if err := f.orch.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	reqs := f.cloud.Requests()
	if len(reqs) != 1 || !strings.Contains(reqs[0].Text, "laughing") {
		t.Fatalf("expected dictionary applied, got %+v", reqs)
	}
}

func TestPipelineProviderFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.orch.Setup(ctx, "G", "t", "v"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	f.cloud.err = errors.New("quota exceeded")

	f.orch.HandleMessage(Message{GuildID: "G", AuthorID: "U1", AuthorDisplayName: "A", Content: "hi"})
	if err := f.orch.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if got := len(f.connector.CallsByOp("enqueue")); got != 0 {
		t.Fatalf("expected no handoff on provider failure, got %d", got)
	}
	if _, ok := f.registry.Lookup("G"); !ok {
		t.Fatalf("provider failure must not tear down the session")
	}
	if got := f.obs.CountByName(metrics.EventDropped); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}
}

func TestPipelineDisconnectPurgesSession(t *testing.T) {
	f := newFixture(t)
	if err := f.orch.Setup(context.Background(), "G", "t", "v"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	f.orch.HandleDisconnect("G")
	if _, ok := f.registry.Lookup("G"); ok {
		t.Fatalf("expected registry purge on disconnect")
	}
	// A second disconnect for the same guild is a no-op.
	f.orch.HandleDisconnect("G")
}
