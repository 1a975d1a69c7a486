// Package mock provides a deterministic synthesis provider for tests and
// dry runs.
package mock

import (
	"context"
	"sync"

	"github.com/morioka22/ncb-tts-r2/pkg/synth"
)

type Provider struct {
	mu       sync.Mutex
	requests []synth.Request
	audio    []byte
	err      error
}

func New() *Provider {
	return &Provider{audio: []byte("mock-audio")}
}

func (p *Provider) Name() string { return "mock_tts" }

// SetAudio overrides the bytes returned by Synthesize.
func (p *Provider) SetAudio(audio []byte) {
	p.mu.Lock()
	p.audio = audio
	p.mu.Unlock()
}

// Fail makes every subsequent Synthesize call return err.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *Provider) Synthesize(_ context.Context, req synth.Request) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	out := make([]byte, len(p.audio))
	copy(out, p.audio)
	return out, nil
}

// Requests returns a copy of all requests seen so far.
func (p *Provider) Requests() []synth.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]synth.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

var _ synth.Provider = (*Provider)(nil)
