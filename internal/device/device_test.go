package device

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memPrefs struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemPrefs() *memPrefs {
	return &memPrefs{values: make(map[string]string)}
}

func (p *memPrefs) Get(key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", false, p.err
	}
	v, ok := p.values[key]
	return v, ok, nil
}

func (p *memPrefs) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.values[key] = value
	return nil
}

func (p *memPrefs) Delete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
	return nil
}

type sentText struct {
	to, body string
}

type fakeTelephony struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (t *fakeTelephony) SendText(ctx context.Context, to, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentText{to, body})
	return t.err
}

func (t *fakeTelephony) Sent() []sentText {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentText(nil), t.sent...)
}

type fakeTones struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (p *fakeTones) PlayTone(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, d)
	return nil
}

func (p *fakeTones) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeBridge struct {
	mu     sync.Mutex
	events []MissedCallEvent
	err    error
}

func (b *fakeBridge) Dispatch(ctx context.Context, ev MissedCallEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return b.err
}

func (b *fakeBridge) Events() []MissedCallEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]MissedCallEvent(nil), b.events...)
}

type recordingSubmitter struct {
	missed   []MissedCallRequest
	classify []SMS
	err      error
}

func (s *recordingSubmitter) SubmitMissedCall(ctx context.Context, req MissedCallRequest) error {
	s.missed = append(s.missed, req)
	return s.err
}

func (s *recordingSubmitter) SubmitClassify(ctx context.Context, msg SMS) error {
	s.classify = append(s.classify, msg)
	return s.err
}

type stubChecker struct {
	mu      sync.Mutex
	verdict Verdict
	err     error
	texts   []string
}

func (c *stubChecker) Check(ctx context.Context, text string) (Verdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return c.verdict, c.err
}

var errBoom = errors.New("boom")
