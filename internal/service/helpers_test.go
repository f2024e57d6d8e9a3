package service

import (
	"context"
	"errors"
	"sync"

	"github.com/GoPolymarket/attestgate/internal/llm"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/shopspring/decimal"
)

// scriptedLLM answers prompts in order; when replies run out it repeats the
// last one. A reply of "!error" fails the call.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	prompts []llm.Prompt
}

func newScriptedLLM(replies ...string) *scriptedLLM {
	return &scriptedLLM{replies: replies}
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	if reply == "!error" {
		return "", errors.New("advisory unavailable")
	}
	return reply, nil
}

func (s *scriptedLLM) Provider() string { return "scripted" }
func (s *scriptedLLM) Model() string    { return "test" }

func (s *scriptedLLM) Prompts() []llm.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Prompt(nil), s.prompts...)
}

type staticPrices map[string]decimal.Decimal

func (p staticPrices) Price(ctx context.Context, pair string) (decimal.Decimal, error) {
	price, ok := p[pair]
	if !ok {
		return decimal.Zero, errors.New("unknown pair " + pair)
	}
	return price, nil
}

type stubRetriever struct {
	trades []model.TradeWindowEntry
	err    error
	calls  []string
}

func (s *stubRetriever) FetchContext(ctx context.Context, symbol string) ([]model.TradeWindowEntry, error) {
	s.calls = append(s.calls, symbol)
	return s.trades, s.err
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []model.AttestationPayload
	accept   bool
}

func (p *recordingPublisher) Publish(ctx context.Context, payload model.AttestationPayload) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.accept
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func floatPtr(v float64) *float64 {
	return &v
}
