package inference

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync/atomic"
)

// stubPNG is a 1x1 transparent PNG.
const stubPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

// StubChatText is the fixed answer of the stub client.
const StubChatText = "Halo! Ini jawaban dari mode testing, belum nyambung ke model beneran."

// StubClient is a deterministic Service used in tests and with INFERENCE_USE_MOCK.
// It never touches the network.
type StubClient struct {
	logger *slog.Logger

	chatCalls  atomic.Int64
	imageCalls atomic.Int64
	closed     atomic.Bool
}

// NewStubClient creates a stub client.
func NewStubClient(logger *slog.Logger) *StubClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubClient{logger: logger}
}

// GenerateChatResponse returns StubChatText.
func (s *StubClient) GenerateChatResponse(ctx context.Context, prompt string, temperature float64) (ChatReply, error) {
	if s.closed.Load() {
		return ChatReply{}, ErrClientClosed
	}
	s.chatCalls.Add(1)
	s.logger.Info("stub: generating chat response", slog.Int("prompt_length", len(prompt)))
	return ChatReply{Text: StubChatText}, nil
}

// GenerateImage returns a 1x1 PNG.
func (s *StubClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClientClosed
	}
	s.imageCalls.Add(1)
	s.logger.Info("stub: generating image", slog.Int("prompt_length", len(prompt)))
	return base64.StdEncoding.DecodeString(stubPNG)
}

// Status reports a single always-available endpoint.
func (s *StubClient) Status() []EndpointStatus {
	return []EndpointStatus{{Name: "stub", Available: true, CircuitState: "disabled"}}
}

// Probe reports the stub endpoint as healthy.
func (s *StubClient) Probe(ctx context.Context) ([]ProbeResult, error) {
	return []ProbeResult{{Name: "stub", Healthy: true, StatusCode: 200}}, nil
}

// Close marks the stub closed. It is safe to call more than once.
func (s *StubClient) Close() error {
	s.closed.Store(true)
	return nil
}

// Calls returns how many chat and image calls the stub has served.
func (s *StubClient) Calls() (chat, image int64) {
	return s.chatCalls.Load(), s.imageCalls.Load()
}
