package inference

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubClient(t *testing.T) {
	s := NewStubClient(discardLogger())
	ctx := context.Background()

	reply, err := s.GenerateChatResponse(ctx, "halo", 0.8)
	require.NoError(t, err)
	assert.Equal(t, ChatReply{Text: StubChatText}, reply)

	data, err := s.GenerateImage(ctx, "kucing")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())

	chat, image := s.Calls()
	assert.Equal(t, int64(1), chat)
	assert.Equal(t, int64(1), image)

	status := s.Status()
	require.Len(t, status, 1)
	assert.True(t, status[0].Available)

	results, err := s.Probe(ctx)
	require.NoError(t, err)
	assert.True(t, results[0].Healthy)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.GenerateChatResponse(ctx, "halo", 0.8)
	assert.ErrorIs(t, err, ErrClientClosed)
	_, err = s.GenerateImage(ctx, "kucing")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestNew(t *testing.T) {
	t.Run("mock mode", func(t *testing.T) {
		cfg := testInferenceConfig()
		cfg.UseMock = true

		svc, err := New(cfg, WithLogger(discardLogger()))
		require.NoError(t, err)
		assert.IsType(t, &StubClient{}, svc)
	})

	t.Run("network client", func(t *testing.T) {
		svc, err := New(testInferenceConfig("http://localhost:1"), WithLogger(discardLogger()), WithMetrics(NoopMetrics{}))
		require.NoError(t, err)
		t.Cleanup(func() { _ = svc.Close() })
		assert.IsType(t, &Client{}, svc)
	})

	t.Run("no endpoints", func(t *testing.T) {
		_, err := New(testInferenceConfig(), WithLogger(discardLogger()))
		assert.ErrorIs(t, err, ErrNoEndpoints)
	})
}
