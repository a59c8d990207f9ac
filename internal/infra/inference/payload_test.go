package inference

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChatPayload(t *testing.T) {
	body, err := buildChatPayload("gpt-4.1", "halo", 400, 0.8)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "gpt-4.1", got["model"])
	assert.Equal(t, float64(400), got["max_tokens"])
	assert.Equal(t, 0.8, got["temperature"])

	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "halo", msg["content"])
}

func TestBuildChatPayload_OmitsEmptyModel(t *testing.T) {
	body, err := buildChatPayload("", "halo", 400, 0)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.NotContains(t, got, "model")
	assert.Contains(t, got, "temperature", "zero temperature is still sent")
}

func TestBuildImagePayload(t *testing.T) {
	body, err := buildImagePayload("stability-image-1", "kucing oren")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "stability-image-1", got["model"])
	assert.Equal(t, "kucing oren", got["prompt"])
	assert.Equal(t, float64(1), got["n"])
	assert.Equal(t, "b64_json", got["response_format"])

	body, err = buildImagePayload("", "kucing oren")
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(body, &got))
	assert.NotContains(t, got, "model")
}

func TestExtractChatText(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "message content trimmed",
			body: `{"choices":[{"message":{"content":"hi  "}}]}`,
			want: "hi",
		},
		{
			name: "completion text",
			body: `{"choices":[{"text":"\n  hello\n"}]}`,
			want: "hello",
		},
		{
			name: "message content wins over text",
			body: `{"choices":[{"message":{"content":"a"},"text":"b"}]}`,
			want: "a",
		},
		{
			name: "null content falls back to text",
			body: `{"choices":[{"message":{"content":null},"text":"b"}]}`,
			want: "b",
		},
		{
			name: "empty content is still content",
			body: `{"choices":[{"message":{"content":""}}]}`,
			want: "",
		},
		{
			name:    "no choices",
			body:    `{"choices":[]}`,
			wantErr: true,
		},
		{
			name:    "missing choices",
			body:    `{"id":"x"}`,
			wantErr: true,
		},
		{
			name:    "neither content nor text",
			body:    `{"choices":[{"message":{"role":"assistant"}}]}`,
			wantErr: true,
		},
		{
			name:    "wrong shape",
			body:    `{"choices":"nope"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractChatText([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrResponseFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractImage_DataURLPrefix(t *testing.T) {
	want, err := base64.StdEncoding.DecodeString("AAAA")
	require.NoError(t, err)

	data, url, err := extractImage([]byte(`{"data":[{"b64_json":"data:image/png;base64,AAAA"}]}`))
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Equal(t, want, data)
}

func TestExtractImage(t *testing.T) {
	png, err := base64.StdEncoding.DecodeString(stubPNG)
	require.NoError(t, err)

	tests := []struct {
		name     string
		body     string
		wantData []byte
		wantURL  string
		wantErr  bool
	}{
		{
			name:     "raw base64",
			body:     `{"data":[{"b64_json":"` + stubPNG + `"}]}`,
			wantData: png,
		},
		{
			name:    "url only",
			body:    `{"data":[{"url":"https://cdn.example.com/img.png"}]}`,
			wantURL: "https://cdn.example.com/img.png",
		},
		{
			name:     "b64 preferred over url",
			body:     `{"data":[{"b64_json":"AAAA","url":"https://cdn.example.com/img.png"}]}`,
			wantData: []byte{0, 0, 0},
		},
		{
			name:    "empty data",
			body:    `{"data":[]}`,
			wantErr: true,
		},
		{
			name:    "neither field",
			body:    `{"data":[{"revised_prompt":"x"}]}`,
			wantErr: true,
		},
		{
			name:    "invalid base64",
			body:    `{"data":[{"b64_json":"data:image/png;base64,@@@"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, url, err := extractImage([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrResponseFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, data)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
