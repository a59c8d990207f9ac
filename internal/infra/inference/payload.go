package inference

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI-compatible API paths, relative to an endpoint's base URL.
const (
	chatPath   = "/chat/completions"
	imagePath  = "/images/generations"
	modelsPath = "/models"
)

// chatRequest is the chat completion body. temperature and max_tokens are
// always sent; model only when the endpoint declares one.
type chatRequest struct {
	Model       string                         `json:"model,omitempty"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	MaxTokens   int                            `json:"max_tokens"`
	Temperature float64                        `json:"temperature"`
}

func buildChatPayload(model, prompt string, maxTokens int, temperature float64) ([]byte, error) {
	return json.Marshal(chatRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}

func buildImagePayload(model, prompt string) ([]byte, error) {
	return json.Marshal(openai.ImageRequest{
		Model:          model,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
}

// chatResponse accepts both chat-style and completion-style choices.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
		Text *string `json:"text"`
	} `json:"choices"`
}

// extractChatText returns choices[0].message.content, or choices[0].text when
// there is no message content, trimmed.
func extractChatText(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponseFormat, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrResponseFormat)
	}

	choice := resp.Choices[0]
	switch {
	case choice.Message != nil && choice.Message.Content != nil:
		return strings.TrimSpace(*choice.Message.Content), nil
	case choice.Text != nil:
		return strings.TrimSpace(*choice.Text), nil
	default:
		return "", fmt.Errorf("%w: choice has neither message content nor text", ErrResponseFormat)
	}
}

// extractImage returns decoded bytes for an inline b64_json image, or the URL
// to download when the response only links to the image.
func extractImage(body []byte) (data []byte, url string, err error) {
	var resp openai.ImageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrResponseFormat, err)
	}
	if len(resp.Data) == 0 {
		return nil, "", fmt.Errorf("%w: no image data", ErrResponseFormat)
	}

	item := resp.Data[0]
	switch {
	case item.B64JSON != "":
		data, err := decodeImageData(item.B64JSON)
		if err != nil {
			return nil, "", err
		}
		return data, "", nil
	case item.URL != "":
		return nil, item.URL, nil
	default:
		return nil, "", fmt.Errorf("%w: image has neither b64_json nor url", ErrResponseFormat)
	}
}

// decodeImageData strips a "data:image/...;base64," prefix if present and
// base64-decodes the rest.
func decodeImageData(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:image") {
		if _, rest, ok := strings.Cut(s, ","); ok {
			s = rest
		}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 image: %v", ErrResponseFormat, err)
	}
	return data, nil
}

// truncate shortens s for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
