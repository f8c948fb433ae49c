package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicProvider     = "anthropic"
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-3-5-sonnet-20241022"
	defaultMaxTokens      = 1000
)

// Anthropic implements Invoker against the Anthropic Messages API
type Anthropic struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewAnthropic creates a new Anthropic Invoker. An empty baseURL uses the public API.
func NewAnthropic(apiKey, model, baseURL string, timeout time.Duration) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}

	return &Anthropic{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		maxTokens:  defaultMaxTokens,
		httpClient: newHTTPClient(timeout),
	}, nil
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sends the request to the Messages API and returns the concatenated text blocks
func (a *Anthropic) Invoke(ctx context.Context, req Request) (string, error) {
	payload := anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    req.System,
		Messages:  a.messages(req),
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	body, err := postJSON(ctx, a.httpClient, anthropicProvider, a.baseURL+"/v1/messages", headers, payload, decodeAnthropicError)
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", newError(anthropicProvider, KindTransient, http.StatusOK, "decoding response", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", newError(anthropicProvider, KindTransient, http.StatusOK, "no text content in response", nil)
	}

	return text.String(), nil
}

// messages converts the request into API messages. System entries are dropped
// because the API takes the system prompt separately.
func (a *Anthropic) messages(req Request) []anthropicMessage {
	last := lastUserIndex(req.Messages)
	out := make([]anthropicMessage, 0, len(req.Messages))
	for i, m := range req.Messages {
		if m.Role == RoleSystem {
			continue
		}
		content := []anthropicContent{{Type: "text", Text: m.Content}}
		if i == last && req.Image != nil {
			content = append(content, anthropicContent{
				Type: "image",
				Source: &anthropicSource{
					Type:      "base64",
					MediaType: req.Image.MIMEType,
					Data:      req.Image.Base64(),
				},
			})
		}
		out = append(out, anthropicMessage{Role: string(m.Role), Content: content})
	}
	return out
}

func decodeAnthropicError(body []byte) (string, string) {
	var e anthropicError
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	return e.Error.Message, e.Error.Type
}

// Name returns the provider name
func (a *Anthropic) Name() string {
	return anthropicProvider
}

// Close is a no-op for HTTP providers
func (a *Anthropic) Close() error {
	return nil
}
