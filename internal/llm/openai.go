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
	openAIProvider     = "openai"
	openAIBaseURL      = "https://api.openai.com"
	defaultOpenAIModel = "gpt-4o"
)

// OpenAI implements Invoker against the Chat Completions API
type OpenAI struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewOpenAI creates a new OpenAI Invoker. An empty baseURL uses the public API.
func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = openAIBaseURL
	}

	return &OpenAI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		maxTokens:  defaultMaxTokens,
		httpClient: newHTTPClient(timeout),
	}, nil
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

// openAIMessage content is either a string or a []openAIPart
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
	Stream         bool                  `json:"stream"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Invoke sends the request to the Chat Completions API and returns the first choice
func (o *OpenAI) Invoke(ctx context.Context, req Request) (string, error) {
	payload := openAIRequest{
		Model:     o.model,
		Messages:  o.messages(req),
		MaxTokens: o.maxTokens,
	}
	if req.JSON {
		payload.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}

	body, err := postJSON(ctx, o.httpClient, openAIProvider, o.baseURL+"/v1/chat/completions", headers, payload, decodeOpenAIError)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", newError(openAIProvider, KindTransient, http.StatusOK, "decoding response", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", newError(openAIProvider, KindTransient, http.StatusOK, "response contained no choices or empty message content", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

// messages converts the request into API messages. The system prompt goes first
// because the API has no separate field for it.
func (o *OpenAI) messages(req Request) []openAIMessage {
	out := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openAIMessage{Role: string(RoleSystem), Content: req.System})
	}

	last := lastUserIndex(req.Messages)
	for i, m := range req.Messages {
		if m.Role == RoleSystem {
			continue
		}
		if i == last && req.Image != nil {
			out = append(out, openAIMessage{
				Role: string(m.Role),
				Content: []openAIPart{
					{Type: "text", Text: m.Content},
					{Type: "image_url", ImageURL: &openAIImageURL{URL: req.Image.DataURL()}},
				},
			})
			continue
		}
		out = append(out, openAIMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func decodeOpenAIError(body []byte) (string, string) {
	var e openAIError
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	errType := e.Error.Type
	if e.Error.Code != "" {
		errType = e.Error.Code
	}
	return e.Error.Message, errType
}

// Name returns the provider name
func (o *OpenAI) Name() string {
	return openAIProvider
}

// Close is a no-op for HTTP providers
func (o *OpenAI) Close() error {
	return nil
}
