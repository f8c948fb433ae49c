package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	ollamaProvider     = "ollama"
	ollamaBaseURL      = "http://localhost:11434"
	defaultOllamaModel = "llava"
)

// Ollama implements the Invoker interface using a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Invoker instance
// Vision-capable models work best for receipts:
//   - llava:1.6 (best balance of accuracy and speed)
//   - qwen2-vl:7b (good OCR capabilities)
//   - llava-phi3 (smaller, faster, but less accurate)
func NewOllama(baseURL, modelName string, timeout time.Duration) (*Ollama, error) {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	if modelName == "" {
		modelName = defaultOllamaModel
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client:  newHTTPClient(timeout),
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Invoke sends the conversation to Ollama's chat endpoint
func (o *Ollama) Invoke(ctx context.Context, req Request) (string, error) {
	reqBody := ollamaChatRequest{
		Model:    o.model,
		Stream:   false,
		Messages: o.messages(req),
	}
	if req.JSON {
		reqBody.Format = "json"
	}

	body, err := postJSON(ctx, o.client, ollamaProvider, o.baseURL+"/api/chat", nil, reqBody, decodeOllamaError)
	if err != nil {
		return "", err
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", newError(ollamaProvider, KindTransient, http.StatusOK, "decoding response", err)
	}

	text := strings.TrimSpace(chatResp.Message.Content)
	if text == "" {
		return "", newError(ollamaProvider, KindTransient, http.StatusOK, "empty response from ollama", nil)
	}
	return text, nil
}

func (o *Ollama) messages(req Request) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, ollamaMessage{Role: string(RoleSystem), Content: req.System})
	}

	last := lastUserIndex(req.Messages)
	for i, m := range req.Messages {
		if m.Role == RoleSystem {
			continue
		}
		msg := ollamaMessage{Role: string(m.Role), Content: m.Content}
		if i == last && req.Image != nil {
			msg.Images = []string{req.Image.Base64()}
		}
		out = append(out, msg)
	}
	return out
}

func decodeOllamaError(body []byte) (string, string) {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	return e.Error, ""
}

// Name returns the provider name
func (o *Ollama) Name() string {
	return ollamaProvider
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
