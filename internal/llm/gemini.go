package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	geminiProvider     = "gemini"
	defaultGeminiModel = "gemini-1.5-flash"
)

// Gemini implements the Invoker interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
}

// NewGemini creates a new Gemini Invoker instance
func NewGemini(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		modelName: modelName,
		timeout:   timeout,
	}, nil
}

// Invoke sends the conversation to Gemini and returns the concatenated text parts
func (g *Gemini) Invoke(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.modelName)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	last := lastUserIndex(req.Messages)
	if last < 0 {
		return "", newError(geminiProvider, KindTransient, 0, "request has no user message", nil)
	}

	// genai.ImageData expects just the format suffix (e.g. "png"), not the full MIME type
	var parts []genai.Part
	if req.Image != nil {
		parts = append(parts, genai.ImageData(strings.TrimPrefix(req.Image.MIMEType, "image/"), req.Image.Data))
	}
	parts = append(parts, genai.Text(req.Messages[last].Content))

	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	if history := geminiHistory(req.Messages[:last]); len(history) > 0 {
		cs := model.StartChat()
		cs.History = history
		resp, err = cs.SendMessage(ctx, parts...)
	} else {
		resp, err = model.GenerateContent(ctx, parts...)
	}
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
			return "", newError(geminiProvider, KindTransient, 0, "content generation blocked due to safety settings", nil)
		}
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", newError(geminiProvider, KindTransient, 0, "prompt blocked: "+resp.PromptFeedback.BlockReason.String(), nil)
		}
		return "", newError(geminiProvider, KindTransient, 0, "no response from gemini", nil)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}
	if responseText.Len() == 0 {
		return "", newError(geminiProvider, KindTransient, 0, "response contained no usable text content", nil)
	}

	return responseText.String(), nil
}

// geminiHistory converts earlier turns to genai contents; Gemini calls the assistant "model"
func geminiHistory(msgs []Message) []*genai.Content {
	var history []*genai.Content
	for _, m := range msgs {
		role := "user"
		switch m.Role {
		case RoleAssistant:
			role = "model"
		case RoleSystem:
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history
}

// classifyGeminiError wraps a genai failure in an *Error
func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := kindForStatus(gerr.Code)
		kind = kindForType(kind, gerr.Message)
		return newError(geminiProvider, kind, gerr.Code, gerr.Message, err)
	}

	msg := err.Error()
	kind := KindTransient
	if strings.Contains(msg, "429") || strings.Contains(msg, "Resource has been exhausted") {
		kind = KindRateLimited
	} else if strings.Contains(msg, "API key not valid") || strings.Contains(msg, "PERMISSION_DENIED") {
		kind = KindAuth
	}
	return newError(geminiProvider, kind, 0, "generating content", err)
}

// Name returns the provider name
func (g *Gemini) Name() string {
	return geminiProvider
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
