package llm

import (
	"context"
	"encoding/base64"
)

// Role identifies the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single turn of a conversation
type Message struct {
	Role    Role
	Content string
}

// Image is an image attached to the final user message of a request
type Image struct {
	Data     []byte
	MIMEType string // e.g. "image/png"
}

// Base64 returns the image data encoded for JSON transports
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// Request is a provider-neutral model invocation
type Request struct {
	System   string
	Messages []Message
	// Image, if set, is sent alongside the last user message
	Image *Image
	// JSON asks the provider to constrain its output to a JSON object where supported
	JSON bool
}

// Prompt builds a single-turn request
func Prompt(system, text string, image *Image) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: text}},
		Image:    image,
	}
}

// Invoker is the capability shared by every model provider.
//
// Invoke returns the model's text on success. On failure the error is always an
// *Error whose Kind tells rate limiting and authentication problems apart from
// everything else.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
	// Name returns the provider name, e.g. "gemini"
	Name() string
	// Close releases provider resources
	Close() error
}

// Enforce interface compliance
var (
	_ Invoker = &Gemini{}
	_ Invoker = &Anthropic{}
	_ Invoker = &OpenAI{}
	_ Invoker = &Ollama{}
)

// lastUserIndex returns the index of the last user message, or -1
func lastUserIndex(msgs []Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return i
		}
	}
	return -1
}
