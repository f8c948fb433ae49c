package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"google.golang.org/api/iterator"
)

// Model describes a model offered by a provider
type Model struct {
	ID          string
	DisplayName string
	Created     time.Time
	OwnedBy     string
}

// ModelLister is implemented by invokers that can enumerate their models
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}

// ListModels returns the models of OpenAI sorted by ID
func (o *OpenAI) ListModels(ctx context.Context) ([]Model, error) {
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	body, err := getJSON(ctx, o.httpClient, openAIProvider, o.baseURL+"/v1/models", headers, decodeOpenAIError)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			ID      string `json:"id"`
			Created int64  `json:"created"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(openAIProvider, KindTransient, http.StatusOK, "decoding models", err)
	}

	models := make([]Model, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, Model{ID: m.ID, Created: time.Unix(m.Created, 0).UTC(), OwnedBy: m.OwnedBy})
	}
	sortModels(models)
	return models, nil
}

// ListModels returns the models of Anthropic sorted by ID
func (a *Anthropic) ListModels(ctx context.Context) ([]Model, error) {
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
	body, err := getJSON(ctx, a.httpClient, anthropicProvider, a.baseURL+"/v1/models", headers, decodeAnthropicError)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			ID          string    `json:"id"`
			DisplayName string    `json:"display_name"`
			CreatedAt   time.Time `json:"created_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(anthropicProvider, KindTransient, http.StatusOK, "decoding models", err)
	}

	models := make([]Model, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, Model{ID: m.ID, DisplayName: m.DisplayName, Created: m.CreatedAt})
	}
	sortModels(models)
	return models, nil
}

// ListModels returns the locally pulled Ollama models sorted by name
func (o *Ollama) ListModels(ctx context.Context) ([]Model, error) {
	body, err := getJSON(ctx, o.client, ollamaProvider, o.baseURL+"/api/tags", nil, decodeOllamaError)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Models []struct {
			Name       string    `json:"name"`
			ModifiedAt time.Time `json:"modified_at"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(ollamaProvider, KindTransient, http.StatusOK, "decoding models", err)
	}

	models := make([]Model, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, Model{ID: m.Name, Created: m.ModifiedAt})
	}
	sortModels(models)
	return models, nil
}

// ListModels returns the Gemini models sorted by ID, without the "models/" prefix
func (g *Gemini) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	it := g.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classifyGeminiError(err)
		}
		models = append(models, Model{ID: strings.TrimPrefix(m.Name, "models/"), DisplayName: m.DisplayName})
	}
	sortModels(models)
	return models, nil
}

func sortModels(models []Model) {
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
}
