package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"promptmaster/internal/config"
)

// Request is one single-turn generation call.
type Request struct {
	Model             string
	SystemInstruction string
	Content           string
	Temperature       float32
}

// Backend is the remote generation API. Implementations return the raw
// text, which may be empty.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// NewBackend builds the backend for a provider together with the models the
// dispatcher should pick from.
func NewBackend(ctx context.Context, provider string, provCfg config.ProviderConfig) (Backend, ModelSet, error) {
	set := ModelSet{Default: provCfg.Model, Creative: provCfg.CreativeModel}
	if provCfg.APIKey == "" {
		return nil, set, fmt.Errorf("provider %s: api key not configured", provider)
	}

	switch strings.ToLower(provider) {
	case "gemini":
		if set.Default == "" {
			set.Default = DefaultModel
		}
		if set.Creative == "" {
			set.Creative = DefaultCreativeModel
		}
		backend, err := NewGeminiBackend(ctx, provCfg.APIKey, provCfg.BaseURL)
		return backend, set, err
	case "openai":
		if set.Default == "" {
			return nil, set, fmt.Errorf("provider %s: model must be configured", provider)
		}
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   set.Default,
			APIKey:  provCfg.APIKey,
		})
		if err != nil {
			return nil, set, fmt.Errorf("init openai chat model: %w", err)
		}
		return NewChatModelBackend("openai", chatModel), set, nil
	case "claude":
		if set.Default == "" {
			return nil, set, fmt.Errorf("provider %s: model must be configured", provider)
		}
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     set.Default,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
		if err != nil {
			return nil, set, fmt.Errorf("init claude chat model: %w", err)
		}
		return NewChatModelBackend("claude", chatModel), set, nil
	default:
		return nil, set, fmt.Errorf("invalid provider: %s", provider)
	}
}

type geminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend talks to the Gemini API directly. baseURL is optional.
func NewGeminiBackend(ctx context.Context, apiKey, baseURL string) (Backend, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	return &geminiBackend{client: client}, nil
}

func (g *geminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		Temperature:       &temp,
	}
	res, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Content), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return res.Text(), nil
}

type chatModelBackend struct {
	name      string
	chatModel model.BaseChatModel
}

// NewChatModelBackend adapts an eino chat model. The model name and
// temperature are passed per call so one client serves both model tiers.
func NewChatModelBackend(name string, chatModel model.BaseChatModel) Backend {
	return &chatModelBackend{name: name, chatModel: chatModel}
}

func (b *chatModelBackend) Generate(ctx context.Context, req Request) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(req.SystemInstruction),
		schema.UserMessage(req.Content),
	}
	resp, err := b.chatModel.Generate(ctx, messages,
		model.WithModel(req.Model),
		model.WithTemperature(req.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", b.name, err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}
