// Package openai adapts OpenAI-compatible chat-completions gateways to core.Provider.
package openai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"

	"ascendfit/internal/core"
	"ascendfit/internal/httpclient"
	"ascendfit/internal/pkg/llmclient"
)

const (
	// Name is the provider identifier used in errors, logs and metrics
	Name = "gateway"

	defaultBaseURL = "https://ai.gateway.lovable.dev/v1"

	// DeltaPath locates the text delta inside one SSE event
	DeltaPath = "choices.0.delta.content"
)

// Provider implements core.Provider for an OpenAI-compatible gateway
type Provider struct {
	client       *llmclient.Client
	streamClient *llmclient.Client
	apiKey       string
}

// New creates a gateway provider. cfg.BaseURL falls back to the Lovable AI gateway.
func New(apiKey string, cfg llmclient.Config) *Provider {
	cfg.ProviderName = Name
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	streamCfg := httpclient.StreamingConfig()
	p := &Provider{apiKey: apiKey}
	p.client = llmclient.New(cfg, p.setHeaders)
	p.streamClient = llmclient.NewWithHTTPClient(httpclient.NewHTTPClient(&streamCfg), cfg, p.setHeaders)
	return p
}

// NewWithHTTPClient creates a gateway provider that uses httpClient for every call.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, cfg llmclient.Config) *Provider {
	cfg.ProviderName = Name
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	p := &Provider{apiKey: apiKey}
	p.client = llmclient.NewWithHTTPClient(httpClient, cfg, p.setHeaders)
	p.streamClient = p.client
	return p
}

// Name returns the provider identifier
func (p *Provider) Name() string { return Name }

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []tool        `json:"tools,omitempty"`
	ToolChoice  *toolChoice   `json:"tool_choice,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatMessage content is a plain string for single text parts and a part array otherwise
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

func buildRequest(req *core.CompletionRequest, stream bool) (*chatRequest, error) {
	out := &chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}

	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, msg)
	}

	if req.Tool != nil {
		out.Tools = []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}}
		if req.ForceTool {
			tc := &toolChoice{Type: "function"}
			tc.Function.Name = req.Tool.Name
			out.ToolChoice = tc
		}
	}
	return out, nil
}

func convertMessage(m core.Message) (chatMessage, error) {
	if len(m.Parts) == 1 && m.Parts[0].Type == core.PartText {
		return chatMessage{Role: m.Role, Content: m.Parts[0].Text}, nil
	}

	parts := make([]contentPart, 0, len(m.Parts))
	for _, part := range m.Parts {
		switch part.Type {
		case core.PartText:
			parts = append(parts, contentPart{Type: "text", Text: part.Text})
		case core.PartImageURL:
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: part.ImageURL}})
		default:
			return chatMessage{}, core.NewInternalError("the AI gateway does not accept "+string(part.Type)+" parts", nil)
		}
	}
	return chatMessage{Role: m.Role, Content: parts}, nil
}

// Complete sends a chat completion request
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) (*core.Completion, error) {
	body, err := buildRequest(req, false)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	return parseCompletion(resp.Body, req.Model)
}

func parseCompletion(body []byte, model string) (*core.Completion, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.NewProviderError(Name, http.StatusOK, "AI provider returned invalid JSON", nil)
	}
	doc := gjson.ParseBytes(body)

	out := &core.Completion{
		Model:        doc.Get("model").String(),
		Text:         doc.Get("choices.0.message.content").String(),
		FinishReason: doc.Get("choices.0.finish_reason").String(),
		Usage: core.Usage{
			PromptTokens:     int(doc.Get("usage.prompt_tokens").Int()),
			CompletionTokens: int(doc.Get("usage.completion_tokens").Int()),
			TotalTokens:      int(doc.Get("usage.total_tokens").Int()),
		},
	}
	if out.Model == "" {
		out.Model = model
	}

	doc.Get("choices.0.message.tool_calls").ForEach(func(_, call gjson.Result) bool {
		args := call.Get("function.arguments")
		raw := args.String()
		// some gateways send arguments as an object instead of a string
		if args.IsObject() {
			raw = args.Raw
		}
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			Name:      call.Get("function.name").String(),
			Arguments: raw,
		})
		return true
	})
	return out, nil
}

// Stream opens a streamed chat completion
func (p *Provider) Stream(ctx context.Context, req *core.CompletionRequest) (*core.EventStream, error) {
	body, err := buildRequest(req, true)
	if err != nil {
		return nil, err
	}

	rc, err := p.streamClient.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	return &core.EventStream{Body: rc, DeltaPath: DeltaPath}, nil
}
