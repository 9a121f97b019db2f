// Package gemini provides the Google Gemini native API: content generation,
// SSE streaming and the Files API used for video uploads.
package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"ascendfit/internal/core"
	"ascendfit/internal/httpclient"
	"ascendfit/internal/pkg/llmclient"
)

const (
	// Name is the provider identifier used in errors, logs and metrics
	Name = "gemini"

	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// DeltaPath locates the text delta inside one SSE event
	DeltaPath = "candidates.0.content.parts.0.text"
	// BlockPath locates the reason a prompt was refused
	BlockPath = "promptFeedback.blockReason"
)

// Provider implements core.Provider and core.FileAPI for Gemini
type Provider struct {
	client       *llmclient.Client
	streamClient *llmclient.Client
	apiKey       string
}

// New creates a Gemini provider. cfg.BaseURL falls back to the public endpoint.
func New(apiKey string, cfg llmclient.Config) *Provider {
	cfg = withDefaults(cfg)
	streamCfg := httpclient.StreamingConfig()
	p := &Provider{apiKey: apiKey}
	p.client = llmclient.New(cfg, p.setHeaders)
	p.streamClient = llmclient.NewWithHTTPClient(httpclient.NewHTTPClient(&streamCfg), cfg, p.setHeaders)
	return p
}

// NewWithHTTPClient creates a Gemini provider that uses httpClient for every call.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, cfg llmclient.Config) *Provider {
	cfg = withDefaults(cfg)
	p := &Provider{apiKey: apiKey}
	p.client = llmclient.NewWithHTTPClient(httpClient, cfg, p.setHeaders)
	p.streamClient = p.client
	return p
}

func withDefaults(cfg llmclient.Config) llmclient.Config {
	cfg.ProviderName = Name
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return cfg
}

// Name returns the provider identifier
func (p *Provider) Name() string { return Name }

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", p.apiKey)
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []toolSet         `json:"tools,omitempty"`
	ToolConfig        *toolConfig       `json:"toolConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type toolSet struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type toolConfig struct {
	FunctionCallingConfig functionCallingConfig `json:"functionCallingConfig"`
}

type functionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

func buildRequest(req *core.CompletionRequest) *generateRequest {
	out := &generateRequest{}

	var system []part
	for _, m := range req.Messages {
		parts := convertParts(m.Parts)
		switch m.Role {
		case core.RoleSystem:
			system = append(system, parts...)
		case core.RoleAssistant:
			out.Contents = append(out.Contents, content{Role: "model", Parts: parts})
		default:
			out.Contents = append(out.Contents, content{Role: "user", Parts: parts})
		}
	}
	if len(system) > 0 {
		out.SystemInstruction = &content{Parts: system}
	}

	if req.Temperature != nil || req.MaxTokens != nil {
		out.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	if req.Tool != nil {
		out.Tools = []toolSet{{FunctionDeclarations: []functionDeclaration{{
			Name:        req.Tool.Name,
			Description: req.Tool.Description,
			Parameters:  req.Tool.Parameters,
		}}}}
		if req.ForceTool {
			out.ToolConfig = &toolConfig{FunctionCallingConfig: functionCallingConfig{
				Mode:                 "ANY",
				AllowedFunctionNames: []string{req.Tool.Name},
			}}
		}
	}
	return out
}

func convertParts(in []core.Part) []part {
	out := make([]part, 0, len(in))
	for _, p := range in {
		switch p.Type {
		case core.PartText:
			out = append(out, part{Text: p.Text})
		case core.PartFile:
			out = append(out, part{FileData: &fileData{MimeType: p.MimeType, FileURI: p.FileURI}})
		case core.PartImageURL:
			if mime, data, ok := parseDataURL(p.ImageURL); ok {
				out = append(out, part{InlineData: &inlineData{MimeType: mime, Data: data}})
				continue
			}
			mime := p.MimeType
			if mime == "" {
				mime = "image/jpeg"
			}
			out = append(out, part{FileData: &fileData{MimeType: mime, FileURI: p.ImageURL}})
		}
	}
	return out
}

// parseDataURL splits "data:image/png;base64,AAAA" into its MIME type and payload
func parseDataURL(u string) (mime, data string, ok bool) {
	rest, found := strings.CutPrefix(u, "data:")
	if !found {
		return "", "", false
	}
	header, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return "", "", false
	}
	return strings.TrimSuffix(header, ";base64"), payload, true
}

// Complete calls models/{model}:generateContent
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) (*core.Completion, error) {
	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/v1beta/models/" + req.Model + ":generateContent",
		Body:     buildRequest(req),
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
		Model:        doc.Get("modelVersion").String(),
		FinishReason: doc.Get("candidates.0.finishReason").String(),
		Usage: core.Usage{
			PromptTokens:     int(doc.Get("usageMetadata.promptTokenCount").Int()),
			CompletionTokens: int(doc.Get("usageMetadata.candidatesTokenCount").Int()),
			TotalTokens:      int(doc.Get("usageMetadata.totalTokenCount").Int()),
		},
	}
	if out.Model == "" {
		out.Model = model
	}

	var text strings.Builder
	doc.Get("candidates.0.content.parts").ForEach(func(_, p gjson.Result) bool {
		if call := p.Get("functionCall"); call.Exists() {
			args := call.Get("args").Raw
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{
				Name:      call.Get("name").String(),
				Arguments: args,
			})
			return true
		}
		text.WriteString(p.Get("text").String())
		return true
	})
	out.Text = text.String()

	if out.Text == "" && len(out.ToolCalls) == 0 {
		if reason := doc.Get("promptFeedback.blockReason").String(); reason != "" {
			return nil, core.NewProviderError(Name, http.StatusOK, "AI provider blocked the prompt: "+reason, nil)
		}
	}
	return out, nil
}

// Stream calls models/{model}:streamGenerateContent with alt=sse
func (p *Provider) Stream(ctx context.Context, req *core.CompletionRequest) (*core.EventStream, error) {
	rc, err := p.streamClient.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/v1beta/models/" + req.Model + ":streamGenerateContent?alt=sse",
		Body:     buildRequest(req),
	})
	if err != nil {
		return nil, err
	}
	return &core.EventStream{Body: rc, DeltaPath: DeltaPath, BlockPath: BlockPath}, nil
}
