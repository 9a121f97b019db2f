package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Message roles understood by every provider
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PartType identifies the payload carried by a message part
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
	PartFile     PartType = "file"
)

// Part is one piece of a role-tagged message.
type Part struct {
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
	// ImageURL is an http(s) URL or a data: URL
	ImageURL string `json:"image_url,omitempty"`
	// FileURI and MimeType reference a previously uploaded remote file
	FileURI  string `json:"file_uri,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Message is an ordered list of parts tagged with a role.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Type: PartText, Text: text}}}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolSchema declares a function the provider should call with structured arguments.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// CompletionRequest is the outbound AI request. It is built fresh per call and
// not modified after it is handed to a provider.
type CompletionRequest struct {
	Model    string
	Messages []Message
	Tool     *ToolSchema
	// ForceTool requires the provider to answer with a call to Tool
	ForceTool   bool
	Temperature *float64
	MaxTokens   *int
}

// ToolCall is a function invocation returned by the provider.
// Arguments holds the JSON-encoded argument object.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Completion is a provider response normalized across API styles.
type Completion struct {
	Model        string     `json:"model"`
	Text         string     `json:"text"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        Usage      `json:"usage"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one incremental piece of a streamed completion.
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
}

// RemoteFile references a file held by the provider's file API.
type RemoteFile struct {
	Name      string `json:"name"`
	URI       string `json:"uri"`
	MimeType  string `json:"mimeType"`
	State     string `json:"state"`
	SizeBytes string `json:"sizeBytes,omitempty"`
}

// ProcessingState is the normalized lifecycle state of a remote file.
type ProcessingState string

const (
	StateProcessing ProcessingState = "processing"
	StateActive     ProcessingState = "active"
	StateFailed     ProcessingState = "failed"
)

// NormalizeState maps provider state strings ("PROCESSING", "ACTIVE", "ready", ...)
// to a ProcessingState. Unknown states count as processing.
func NormalizeState(raw string) ProcessingState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "ready", "succeeded":
		return StateActive
	case "failed", "error":
		return StateFailed
	default:
		return StateProcessing
	}
}

// Terminal reports whether no further transition is expected.
func (s ProcessingState) Terminal() bool {
	return s == StateActive || s == StateFailed
}

// ProcessingStatus is the result of one or more status polls.
type ProcessingStatus struct {
	Name     string          `json:"name"`
	State    ProcessingState `json:"state"`
	Attempts int             `json:"attempts"`
	File     *RemoteFile     `json:"file,omitempty"`
	Elapsed  time.Duration   `json:"elapsed"`
}
