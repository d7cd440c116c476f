// Package provider defines the LLM provider abstraction used by the digest
// summarizer and the report extractor.
package provider

import "context"

// Message is a single chat message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONObject asks the provider to constrain output to a single JSON
	// object. Used by structured extraction.
	JSONObject bool
}

// Usage reports token consumption for a single call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the provider-agnostic completion result.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// LLM is implemented by chat-completion providers.
type LLM interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	DefaultModel() string
}
