// Package advisor streams chat-based financial advice from an
// OpenAI-compatible chat completions endpoint.
package advisor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SystemPrompt frames every conversation.
const SystemPrompt = "You are a helpful logic-based financial assistant for MoneyMinder. " +
	"Provide concise, practical financial advice and insights based on the user's questions. " +
	"Focus on budgeting, saving, investing, and general financial wellness. " +
	"Be friendly but professional, and offer actionable tips when possible."

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Advisor streams a reply to a conversation, calling onChunk for each piece of
// generated text in order. Returning an error from onChunk aborts the stream.
type Advisor interface {
	Stream(ctx context.Context, messages []Message, onChunk func(chunk string) error) error
}

// ErrEmptyConversation is returned when there is nothing to answer.
var ErrEmptyConversation = errors.New("conversation has no messages")

// OpenAIClient talks to /chat/completions with server-sent events.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a client for baseURL (for example
// https://api.openai.com/v1). A nil httpClient uses http.DefaultClient.
func NewOpenAIClient(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *OpenAIClient) Stream(ctx context.Context, messages []Message, onChunk func(string) error) error {
	if len(messages) == 0 {
		return ErrEmptyConversation
	}

	body, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: append([]Message{{Role: "system", Content: SystemPrompt}}, messages...),
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("marshaling completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("requesting completion: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("decoding completion chunk: %w", err)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onChunk(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading completion stream: %w", err)
	}
	return nil
}
