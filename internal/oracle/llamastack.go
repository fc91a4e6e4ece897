package oracle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client speaks the OpenAI-compatible chat-completions surface of a local
// llama-stack server. It implements Provider.
type Client struct {
	baseURL      string
	model        string
	resolved     bool
	instructions string
	stream       bool
	httpc        *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithStreaming makes Propose consume the server's SSE stream and reduce the
// deltas to a single final text.
func WithStreaming() ClientOption {
	return func(c *Client) { c.stream = true }
}

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) { c.httpc = httpc }
}

// NewClient builds a client for the given server base URL and model. The
// model is checked against the server's model list on first use; an empty or
// unknown model falls back to the first model the server offers.
func NewClient(baseURL, model string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		instructions: Instructions,
		httpc:        &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ResolveModel picks the model to use and pins it on the client: the
// configured one when the server knows it, otherwise the first model the
// server offers. Subsequent Propose calls post the pinned model.
func (c *Client) ResolveModel(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("list models: unexpected status %d", resp.StatusCode)
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("parse model list: %w", err)
	}
	if len(list.Data) == 0 {
		return "", fmt.Errorf("no models available at %s", c.baseURL)
	}
	for _, m := range list.Data {
		if m.ID == c.model {
			c.resolved = true
			return c.model, nil
		}
	}
	c.model = list.Data[0].ID
	c.resolved = true
	return c.model, nil
}

// Propose sends one chat turn and returns the oracle's final text. The first
// call resolves the model against the server, so a configured model the
// server does not offer falls back instead of failing every completion.
func (c *Client) Propose(ctx context.Context, prompt string) (string, error) {
	if !c.resolved {
		if _, err := c.ResolveModel(ctx); err != nil {
			return "", err
		}
	}
	model := c.model

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: c.instructions},
			{Role: "user", Content: prompt},
		},
		Stream: c.stream,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if c.stream {
		return readStream(resp.Body)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse oracle response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// readStream accumulates SSE delta chunks into the final response text.
func readStream(r io.Reader) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Tolerate non-JSON keepalive lines.
			continue
		}
		if len(chunk.Choices) > 0 {
			b.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read oracle stream: %w", err)
	}
	return b.String(), nil
}
