package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

// Ollama talks to a local Ollama server over its HTTP chat API.
type Ollama struct {
	host         string
	systemPrompt string
	http         *http.Client
}

func NewOllama(host, systemPrompt string, httpClient *http.Client) *Ollama {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{
		host:         strings.TrimRight(host, "/"),
		systemPrompt: systemPrompt,
		http:         httpClient,
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the JSON body sent to POST /api/chat.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

func (o *Ollama) Complete(ctx context.Context, prompt, model string) (string, error) {
	var messages []ollamaMessage
	if o.systemPrompt != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: o.systemPrompt})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt})

	data, err := json.Marshal(ollamaChatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		log.Printf("llm ollama error: %v", err)
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	log.Printf("llm ollama response model=%s size=%d", model, len(out.Message.Content))
	return out.Message.Content, nil
}
