package llm

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type OpenAI struct {
	client       openai.Client
	systemPrompt string
}

func NewOpenAI(apiKey, systemPrompt string, httpClient *http.Client, extra ...option.RequestOption) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	opts = append(opts, extra...)
	return &OpenAI{
		client:       openai.NewClient(opts...),
		systemPrompt: systemPrompt,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, prompt, model string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if o.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(o.systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		log.Printf("llm openai error: %v", err)
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	text := completion.Choices[0].Message.Content
	log.Printf("llm openai response size=%d tokens_in=%d tokens_out=%d", len(text), completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	return text, nil
}
