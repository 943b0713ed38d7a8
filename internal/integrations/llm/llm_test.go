package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/v3/option"

	"worklogbot/internal/config"
	"worklogbot/internal/domain"
)

type fakeProvider struct {
	replies []string
	err     error
	calls   int
	prompts []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, prompt, model string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func TestContainsCJK(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"plain summary", false},
		{"Привет, отчёт", false},
		{"done 完成", true},
		{"日本", true},
		{"ひらがな", false},
	}
	for _, tt := range tests {
		if got := ContainsCJK(tt.in); got != tt.want {
			t.Errorf("ContainsCJK(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSummarizeReturnsFirstCleanAnswer(t *testing.T) {
	p := &fakeProvider{replies: []string{"  Worked on login.  "}}
	got, err := Summarizer{Provider: p, Model: "m"}.Summarize(context.Background(), "PROJ-1 Login\n")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Worked on login." {
		t.Fatalf("got %q", got)
	}
	if p.calls != 1 {
		t.Fatalf("expected 1 call, got %d", p.calls)
	}
}

func TestSummarizeRetriesOnceOnCJK(t *testing.T) {
	p := &fakeProvider{replies: []string{"修复登录", "还是中文"}}
	got, err := Summarizer{Provider: p, Model: "m"}.Summarize(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", p.calls)
	}
	if got != "还是中文" {
		t.Fatalf("second answer must be returned as is, got %q", got)
	}
	if p.prompts[0] != p.prompts[1] {
		t.Fatalf("retry must reuse the prompt: %q vs %q", p.prompts[0], p.prompts[1])
	}
}

func TestSummarizeWrapsProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	_, err := Summarizer{Provider: p, Model: "m"}.Summarize(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrModel) {
		t.Fatalf("expected ErrModel, got %v", err)
	}
}

func TestSummarizeEmptyAnswerIsModelError(t *testing.T) {
	p := &fakeProvider{replies: []string{"   "}}
	_, err := Summarizer{Provider: p, Model: "m"}.Summarize(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrModel) {
		t.Fatalf("expected ErrModel, got %v", err)
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "qwen2.5" || req.Stream {
			t.Errorf("unexpected request body: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "summarize" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   "qwen2.5",
			Message: ollamaMessage{Role: "assistant", Content: "summary"},
		})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL+"/", "be brief", srv.Client())
	got, err := o.Complete(context.Background(), "summarize", "qwen2.5")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "summary" {
		t.Fatalf("got %q", got)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "", srv.Client()).Complete(context.Background(), "p", "missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestOllamaTimeoutThroughSummarizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	s := Summarizer{Provider: NewOllama(srv.URL, "", srv.Client()), Model: "m", Timeout: 50 * time.Millisecond}
	_, err := s.Summarize(context.Background(), "p")
	if !errors.Is(err, domain.ErrModel) {
		t.Fatalf("expected ErrModel on timeout, got %v", err)
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"done"}}],
			"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", "sys", srv.Client(), openaioption.WithBaseURL(srv.URL+"/v1/"))
	got, err := o.Complete(context.Background(), "prompt", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "done" {
		t.Fatalf("got %q", got)
	}
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "ak-test" {
			t.Errorf("unexpected api key header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"summary"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":5,"output_tokens":2}}`))
	}))
	defer srv.Close()

	a := NewAnthropic("ak-test", "", srv.Client(), anthropicoption.WithBaseURL(srv.URL+"/"))
	got, err := a.Complete(context.Background(), "prompt", "claude")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "summary" {
		t.Fatalf("got %q", got)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{config.ProviderOllama, "ollama"},
		{config.ProviderAnthropic, "anthropic"},
		{config.ProviderOpenAI, "openai"},
	}
	for _, tt := range tests {
		p, err := NewProvider(config.Config{LLMProvider: tt.provider, OllamaHost: "http://localhost:11434"}, "", nil)
		if err != nil {
			t.Fatalf("NewProvider(%s): %v", tt.provider, err)
		}
		if p.Name() != tt.want {
			t.Errorf("NewProvider(%s).Name() = %s", tt.provider, p.Name())
		}
	}
	if _, err := NewProvider(config.Config{LLMProvider: "bard"}, "", nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoadSystemPrompt(t *testing.T) {
	if got := LoadSystemPrompt(""); got != "" {
		t.Fatalf("empty path: got %q", got)
	}
	if got := LoadSystemPrompt(filepath.Join(t.TempDir(), "missing.txt")); got != "" {
		t.Fatalf("missing file: got %q", got)
	}
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("\n  Answer in English.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := LoadSystemPrompt(path); got != "Answer in English." {
		t.Fatalf("got %q", got)
	}

	// 4001 two-byte runes put the byte cap inside a rune.
	long := "x" + strings.Repeat("ж", 4000)
	if err := os.WriteFile(path, []byte(long), 0o600); err != nil {
		t.Fatal(err)
	}
	got := LoadSystemPrompt(path)
	if len(got) > maxSystemPromptBytes {
		t.Fatalf("prompt not capped: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("prompt cut inside a rune")
	}
	if got != long[:len(got)] || len(got) != maxSystemPromptBytes-1 {
		t.Fatalf("unexpected cut at %d bytes", len(got))
	}
}
