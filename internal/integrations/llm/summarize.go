package llm

import (
	"context"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"worklogbot/internal/domain"
)

// maxSystemPromptBytes caps the system prompt; longer files are cut at a
// rune boundary.
const maxSystemPromptBytes = 8000

var cjkPattern = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)

// ContainsCJK reports whether s holds any CJK unified ideograph.
func ContainsCJK(s string) bool {
	return cjkPattern.MatchString(s)
}

// Summarizer turns a work-log prompt into a natural-language summary.
type Summarizer struct {
	Provider Provider
	Model    string
	Timeout  time.Duration
}

// Summarize asks the provider once, and once more if the first answer
// contains CJK ideographs. The second answer is returned as is. Every
// failure, including an empty answer, wraps domain.ErrModel.
func (s Summarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	text, err := s.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if ContainsCJK(text) {
		log.Printf("llm summarize retry provider=%s model=%s reason=cjk", s.Provider.Name(), s.Model)
		text, err = s.complete(ctx, prompt)
		if err != nil {
			return "", err
		}
	}
	return text, nil
}

func (s Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	text, err := s.Provider.Complete(ctx, prompt, s.Model)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrModel, s.Provider.Name(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned an empty answer", domain.ErrModel, s.Provider.Name())
	}
	return text, nil
}

// LoadSystemPrompt reads an optional system prompt file. A missing or
// unreadable file yields an empty prompt.
func LoadSystemPrompt(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("llm system prompt skipped path=%s err=%v", path, err)
		return ""
	}
	text := strings.TrimSpace(string(data))
	if len(text) > maxSystemPromptBytes {
		cut := maxSystemPromptBytes
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
