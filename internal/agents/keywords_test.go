package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExpandParsesKeywords(t *testing.T) {
	llm := fakeLLM(func(prompt string) (string, error) {
		if !strings.Contains(prompt, "Seoul") {
			t.Fatalf("prompt must mention the destination")
		}
		if !strings.Contains(prompt, "2026-01-06") {
			t.Fatalf("prompt must carry the travel period")
		}
		return `<keywords>
<keyword>Seoul solo dining</keyword>
<keyword> Seoul winter street food </keyword>
<keyword></keyword>
</keywords>`, nil
	})
	k := NewKeywordExpander(llm)

	got := k.Expand(context.Background(), "20s solo traveller", "Seoul", "2026-01-06", "2026-01-07")
	if len(got) != 2 {
		t.Fatalf("expected 2 keywords, got %v", got)
	}
	if got[0] != "Seoul solo dining" || got[1] != "Seoul winter street food" {
		t.Fatalf("unexpected keywords: %v", got)
	}
}

func TestExpandEmptyOnLLMError(t *testing.T) {
	k := NewKeywordExpander(fakeLLM(func(string) (string, error) {
		return "", errors.New("llm down")
	}))
	if got := k.Expand(context.Background(), "persona", "Seoul", "", ""); got != nil {
		t.Fatalf("expected nil on error, got %v", got)
	}
}

func TestExpandEmptyOnUnparseableEnvelope(t *testing.T) {
	k := NewKeywordExpander(fakeLLM(func(string) (string, error) {
		return "sorry, I cannot help with that", nil
	}))
	if got := k.Expand(context.Background(), "persona", "Seoul", "", ""); got != nil {
		t.Fatalf("expected nil on parse failure, got %v", got)
	}
}

func TestExpandEmptyPersona(t *testing.T) {
	k := NewKeywordExpander(fakeLLM(func(string) (string, error) {
		t.Fatal("llm must not be called without a persona")
		return "", nil
	}))
	if got := k.Expand(context.Background(), "", "Seoul", "", ""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
