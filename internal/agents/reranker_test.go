package agents

import (
	"context"
	"errors"
	"testing"

	"tripscout/internal/poi"
)

type fakeLLM func(prompt string) (string, error)

func (f fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	return f(prompt)
}

func candidates(titles ...string) []poi.SearchCandidate {
	out := make([]poi.SearchCandidate, len(titles))
	for i, t := range titles {
		out[i] = poi.SearchCandidate{Title: t, Snippet: "snippet", Source: poi.SourceWebSearch, Score: 0.5}
	}
	return out
}

func TestRerankScoresAndSorts(t *testing.T) {
	llm := fakeLLM(func(string) (string, error) {
		return `<scores>
<score id="1">0.60</score>
<score id="2">0.95</score>
<score id="3">0.30</score>
</scores>`, nil
	})
	r := NewReranker(llm, 0.5)

	var dropped []DroppedCandidate
	out := r.Rerank(context.Background(), candidates("a", "b", "c"), "persona", &dropped)

	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	if out[0].Title != "b" || out[0].Score != 0.95 {
		t.Fatalf("expected b first with 0.95, got %+v", out[0])
	}
	if out[1].Title != "a" || out[1].Score != 0.60 {
		t.Fatalf("expected a second with 0.60, got %+v", out[1])
	}
	if len(dropped) != 1 || dropped[0].Title != "c" || dropped[0].Score != 0.30 {
		t.Fatalf("expected c dropped at 0.30, got %+v", dropped)
	}
}

func TestRerankErrorReturnsInputUnchanged(t *testing.T) {
	llm := fakeLLM(func(string) (string, error) {
		return "", errors.New("llm down")
	})
	r := NewReranker(llm, 0.5)

	in := candidates("a", "b")
	out := r.Rerank(context.Background(), in, "persona", nil)
	if len(out) != 2 {
		t.Fatalf("failed batch must come back whole, got %d", len(out))
	}
	if out[0].Score != 0.5 || out[1].Score != 0.5 {
		t.Fatalf("scores must stay untouched on failure: %+v", out)
	}
}

func TestRerankEmptyInput(t *testing.T) {
	r := NewReranker(fakeLLM(func(string) (string, error) {
		t.Fatal("llm must not be called for an empty batch")
		return "", nil
	}), 0.5)
	if out := r.Rerank(context.Background(), nil, "persona", nil); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}

func TestParseScoresClampsAndIgnoresJunk(t *testing.T) {
	scores := parseScores(`<scores>
<score id="1">1.7</score>
<score id="2">-0.2</score>
<score id="9">0.5</score>
<score id="x">0.5</score>
</scores>`, 3)
	if scores[0] != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %f", scores[0])
	}
	// "-0.2" does not match the numeric pattern and is skipped entirely.
	if scores[1] != 0.0 {
		t.Fatalf("expected 0.0 for unparsed id 2, got %f", scores[1])
	}
	if scores[2] != 0.0 {
		t.Fatalf("out-of-range id must be ignored, got %f", scores[2])
	}
}

func TestParseScoresMissingIDsScoreZero(t *testing.T) {
	scores := parseScores(`<scores><score id="2">0.8</score></scores>`, 3)
	if scores[0] != 0 || scores[1] != 0.8 || scores[2] != 0 {
		t.Fatalf("unexpected scores: %v", scores)
	}
}
