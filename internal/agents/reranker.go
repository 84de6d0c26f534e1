package agents

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"tripscout/internal/llm"
	"tripscout/internal/poi"
)

const rerankPrompt = `You are a travel POI relevance judge.

Score how relevant each search result below is to the traveler persona,
from 0.0 to 1.0.

<persona>
%s
</persona>

<search_results>
%s
</search_results>

Consider taste, budget and travel style fit; higher means a better match
for this traveler.

Respond in result id order:
<scores>
<score id="1">0.85</score>
<score id="2">0.72</score>
</scores>`

var scoreRe = regexp.MustCompile(`<score id="(\d+)">([\d.]+)</score>`)

// DroppedCandidate records a candidate removed by the minimum-score gate.
type DroppedCandidate struct {
	Title string
	Score float64
}

// Reranker scores candidates against the persona with one LLM call per
// batch. Candidates below MinScore are dropped; the survivors come back
// sorted descending by score.
type Reranker struct {
	llm      llm.Completer
	MinScore float64
}

func NewReranker(client llm.Completer, minScore float64) *Reranker {
	return &Reranker{llm: client, MinScore: minScore}
}

// Rerank scores one batch. On an LLM failure the input is returned as-is
// (scores untouched) rather than losing the whole batch. When dropped is
// non-nil, removed candidates are appended to it as (title, score).
func (r *Reranker) Rerank(ctx context.Context, candidates []poi.SearchCandidate, personaSummary string, dropped *[]DroppedCandidate) []poi.SearchCandidate {
	if len(candidates) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(rerankPrompt, personaSummary, formatCandidates(candidates))
	response, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Int("batch", len(candidates)).Msg("rerank failed, returning batch unscored")
		return candidates
	}

	scores := parseScores(response, len(candidates))

	type scored struct {
		candidate poi.SearchCandidate
		score     float64
	}
	pairs := make([]scored, len(candidates))
	for i, c := range candidates {
		pairs[i] = scored{candidate: c, score: scores[i]}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	var out []poi.SearchCandidate
	for _, p := range pairs {
		if p.score < r.MinScore {
			if dropped != nil {
				*dropped = append(*dropped, DroppedCandidate{Title: p.candidate.Title, Score: p.score})
			}
			continue
		}
		c := p.candidate
		c.Score = p.score
		out = append(out, c)
	}
	return out
}

func formatCandidates(candidates []poi.SearchCandidate) string {
	var b strings.Builder
	for i, c := range candidates {
		snippet := c.Snippet
		if r := []rune(snippet); len(r) > 200 {
			snippet = string(r[:200])
		}
		fmt.Fprintf(&b, "<result id=\"%d\">\n", i+1)
		fmt.Fprintf(&b, "  <title>%s</title>\n", c.Title)
		fmt.Fprintf(&b, "  <content>%s</content>\n", snippet)
		b.WriteString("</result>\n")
	}
	return b.String()
}

// parseScores reads the score envelope; missing ids stay 0.0 and values
// clamp into [0, 1].
func parseScores(response string, count int) []float64 {
	scores := make([]float64, count)
	for _, m := range scoreRe.FindAllStringSubmatch(response, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		if idx >= 1 && idx <= count {
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
			scores[idx-1] = score
		}
	}
	return scores
}
