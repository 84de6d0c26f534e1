// Package agents holds the LLM-backed pipeline stages: keyword expansion,
// candidate summarization and persona reranking.
package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"tripscout/internal/llm"
)

const keywordPrompt = `You are a travel search keyword specialist.

A traveler is planning a trip to "%[1]s". Analyze the persona and travel
period below and produce POI search keywords this traveler would respond to
at that destination.

<destination>
%[1]s
</destination>

<travel_period>
start: %[2]s
end: %[3]s
</travel_period>

<persona>
%[4]s
</persona>

Guidelines:
- Every keyword must be specific to "%[1]s" and written the way locals
  search (use the destination's language where natural).
- Reflect the traveler's style, tastes, budget and companions.
- Factor in the season and dates: seasonal activities, festivals and
  events running in that window, seasonal foods, weather-appropriate
  options. Exclude activities impossible in that season.
- Produce 5-10 keywords across varied categories (food, cafes, sights,
  shopping, activities).
- Every keyword must contain the destination name "%[1]s".

Respond in this format:

<keywords>
<keyword>%[1]s solo dining</keyword>
<keyword>%[1]s local cafes</keyword>
</keywords>`

var keywordRe = regexp.MustCompile(`(?s)<keyword>(.*?)</keyword>`)

// KeywordExpander derives destination-localized search keywords from the
// persona and travel window.
type KeywordExpander struct {
	llm llm.Completer
}

func NewKeywordExpander(client llm.Completer) *KeywordExpander {
	return &KeywordExpander{llm: client}
}

// Expand returns the ordered keyword list. Keywords that do not contain the
// destination name (compared case-insensitively) are discarded. Parse
// failures and LLM errors yield an empty list; the caller decides how to
// proceed without keywords.
func (k *KeywordExpander) Expand(ctx context.Context, personaSummary, destination, startDate, endDate string) []string {
	if personaSummary == "" {
		return nil
	}

	prompt := fmt.Sprintf(keywordPrompt, destination, startDate, endDate, personaSummary)
	response, err := k.llm.Complete(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("keyword expansion failed")
		return nil
	}

	dest := strings.ToLower(destination)
	var keywords []string
	for _, m := range keywordRe.FindAllStringSubmatch(response, -1) {
		kw := strings.TrimSpace(m[1])
		if kw == "" || !strings.Contains(strings.ToLower(kw), dest) {
			continue
		}
		keywords = append(keywords, kw)
	}
	return keywords
}
