package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"tripscout/internal/llm"
	"tripscout/internal/poi"
)

const summarizePrompt = `You are a travel search summarization specialist.
A poi is one concrete place. Extract the place information from the search
result below and describe that poi.

<persona>
%s
</persona>

<search_result>
<title>%s</title>
<content>%s</content>
<url>%s</url>
</search_result>

Strict rules:
1. Use only information present in the search result.
2. Do not guess or assume; leave a field empty when the result is silent.
3. Describe exactly one place — the one the result is about.

Respond in this format:

<poi>
<name>place name (exact business name)</name>
<category>restaurant|cafe|attraction|accommodation|shopping|entertainment|other</category>
<description>objective description of this place, 2-3 sentences</description>
<address>address, empty if not in the result</address>
<summary>why this traveler should go, 2-3 sentences tailored to the persona</summary>
<highlights>feature 1, feature 2, feature 3</highlights>
</poi>`

var (
	categoryRe   = regexp.MustCompile(`(?s)<category>(.*?)</category>`)
	addressRe    = regexp.MustCompile(`(?s)<address>(.*?)</address>`)
	summaryRe    = regexp.MustCompile(`(?s)<summary>(.*?)</summary>`)
	highlightsRe = regexp.MustCompile(`(?s)<highlights>(.*?)</highlights>`)
)

// Summarizer produces a structured POI summary for one candidate.
type Summarizer struct {
	llm llm.Completer
}

func NewSummarizer(client llm.Completer) *Summarizer {
	return &Summarizer{llm: client}
}

// Summarize returns nil when the LLM fails or the envelope does not parse;
// the caller drops the candidate.
func (s *Summarizer) Summarize(ctx context.Context, candidate poi.SearchCandidate, personaSummary string) *poi.Info {
	persona := personaSummary
	if persona == "" {
		persona = "no persona available"
	}
	prompt := fmt.Sprintf(summarizePrompt, persona, candidate.Title, candidate.Snippet, candidate.URL)

	response, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		log.Warn().Str("title", candidate.Title).Err(err).Msg("summarize failed")
		return nil
	}

	block := firstMatch(poiBlockRe, response)
	if block == "" {
		return nil
	}
	name := firstMatch(nameRe, block)
	if name == "" {
		return nil
	}

	info := &poi.Info{
		Name:        name,
		Category:    poi.ParseCategory(firstMatch(categoryRe, block)),
		Description: firstMatch(descriptionRe, block),
		Summary:     firstMatch(summaryRe, block),
		Address:     firstMatch(addressRe, block),
	}
	if raw := firstMatch(highlightsRe, block); raw != "" {
		for _, h := range strings.Split(raw, ",") {
			if h = strings.TrimSpace(h); h != "" {
				info.Highlights = append(info.Highlights, h)
			}
		}
	}
	return info
}

var (
	poiBlockRe    = regexp.MustCompile(`(?s)<poi>(.*?)</poi>`)
	nameRe        = regexp.MustCompile(`(?s)<name>(.*?)</name>`)
	descriptionRe = regexp.MustCompile(`(?s)<description>(.*?)</description>`)
)

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
