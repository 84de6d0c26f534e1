// Package extract turns page markdown into candidate POIs via the LLM.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"tripscout/internal/llm"
	"tripscout/internal/poi"
)

// placeholderScore marks candidates that have not been reranked yet.
const placeholderScore = 0.5

const extractPrompt = `You are a travel content analyst.

The following markdown is the content of a web page about "%s". Identify
every distinct place a traveler could actually visit (restaurants, cafes,
attractions, accommodation, shopping, entertainment). Skip generic topics,
listicles' intro sections and anything that is not a concrete place.

<page>
%s
</page>

Rules:
1. Use only information present in the page.
2. One <poi> entry per distinct place; do not merge different places.
3. Keep the name exactly as the page spells it.
4. The description is 1-2 sentences about that place only.

Respond in this format:

<poi_list>
<poi>
<name>place name</name>
<description>short description</description>
</poi>
</poi_list>`

var (
	poiBlockRe    = regexp.MustCompile(`(?s)<poi>(.*?)</poi>`)
	nameRe        = regexp.MustCompile(`(?s)<name>(.*?)</name>`)
	descriptionRe = regexp.MustCompile(`(?s)<description>(.*?)</description>`)
)

// Extractor prompts the LLM for (name, description) pairs and wraps them
// as web-sourced candidates with a placeholder score.
type Extractor struct {
	llm     llm.Completer
	maxPage int
}

func New(client llm.Completer) *Extractor {
	return &Extractor{llm: client, maxPage: 12000}
}

// Extract parses candidates out of markdown. The returned list is
// deduplicated by title (case-insensitive, whitespace-normalized);
// rawCount reports the pre-dedup extraction count.
func (e *Extractor) Extract(ctx context.Context, markdown, sourceURL string) ([]poi.SearchCandidate, int, error) {
	page := markdown
	if r := []rune(page); len(r) > e.maxPage {
		page = string(r[:e.maxPage])
	}

	response, err := e.llm.Complete(ctx, fmt.Sprintf(extractPrompt, sourceURL, page))
	if err != nil {
		return nil, 0, fmt.Errorf("extract completion: %w", err)
	}

	raw := 0
	seen := make(map[string]struct{})
	var out []poi.SearchCandidate
	for _, block := range poiBlockRe.FindAllStringSubmatch(response, -1) {
		name := firstGroup(nameRe, block[1])
		if name == "" {
			continue
		}
		raw++
		key := poi.NormalizeName(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, poi.SearchCandidate{
			Title:   name,
			Snippet: firstGroup(descriptionRe, block[1]),
			URL:     sourceURL,
			Source:  poi.SourceWebSearch,
			Score:   placeholderScore,
		})
	}
	return out, raw, nil
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
