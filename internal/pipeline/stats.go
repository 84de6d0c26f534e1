package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"tripscout/internal/agents"
)

// Drop reason kinds counted per run.
const (
	DropSummarizeFailed = "summarize_failed"
	DropMapperFailed    = "mapper_failed"
	DropRerankerFailed  = "reranker_failed"
	DropReaderFailed    = "reader_failed"
	DropStoreWrite      = "store_write_failed"
	DropCacheWrite      = "cache_write_failed"
)

// PageCount is the per-page accounting row recorded during web search.
type PageCount struct {
	Keyword  string `json:"keyword"`
	URL      string `json:"url"`
	Raw      int    `json:"raw"`
	Final    int    `json:"final"`
	CacheHit bool   `json:"cache_hit"`
}

// MergeDupPair records a merge-time duplicate: the incoming title and the
// poi id of the entry it folded into.
type MergeDupPair struct {
	Title string `json:"title"`
	POIID string `json:"poi_id"`
}

// Stats accumulates per-run counters and drop traces. Methods are safe
// for the pipeline's concurrent fan-out stages.
type Stats struct {
	mu sync.Mutex

	Keywords        []string       `json:"keywords"`
	PagesPerKeyword map[string]int `json:"pages_per_keyword"`
	TotalPages      int            `json:"total_pages"`
	CacheHitPages   int            `json:"cache_hit_pages"`
	Pages           []PageCount    `json:"pages"`

	WebRawCount   int `json:"web_raw_count"`
	WebDedupCount int `json:"web_dedup_count"`
	WebFinalCount int `json:"web_final_count"`

	AliasHits         int `json:"alias_hits"`
	ResolverProcessed int `json:"resolver_processed"`

	Drops map[string]int `json:"drops"`

	RerankPre     int                        `json:"rerank_pre"`
	RerankPost    int                        `json:"rerank_post"`
	RerankDropped []agents.DroppedCandidate  `json:"rerank_dropped"`

	EarlyTerminationChecked int `json:"early_termination_checked"`
	EarlyTerminationSkipped int `json:"early_termination_skipped"`

	MergeWebDupCount int            `json:"merge_web_dup_count"`
	MergeEmbDupCount int            `json:"merge_emb_dup_count"`
	MergeWebDupNames []string       `json:"merge_web_dup_names"`
	MergeEmbDupNames []string       `json:"merge_emb_dup_names"`
	MergeDupPairs    []MergeDupPair `json:"merge_dup_pairs"`
}

func NewStats() *Stats {
	return &Stats{
		PagesPerKeyword: make(map[string]int),
		Drops:           make(map[string]int),
	}
}

// PageProcessed implements the web provider's per-page accounting hook.
func (s *Stats) PageProcessed(keyword, url string, raw, final int, cacheHit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PagesPerKeyword[keyword]++
	s.TotalPages++
	if cacheHit {
		s.CacheHitPages++
	}
	s.Pages = append(s.Pages, PageCount{Keyword: keyword, URL: url, Raw: raw, Final: final, CacheHit: cacheHit})
}

// Drop counts one dropped candidate under the given reason kind.
func (s *Stats) Drop(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Drops[kind]++
}

func (s *Stats) AliasHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AliasHits++
}

func (s *Stats) ResolverCall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResolverProcessed++
}

// Report renders the run's counters as a readable text block.
func (s *Stats) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("=== poi search report ===\n")
	fmt.Fprintf(&b, "keywords (%d): %s\n", len(s.Keywords), strings.Join(s.Keywords, ", "))
	for _, kw := range s.Keywords {
		if n, ok := s.PagesPerKeyword[kw]; ok {
			fmt.Fprintf(&b, "  %s: %d pages\n", kw, n)
		}
	}
	fmt.Fprintf(&b, "pages: total=%d cache_hits=%d\n", s.TotalPages, s.CacheHitPages)
	fmt.Fprintf(&b, "web candidates: raw=%d deduped=%d final=%d\n", s.WebRawCount, s.WebDedupCount, s.WebFinalCount)
	fmt.Fprintf(&b, "resolution: alias_hits=%d resolver_processed=%d\n", s.AliasHits, s.ResolverProcessed)

	if len(s.Drops) > 0 {
		kinds := make([]string, 0, len(s.Drops))
		for k := range s.Drops {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		b.WriteString("drops:")
		for _, k := range kinds {
			fmt.Fprintf(&b, " %s=%d", k, s.Drops[k])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "rerank: in=%d out=%d dropped=%d\n", s.RerankPre, s.RerankPost, len(s.RerankDropped))
	for _, d := range s.RerankDropped {
		fmt.Fprintf(&b, "  dropped %q score=%.2f\n", d.Title, d.Score)
	}
	fmt.Fprintf(&b, "early termination: checked=%d skipped=%d\n", s.EarlyTerminationChecked, s.EarlyTerminationSkipped)
	fmt.Fprintf(&b, "merge dedup: web=%d emb=%d total=%d\n",
		s.MergeWebDupCount, s.MergeEmbDupCount, s.MergeWebDupCount+s.MergeEmbDupCount)
	if len(s.MergeWebDupNames) > 0 {
		fmt.Fprintf(&b, "  web dups: %s\n", strings.Join(s.MergeWebDupNames, ", "))
	}
	if len(s.MergeEmbDupNames) > 0 {
		fmt.Fprintf(&b, "  emb dups: %s\n", strings.Join(s.MergeEmbDupNames, ", "))
	}
	return b.String()
}
