package pipeline

import (
	"strings"
	"testing"

	"tripscout/internal/agents"
)

func TestStatsReportContents(t *testing.T) {
	s := NewStats()
	s.Keywords = []string{"seoul food", "seoul cafes"}
	s.PageProcessed("seoul food", "https://b/1", 4, 3, false)
	s.PageProcessed("seoul food", "https://b/2", 2, 2, true)
	s.PageProcessed("seoul cafes", "https://b/3", 5, 5, false)
	s.WebRawCount = 11
	s.WebDedupCount = 1
	s.WebFinalCount = 10
	s.AliasHit()
	s.ResolverCall()
	s.Drop(DropSummarizeFailed)
	s.Drop(DropMapperFailed)
	s.Drop(DropMapperFailed)
	s.RerankPre = 10
	s.RerankPost = 7
	s.RerankDropped = append(s.RerankDropped, agents.DroppedCandidate{Title: "meh spot", Score: 0.2})
	s.EarlyTerminationChecked = 30
	s.EarlyTerminationSkipped = 20
	s.MergeEmbDupCount = 2
	s.MergeEmbDupNames = []string{"남산타워"}

	report := s.Report()
	for _, want := range []string{
		"keywords (2)",
		"seoul food: 2 pages",
		"total=3 cache_hits=1",
		"raw=11 deduped=1 final=10",
		"alias_hits=1 resolver_processed=1",
		"mapper_failed=2",
		"summarize_failed=1",
		"in=10 out=7 dropped=1",
		`dropped "meh spot" score=0.20`,
		"checked=30 skipped=20",
		"web=0 emb=2 total=2",
		"남산타워",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestStatsConcurrentUpdates(t *testing.T) {
	s := NewStats()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				s.Drop(DropMapperFailed)
				s.AliasHit()
				s.PageProcessed("kw", "u", 1, 1, j%2 == 0)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	if s.Drops[DropMapperFailed] != 800 {
		t.Fatalf("expected 800 drops, got %d", s.Drops[DropMapperFailed])
	}
	if s.AliasHits != 800 || s.TotalPages != 800 || s.CacheHitPages != 400 {
		t.Fatalf("unexpected counters: %+v", s)
	}
}
