// Package pipeline coordinates the POI retrieval stages: keyword
// expansion, vector-store first pass, conditional web fan-out, candidate
// resolution and admission, batch reranking and final merge.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tripscout/internal/agents"
	"tripscout/internal/config"
	"tripscout/internal/obs"
	"tripscout/internal/poi"
	"tripscout/internal/vectorstore"
	"tripscout/internal/web"
)

const embeddingRerankBatch = 5

// VectorStore is the slice of the store the orchestrator touches.
type VectorStore interface {
	SearchByTextWithData(ctx context.Context, text string, k int, cityFilter string) ([]vectorstore.Hit, error)
	FindByPlaceID(ctx context.Context, placeID, cityFilter string) (*poi.POI, error)
	AddBatch(ctx context.Context, pois []*poi.POI) (int, error)
}

// AliasCache is the alias store contract.
type AliasCache interface {
	FindByName(name, city string) (string, error)
	HasPlaceID(placeID string) (bool, error)
	Add(name, city, placeID string) error
}

// SearchProvider runs one keyword through web search plus extraction.
type SearchProvider interface {
	Search(ctx context.Context, keyword, destination string, n int, stats web.PageStats) ([]poi.SearchCandidate, error)
}

// KeywordExpander produces destination-localized search keywords.
type KeywordExpander interface {
	Expand(ctx context.Context, personaSummary, destination, startDate, endDate string) []string
}

// Summarizer turns one raw candidate into a structured POI summary.
type Summarizer interface {
	Summarize(ctx context.Context, candidate poi.SearchCandidate, personaSummary string) *poi.Info
}

// Reranker scores a batch of candidates against the persona.
type Reranker interface {
	Rerank(ctx context.Context, candidates []poi.SearchCandidate, personaSummary string, dropped *[]agents.DroppedCandidate) []poi.SearchCandidate
}

// Resolver verifies a summarized candidate against the place provider.
type Resolver interface {
	MapPOI(ctx context.Context, info *poi.Info, city, sourceURL string) (*poi.POI, error)
}

// Orchestrator owns handles to every component; components never hold
// back-references, keeping ownership a tree.
type Orchestrator struct {
	cfg        config.PipelineConfig
	webK       int
	store      VectorStore
	alias      AliasCache
	search     SearchProvider
	keywords   KeywordExpander
	summarizer Summarizer
	reranker   Reranker
	resolver   Resolver
	metrics    obs.Metrics
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Store      VectorStore
	Alias      AliasCache
	Search     SearchProvider
	Keywords   KeywordExpander
	Summarizer Summarizer
	Reranker   Reranker
	Resolver   Resolver
	Metrics    obs.Metrics
}

func New(cfg config.PipelineConfig, webSearchK int, deps Deps) *Orchestrator {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = obs.NoopMetrics{}
	}
	return &Orchestrator{
		cfg:        cfg,
		webK:       webSearchK,
		store:      deps.Store,
		alias:      deps.Alias,
		search:     deps.Search,
		keywords:   deps.Keywords,
		summarizer: deps.Summarizer,
		reranker:   deps.Reranker,
		resolver:   deps.Resolver,
		metrics:    metrics,
	}
}

// stage enumerates the state machine nodes.
type stage int

const (
	stageExtractKeywords stage = iota
	stageVectorFirstSearch
	stageRerankEmbedding
	stageWebSearch
	stageProcessWeb
	stageMergeResults
	stageDone
)

// Run executes one retrieval run. Returned POIs are ordered by the
// merger's fused score. An empty persona summary short-circuits to an
// empty result without touching any external provider.
func (o *Orchestrator) Run(ctx context.Context, personaSummary, destination, startDate, endDate, savePath string) ([]*poi.POI, *State, error) {
	st := NewState(personaSummary, destination, startDate, endDate)
	st.Target = computeTarget(startDate, endDate, o.cfg.FinalPOICount)

	if personaSummary == "" {
		log.Warn().Msg("empty persona summary, returning empty result")
		return nil, st, nil
	}

	current := stageExtractKeywords
	for current != stageDone {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}

		var err error
		switch current {
		case stageExtractKeywords:
			o.extractKeywords(ctx, st)
			current = stageVectorFirstSearch
		case stageVectorFirstSearch:
			o.vectorFirstSearch(ctx, st)
			current = stageRerankEmbedding
		case stageRerankEmbedding:
			o.rerankEmbedding(ctx, st)
			switch {
			case len(st.RerankedEmbedding) >= st.Target:
				log.Info().Int("reranked", len(st.RerankedEmbedding)).Int("target", st.Target).
					Msg("embedding branch sufficient, skipping web search")
				current = stageMergeResults
			case len(st.Keywords) == 0:
				log.Warn().Msg("no keywords extracted, skipping web search")
				current = stageMergeResults
			default:
				current = stageWebSearch
			}
		case stageWebSearch:
			err = o.webSearch(ctx, st)
			current = stageProcessWeb
		case stageProcessWeb:
			err = o.processAndRerankWeb(ctx, st)
			current = stageMergeResults
		case stageMergeResults:
			o.mergeStage(ctx, st)
			current = stageDone
		}
		if err != nil {
			log.Error().Err(err).Msg("pipeline aborted")
			log.Info().Msg("\n" + st.Stats.Report())
			return nil, st, err
		}
	}

	log.Info().Msg("\n" + st.Stats.Report())
	if savePath != "" {
		st.SaveJSON(savePath)
	}
	return st.FinalPOIs, st, nil
}

// computeTarget derives the desired final POI count from the trip length
// (5 per travel day), falling back when the dates are absent or invalid.
func computeTarget(startDate, endDate string, fallback int) int {
	start, err1 := time.Parse("2006-01-02", startDate)
	end, err2 := time.Parse("2006-01-02", endDate)
	if err1 != nil || err2 != nil || end.Before(start) {
		return fallback
	}
	days := int(end.Sub(start).Hours()/24) + 1
	return days * 5
}

func (o *Orchestrator) extractKeywords(ctx context.Context, st *State) {
	st.Keywords = o.keywords.Expand(ctx, st.PersonaSummary, st.TravelDestination, st.StartDate, st.EndDate)
	st.Stats.Keywords = st.Keywords
	log.Info().Strs("keywords", st.Keywords).Msg("keywords extracted")
}

// vectorFirstSearch issues the single persona-text query against the
// vector store, keeps hits above the relevance floor and records their
// full POI records in the data map.
func (o *Orchestrator) vectorFirstSearch(ctx context.Context, st *State) {
	query := st.PersonaSummary
	if query == "" {
		query = joinKeywords(st.Keywords)
	}

	hits, err := o.store.SearchByTextWithData(ctx, query, o.cfg.EmbeddingK, st.TravelDestination)
	if err != nil {
		log.Error().Err(err).Msg("vector store first search failed")
		return
	}

	for _, h := range hits {
		if h.Candidate.Score < o.cfg.RelevanceFloor {
			continue
		}
		st.EmbeddingResults = append(st.EmbeddingResults, h.Candidate)
		if h.POI != nil {
			st.POIData[h.POI.ID] = h.POI
		}
	}
	o.metrics.IncCounter("pipeline.vector_first_search", nil)
	log.Info().Int("hits", len(hits)).Int("kept", len(st.EmbeddingResults)).Msg("vector store first search")
}

func (o *Orchestrator) rerankEmbedding(ctx context.Context, st *State) {
	for start := 0; start < len(st.EmbeddingResults); start += embeddingRerankBatch {
		end := start + embeddingRerankBatch
		if end > len(st.EmbeddingResults) {
			end = len(st.EmbeddingResults)
		}
		batch := o.reranker.Rerank(ctx, st.EmbeddingResults[start:end], st.PersonaSummary, &st.Stats.RerankDropped)
		st.RerankedEmbedding = append(st.RerankedEmbedding, batch...)
	}
	sortByScore(st.RerankedEmbedding)
}

func (o *Orchestrator) mergeStage(ctx context.Context, st *State) {
	merged, embDupPairs := mergeResults(
		st.RerankedWeb, st.RerankedEmbedding,
		o.cfg.WebWeight, o.cfg.EmbeddingWeight,
		st.Stats,
	)
	st.Merged = merged

	// Each web-to-embedding duplicate pair carries the embedding
	// candidate's title; register it as an alias of the known place.
	for _, pair := range embDupPairs {
		p := st.POIData[pair.POIID]
		if p == nil || p.PlaceID == "" {
			continue
		}
		if err := o.alias.Add(pair.Title, st.TravelDestination, p.PlaceID); err != nil {
			st.Stats.Drop(DropCacheWrite)
			log.Error().Str("title", pair.Title).Err(err).Msg("merge alias registration failed")
		}
	}

	for _, c := range st.Merged {
		p := st.POIData[c.POIID]
		if p == nil {
			log.Warn().Str("poi_id", c.POIID).Str("title", c.Title).Msg("merged candidate missing from poi data map")
			continue
		}
		st.FinalPOIs = append(st.FinalPOIs, p)
	}
	o.metrics.IncCounter("pipeline.runs_merged", nil)
	log.Info().Int("merged", len(st.Merged)).Int("final", len(st.FinalPOIs)).Msg("results merged")
}

func joinKeywords(keywords []string) string {
	out := ""
	for i, k := range keywords {
		if i > 0 {
			out += " "
		}
		out += k
	}
	return out
}
