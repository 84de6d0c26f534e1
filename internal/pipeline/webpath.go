package pipeline

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"tripscout/internal/poi"
)

// webSearch fans out over the first keyword_k keywords in parallel and
// title-deduplicates the flattened result set.
func (o *Orchestrator) webSearch(ctx context.Context, st *State) error {
	keywords := st.Keywords
	if len(keywords) > o.cfg.KeywordK {
		keywords = keywords[:o.cfg.KeywordK]
	}

	results := make([][]poi.SearchCandidate, len(keywords))
	g, gctx := errgroup.WithContext(ctx)
	for i, kw := range keywords {
		g.Go(func() error {
			candidates, err := o.search.Search(gctx, kw, st.TravelDestination, o.webK, st.Stats)
			if err != nil {
				log.Error().Str("keyword", kw).Err(err).Msg("web search failed")
				return nil
			}
			results[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var flat []poi.SearchCandidate
	for _, r := range results {
		flat = append(flat, r...)
	}

	seen := make(map[string]struct{}, len(flat))
	var deduped []poi.SearchCandidate
	for _, c := range flat {
		key := poi.NormalizeName(c.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, c)
	}

	st.WebResults = deduped
	st.Stats.WebRawCount = len(flat)
	st.Stats.WebDedupCount = len(flat) - len(deduped)
	st.Stats.WebFinalCount = len(deduped)
	o.metrics.IncCounter("pipeline.web_searches", nil)
	log.Info().Int("raw", len(flat)).Int("final", len(deduped)).Msg("web search complete")
	return nil
}

// candidateOutcome is the per-candidate result of the resolution chain.
type candidateOutcome struct {
	candidate *poi.SearchCandidate
	newPOI    *poi.POI
	existing  *poi.POI
	aliasHit  bool
	dropKind  string
}

// processAndRerankWeb resolves candidates in batches, admits new POIs to
// the vector store and reranks each batch, stopping early once enough
// good candidates have accumulated.
func (o *Orchestrator) processAndRerankWeb(ctx context.Context, st *State) error {
	candidates := st.WebResults
	processed := 0

	for start := 0; start < len(candidates); start += o.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + o.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		outcomes, err := o.processBatch(ctx, st, batch)
		if err != nil {
			return err
		}

		var admit []*poi.POI
		var rerankInput []poi.SearchCandidate
		for _, out := range outcomes {
			if out.dropKind != "" {
				st.Stats.Drop(out.dropKind)
				o.metrics.IncCounter("pipeline.drops", map[string]string{"kind": out.dropKind})
				continue
			}
			if out.aliasHit {
				st.Stats.AliasHit()
			}
			if out.newPOI != nil {
				admit = append(admit, out.newPOI)
				st.POIData[out.newPOI.ID] = out.newPOI
			}
			if out.existing != nil {
				st.POIData[out.existing.ID] = out.existing
			}
			rerankInput = append(rerankInput, *out.candidate)
		}

		if len(admit) > 0 {
			written, err := o.store.AddBatch(ctx, admit)
			if err != nil {
				// Candidates stay in the data map and are still returned.
				st.Stats.Drop(DropStoreWrite)
				log.Error().Err(err).Int("pois", len(admit)).Msg("vector store admission failed")
			} else {
				o.metrics.IncCounter("pipeline.pois_admitted", nil)
				log.Info().Int("written", written).Msg("pois admitted to vector store")
			}
		}

		st.Stats.RerankPre += len(rerankInput)
		reranked := o.reranker.Rerank(ctx, rerankInput, st.PersonaSummary, &st.Stats.RerankDropped)
		st.Stats.RerankPost += len(reranked)
		st.RerankedWeb = append(st.RerankedWeb, reranked...)

		processed += len(batch)
		st.Stats.EarlyTerminationChecked = processed

		good := 0
		for _, c := range st.RerankedWeb {
			if c.Score >= o.cfg.RerankMinScore {
				good++
			}
		}
		if good >= st.Target {
			st.Stats.EarlyTerminationSkipped = len(candidates) - processed
			log.Info().Int("good", good).Int("target", st.Target).Int("skipped", st.Stats.EarlyTerminationSkipped).
				Msg("early termination")
			break
		}
	}

	sortByScore(st.RerankedWeb)
	return nil
}

// processBatch runs the summarize → alias → resolver chain for each
// candidate in the batch, bounded by the configured semaphore.
func (o *Orchestrator) processBatch(ctx context.Context, st *State, batch []poi.SearchCandidate) ([]candidateOutcome, error) {
	sem := semaphore.NewWeighted(int64(o.cfg.SemaphoreLimit))
	outcomes := make([]candidateOutcome, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, candidate := range batch {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			outcomes[i] = o.processCandidate(gctx, st, candidate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// processCandidate resolves one web candidate. The alias cache short-cuts
// both known names and newly discovered alternate names of known places;
// only genuinely new places go to the vector store for admission.
func (o *Orchestrator) processCandidate(ctx context.Context, st *State, candidate poi.SearchCandidate) candidateOutcome {
	info := o.summarizer.Summarize(ctx, candidate, st.PersonaSummary)
	if info == nil {
		return candidateOutcome{dropKind: DropSummarizeFailed}
	}

	destination := st.TravelDestination

	placeID, err := o.alias.FindByName(info.Name, destination)
	if err != nil {
		log.Error().Err(err).Msg("alias lookup failed")
	}
	if placeID != "" {
		if existing, err := o.store.FindByPlaceID(ctx, placeID, destination); err == nil && existing != nil {
			return candidateOutcome{
				candidate: referenceCandidate(candidate, existing),
				existing:  existing,
				aliasHit:  true,
			}
		}
	}

	st.Stats.ResolverCall()
	resolved, err := o.resolver.MapPOI(ctx, info, destination, candidate.URL)
	if err != nil {
		log.Info().Str("name", info.Name).Err(err).Msg("candidate dropped by resolver")
		return candidateOutcome{dropKind: DropMapperFailed}
	}

	known, err := o.alias.HasPlaceID(resolved.PlaceID)
	if err != nil {
		log.Error().Err(err).Msg("place id lookup failed")
	}
	if known {
		// Newly discovered alternate name for an already-known place.
		o.registerAlias(st, info.Name, destination, resolved.PlaceID)
		if existing, err := o.store.FindByPlaceID(ctx, resolved.PlaceID, destination); err == nil && existing != nil {
			return candidateOutcome{
				candidate: referenceCandidate(candidate, existing),
				existing:  existing,
				aliasHit:  true,
			}
		}
		// The alias row exists but the store lost the record; fall
		// through and re-admit.
	}

	o.registerAlias(st, info.Name, destination, resolved.PlaceID)
	c := referenceCandidate(candidate, resolved)
	return candidateOutcome{candidate: c, newPOI: resolved}
}

func (o *Orchestrator) registerAlias(st *State, name, city, placeID string) {
	if err := o.alias.Add(name, city, placeID); err != nil {
		st.Stats.Drop(DropCacheWrite)
		log.Error().Str("name", name).Err(err).Msg("alias write failed")
	}
}

// referenceCandidate keeps the current web title/snippet/url but points
// the candidate at the given POI record.
func referenceCandidate(c poi.SearchCandidate, p *poi.POI) *poi.SearchCandidate {
	return &poi.SearchCandidate{
		POIID:   p.ID,
		Title:   c.Title,
		Snippet: c.Snippet,
		URL:     c.URL,
		Source:  poi.SourceWebSearch,
		Score:   c.Score,
	}
}

func sortByScore(candidates []poi.SearchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
}
