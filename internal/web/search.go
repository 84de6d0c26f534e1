package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"tripscout/internal/cache"
	"tripscout/internal/config"
	"tripscout/internal/poi"
)

// Extractor turns a markdown page into candidate POIs. The returned list
// is already title-deduplicated; raw is the pre-dedup count.
type Extractor interface {
	Extract(ctx context.Context, markdown, sourceURL string) (candidates []poi.SearchCandidate, raw int, err error)
}

// PageStats receives per-page accounting from the provider.
type PageStats interface {
	PageProcessed(keyword, url string, raw, final int, cacheHit bool)
}

type searchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Provider adapts a SearXNG-compatible search endpoint and runs every hit
// through the cache → reader → extractor chain, returning the flattened
// union of per-URL extractions.
type Provider struct {
	http      *http.Client
	endpoint  string
	limiter   *tokenBucket
	limitCfg  RateLimitConfig
	uaList    []string
	reader    *Reader
	extractor Extractor
	urls      *cache.URLCache
}

func NewProvider(cfg config.WebSearchConfig, reader *Reader, extractor Extractor, urls *cache.URLCache) *Provider {
	limitCfg := DefaultRateLimitConfig()
	refillRate := time.Duration(float64(time.Second) / limitCfg.RequestsPerSecond)
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 12 * time.Second
	}
	return &Provider{
		http:      &http.Client{Timeout: timeout},
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		limiter:   newTokenBucket(limitCfg.BurstSize, refillRate),
		limitCfg:  limitCfg,
		uaList:    browserUserAgents,
		reader:    reader,
		extractor: extractor,
		urls:      urls,
	}
}

// Search runs one keyword through the search endpoint and extracts POI
// candidates from up to n result pages. Per-page results are deduplicated
// by title inside the extractor; cross-page dedup is the orchestrator's.
func (p *Provider) Search(ctx context.Context, keyword, destination string, n int, stats PageStats) ([]poi.SearchCandidate, error) {
	if err := p.limiter.waitForToken(ctx); err != nil {
		return nil, err
	}
	hits, err := p.searchWithRetry(ctx, keyword, n)
	if err != nil {
		return nil, err
	}

	var out []poi.SearchCandidate
	for _, hit := range hits {
		candidates, raw, cacheHit := p.processURL(ctx, hit, destination)
		if stats != nil {
			stats.PageProcessed(keyword, hit.URL, raw, len(candidates), cacheHit)
		}
		out = append(out, candidates...)
	}
	return out, nil
}

// processURL consults the URL cache first; on a miss it reads and extracts
// the page and caches the result. Reader and extractor failures cache an
// empty list so the page is not fetched again.
func (p *Provider) processURL(ctx context.Context, hit searchHit, destination string) ([]poi.SearchCandidate, int, bool) {
	if cached, ok, err := p.urls.Get(hit.URL, destination); err == nil && ok {
		log.Debug().Str("url", hit.URL).Int("pois", len(cached)).Msg("url cache hit")
		return cached, len(cached), true
	}

	markdown, err := p.reader.ReadMarkdown(ctx, hit.URL)
	if err != nil || markdown == "" {
		log.Warn().Str("url", hit.URL).Err(err).Msg("reader failed, caching empty extraction")
		p.putCache(hit.URL, destination, nil)
		return nil, 0, false
	}

	candidates, raw, err := p.extractor.Extract(ctx, markdown, hit.URL)
	if err != nil {
		log.Warn().Str("url", hit.URL).Err(err).Msg("extraction failed, caching empty extraction")
		p.putCache(hit.URL, destination, nil)
		return nil, 0, false
	}

	p.putCache(hit.URL, destination, candidates)
	return candidates, raw, false
}

func (p *Provider) putCache(url, destination string, candidates []poi.SearchCandidate) {
	if err := p.urls.Put(url, destination, candidates); err != nil {
		log.Error().Str("url", url).Err(err).Msg("url cache write failed")
	}
}

func (p *Provider) searchWithRetry(ctx context.Context, query string, max int) ([]searchHit, error) {
	var lastErr error
	cfg := p.limitCfg

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		hits, err := p.search(ctx, query, max)
		if err == nil && len(hits) > 0 {
			return hits, nil
		}
		lastErr = err

		delay := cfg.BaseDelay * (1 << attempt)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		delay += time.Duration(float64(delay) * cfg.JitterPercent * (0.5 + randFloat64()))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("search failed after %d retries: %v", cfg.MaxRetries, lastErr)
}

func (p *Provider) search(ctx context.Context, query string, max int) ([]searchHit, error) {
	hits, err := p.searchJSON(ctx, query, max)
	if err == nil && len(hits) > 0 {
		return hits, nil
	}
	return p.searchHTML(ctx, query, max)
}

func (p *Provider) searchJSON(ctx context.Context, query string, max int) ([]searchHit, error) {
	v := url.Values{}
	v.Set("q", query)
	v.Set("format", "json")
	v.Set("categories", "general")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/search?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", rotateUA(p.uaList))

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search http %d", resp.StatusCode)
	}

	var body struct {
		Results []searchHit `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	hits := make([]searchHit, 0, len(body.Results))
	for i, r := range body.Results {
		if i >= max {
			break
		}
		r.Title = strings.TrimSpace(r.Title)
		hits = append(hits, r)
	}
	return hits, nil
}

// searchHTML is the fallback when the instance refuses JSON.
func (p *Provider) searchHTML(ctx context.Context, query string, max int) ([]searchHit, error) {
	v := url.Values{}
	v.Set("q", query)
	v.Set("categories", "general")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/search?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", rotateUA(p.uaList))

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search http %d", resp.StatusCode)
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var hits []searchHit
	for _, link := range extractLinks(root) {
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		title := link
		if u, err := url.Parse(link); err == nil && u.Host != "" {
			title = u.Host + u.Path
		}
		hits = append(hits, searchHit{Title: title, URL: link})
		if len(hits) >= max {
			break
		}
	}
	return hits, nil
}

func extractLinks(doc *html.Node) []string {
	var urls []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && strings.HasPrefix(attr.Val, "http") {
					urls = append(urls, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return urls
}
