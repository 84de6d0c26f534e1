// poisearch runs one POI retrieval pipeline pass from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"tripscout/internal/agents"
	"tripscout/internal/cache"
	"tripscout/internal/config"
	"tripscout/internal/embedding"
	"tripscout/internal/extract"
	"tripscout/internal/llm"
	"tripscout/internal/logging"
	"tripscout/internal/obs"
	"tripscout/internal/pipeline"
	"tripscout/internal/places"
	"tripscout/internal/vectorstore"
	"tripscout/internal/web"
)

func main() {
	logging.Setup()

	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	persona := flag.String("persona", "", "persona summary text")
	destination := flag.String("destination", "", "travel destination city")
	startDate := flag.String("start", "", "trip start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "trip end date (YYYY-MM-DD)")
	savePath := flag.String("save", "", "optional path for the pipeline state dump")
	flag.Parse()

	if *destination == "" {
		fmt.Fprintln(os.Stderr, "usage: poisearch -destination <city> -persona <text> [-start YYYY-MM-DD -end YYYY-MM-DD]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := embedding.NewClient(cfg.Embeddings)
	store, err := vectorstore.New(cfg.VectorStore.DSN, cfg.VectorStore.Collection, cfg.Embeddings.Dimensions, enc)
	if err != nil {
		log.Fatal().Err(err).Msg("vector store init failed")
	}
	defer store.Close()

	alias, err := cache.NewAliasCache(filepath.Join(cfg.DataPath, "poi_alias_cache"))
	if err != nil {
		log.Fatal().Err(err).Msg("alias cache init failed")
	}
	defer alias.Close()

	urls, err := cache.NewURLCache(filepath.Join(cfg.DataPath, "url_cache"))
	if err != nil {
		log.Fatal().Err(err).Msg("url cache init failed")
	}
	defer urls.Close()

	cities := cache.NewCityCache(filepath.Join(cfg.DataPath, "city_location_cache.json"))

	llmClient := llm.NewClient(cfg.Completions)
	reader := web.NewReader(cfg.Reader)
	extractor := extract.New(llmClient)
	provider := web.NewProvider(cfg.WebSearch, reader, extractor, urls)
	resolver := places.NewResolver(cfg.Places, cities)

	orch := pipeline.New(cfg.Pipeline, cfg.WebSearch.ResultSize, pipeline.Deps{
		Store:      store,
		Alias:      alias,
		Search:     provider,
		Keywords:   agents.NewKeywordExpander(llmClient),
		Summarizer: agents.NewSummarizer(llmClient),
		Reranker:   agents.NewReranker(llmClient, cfg.Pipeline.RerankMinScore),
		Resolver:   resolver,
		Metrics:    obs.NewOtelMetrics(),
	})

	pois, _, err := orch.Run(ctx, *persona, *destination, *startDate, *endDate, *savePath)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline run failed")
	}

	fmt.Printf("%d POIs for %s:\n", len(pois), *destination)
	for i, p := range pois {
		fmt.Printf("%2d. %s [%s]", i+1, p.Name, p.Category)
		if p.Rating > 0 {
			fmt.Printf(" %.1f★ (%d)", p.Rating, p.RatingCount)
		}
		if p.Address != "" {
			fmt.Printf(" — %s", p.Address)
		}
		fmt.Println()
	}
}
