package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"tripscout/internal/poi"
)

// State is the mutable record threaded through the orchestrator stages.
// It exists for exactly one run.
type State struct {
	TravelDestination string `json:"travel_destination"`
	PersonaSummary    string `json:"persona_summary"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	Target            int    `json:"target"`

	Keywords          []string              `json:"keywords"`
	WebResults        []poi.SearchCandidate `json:"web_results"`
	EmbeddingResults  []poi.SearchCandidate `json:"embedding_results"`
	RerankedWeb       []poi.SearchCandidate `json:"reranked_web_results"`
	RerankedEmbedding []poi.SearchCandidate `json:"reranked_embedding_results"`
	Merged            []poi.SearchCandidate `json:"merged_results"`
	FinalPOIs         []*poi.POI            `json:"final_pois"`

	// POIData carries every POI seen this run, keyed by id; merged
	// candidates resolve through it.
	POIData map[string]*poi.POI `json:"poi_data_map"`

	Stats *Stats `json:"stats"`
}

func NewState(personaSummary, destination, startDate, endDate string) *State {
	return &State{
		TravelDestination: destination,
		PersonaSummary:    personaSummary,
		StartDate:         startDate,
		EndDate:           endDate,
		POIData:           make(map[string]*poi.POI),
		Stats:             NewStats(),
	}
}

type stateDump struct {
	Metadata struct {
		GeneratedAt string `json:"generated_at"`
	} `json:"metadata"`
	*State
}

// SaveJSON writes the whole state to path with a generation-timestamp
// metadata block. Failures are logged and reported, never fatal.
func (s *State) SaveJSON(path string) bool {
	dump := stateDump{State: s}
	dump.Metadata.GeneratedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("state marshal failed")
		return false
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error().Str("path", path).Err(err).Msg("state save failed")
			return false
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error().Str("path", path).Err(err).Msg("state save failed")
		return false
	}
	log.Info().Str("path", path).Msg("state saved")
	return true
}
