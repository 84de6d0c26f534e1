// Package vectorstore persists POI embeddings in a qdrant collection and
// serves similarity search with metadata filtering.
package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"tripscout/internal/embedding"
	"tripscout/internal/poi"
)

// Hit pairs a search candidate with the fully reconstructed POI record.
type Hit struct {
	Candidate poi.SearchCandidate
	POI       *poi.POI
}

// Store is a persistent ANN index over POIs using cosine similarity.
// An initialization failure is sticky: the store degrades to returning
// empty search results instead of failing each call.
type Store struct {
	client     *qdrant.Client
	collection string
	dim        int
	enc        *embedding.Client

	initOnce sync.Once
	initErr  error

	// add_batch is serialized per collection; searches stay concurrent.
	writeMu sync.Mutex
}

// New connects to qdrant at the given DSN. The Go client speaks gRPC
// (port 6334 by default); an API key may ride as a query parameter.
func New(dsn, collection string, dim int, enc *embedding.Client) (*Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant DSN: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant DSN: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Store{client: client, collection: collection, dim: dim, enc: enc}, nil
}

// Degraded reports whether initialization failed permanently.
func (s *Store) Degraded() bool {
	return s.initErr != nil
}

func (s *Store) ensure(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.CollectionExists(ctx, s.collection)
		if err != nil {
			s.initErr = fmt.Errorf("check collection exists: %w", err)
			return
		}
		if exists {
			return
		}
		if s.dim <= 0 {
			s.initErr = fmt.Errorf("qdrant requires dimensions > 0")
			return
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			s.initErr = fmt.Errorf("create collection: %w", err)
		}
	})
	if s.initErr != nil {
		log.Warn().Err(s.initErr).Msg("vector store degraded")
	}
	return s.initErr
}

// pointID derives the deterministic qdrant point id for a POI id. Qdrant
// only accepts UUIDs and integers, so non-UUID ids map through SHA1.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Add writes one POI. A second call with the same id is a no-op.
func (s *Store) Add(ctx context.Context, p *poi.POI) error {
	_, err := s.AddBatch(ctx, []*poi.POI{p})
	return err
}

// AddBatch deduplicates the input by id (first occurrence wins), filters
// out ids already present, embeds the remainder as documents and writes
// them in one upsert. Returns the count actually written.
func (s *Store) AddBatch(ctx context.Context, pois []*poi.POI) (int, error) {
	if err := s.ensure(ctx); err != nil {
		return 0, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	seen := make(map[string]struct{}, len(pois))
	var fresh []*poi.POI
	for _, p := range pois {
		if p == nil || p.ID == "" || p.Name == "" || p.RawText == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		exists, err := s.hasID(ctx, p.ID)
		if err != nil {
			return 0, err
		}
		if !exists {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	docs := make([]string, len(fresh))
	for i, p := range fresh {
		docs[i] = p.RawText
	}
	vectors, err := s.enc.EmbedDocuments(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("embed documents: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(fresh))
	for i, p := range fresh {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(p.ID)),
			Vectors: qdrant.NewVectorsDense(vectors[i]),
			Payload: qdrant.NewValueMap(payloadFromPOI(p)),
		}
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	}); err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}
	log.Debug().Int("written", len(fresh)).Int("offered", len(pois)).Msg("vector store admission")
	return len(fresh), nil
}

func (s *Store) hasID(ctx context.Context, id string) (bool, error) {
	limit := uint64(1)
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("poi_id", id)},
		},
		Limit: &limit,
	})
	if err != nil {
		return false, err
	}
	return len(res) > 0, nil
}

// Search returns up to k candidates ordered by descending cosine
// similarity. When cityFilter is set, only POIs stored with that exact
// city are considered. A degraded store returns an empty list.
func (s *Store) Search(ctx context.Context, vector []float32, k int, cityFilter string) ([]poi.SearchCandidate, error) {
	hits, err := s.searchHits(ctx, vector, k, cityFilter)
	if err != nil {
		return nil, err
	}
	out := make([]poi.SearchCandidate, len(hits))
	for i, h := range hits {
		out[i] = h.Candidate
	}
	return out, nil
}

// SearchWithData is Search plus the reconstructed POI per candidate.
func (s *Store) SearchWithData(ctx context.Context, vector []float32, k int, cityFilter string) ([]Hit, error) {
	return s.searchHits(ctx, vector, k, cityFilter)
}

// SearchByText embeds the query text as a document (the retrieval axis is
// document-to-document similarity) and searches.
func (s *Store) SearchByText(ctx context.Context, text string, k int, cityFilter string) ([]poi.SearchCandidate, error) {
	vec, err := s.embedOne(ctx, text)
	if err != nil || vec == nil {
		return nil, err
	}
	return s.Search(ctx, vec, k, cityFilter)
}

// SearchByTextWithData is SearchByText returning full POI records.
func (s *Store) SearchByTextWithData(ctx context.Context, text string, k int, cityFilter string) ([]Hit, error) {
	vec, err := s.embedOne(ctx, text)
	if err != nil || vec == nil {
		return nil, err
	}
	return s.SearchWithData(ctx, vec, k, cityFilter)
}

func (s *Store) embedOne(ctx context.Context, text string) ([]float32, error) {
	if s.ensure(ctx) != nil {
		return nil, nil
	}
	vecs, err := s.enc.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vecs[0], nil
}

func (s *Store) searchHits(ctx context.Context, vector []float32, k int, cityFilter string) ([]Hit, error) {
	if s.ensure(ctx) != nil {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	var filter *qdrant.Filter
	if cityFilter != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("city", cityFilter)},
		}
	}
	limit := uint64(k)
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          &limit,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	hits := make([]Hit, 0, len(res))
	for _, sp := range res {
		md := stringPayload(sp.Payload)
		p := poiFromPayload(md)
		hits = append(hits, Hit{
			Candidate: poi.SearchCandidate{
				POIID:   p.ID,
				Title:   p.Name,
				Snippet: truncateRunes(p.RawText, 500),
				URL:     p.SourceURL,
				Source:  poi.SourceEmbeddingDB,
				Score:   float64(sp.Score),
			},
			POI: p,
		})
	}
	return hits, nil
}

// FindByName looks a POI up by its normalized display name.
func (s *Store) FindByName(ctx context.Context, name, cityFilter string) (*poi.POI, error) {
	return s.findByField(ctx, "normalized_name", poi.NormalizeName(name), cityFilter)
}

// FindByPlaceID looks a POI up by its external place id.
func (s *Store) FindByPlaceID(ctx context.Context, placeID, cityFilter string) (*poi.POI, error) {
	return s.findByField(ctx, "place_id", placeID, cityFilter)
}

func (s *Store) findByField(ctx context.Context, field, value, cityFilter string) (*poi.POI, error) {
	if value == "" {
		return nil, nil
	}
	if s.ensure(ctx) != nil {
		return nil, nil
	}
	must := []*qdrant.Condition{qdrant.NewMatch(field, value)}
	if cityFilter != "" {
		must = append(must, qdrant.NewMatch("city", cityFilter))
	}
	limit := uint64(1)
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Filter:         &qdrant.Filter{Must: must},
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant lookup: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	return poiFromPayload(stringPayload(res[0].Payload)), nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func stringPayload(payload map[string]*qdrant.Value) map[string]string {
	md := make(map[string]string, len(payload))
	for k, v := range payload {
		md[k] = v.GetStringValue()
	}
	return md
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
