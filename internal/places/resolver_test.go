package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tripscout/internal/cache"
	"tripscout/internal/config"
	"tripscout/internal/poi"
)

type capturedRequest struct {
	body textSearchRequest
}

func newTestResolver(t *testing.T, handler func(req textSearchRequest) []map[string]any) (*Resolver, *[]capturedRequest, *cache.CityCache) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req textSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		captured = append(captured, capturedRequest{body: req})
		places := handler(req)
		_ = json.NewEncoder(w).Encode(map[string]any{"places": places})
	}))
	t.Cleanup(srv.Close)

	cities := cache.NewCityCache(filepath.Join(t.TempDir(), "cities.json"))
	r := NewResolver(config.PlacesConfig{
		Endpoint:         srv.URL,
		APIKey:           "test-key",
		BiasRadiusMeters: 50000,
		Timeout:          5,
	}, cities)
	return r, &captured, cities
}

func placeJSON(id, name string) map[string]any {
	return map[string]any{
		"id":               id,
		"displayName":      map[string]any{"text": name},
		"formattedAddress": "1 Test-ro",
		"location":         map[string]any{"latitude": 37.55, "longitude": 126.99},
		"types":            []string{"tourist_attraction"},
		"primaryType":      "tourist_attraction",
		"rating":           4.4,
		"userRatingCount":  321,
	}
}

func TestMapPOIRetriesWithoutCitySuffix(t *testing.T) {
	r, captured, _ := newTestResolver(t, func(req textSearchRequest) []map[string]any {
		switch req.TextQuery {
		case "Seoul":
			return []map[string]any{{"location": map[string]any{"latitude": 37.5665, "longitude": 126.978}}}
		case "Namsan Tower":
			return []map[string]any{placeJSON("PX123", "N Seoul Tower")}
		default:
			return nil
		}
	})

	info := &poi.Info{Name: "Namsan Tower", Category: poi.CategoryAttraction, Description: "tower"}
	got, err := r.MapPOI(context.Background(), info, "Seoul", "https://blog/nst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "PX123" || got.PlaceID != "PX123" {
		t.Fatalf("poi id must equal the provider place id: %+v", got)
	}
	if got.Name != "N Seoul Tower" {
		t.Fatalf("provider display name wins, got %q", got.Name)
	}
	if got.Category != poi.CategoryAttraction {
		t.Fatalf("unexpected category %s", got.Category)
	}
	if got.City != "Seoul" || got.SourceURL != "https://blog/nst" {
		t.Fatalf("unexpected provenance: %+v", got)
	}
	if got.RawText == "" {
		t.Fatal("assembled poi must carry embedding text")
	}

	// geocode, name+city (miss), name-only (hit)
	if len(*captured) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(*captured))
	}
	if (*captured)[0].body.IncludedType != "locality" {
		t.Fatalf("geocode must be locality-restricted")
	}
	if (*captured)[1].body.TextQuery != "Namsan Tower Seoul" {
		t.Fatalf("first attempt must include the city: %q", (*captured)[1].body.TextQuery)
	}
	if (*captured)[1].body.LocationRestriction == nil || (*captured)[2].body.LocationRestriction == nil {
		t.Fatal("both attempts keep the rectangle restriction")
	}
}

func TestMapPOINotFound(t *testing.T) {
	r, _, _ := newTestResolver(t, func(req textSearchRequest) []map[string]any {
		if req.IncludedType == "locality" {
			return []map[string]any{{"location": map[string]any{"latitude": 1.0, "longitude": 2.0}}}
		}
		return nil
	})
	_, err := r.MapPOI(context.Background(), &poi.Info{Name: "Nowhere"}, "Seoul", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Scenario F: an unresolvable city is cached as null and candidates still
// resolve globally, without a rectangle restriction.
func TestGeocodeFailureCachedAndResolverProceeds(t *testing.T) {
	r, captured, cities := newTestResolver(t, func(req textSearchRequest) []map[string]any {
		if req.IncludedType == "locality" {
			return nil // city unknown
		}
		if req.TextQuery == "Lost Palace Atlantis" {
			return []map[string]any{placeJSON("PA1", "Lost Palace")}
		}
		return nil
	})

	got, err := r.MapPOI(context.Background(), &poi.Info{Name: "Lost Palace"}, "Atlantis", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "PA1" {
		t.Fatalf("expected global match, got %+v", got)
	}

	coords, ok := cities.Get("Atlantis")
	if !ok || coords != nil {
		t.Fatalf("unresolvable city must be cached as null, ok=%v coords=%v", ok, coords)
	}
	for _, c := range (*captured)[1:] {
		if c.body.LocationRestriction != nil {
			t.Fatal("no rectangle may be applied without city coordinates")
		}
	}

	// A second candidate in the same city must not re-geocode.
	before := len(*captured)
	_, _ = r.MapPOI(context.Background(), &poi.Info{Name: "Other Spot"}, "Atlantis", "")
	var localities int
	for _, c := range (*captured)[before:] {
		if c.body.IncludedType == "locality" {
			localities++
		}
	}
	if localities != 0 {
		t.Fatalf("geocode must be served from cache, saw %d locality lookups", localities)
	}
}

func TestMapPOIWithoutAPIKey(t *testing.T) {
	cities := cache.NewCityCache(filepath.Join(t.TempDir(), "cities.json"))
	r := NewResolver(config.PlacesConfig{Endpoint: "http://127.0.0.1:0"}, cities)
	if _, err := r.MapPOI(context.Background(), &poi.Info{Name: "x"}, "Seoul", ""); err == nil {
		t.Fatal("expected an error without an api key")
	}
}
