package cache

import (
	"path/filepath"
	"testing"
)

func TestCityCachePersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "city_location_cache.json")

	c := NewCityCache(path)
	c.Put("Seoul", &Coordinates{Latitude: 37.5665, Longitude: 126.978})

	reloaded := NewCityCache(path)
	coords, ok := reloaded.Get("Seoul")
	if !ok || coords == nil {
		t.Fatalf("expected Seoul to survive reload, ok=%v coords=%v", ok, coords)
	}
	if coords.Latitude != 37.5665 || coords.Longitude != 126.978 {
		t.Fatalf("coordinates mismatch: %+v", coords)
	}
}

func TestCityCacheCachesUnresolvable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.json")

	c := NewCityCache(path)
	c.Put("Atlantis", nil)

	coords, ok := c.Get("Atlantis")
	if !ok {
		t.Fatal("a null entry is still an entry")
	}
	if coords != nil {
		t.Fatalf("expected nil coordinates, got %+v", coords)
	}

	// The null survives a reload too.
	reloaded := NewCityCache(path)
	coords, ok = reloaded.Get("Atlantis")
	if !ok || coords != nil {
		t.Fatalf("null entry must persist, ok=%v coords=%v", ok, coords)
	}
}

func TestCityCacheMissingFileStartsEmpty(t *testing.T) {
	c := NewCityCache(filepath.Join(t.TempDir(), "nope.json"))
	if _, ok := c.Get("Seoul"); ok {
		t.Fatal("fresh cache must be empty")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, len=%d", c.Len())
	}
}
