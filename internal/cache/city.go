package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Coordinates is a geocoded city center.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CityCache maps city names to coordinates, persisted as a flat JSON file.
// A nil value is a confirmed "unresolvable" and is cached so the geocoder
// is not asked again. The in-memory map is authoritative during a run.
type CityCache struct {
	path string

	mu     sync.Mutex
	cities map[string]*Coordinates
}

// NewCityCache loads the cache from path; a missing or unreadable file
// starts empty.
func NewCityCache(path string) *CityCache {
	c := &CityCache{path: path, cities: make(map[string]*Coordinates)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("path", path).Err(err).Msg("city cache load failed")
		}
		return c
	}
	if err := json.Unmarshal(data, &c.cities); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("city cache unreadable, starting empty")
		c.cities = make(map[string]*Coordinates)
	}
	return c
}

// Get returns the cached coordinates and whether the city has an entry.
// A (nil, true) result means the city is known to be unresolvable.
func (c *CityCache) Get(city string) (*Coordinates, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	coords, ok := c.cities[city]
	return coords, ok
}

// Put stores coordinates (or nil for unresolvable) and saves the file.
// Save failures are logged, not returned: the in-memory entry stands.
func (c *CityCache) Put(city string, coords *Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cities[city] = coords
	if err := c.save(); err != nil {
		log.Error().Str("path", c.path).Err(err).Msg("city cache save failed")
	}
}

func (c *CityCache) save() error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(c.cities, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}

// Len reports how many cities are cached.
func (c *CityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cities)
}
