// Package cache holds the durable caches shared across pipeline runs: the
// POI alias cache, the URL extraction cache and the city geocode cache.
package cache

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"tripscout/internal/poi"
)

const (
	aliasKeyPrefix   = "alias:"
	placeIDKeyPrefix = "pid:"
)

// AliasCache maps (normalized name, city) to an external place id so the
// same real-world place found under different names skips the resolver.
// The relation is many-to-one: one place id may appear under many keys.
type AliasCache struct {
	db *badger.DB
}

// NewAliasCache opens (or creates) the alias store at path.
func NewAliasCache(path string) (*AliasCache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open alias cache: %w", err)
	}
	return &AliasCache{db: db}, nil
}

func aliasKey(name, city string) []byte {
	return []byte(aliasKeyPrefix + city + "\x00" + name)
}

func placeIDKey(placeID string) []byte {
	return []byte(placeIDKeyPrefix + placeID)
}

// FindByName returns the place id for (name, city), or "" on a miss.
// The name is normalized before lookup.
func (c *AliasCache) FindByName(name, city string) (string, error) {
	normalized := poi.NormalizeName(name)
	if normalized == "" {
		return "", nil
	}
	var placeID string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(aliasKey(normalized, city))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			placeID = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("alias lookup: %w", err)
	}
	return placeID, nil
}

// HasPlaceID reports whether any alias row already maps to this place id.
func (c *AliasCache) HasPlaceID(placeID string) (bool, error) {
	if placeID == "" {
		return false, nil
	}
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(placeIDKey(placeID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("place id lookup: %w", err)
	}
	return found, nil
}

// Add registers an alias. Existing (name, city) rows are not overwritten;
// empty inputs are silently ignored.
func (c *AliasCache) Add(name, city, placeID string) error {
	normalized := poi.NormalizeName(name)
	if normalized == "" || placeID == "" {
		return nil
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		key := aliasKey(normalized, city)
		if _, err := txn.Get(key); err == nil {
			return nil // first writer wins
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(key, []byte(placeID)); err != nil {
			return err
		}
		return txn.Set(placeIDKey(placeID), []byte(normalized))
	})
	if err != nil {
		return fmt.Errorf("alias add: %w", err)
	}
	log.Debug().Str("name", normalized).Str("city", city).Str("place_id", placeID).Msg("alias registered")
	return nil
}

func (c *AliasCache) Close() error {
	return c.db.Close()
}
