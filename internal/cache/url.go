package cache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"tripscout/internal/poi"
)

const urlKeyPrefix = "url:"

// URLCache stores extraction results per (url, destination) so repeat runs
// skip the reader and extractor. Empty extraction lists are cached too:
// a page known to contain no POIs should not be re-read.
type URLCache struct {
	db *badger.DB
}

// NewURLCache opens (or creates) the URL extraction store at path.
func NewURLCache(path string) (*URLCache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open url cache: %w", err)
	}
	return &URLCache{db: db}, nil
}

func urlKey(url, destination string) []byte {
	return []byte(urlKeyPrefix + destination + "\x00" + url)
}

// Get returns the cached candidates for (url, destination). The second
// return reports whether the entry exists; a cached empty list returns
// (nil-or-empty, true).
func (c *URLCache) Get(url, destination string) ([]poi.SearchCandidate, bool, error) {
	var (
		raw   []byte
		found bool
	)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(urlKey(url, destination))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("url cache get: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	var results []poi.SearchCandidate
	if err := json.Unmarshal(raw, &results); err != nil {
		log.Warn().Str("url", url).Err(err).Msg("url cache entry unreadable")
		return nil, false, nil
	}
	return results, true, nil
}

// Put stores the extraction results for (url, destination).
func (c *URLCache) Put(url, destination string, results []poi.SearchCandidate) error {
	if results == nil {
		results = []poi.SearchCandidate{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("url cache marshal: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(urlKey(url, destination), raw)
	})
	if err != nil {
		return fmt.Errorf("url cache put: %w", err)
	}
	return nil
}

// Has reports whether (url, destination) is cached.
func (c *URLCache) Has(url, destination string) (bool, error) {
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(urlKey(url, destination))
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
		return false, fmt.Errorf("url cache has: %w", err)
	}
	return found, nil
}

// GetByDestination returns every cached url → candidates entry for one
// destination.
func (c *URLCache) GetByDestination(destination string) (map[string][]poi.SearchCandidate, error) {
	out := make(map[string][]poi.SearchCandidate)
	prefix := []byte(urlKeyPrefix + destination + "\x00")
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			url := strings.TrimPrefix(string(item.Key()), string(prefix))
			err := item.Value(func(val []byte) error {
				var results []poi.SearchCandidate
				if err := json.Unmarshal(val, &results); err != nil {
					return nil // skip unreadable rows
				}
				out[url] = results
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("url cache scan: %w", err)
	}
	return out, nil
}

func (c *URLCache) Close() error {
	return c.db.Close()
}
