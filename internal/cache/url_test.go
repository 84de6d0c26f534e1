package cache

import (
	"testing"

	"tripscout/internal/poi"
)

func newTestURLCache(t *testing.T) *URLCache {
	t.Helper()
	c, err := NewURLCache(t.TempDir())
	if err != nil {
		t.Fatalf("open url cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func sample(title string) poi.SearchCandidate {
	return poi.SearchCandidate{
		Title:   title,
		Snippet: "desc",
		URL:     "https://blog/seoul",
		Source:  poi.SourceWebSearch,
		Score:   0.5,
	}
}

func TestURLCacheRoundTrip(t *testing.T) {
	c := newTestURLCache(t)

	in := []poi.SearchCandidate{sample("a"), sample("b")}
	if err := c.Put("https://blog/seoul", "Seoul", in); err != nil {
		t.Fatal(err)
	}

	out, ok, err := c.Get("https://blog/seoul", "Seoul")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if len(out) != 2 || out[0].Title != "a" || out[1].Title != "b" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out[0].Score != 0.5 || out[0].Source != poi.SourceWebSearch {
		t.Fatalf("candidate fields must survive serialization: %+v", out[0])
	}
}

func TestURLCacheNegativeCaching(t *testing.T) {
	c := newTestURLCache(t)

	if err := c.Put("https://blog/empty", "Seoul", nil); err != nil {
		t.Fatal(err)
	}
	out, ok, err := c.Get("https://blog/empty", "Seoul")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("an empty extraction must still be a cache hit")
	}
	if len(out) != 0 {
		t.Fatalf("expected empty list, got %+v", out)
	}
	if has, _ := c.Has("https://blog/empty", "Seoul"); !has {
		t.Fatal("Has must see the negative entry")
	}
}

func TestURLCacheDestinationScoping(t *testing.T) {
	c := newTestURLCache(t)

	if err := c.Put("https://blog/x", "Seoul", []poi.SearchCandidate{sample("a")}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get("https://blog/x", "Busan"); ok {
		t.Fatal("same url under a different destination must miss")
	}
	if has, _ := c.Has("https://blog/x", "Busan"); has {
		t.Fatal("Has must respect the destination key")
	}
}

func TestURLCacheGetByDestination(t *testing.T) {
	c := newTestURLCache(t)

	if err := c.Put("https://blog/1", "Seoul", []poi.SearchCandidate{sample("a")}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("https://blog/2", "Seoul", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("https://blog/3", "Busan", []poi.SearchCandidate{sample("b")}); err != nil {
		t.Fatal(err)
	}

	got, err := c.GetByDestination("Seoul")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 Seoul urls, got %d", len(got))
	}
	if len(got["https://blog/1"]) != 1 {
		t.Fatalf("unexpected entry for blog/1: %+v", got["https://blog/1"])
	}
	if _, ok := got["https://blog/2"]; !ok {
		t.Fatal("negative entries belong to the destination scan")
	}
}
