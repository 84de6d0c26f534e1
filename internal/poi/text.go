package poi

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeName canonicalizes a place name for alias keys: trim, collapse
// internal whitespace to single spaces, lowercase. Non-ASCII characters
// are kept; letters that have case are lowercased like ASCII ones.
func NormalizeName(name string) string {
	normalized := whitespaceRe.ReplaceAllString(strings.TrimSpace(name), " ")
	return strings.ToLower(normalized)
}

// IDFromURL derives a stable POI id from a source URL for candidates that
// were never resolved against the place provider.
func IDFromURL(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// BuildEmbeddingText renders a POI as the document text fed to the
// embedding encoder: labeled fields joined by " | ", empty fields omitted.
func BuildEmbeddingText(p *POI) string {
	var parts []string

	typ := p.PrimaryType
	if typ == "" {
		typ = string(p.Category)
	}
	if typ != "" {
		parts = append(parts, "type: "+typ)
	}
	if p.Rating > 0 {
		parts = append(parts, fmt.Sprintf("rating: %.1f (%d reviews)", p.Rating, p.RatingCount))
	}
	switch {
	case p.PriceRange != "":
		parts = append(parts, "price: "+p.PriceRange)
	case p.PriceLevel != "":
		parts = append(parts, "price: "+string(p.PriceLevel))
	}
	if p.EditorialSummary != "" {
		parts = append(parts, "editorial: "+p.EditorialSummary)
	}
	if p.GenerativeSummary != "" {
		parts = append(parts, "summary: "+p.GenerativeSummary)
	}
	if p.ReviewSummary != "" {
		parts = append(parts, "reviews: "+p.ReviewSummary)
	}

	if len(parts) == 0 {
		// Nothing descriptive came back from the provider; the stored
		// document must still be non-empty.
		fallback := p.Name
		if p.Description != "" {
			fallback += ". " + p.Description
		}
		return fallback
	}
	return strings.Join(parts, " | ")
}
