package vectorstore

import (
	"encoding/json"
	"strconv"
	"time"

	"tripscout/internal/poi"
)

// payloadFromPOI flattens a POI into the string-valued payload stored next
// to the vector. Structured fields (types, opening hours) are JSON-encoded
// so the record round-trips across processes.
func payloadFromPOI(p *poi.POI) map[string]any {
	m := map[string]any{
		"poi_id":          p.ID,
		"name":            p.Name,
		"normalized_name": poi.NormalizeName(p.Name),
		"category":        string(p.Category),
		"description":     p.Description,
		"city":            p.City,
		"address":         p.Address,
		"source":          string(p.Source),
		"source_url":      p.SourceURL,
		"raw_text":        p.RawText,
	}
	if p.PlaceID != "" {
		m["place_id"] = p.PlaceID
	}
	if p.Latitude != 0 || p.Longitude != 0 {
		m["latitude"] = strconv.FormatFloat(p.Latitude, 'f', -1, 64)
		m["longitude"] = strconv.FormatFloat(p.Longitude, 'f', -1, 64)
	}
	if p.PrimaryType != "" {
		m["primary_type"] = p.PrimaryType
	}
	if p.MapsURI != "" {
		m["maps_uri"] = p.MapsURI
	}
	if p.WebsiteURI != "" {
		m["website_uri"] = p.WebsiteURI
	}
	if p.Phone != "" {
		m["phone"] = p.Phone
	}
	if p.Rating > 0 {
		m["rating"] = strconv.FormatFloat(p.Rating, 'f', -1, 64)
	}
	if p.RatingCount > 0 {
		m["rating_count"] = strconv.Itoa(p.RatingCount)
	}
	if p.PriceLevel != "" {
		m["price_level"] = string(p.PriceLevel)
	}
	if p.PriceRange != "" {
		m["price_range"] = p.PriceRange
	}
	if p.EditorialSummary != "" {
		m["editorial_summary"] = p.EditorialSummary
	}
	if p.GenerativeSummary != "" {
		m["generative_summary"] = p.GenerativeSummary
	}
	if p.ReviewSummary != "" {
		m["review_summary"] = p.ReviewSummary
	}
	if !p.CreatedAt.IsZero() {
		m["created_at"] = p.CreatedAt.Format(time.RFC3339)
	}
	if len(p.Types) > 0 {
		if b, err := json.Marshal(p.Types); err == nil {
			m["types"] = string(b)
		}
	}
	if p.OpeningHours != nil {
		if b, err := json.Marshal(p.OpeningHours); err == nil {
			m["opening_hours"] = string(b)
		}
	}
	return m
}

// poiFromPayload reconstructs a POI from stored payload strings. Unknown or
// malformed structured fields are dropped rather than failing the lookup.
func poiFromPayload(md map[string]string) *poi.POI {
	p := &poi.POI{
		ID:                md["poi_id"],
		Name:              md["name"],
		Category:          poi.ParseCategory(md["category"]),
		Description:       md["description"],
		City:              md["city"],
		Address:           md["address"],
		PlaceID:           md["place_id"],
		PrimaryType:       md["primary_type"],
		MapsURI:           md["maps_uri"],
		WebsiteURI:        md["website_uri"],
		Phone:             md["phone"],
		PriceLevel:        poi.PriceLevel(md["price_level"]),
		PriceRange:        md["price_range"],
		EditorialSummary:  md["editorial_summary"],
		GenerativeSummary: md["generative_summary"],
		ReviewSummary:     md["review_summary"],
		RawText:           md["raw_text"],
		Source:            poi.Source(md["source"]),
		SourceURL:         md["source_url"],
	}
	if p.Source == "" {
		p.Source = poi.SourceEmbeddingDB
	}
	if v := md["latitude"]; v != "" {
		p.Latitude, _ = strconv.ParseFloat(v, 64)
	}
	if v := md["longitude"]; v != "" {
		p.Longitude, _ = strconv.ParseFloat(v, 64)
	}
	if v := md["rating"]; v != "" {
		p.Rating, _ = strconv.ParseFloat(v, 64)
	}
	if v := md["rating_count"]; v != "" {
		p.RatingCount, _ = strconv.Atoi(v)
	}
	if v := md["created_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.CreatedAt = t
		}
	}
	if v := md["types"]; v != "" {
		var types []string
		if err := json.Unmarshal([]byte(v), &types); err == nil {
			p.Types = types
		}
	}
	if v := md["opening_hours"]; v != "" {
		var oh poi.OpeningHours
		if err := json.Unmarshal([]byte(v), &oh); err == nil {
			p.OpeningHours = &oh
		}
	}
	return p
}
