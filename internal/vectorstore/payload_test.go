package vectorstore

import (
	"testing"
	"time"

	"tripscout/internal/poi"
)

func toStringMap(t *testing.T, in map[string]any) map[string]string {
	t.Helper()
	out := make(map[string]string, len(in))
	for k, v := range in {
		s, ok := v.(string)
		if !ok {
			t.Fatalf("payload field %q is not a string: %T", k, v)
		}
		out[k] = s
	}
	return out
}

func samplePOI() *poi.POI {
	created, _ := time.Parse(time.RFC3339, "2026-01-06T10:00:00Z")
	return &poi.POI{
		ID:                "PX123",
		Name:              "N Seoul Tower",
		Category:          poi.CategoryAttraction,
		Description:       "Landmark tower on Namsan.",
		City:              "Seoul",
		Address:           "105 Namsangongwon-gil",
		Latitude:          37.5512,
		Longitude:         126.9882,
		PlaceID:           "PX123",
		Types:             []string{"tourist_attraction", "point_of_interest"},
		PrimaryType:       "tourist_attraction",
		MapsURI:           "https://maps.example/PX123",
		WebsiteURI:        "https://nseoultower.example",
		Phone:             "+82 2-1234-5678",
		Rating:            4.4,
		RatingCount:       52000,
		PriceLevel:        poi.PriceModerate,
		PriceRange:        "10000 KRW ~ 20000 KRW",
		EditorialSummary:  "Iconic observation tower.",
		GenerativeSummary: "Popular at sunset.",
		ReviewSummary:     "Great view | Long queues",
		RawText:           "type: tourist_attraction | rating: 4.4 (52000 reviews)",
		Source:            poi.SourceWebSearch,
		SourceURL:         "https://blog/nst",
		CreatedAt:         created,
		OpeningHours: &poi.OpeningHours{
			Days: []poi.DailyHours{
				{Day: 1, Slots: []poi.TimeSlot{{Open: "10:00", Close: "22:00"}}},
				{Day: 2, Closed: true},
			},
			RawText: []string{"Monday: 10:00 – 22:00"},
		},
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	original := samplePOI()
	md := toStringMap(t, payloadFromPOI(original))
	got := poiFromPayload(md)

	if got.ID != original.ID || got.PlaceID != original.PlaceID {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if got.Name != original.Name || got.Category != original.Category || got.City != original.City {
		t.Fatalf("descriptive mismatch: %+v", got)
	}
	if got.Latitude != original.Latitude || got.Longitude != original.Longitude {
		t.Fatalf("geo mismatch: %f,%f", got.Latitude, got.Longitude)
	}
	if got.Rating != original.Rating || got.RatingCount != original.RatingCount {
		t.Fatalf("quality mismatch: %f %d", got.Rating, got.RatingCount)
	}
	if got.PriceLevel != original.PriceLevel || got.PriceRange != original.PriceRange {
		t.Fatalf("price mismatch: %q %q", got.PriceLevel, got.PriceRange)
	}
	if got.EditorialSummary != original.EditorialSummary ||
		got.GenerativeSummary != original.GenerativeSummary ||
		got.ReviewSummary != original.ReviewSummary {
		t.Fatalf("summary mismatch: %+v", got)
	}
	if got.RawText != original.RawText || got.SourceURL != original.SourceURL || got.Source != original.Source {
		t.Fatalf("provenance mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("created_at mismatch: %v", got.CreatedAt)
	}
	if len(got.Types) != 2 || got.Types[0] != "tourist_attraction" {
		t.Fatalf("types mismatch: %v", got.Types)
	}
	if got.OpeningHours == nil || len(got.OpeningHours.Days) != 2 {
		t.Fatalf("opening hours mismatch: %+v", got.OpeningHours)
	}
	if got.OpeningHours.Days[0].Slots[0].Close != "22:00" {
		t.Fatalf("slot mismatch: %+v", got.OpeningHours.Days[0])
	}
	if !got.OpeningHours.Days[1].Closed {
		t.Fatalf("closed day lost: %+v", got.OpeningHours.Days[1])
	}
}

func TestPayloadUnsetFieldsStayUnset(t *testing.T) {
	minimal := &poi.POI{
		ID: "u1", Name: "Bare Spot", Category: poi.CategoryOther,
		RawText: "Bare Spot", Source: poi.SourceWebSearch,
	}
	md := toStringMap(t, payloadFromPOI(minimal))
	got := poiFromPayload(md)

	if got.Rating != 0 || got.RatingCount != 0 {
		t.Fatalf("unset numbers must stay zero: %+v", got)
	}
	if got.PriceLevel != "" || got.PriceRange != "" {
		t.Fatalf("unset price must stay empty: %+v", got)
	}
	if got.OpeningHours != nil || got.Types != nil {
		t.Fatalf("unset structures must stay nil: %+v", got)
	}
	if !got.CreatedAt.IsZero() {
		t.Fatalf("unset time must stay zero: %v", got.CreatedAt)
	}
}

func TestPayloadStoresNormalizedName(t *testing.T) {
	p := &poi.POI{ID: "x", Name: "  Cafe   ONION ", Category: poi.CategoryCafe, RawText: "x", Source: poi.SourceWebSearch}
	md := toStringMap(t, payloadFromPOI(p))
	if md["normalized_name"] != "cafe onion" {
		t.Fatalf("normalized name mismatch: %q", md["normalized_name"])
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("ChIJqWqOqFeifDURpYJ5LnxX-Fw")
	b := pointID("ChIJqWqOqFeifDURpYJ5LnxX-Fw")
	if a != b {
		t.Fatalf("point id must be deterministic: %q vs %q", a, b)
	}
	// Proper UUIDs pass through untouched.
	u := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	if pointID(u) != u {
		t.Fatalf("uuid input must pass through, got %q", pointID(u))
	}
}
