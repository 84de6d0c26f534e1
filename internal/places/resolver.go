// Package places verifies candidate POIs against the external place
// provider's text-search API and assembles canonical POI records.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"tripscout/internal/cache"
	"tripscout/internal/config"
	"tripscout/internal/poi"
)

// ErrNotFound signals that the provider has no matching place.
var ErrNotFound = errors.New("place not found")

// fieldMask lists the place fields requested from the provider.
const fieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
	"places.types,places.primaryType,places.googleMapsUri,places.rating,places.userRatingCount," +
	"places.priceLevel,places.priceRange,places.websiteUri,places.internationalPhoneNumber," +
	"places.regularOpeningHours,places.editorialSummary,places.generativeSummary,places.reviews"

const cityFieldMask = "places.location,places.displayName,places.formattedAddress"

// typeCategories maps provider place types to the core category enum.
var typeCategories = map[string]poi.Category{
	"restaurant":         poi.CategoryRestaurant,
	"food":               poi.CategoryRestaurant,
	"meal_takeaway":      poi.CategoryRestaurant,
	"meal_delivery":      poi.CategoryRestaurant,
	"cafe":               poi.CategoryCafe,
	"coffee_shop":        poi.CategoryCafe,
	"bakery":             poi.CategoryCafe,
	"tourist_attraction": poi.CategoryAttraction,
	"museum":             poi.CategoryAttraction,
	"park":               poi.CategoryAttraction,
	"amusement_park":     poi.CategoryAttraction,
	"zoo":                poi.CategoryAttraction,
	"aquarium":           poi.CategoryAttraction,
	"lodging":            poi.CategoryAccommodation,
	"hotel":              poi.CategoryAccommodation,
	"motel":              poi.CategoryAccommodation,
	"shopping_mall":      poi.CategoryShopping,
	"store":              poi.CategoryShopping,
	"supermarket":        poi.CategoryShopping,
	"night_club":         poi.CategoryEntertainment,
	"movie_theater":      poi.CategoryEntertainment,
	"bar":                poi.CategoryEntertainment,
	"locality":           poi.CategoryRegion,
	"sublocality":        poi.CategoryRegion,
}

// Resolver queries the place provider. The HTTP client and city cache are
// shared across runs; callers hold the resolver by reference.
type Resolver struct {
	cfg    config.PlacesConfig
	http   *http.Client
	cities *cache.CityCache
}

func NewResolver(cfg config.PlacesConfig, cities *cache.CityCache) *Resolver {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{cfg: cfg, http: &http.Client{Timeout: timeout}, cities: cities}
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type textSearchRequest struct {
	TextQuery           string               `json:"textQuery"`
	LanguageCode        string               `json:"languageCode,omitempty"`
	IncludedType        string               `json:"includedType,omitempty"`
	LocationRestriction *locationRestriction `json:"locationRestriction,omitempty"`
}

type locationRestriction struct {
	Rectangle rectangle `json:"rectangle"`
}

type rectangle struct {
	Low  latLng `json:"low"`
	High latLng `json:"high"`
}

type summaryOverview struct {
	Text string `json:"text,omitempty"`
}

type summaryText struct {
	Text     string           `json:"text,omitempty"`
	Overview *summaryOverview `json:"overview,omitempty"`
}

func (s *summaryText) value() string {
	if s == nil {
		return ""
	}
	if s.Text != "" {
		return s.Text
	}
	if s.Overview != nil {
		return s.Overview.Text
	}
	return ""
}

type hoursPoint struct {
	Day    *int `json:"day"`
	Hour   int  `json:"hour"`
	Minute int  `json:"minute"`
}

type hoursPeriod struct {
	Open  hoursPoint  `json:"open"`
	Close *hoursPoint `json:"close"`
}

type openingHoursData struct {
	Periods             []hoursPeriod `json:"periods"`
	WeekdayDescriptions []string      `json:"weekdayDescriptions"`
}

type place struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string   `json:"formattedAddress"`
	Location         *latLng  `json:"location"`
	Types            []string `json:"types"`
	PrimaryType      string   `json:"primaryType"`
	GoogleMapsURI    string   `json:"googleMapsUri"`
	Rating           float64  `json:"rating"`
	UserRatingCount  int      `json:"userRatingCount"`
	PriceLevel       string   `json:"priceLevel"`
	PriceRange       *struct {
		StartPrice *priceMoney `json:"startPrice"`
		EndPrice   *priceMoney `json:"endPrice"`
	} `json:"priceRange"`
	WebsiteURI          string            `json:"websiteUri"`
	Phone               string            `json:"internationalPhoneNumber"`
	RegularOpeningHours *openingHoursData `json:"regularOpeningHours"`
	EditorialSummary  *summaryText  `json:"editorialSummary"`
	GenerativeSummary *summaryText  `json:"generativeSummary"`
	Reviews           []placeReview `json:"reviews"`
}

type placeReview struct {
	Text summaryText `json:"text"`
}

type textSearchResponse struct {
	Places []place `json:"places"`
}

// MapPOI verifies a summarized candidate against the provider and returns
// the canonical POI. Search is restricted to a rectangle around the
// destination city when its coordinates are known; the name-only retry
// keeps the same restriction.
func (r *Resolver) MapPOI(ctx context.Context, info *poi.Info, city, sourceURL string) (*poi.POI, error) {
	if r.cfg.APIKey == "" {
		return nil, fmt.Errorf("place provider api key not configured")
	}

	coords := r.resolveCityLocation(ctx, city)

	found, err := r.searchPlace(ctx, info.Name+" "+city, coords, "")
	if err != nil {
		return nil, err
	}
	if found == nil {
		found, err = r.searchPlace(ctx, info.Name, coords, "")
		if err != nil {
			return nil, err
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return r.assemble(info, found, city, sourceURL), nil
}

// resolveCityLocation returns the city center, consulting the geocode
// cache first. Unresolvable cities are cached as nil so later candidates
// in the same city skip the lookup and search without a restriction.
func (r *Resolver) resolveCityLocation(ctx context.Context, city string) *cache.Coordinates {
	if coords, ok := r.cities.Get(city); ok {
		return coords
	}
	found, err := r.searchPlace(ctx, city, nil, "locality")
	if err != nil || found == nil || found.Location == nil {
		if err != nil {
			log.Warn().Str("city", city).Err(err).Msg("city geocode failed")
		}
		r.cities.Put(city, nil)
		return nil
	}
	coords := &cache.Coordinates{Latitude: found.Location.Latitude, Longitude: found.Location.Longitude}
	r.cities.Put(city, coords)
	log.Info().Str("city", city).Float64("lat", coords.Latitude).Float64("lon", coords.Longitude).Msg("city geocoded")
	return coords
}

func (r *Resolver) searchPlace(ctx context.Context, query string, coords *cache.Coordinates, includedType string) (*place, error) {
	payload := textSearchRequest{
		TextQuery:    query,
		LanguageCode: r.cfg.LanguageCode,
		IncludedType: includedType,
	}
	if coords != nil {
		payload.LocationRestriction = r.restriction(coords)
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", r.cfg.APIKey)
	if includedType == "locality" {
		req.Header.Set("X-Goog-FieldMask", cityFieldMask)
	} else {
		req.Header.Set("X-Goog-FieldMask", fieldMask)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("place search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("place search error [%d]: %s", resp.StatusCode, string(b))
	}

	var out textSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode place search response: %w", err)
	}
	if len(out.Places) == 0 {
		return nil, nil
	}
	return &out.Places[0], nil
}

// restriction builds the rectangle around the city center. The radius in
// meters converts to degrees with latitude 1° ≈ 111 km; the longitude
// half-width is scaled by the inverse cosine of the latitude, floored at
// 0.01 near the poles.
func (r *Resolver) restriction(coords *cache.Coordinates) *locationRestriction {
	radius := r.cfg.BiasRadiusMeters
	latOffset := radius / 111_000
	lngOffset := radius / (111_000 * math.Max(math.Abs(math.Cos(coords.Latitude*math.Pi/180)), 0.01))
	return &locationRestriction{
		Rectangle: rectangle{
			Low:  latLng{Latitude: coords.Latitude - latOffset, Longitude: coords.Longitude - lngOffset},
			High: latLng{Latitude: coords.Latitude + latOffset, Longitude: coords.Longitude + lngOffset},
		},
	}
}

func (r *Resolver) assemble(info *poi.Info, pl *place, city, sourceURL string) *poi.POI {
	name := pl.DisplayName.Text
	if name == "" {
		name = info.Name
	}
	finalSourceURL := sourceURL
	if finalSourceURL == "" {
		finalSourceURL = pl.GoogleMapsURI
	}

	out := &poi.POI{
		ID:                pl.ID,
		Name:              name,
		Category:          mapCategory(pl.PrimaryType, pl.Types),
		Description:       info.Description,
		City:              city,
		Address:           pl.FormattedAddress,
		PlaceID:           pl.ID,
		Types:             pl.Types,
		PrimaryType:       pl.PrimaryType,
		MapsURI:           pl.GoogleMapsURI,
		WebsiteURI:        pl.WebsiteURI,
		Phone:             pl.Phone,
		Rating:            pl.Rating,
		RatingCount:       pl.UserRatingCount,
		PriceLevel:        parsePriceLevel(pl.PriceLevel),
		EditorialSummary:  pl.EditorialSummary.value(),
		GenerativeSummary: pl.GenerativeSummary.value(),
		ReviewSummary:     reviewSummary(pl),
		Source:            poi.SourceWebSearch,
		SourceURL:         finalSourceURL,
		CreatedAt:         time.Now(),
		OpeningHours:      parseOpeningHours(pl),
	}
	if pl.Location != nil {
		out.Latitude = pl.Location.Latitude
		out.Longitude = pl.Location.Longitude
	}
	if pl.PriceRange != nil {
		out.PriceRange = formatPriceRange(pl.PriceRange.StartPrice, pl.PriceRange.EndPrice)
	}
	out.RawText = poi.BuildEmbeddingText(out)
	return out
}

// mapCategory picks the category by priority: primary type first, then the
// provider's type list in order; unknown types become other.
func mapCategory(primaryType string, types []string) poi.Category {
	if c, ok := typeCategories[primaryType]; ok {
		return c
	}
	for _, t := range types {
		if c, ok := typeCategories[t]; ok {
			return c
		}
	}
	return poi.CategoryOther
}
