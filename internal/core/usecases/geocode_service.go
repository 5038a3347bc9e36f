package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/core/ports"
	"github.com/samirrijal/taskpin/internal/pkg/metrics"
)

// DefaultGeocodeTTL is how long place searches stay cached, in seconds.
const DefaultGeocodeTTL = 3600

// GeocodeService resolves place names for pin placement.
type GeocodeService struct {
	geocoder ports.Geocoder
	cache    ports.CacheService
	ttl      int
}

// NewGeocodeService creates a new GeocodeService. cache may be nil;
// ttlSeconds <= 0 selects DefaultGeocodeTTL.
func NewGeocodeService(geocoder ports.Geocoder, cache ports.CacheService, ttlSeconds int) *GeocodeService {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultGeocodeTTL
	}
	return &GeocodeService{geocoder: geocoder, cache: cache, ttl: ttlSeconds}
}

// Search returns up to limit matches for query, best first.
func (s *GeocodeService) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > 10 {
		limit = 5
	}

	// Try cache
	cacheKey := fmt.Sprintf("geocode:%s:%d", strings.ToLower(query), limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.Place
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return places, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	places, err := s.geocoder.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("geocode %q: %w", query, domain.ErrNoGeocodingResult)
	}

	if s.cache != nil {
		if data, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttl)
		}
	}

	return places, nil
}

// Locate returns the first match for query, which is where a searched pin is
// dropped.
func (s *GeocodeService) Locate(ctx context.Context, query string) (domain.Place, error) {
	places, err := s.Search(ctx, query, 1)
	if err != nil {
		return domain.Place{}, err
	}
	return places[0], nil
}
