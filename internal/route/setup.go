package route

import (
	"go.uber.org/zap"

	"SafeWalk/config"
	"SafeWalk/internal/cache"
	"SafeWalk/pkg/logger"
)

// NewFromConfig 按配置组装估算器：google 同时负责路线和地理编码，osrm 搭配 nominatim
func NewFromConfig(cfg *config.Config, withCache bool) (*Estimator, error) {
	opts := []Option{
		WithTimeout(cfg.RouteTimeout),
		WithProviderName(cfg.RouteProvider),
		WithBreaker(cache.NewCircuitBreaker("route_provider", cfg.RouteBreakerFailures, cfg.RouteBreakerCooldown)),
	}
	if withCache {
		opts = append(opts, WithPlaceCache(cache.GeocodeCache))
	}

	if cfg.RouteProvider == "google" {
		g, err := NewGoogleProvider(cfg.GoogleMapsAPIKey)
		if err != nil {
			logger.Logger.Warn("Google provider unavailable, estimates will be straight-line only", zap.Error(err))
			return NewEstimator(nil, nil, opts...), nil
		}
		return NewEstimator(g, g, opts...), nil
	}

	httpClient, err := NewHTTPClient(cfg.RouteTimeout)
	if err != nil {
		return nil, err
	}
	router := NewOSRMRouter(cfg.OSRMBaseURL, httpClient)
	geocoder := NewNominatimGeocoder(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.NominatimRatePerSec, httpClient)
	return NewEstimator(geocoder, router, opts...), nil
}
