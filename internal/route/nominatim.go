package route

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"SafeWalk/internal/geo"
)

// NominatimGeocoder Nominatim 兼容的地理编码客户端
// 公共实例要求每秒不超过一次请求，所有调用共享一个限速器
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	doer      Doer
	limiter   *rate.Limiter
}

// NewNominatimGeocoder ratePerSec <= 0 时不限速
func NewNominatimGeocoder(baseURL, userAgent string, ratePerSec float64, doer Doer) *NominatimGeocoder {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &NominatimGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		doer:      doer,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type nominatimReverse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (g *NominatimGeocoder) headers() map[string]string {
	return map[string]string{"User-Agent": g.userAgent}
}

// Search 取第一条结果
func (g *NominatimGeocoder) Search(ctx context.Context, query string) (*Place, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")

	var results []nominatimPlace
	if err := getJSON(ctx, g.doer, g.baseURL+"/search?"+q.Encode(), g.headers(), &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotGeocoded
	}
	return results[0].toPlace()
}

// Reverse 坐标转可读地址
func (g *NominatimGeocoder) Reverse(ctx context.Context, p geo.Point) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Lng, 'f', -1, 64))
	q.Set("format", "json")

	var result nominatimReverse
	if err := getJSON(ctx, g.doer, g.baseURL+"/reverse?"+q.Encode(), g.headers(), &result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("nominatim: %s", result.Error)
	}
	return result.DisplayName, nil
}

func (p nominatimPlace) toPlace() (*Place, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad lat %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad lon %q: %w", p.Lon, err)
	}
	return &Place{Point: geo.Point{Lat: lat, Lng: lng}, DisplayName: p.DisplayName}, nil
}
