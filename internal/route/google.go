package route

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"googlemaps.github.io/maps"

	"SafeWalk/internal/geo"
)

// GoogleProvider 基于 Google Maps 的路线与地理编码，同时实现 Router 和 Geocoder
type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, errors.New("google maps api key is empty")
	}
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create google maps client: %w", err)
	}
	return &GoogleProvider{client: c}, nil
}

func latLngString(p geo.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

func (g *GoogleProvider) Route(ctx context.Context, from, to geo.Point) (*Result, error) {
	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLngString(from),
		Destination: latLngString(to),
		Mode:        maps.TravelModeWalking,
	})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") || strings.Contains(err.Error(), "NOT_FOUND") {
			return nil, ErrNoRoute
		}
		return nil, err
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	seconds := leg.Duration.Seconds()
	result := &Result{
		DistanceMeters:  float64(leg.Distance.Meters),
		DurationSeconds: &seconds,
	}

	for i, s := range leg.Steps {
		typ, mod, name := googleManeuver(s, i == 0)
		result.Steps = append(result.Steps, Maneuver{
			Type:            typ,
			Modifier:        mod,
			Name:            name,
			DistanceMeters:  float64(s.Distance.Meters),
			DurationSeconds: s.Duration.Seconds(),
		})
	}
	result.Steps = append(result.Steps, Maneuver{Type: "arrive"})

	if line, err := routes[0].OverviewPolyline.Decode(); err == nil {
		for _, ll := range line {
			result.Path = append(result.Path, geo.Point{Lat: ll.Lat, Lng: ll.Lng})
		}
	}
	return result, nil
}

func (g *GoogleProvider) Search(ctx context.Context, query string) (*Place, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: query})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return nil, ErrNotGeocoded
		}
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotGeocoded
	}
	loc := results[0].Geometry.Location
	return &Place{
		Point:       geo.Point{Lat: loc.Lat, Lng: loc.Lng},
		DisplayName: results[0].FormattedAddress,
	}, nil
}

func (g *GoogleProvider) Reverse(ctx context.Context, p geo.Point) (string, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNotGeocoded
	}
	return results[0].FormattedAddress, nil
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// plainInstruction 去掉 html 标签与实体
func plainInstruction(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(htmlTag.ReplaceAllString(s, " "))), " ")
}

// googleManeuver 从 "Turn <b>left</b> onto <b>Whitehall</b>" 这类指令中解析 type/modifier 和道路名
func googleManeuver(s *maps.Step, first bool) (typ, modifier, name string) {
	text := plainInstruction(s.HTMLInstructions)
	lower := strings.ToLower(text)
	if i := strings.Index(lower, " onto "); i >= 0 {
		name = text[i+len(" onto "):]
	} else if i := strings.Index(lower, " on "); i >= 0 && first {
		name = text[i+len(" on "):]
	}
	if i := strings.IndexAny(name, ",("); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	side := ""
	switch {
	case strings.Contains(lower, "left"):
		side = "left"
	case strings.Contains(lower, "right"):
		side = "right"
	}

	switch {
	case first:
		return "depart", "", name
	case strings.Contains(lower, "u-turn"):
		return "turn", "uturn", name
	case strings.Contains(lower, "roundabout"):
		return "roundabout", side, name
	case strings.Contains(lower, "fork"):
		return "fork", side, name
	case strings.HasPrefix(lower, "slight "):
		return "turn", "slight " + side, name
	case strings.HasPrefix(lower, "turn sharp "), strings.HasPrefix(lower, "sharp "):
		return "turn", "sharp " + side, name
	case strings.HasPrefix(lower, "turn "):
		return "turn", side, name
	case strings.HasPrefix(lower, "keep "):
		return "continue", side, name
	case strings.HasPrefix(lower, "continue straight"):
		return "continue", "straight", name
	default:
		return "continue", "", name
	}
}
