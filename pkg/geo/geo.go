package geo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"googlemaps.github.io/maps"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) String() string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

// TravelQuery describes one routing request. Exactly one of ArriveBy or
// DepartAt should be set so the provider can account for expected traffic.
type TravelQuery struct {
	Origin      Point
	Destination Point
	ArriveBy    time.Time
	DepartAt    time.Time
}

// Planner resolves addresses to coordinates and estimates door-to-door
// driving time. Implemented by the Google Maps client in production and by
// FixedEstimator for conflict simulation.
type Planner interface {
	Geocode(ctx context.Context, address string) (Point, error)
	TravelTime(ctx context.Context, q TravelQuery) (time.Duration, error)
}

var ErrNoRoute = errors.New("geo: no route between origin and destination")

// Client is the Google Maps backed Planner.
type Client struct {
	maps *maps.Client
}

func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("geo: GOOGLE_MAPS_API_KEY not configured")
	}

	mc, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("geo: failed to create maps client: %w", err)
	}

	return &Client{maps: mc}, nil
}

func (c *Client) Geocode(ctx context.Context, address string) (Point, error) {
	if address == "" {
		return Point{}, errors.New("geo: empty address")
	}

	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return Point{}, fmt.Errorf("geo: geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return Point{}, fmt.Errorf("geo: no geocoding result for %q", address)
	}

	loc := results[0].Geometry.Location
	return Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

func (c *Client) TravelTime(ctx context.Context, q TravelQuery) (time.Duration, error) {
	req := &maps.DistanceMatrixRequest{
		Origins:      []string{q.Origin.String()},
		Destinations: []string{q.Destination.String()},
		Mode:         maps.TravelModeDriving,
	}

	// Time-aware routing: arrival time for the outbound leg, departure time
	// for the return leg.
	if !q.ArriveBy.IsZero() {
		req.ArrivalTime = strconv.FormatInt(q.ArriveBy.Unix(), 10)
	} else if !q.DepartAt.IsZero() {
		req.DepartureTime = strconv.FormatInt(q.DepartAt.Unix(), 10)
	}

	resp, err := c.maps.DistanceMatrix(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("geo: distance matrix: %w", err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, ErrNoRoute
	}

	elem := resp.Rows[0].Elements[0]
	if elem.Status != "OK" {
		return 0, fmt.Errorf("geo: distance matrix element status %s: %w", elem.Status, ErrNoRoute)
	}

	if elem.DurationInTraffic > 0 {
		return elem.DurationInTraffic, nil
	}
	return elem.Duration, nil
}

// FixedEstimator is a Planner that returns a constant travel time and fails
// geocoding. The conflict-check endpoint uses it to simulate an assignment
// without spending provider quota.
type FixedEstimator struct {
	Estimate time.Duration
}

func (f FixedEstimator) Geocode(ctx context.Context, address string) (Point, error) {
	return Point{}, errors.New("geo: fixed estimator cannot geocode")
}

func (f FixedEstimator) TravelTime(ctx context.Context, q TravelQuery) (time.Duration, error) {
	return f.Estimate, nil
}
