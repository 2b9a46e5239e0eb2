// Package geo provides road distances between postal codes.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultGeocodeURL  = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultDistanceURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
)

// ErrNoRoute is returned when the distance matrix has no route between two points.
var ErrNoRoute = errors.New("no route")

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GoogleClient resolves postal codes with the Geocoding API and measures
// road distance with the Distance Matrix API.
type GoogleClient struct {
	GeocodeKey  string
	DistanceKey string
	GeocodeURL  string
	DistanceURL string
	HTTP        *http.Client
	Logger      *slog.Logger
}

func NewGoogleClient(geocodeKey, distanceKey string, httpClient *http.Client, logger *slog.Logger) *GoogleClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleClient{
		GeocodeKey:  geocodeKey,
		DistanceKey: distanceKey,
		GeocodeURL:  defaultGeocodeURL,
		DistanceURL: defaultDistanceURL,
		HTTP:        httpClient,
		Logger:      logger,
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location LatLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type distanceResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int64 `json:"value"` // metres
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// Geocode returns the coordinates of a postal code within country.
func (c *GoogleClient) Geocode(ctx context.Context, postal, country string) (LatLng, error) {
	q := url.Values{}
	q.Set("address", postal)
	q.Set("components", "country:"+country)
	q.Set("key", c.GeocodeKey)

	var resp geocodeResponse
	if err := c.get(ctx, c.GeocodeURL, q, &resp); err != nil {
		return LatLng{}, fmt.Errorf("geocode %s %s: %w", country, postal, err)
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return LatLng{}, fmt.Errorf("geocode %s %s: status %s", country, postal, resp.Status)
	}
	return resp.Results[0].Geometry.Location, nil
}

// DistanceKM geocodes both ends and returns the road distance in kilometres.
func (c *GoogleClient) DistanceKM(ctx context.Context, originPostal, originCountry, destPostal, destCountry string) (decimal.Decimal, error) {
	from, err := c.Geocode(ctx, originPostal, originCountry)
	if err != nil {
		return decimal.Zero, err
	}
	to, err := c.Geocode(ctx, destPostal, destCountry)
	if err != nil {
		return decimal.Zero, err
	}

	q := url.Values{}
	q.Set("origins", fmt.Sprintf("%f,%f", from.Lat, from.Lng))
	q.Set("destinations", fmt.Sprintf("%f,%f", to.Lat, to.Lng))
	q.Set("key", c.DistanceKey)

	var resp distanceResponse
	if err := c.get(ctx, c.DistanceURL, q, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("distance matrix: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 || resp.Rows[0].Elements[0].Status != "OK" {
		return decimal.Zero, fmt.Errorf("distance %s %s -> %s %s: %w", originCountry, originPostal, destCountry, destPostal, ErrNoRoute)
	}
	km := decimal.NewFromInt(resp.Rows[0].Elements[0].Distance.Value).Div(decimal.NewFromInt(1000))
	c.Logger.Debug("geo.distance.ok",
		"origin", originCountry+" "+originPostal,
		"destination", destCountry+" "+destPostal,
		"km", km.StringFixed(1),
	)
	return km, nil
}

func (c *GoogleClient) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
