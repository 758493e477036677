// Package backend is the HTTP client for the delivery platform API: routing,
// geocoding, place search and the delivery resource itself.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client defines the backend operations consumed by the order flow.
type Client interface {
	RouteDistance(ctx context.Context, pickupLat, pickupLon, dropoffLat, dropoffLon float64) (RouteInfo, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
	SearchLocation(ctx context.Context, query string, lat, lon float64) ([]Place, error)
	CreateDelivery(ctx context.Context, payload any) (Delivery, error)
	ListDeliveries(ctx context.Context, userID int64) ([]Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, id int64, status string) (Delivery, error)
}

type client struct {
	baseURL string
	http    *http.Client
}

// New creates a backend client. A nil httpClient gets a 5-second timeout
// default.
func New(baseURL string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &client{baseURL: baseURL, http: httpClient}
}

func (c *client) RouteDistance(ctx context.Context, pickupLat, pickupLon, dropoffLat, dropoffLon float64) (RouteInfo, error) {
	q := url.Values{}
	q.Set("pickup_lat", formatCoord(pickupLat))
	q.Set("pickup_lon", formatCoord(pickupLon))
	q.Set("dropoff_lat", formatCoord(dropoffLat))
	q.Set("dropoff_lon", formatCoord(dropoffLon))

	var info RouteInfo
	if err := c.getJSON(ctx, "/api/route-distance", q, &info); err != nil {
		return RouteInfo{}, err
	}
	return info, nil
}

// ReverseGeocode resolves a coordinate to an address label, preferring the
// POI name (with street when present), then the freeform address at either
// nesting level. A response with no usable components still succeeds with
// UnknownAddress.
func (c *client) ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error) {
	q := url.Values{}
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lon))

	var raw reverseGeocodeResponse
	if err := c.getJSON(ctx, "/api/reverse-geocode", q, &raw); err != nil {
		return Address{}, err
	}

	addr := Address{Label: UnknownAddress}
	if raw.Address != nil {
		addr.City = raw.Address.Municipality
	}

	switch {
	case raw.POI != nil && raw.POI.Name != "":
		addr.Label = raw.POI.Name
		if raw.Address != nil && raw.Address.StreetName != "" {
			addr.Label = raw.POI.Name + ", " + raw.Address.StreetName
		}
	case raw.Address != nil && raw.Address.FreeformAddress != "":
		addr.Label = raw.Address.FreeformAddress
	case raw.FreeformAddress != "":
		addr.Label = raw.FreeformAddress
	}
	return addr, nil
}

func (c *client) SearchLocation(ctx context.Context, query string, lat, lon float64) ([]Place, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lon))

	var raw searchResponse
	if err := c.getJSON(ctx, "/api/search-location", q, &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw.Results))
	for _, r := range raw.Results {
		p := Place{ID: r.ID, Lat: r.Position.Lat, Lon: r.Position.Lon}
		if r.POI != nil {
			p.Name = r.POI.Name
		}
		if r.Address != nil {
			p.Address = r.Address.FreeformAddress
		}
		places = append(places, p)
	}
	return places, nil
}

func (c *client) CreateDelivery(ctx context.Context, payload any) (Delivery, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Delivery{}, fmt.Errorf("encoding delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/client/deliveries", bytes.NewReader(body))
	if err != nil {
		return Delivery{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var created Delivery
	if err := c.do(req, &created); err != nil {
		return Delivery{}, err
	}
	return created, nil
}

func (c *client) ListDeliveries(ctx context.Context, userID int64) ([]Delivery, error) {
	var deliveries []Delivery
	path := "/api/client/deliveries/" + strconv.FormatInt(userID, 10)
	if err := c.getJSON(ctx, path, nil, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (c *client) UpdateDeliveryStatus(ctx context.Context, id int64, status string) (Delivery, error) {
	body, _ := json.Marshal(map[string]string{"status": status})
	path := fmt.Sprintf("%s/api/client/deliveries/%d", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, path, bytes.NewReader(body))
	if err != nil {
		return Delivery{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var updated Delivery
	if err := c.do(req, &updated); err != nil {
		return Delivery{}, err
	}
	return updated, nil
}

func (c *client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
