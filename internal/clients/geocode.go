package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"leafline/internal/domain"
)

// GeocodeClient reverse geocodes against a Nominatim compatible /reverse endpoint.
type GeocodeClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewGeocodeClient(baseURL, userAgent string, timeout time.Duration) *GeocodeClient {
	return &GeocodeClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		HouseNumber   string `json:"house_number"`
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		StateDistrict string `json:"state_district"`
		State         string `json:"state"`
		Postcode      string `json:"postcode"`
		Country       string `json:"country"`
	} `json:"address"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Reverse looks up the address at lat/lon. Every component may come back empty.
func (c *GeocodeClient) Reverse(ctx context.Context, lat, lon float64) (domain.GeoAddress, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return domain.GeoAddress{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeoAddress{}, fmt.Errorf("failed to call geocoder: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.GeoAddress{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.GeoAddress{}, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var rr reverseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return domain.GeoAddress{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if rr.Error != "" {
		return domain.GeoAddress{}, fmt.Errorf("geocoder: %s", rr.Error)
	}
	a := rr.Address
	return domain.GeoAddress{
		HouseNumber: a.HouseNumber,
		Road:        a.Road,
		Suburb:      firstNonEmpty(a.Suburb, a.Neighbourhood),
		City:        firstNonEmpty(a.City, a.Town, a.Village, a.StateDistrict),
		State:       a.State,
		Postcode:    a.Postcode,
		Country:     a.Country,
		Lat:         lat,
		Lon:         lon,
	}, nil
}
