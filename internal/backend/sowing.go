package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SowingWindow is the result of a best-sowing-window lookup.
type SowingWindow struct {
	RecommendedStartDate string `json:"recommended_start_date"` // YYYY-MM-DD
	RecommendedEndDate   string `json:"recommended_end_date"`   // YYYY-MM-DD
	RiskLevel            string `json:"risk_level"`             // e.g. LOW, MEDIUM, HIGH
	Reason               string `json:"reason"`
}

// SowingClient queries the sowing advisory API.
type SowingClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSowingClient creates a sowing advisory client for the given base URL.
func NewSowingClient(baseURL string, opts ...ClientOption) *SowingClient {
	return &SowingClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(opts),
	}
}

// BestSowingWindow fetches the recommended sowing window for a crop at a location.
func (c *SowingClient) BestSowingWindow(ctx context.Context, crop string, lat, lon float64) (SowingWindow, error) {
	params := url.Values{}
	params.Set("crop", crop)
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var window SowingWindow
	err := getJSON(ctx, c.httpClient, c.baseURL+"/sowing/best-sowing-day", params, &window)
	if err != nil {
		slog.Error("SowingClient.BestSowingWindow failed", "error", err, "crop", crop)
		return SowingWindow{}, fmt.Errorf("best sowing window lookup: %w", err)
	}
	slog.Debug("SowingClient.BestSowingWindow succeeded", "crop", crop, "risk", window.RiskLevel)
	return window, nil
}
