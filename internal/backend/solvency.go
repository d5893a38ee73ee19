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

// BalanceParams carries the parameters for a groundwater balance computation.
type BalanceParams struct {
	Area         string `json:"area"`
	DistrictCode string `json:"districtCode"`
	TalukaCode   string `json:"talukaCode"`
	VillageCode  string `json:"villageCode"`
	SurveyNo     string `json:"surveyNo"`
}

// GroundwaterBalance is the result of a groundwater balance computation.
// HasBalance reports whether a numeric balance could be extracted from the
// response; backends are inconsistent about the field name used.
type GroundwaterBalance struct {
	BalanceLitres float64
	HasBalance    bool
	Category      string
	Remarks       string
}

// CropRecommendation is one entry of a top-crops recommendation.
type CropRecommendation struct {
	Crop         string  `json:"crop"`
	ProfitMetric float64 `json:"profit_metric"`
}

// TopCrops is the result of a crop recommendation lookup.
type TopCrops struct {
	Season  string               `json:"season"`
	Station string               `json:"station"`
	Crops   []CropRecommendation `json:"top_3_crops"`
}

// SolvencyClient queries the multi-level location hierarchy and groundwater
// balance APIs.
type SolvencyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSolvencyClient creates a solvency client for the given base URL.
func NewSolvencyClient(baseURL string, opts ...ClientOption) *SolvencyClient {
	return &SolvencyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(opts),
	}
}

// Districts lists districts for an area type ("U" or "R"). An empty slice with
// a nil error means the backend answered but has no districts for the area.
func (c *SolvencyClient) Districts(ctx context.Context, area string) ([]ListOption, error) {
	params := url.Values{}
	params.Set("area", area)
	return c.fetchLevel(ctx, "/levels/districts", params)
}

// Talukas lists talukas within a district.
func (c *SolvencyClient) Talukas(ctx context.Context, area, districtCode string) ([]ListOption, error) {
	params := url.Values{}
	params.Set("area", area)
	params.Set("districtCode", districtCode)
	return c.fetchLevel(ctx, "/levels/talukas", params)
}

// Villages lists villages within a taluka.
func (c *SolvencyClient) Villages(ctx context.Context, area, districtCode, talukaCode string) ([]ListOption, error) {
	params := url.Values{}
	params.Set("area", area)
	params.Set("districtCode", districtCode)
	params.Set("talukaCode", talukaCode)
	return c.fetchLevel(ctx, "/levels/villages", params)
}

// Surveys lists survey/plot numbers within a village.
func (c *SolvencyClient) Surveys(ctx context.Context, area, districtCode, talukaCode, villageCode string) ([]ListOption, error) {
	params := url.Values{}
	params.Set("area", area)
	params.Set("districtCode", districtCode)
	params.Set("talukaCode", talukaCode)
	params.Set("villageCode", villageCode)
	return c.fetchLevel(ctx, "/levels/surveys", params)
}

// levelEntry tolerates the varying shapes the hierarchy endpoints return.
// Villages prefer a GIS code over the plain code; surveys carry only a plot
// number.
type levelEntry struct {
	Name           string      `json:"name"`
	Code           string      `json:"code"`
	GisCode        string      `json:"gisCode"`
	VillageGisCode string      `json:"villageGisCode"`
	PlotNo         interface{} `json:"plotNo"`
}

func (e levelEntry) toOption() ListOption {
	opt := ListOption{Name: e.Name, Code: e.Code}
	if e.GisCode != "" {
		opt.Code = e.GisCode
	} else if e.VillageGisCode != "" {
		opt.Code = e.VillageGisCode
	}
	if e.PlotNo != nil {
		no := fmt.Sprintf("%v", e.PlotNo)
		if f, ok := e.PlotNo.(float64); ok {
			no = strconv.FormatFloat(f, 'f', -1, 64)
		}
		opt.Code = no
		if opt.Name == "" {
			opt.Name = no
		}
	}
	return opt
}

func (c *SolvencyClient) fetchLevel(ctx context.Context, path string, params url.Values) ([]ListOption, error) {
	var entries []levelEntry
	if err := getJSON(ctx, c.httpClient, c.baseURL+path, params, &entries); err != nil {
		slog.Error("SolvencyClient level fetch failed", "error", err, "path", path)
		return nil, fmt.Errorf("level fetch %s: %w", path, err)
	}
	options := make([]ListOption, 0, len(entries))
	for _, e := range entries {
		options = append(options, e.toOption())
	}
	slog.Debug("SolvencyClient level fetch succeeded", "path", path, "count", len(options))
	return options, nil
}

// GroundwaterBalance computes the groundwater balance for a selected plot.
func (c *SolvencyClient) GroundwaterBalance(ctx context.Context, params BalanceParams) (GroundwaterBalance, error) {
	var data map[string]interface{}
	err := postJSON(ctx, c.httpClient, c.baseURL+"/balance/gw-balance", params, &data)
	if err != nil {
		slog.Error("SolvencyClient.GroundwaterBalance failed", "error", err, "district", params.DistrictCode)
		return GroundwaterBalance{}, fmt.Errorf("groundwater balance: %w", err)
	}

	var balance GroundwaterBalance
	balance.BalanceLitres, balance.HasBalance = extractNumeric(data,
		"balance_litres", "balance", "gw_balance", "available_water",
		"groundwater_balance", "total_balance", "water_balance", "net_balance",
		"available_litres", "total_water")
	balance.Category = stringField(data, "category")
	balance.Remarks = stringField(data, "remarks")

	slog.Debug("SolvencyClient.GroundwaterBalance succeeded", "has_balance", balance.HasBalance)
	return balance, nil
}

// TopCrops fetches the most profitable crops for a location.
func (c *SolvencyClient) TopCrops(ctx context.Context, lat, lon float64) (TopCrops, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))

	var crops TopCrops
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/crop/top-crops", params, &crops); err != nil {
		slog.Error("SolvencyClient.TopCrops failed", "error", err)
		return TopCrops{}, fmt.Errorf("top crops lookup: %w", err)
	}
	slog.Debug("SolvencyClient.TopCrops succeeded", "count", len(crops.Crops))
	return crops, nil
}
