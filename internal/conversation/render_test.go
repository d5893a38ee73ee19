package conversation

import (
	"strings"
	"testing"

	"github.com/jalniti/waterwallet/internal/backend"
)

func TestDisplayDate(t *testing.T) {
	tests := []struct {
		iso  string
		want string
	}{
		{"2026-06-18", "18 Jun"},
		{"2026-01-02", "2 Jan"},
		{"2026-12-31", "31 Dec"},
		{"not-a-date", "not-a-date"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := displayDate(tc.iso); got != tc.want {
			t.Errorf("displayDate(%q) = %q, want %q", tc.iso, got, tc.want)
		}
	}
}

func TestTitleWord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LOW", "Low"},
		{"medium", "Medium"},
		{"High", "High"},
		{" wheat ", "Wheat"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := titleWord(tc.in); got != tc.want {
			t.Errorf("titleWord(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234567, "-1,234,567"},
		{100000000, "100,000,000"},
	}
	for _, tc := range tests {
		if got := groupThousands(tc.n); got != tc.want {
			t.Errorf("groupThousands(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestRenderSowingWindow(t *testing.T) {
	out := renderSowingWindow("wheat", backend.SowingWindow{
		RecommendedStartDate: "2026-06-18",
		RecommendedEndDate:   "2026-06-24",
		RiskLevel:            "LOW",
		Reason:               "rainfall onset expected",
	})
	for _, want := range []string{"Wheat", "18 Jun to 24 Jun", "Risk level: Low", "Why: rainfall onset expected"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderSowingWindow missing %q\ngot: %q", want, out)
		}
	}
}

func TestRenderSowingWindowOmitsEmptyReason(t *testing.T) {
	out := renderSowingWindow("wheat", backend.SowingWindow{
		RecommendedStartDate: "2026-06-18",
		RecommendedEndDate:   "2026-06-24",
		RiskLevel:            "HIGH",
	})
	if strings.Contains(out, "Why:") {
		t.Errorf("empty reason should not render a Why line: %q", out)
	}
}

func TestRenderGroundwaterBalance(t *testing.T) {
	out := renderGroundwaterBalance("42/1", backend.GroundwaterBalance{
		BalanceLitres: 1234567.4,
		HasBalance:    true,
		Category:      "Safe",
		Remarks:       "sufficient for rabi season",
	})
	for _, want := range []string{"plot 42/1", "1,234,567 litres", "Category: Safe", "sufficient for rabi season"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderGroundwaterBalance missing %q\ngot: %q", want, out)
		}
	}
}

func TestRenderGroundwaterBalanceWithoutFigure(t *testing.T) {
	out := renderGroundwaterBalance("42/1", backend.GroundwaterBalance{HasBalance: false})
	if !strings.Contains(out, "No balance figure") {
		t.Errorf("expected missing-figure notice, got %q", out)
	}
	if strings.Contains(out, "litres") {
		t.Errorf("should not render a litres line without a figure: %q", out)
	}
}

func TestRenderTopCropsEmpty(t *testing.T) {
	out := renderTopCrops(backend.TopCrops{Season: "kharif"})
	if !strings.Contains(out, "No crop recommendations available") {
		t.Errorf("expected empty-list notice, got %q", out)
	}
}

func TestRenderNoOptionsIncludesMenu(t *testing.T) {
	out := renderNoOptions("villages")
	if !strings.Contains(out, "No villages available") {
		t.Errorf("expected level name in message, got %q", out)
	}
	if !strings.Contains(out, "1. Sowing advisory") {
		t.Errorf("expected menu appended, got %q", out)
	}
}
