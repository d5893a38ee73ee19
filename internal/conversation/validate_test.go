package conversation

import "testing"

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		input   string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{"19.0760,72.8777", 19.0760, 72.8777, false},
		{"19.0760, 72.8777", 19.0760, 72.8777, false},
		{"19.0760 72.8777", 19.0760, 72.8777, false},
		{"-33.86 151.21", -33.86, 151.21, false},
		{"90,-180", 90, -180, false},
		{"19.0760", 0, 0, true},
		{"19,72,33", 0, 0, true},
		{"abc,def", 0, 0, true},
		{"91,0", 0, 0, true},
		{"-91,0", 0, 0, true},
		{"0,181", 0, 0, true},
		{"0,-181", 0, 0, true},
		{"NaN,0", 0, 0, true},
		{"0,Inf", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tc := range tests {
		lat, lon, err := parseCoordinates(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseCoordinates(%q) = (%v, %v), want error", tc.input, lat, lon)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCoordinates(%q) unexpected error: %v", tc.input, err)
			continue
		}
		if lat != tc.lat || lon != tc.lon {
			t.Errorf("parseCoordinates(%q) = (%v, %v), want (%v, %v)", tc.input, lat, lon, tc.lat, tc.lon)
		}
	}
}

func TestParseAreaType(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"1", "U", true},
		{"u", "U", true},
		{"urban", "U", true},
		{"2", "R", true},
		{"r", "R", true},
		{"rural", "R", true},
		{"3", "", false},
		{"city", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := parseAreaType(tc.input)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseAreaType(%q) = (%q, %v), want (%q, %v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIsResetKeyword(t *testing.T) {
	for _, kw := range []string{"hi", "hello", "hey", "start", "menu", "cancel", "reset"} {
		if !isResetKeyword(kw) {
			t.Errorf("isResetKeyword(%q) = false, want true", kw)
		}
	}
	for _, kw := range []string{"history", "1", "wheat", ""} {
		if isResetKeyword(kw) {
			t.Errorf("isResetKeyword(%q) = true, want false", kw)
		}
	}
}
