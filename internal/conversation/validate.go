package conversation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parseCoordinates parses free-text user input into a latitude/longitude pair.
// Accepts "19.0760,72.8777" style or whitespace-separated values. Latitude must
// be within [-90, 90] and longitude within [-180, 180].
func parseCoordinates(text string) (lat, lon float64, err error) {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		parts = strings.Fields(text)
	}
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two values, got %d", len(parts))
	}

	lat, err = parseFinite(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err = parseFinite(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}

	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude %g out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude %g out of range [-180, 180]", lon)
	}
	return lat, lon, nil
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

// parseAreaType maps user input to the backend's area codes.
func parseAreaType(choice string) (string, bool) {
	switch choice {
	case "1", "u", "urban":
		return "U", true
	case "2", "r", "rural":
		return "R", true
	}
	return "", false
}

// isResetKeyword reports whether the input should return the user to the main
// menu from any step.
func isResetKeyword(normalized string) bool {
	switch normalized {
	case "hi", "hello", "hey", "start", "menu", "cancel", "reset":
		return true
	}
	return false
}
