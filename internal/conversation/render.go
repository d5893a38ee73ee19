package conversation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jalniti/waterwallet/internal/backend"
)

// User-facing message texts. Every engine branch resolves to one of these so
// the transport layer never sees an error.
const (
	msgMainMenu = "💧 *WaterWallet*\n\nWhat would you like to do?\n" +
		"1. Sowing advisory\n" +
		"2. Solvency check\n" +
		"3. Crop recommendations\n\n" +
		"Reply with 1, 2 or 3. Send 'menu' anytime to start over."

	msgAskCrop          = "🌱 Which crop do you plan to sow? (e.g. wheat, cotton, soybean)"
	msgAskLocation      = "📍 Please share your farm location as latitude,longitude (e.g. 19.0760,72.8777)."
	msgAskAreaType      = "Is your land in an urban or rural area?\n1. Urban\n2. Rural"
	msgSelectNumber     = "Reply with the number of your choice."
	msgMenuHint         = "Send 'menu' to return to the main menu."

	msgInvalidMenu      = "Sorry, I didn't understand that."
	msgInvalidCrop      = "Please send the crop name as text, e.g. wheat."
	msgInvalidLocation  = "That doesn't look like a valid location. Latitude must be between -90 and 90, longitude between -180 and 180, e.g. 19.0760,72.8777."
	msgInvalidArea      = "Please reply 1 for urban or 2 for rural."
	msgInvalidSelection = "Please reply with one of the listed numbers."

	msgTooManyInvalid = "Looks like we got stuck, so let's start over."
	msgUnreachable    = "⚠️ Sorry, the advisory service is unreachable right now. Please try again in a few minutes."
	msgInternalIssue  = "⚠️ Something went wrong on our side. Please try again."

	headerDistricts = "🏞️ Select your district:"
	headerTalukas   = "Select your taluka:"
	headerVillages  = "Select your village:"
	headerSurveys   = "Select your survey/plot number:"
)

// renderNoOptions reports an empty result set for a hierarchy level, distinct
// from a backend failure.
func renderNoOptions(level string) string {
	return fmt.Sprintf("No %s available for this selection, returning to the menu.\n\n%s", level, msgMainMenu)
}

func renderUnreachable() string {
	return msgUnreachable + "\n\n" + msgMenuHint
}

func renderSowingWindow(crop string, w backend.SowingWindow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌱 Sowing advisory for %s\n\n", titleWord(crop))
	fmt.Fprintf(&b, "Recommended window: %s to %s\n", displayDate(w.RecommendedStartDate), displayDate(w.RecommendedEndDate))
	fmt.Fprintf(&b, "Risk level: %s\n", titleWord(w.RiskLevel))
	if w.Reason != "" {
		fmt.Fprintf(&b, "Why: %s\n", w.Reason)
	}
	b.WriteString("\n" + msgMenuHint)
	return b.String()
}

func renderGroundwaterBalance(surveyNo string, bal backend.GroundwaterBalance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💧 Groundwater balance for plot %s\n\n", surveyNo)
	if bal.HasBalance {
		fmt.Fprintf(&b, "Available balance: %s litres\n", groupThousands(int64(math.Round(bal.BalanceLitres))))
	} else {
		b.WriteString("No balance figure is available for this plot.\n")
	}
	if bal.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", bal.Category)
	}
	if bal.Remarks != "" {
		fmt.Fprintf(&b, "%s\n", bal.Remarks)
	}
	b.WriteString("\n" + msgMenuHint)
	return b.String()
}

func renderTopCrops(tc backend.TopCrops) string {
	var b strings.Builder
	b.WriteString("🌾 Recommended crops for your location\n")
	if tc.Station != "" {
		fmt.Fprintf(&b, "Station: %s\n", titleWord(tc.Station))
	}
	if tc.Season != "" {
		fmt.Fprintf(&b, "Season: %s\n", titleWord(tc.Season))
	}
	b.WriteString("\n")
	if len(tc.Crops) == 0 {
		b.WriteString("No crop recommendations available.\n")
	} else {
		for i, crop := range tc.Crops {
			fmt.Fprintf(&b, "%d. %s (profit score %.4f)\n", i+1, titleWord(crop.Crop), crop.ProfitMetric)
		}
	}
	b.WriteString("\n" + msgMenuHint)
	return b.String()
}

// displayDate formats an ISO date as a short "18 Jun" style date. Unparseable
// input is shown as-is rather than dropped.
func displayDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("2 Jan")
}

// titleWord capitalizes the first letter and lowercases the rest ("LOW" -> "Low").
func titleWord(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// groupThousands renders an integer with comma separators (1234567 -> "1,234,567").
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
