package services

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"yacht-platform/models"
	"yacht-platform/utils"
)

const feetToMeters = 0.3048

var (
	// priceRegexp captures a price token including separators.
	priceRegexp = regexp.MustCompile(`\d[\d.,]*`)
	// numberRegexp captures the first numeric value in a cell.
	numberRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// yearRegexp captures a plausible four-digit build year.
	yearRegexp = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)
	// feetRegexp detects lengths given in feet.
	feetRegexp = regexp.MustCompile(`(?i)\d\s*(ft|feet|')`)
)

// Cleaner transforms seed RawListings into Listings ready for the store.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean parses raw rows, dropping rows without a title or source URL and
// rows repeating an earlier source URL.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	seen := utils.NewStringSet()
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.SourceURL)
		title := normaliseWhitespace(r.Title)
		if url == "" || title == "" {
			c.logger.Warn("[cleaner] Dropping row without title or source URL: %q", r.Title)
			continue
		}
		if !seen.Add(url) {
			c.logger.Debug("[cleaner] Duplicate source URL skipped: %s", url)
			continue
		}

		platform := strings.ToLower(strings.TrimSpace(r.SourcePlatform))
		if platform == "" {
			platform = "import"
		}

		result = append(result, &models.Listing{
			Title:          title,
			Price:          c.parsePrice(r.RawPrice),
			Currency:       strings.ToUpper(strings.TrimSpace(r.Currency)),
			Year:           parseYear(r.RawYear),
			Brand:          normaliseWhitespace(r.Brand),
			Model:          normaliseWhitespace(r.Model),
			Length:         c.parseLength(r.RawLength),
			Location:       normaliseWhitespace(r.Location),
			Condition:      normaliseWhitespace(r.Condition),
			Description:    strings.TrimSpace(r.Description),
			SellerName:     normaliseWhitespace(r.SellerName),
			SellerType:     strings.ToLower(strings.TrimSpace(r.SellerType)),
			SourceURL:      url,
			SourcePlatform: platform,
			Images:         c.encodeImages(r.Images),
			HIN:            strings.ToUpper(strings.TrimSpace(r.HIN)),
			MMSI:           strings.TrimSpace(r.MMSI),
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d, %d distinct source URLs)",
		len(raw), len(result), len(raw)-len(result), seen.Size())
	return result
}

// parsePrice extracts a price, ignoring currency symbols and thousands
// separators.
//
//	"€185,000"   → 185000
//	"EUR 92.500" → 92500
//	"1.250.000"  → 1250000
//	"on request" → nil
func (c *Cleaner) parsePrice(raw string) *float64 {
	token := priceRegexp.FindString(raw)
	if token == "" {
		return nil
	}
	token = strings.TrimRight(strings.ReplaceAll(token, ",", ""), ".")
	// "92.500" and "1.250.000" use dots as thousands separators.
	if dots := strings.Count(token, "."); dots > 1 || (dots == 1 && len(token)-strings.Index(token, ".") == 4) {
		token = strings.ReplaceAll(token, ".", "")
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// parseLength returns the length in meters, converting from feet when the
// cell says so.
func (c *Cleaner) parseLength(raw string) *float64 {
	match := numberRegexp.FindString(strings.ReplaceAll(raw, ",", "."))
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || v <= 0 {
		return nil
	}
	if feetRegexp.MatchString(raw) {
		v = float64(int(v*feetToMeters*100+0.5)) / 100
		c.logger.Debug("[cleaner] Converted length %q to %.2f m", raw, v)
	}
	return &v
}

func parseYear(raw string) *int {
	m := yearRegexp.FindString(raw)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &y
}

// encodeImages stores the image cell as a JSON array. Cells that already hold
// JSON are kept verbatim; otherwise URLs are split on '|' or whitespace.
func (c *Cleaner) encodeImages(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "[") {
		return raw
	}
	urls := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '|' || unicode.IsSpace(r)
	})
	data, err := json.Marshal(urls)
	if err != nil {
		c.logger.Warn("[cleaner] Could not encode images %q: %v", raw, err)
		return ""
	}
	return string(data)
}

// normaliseWhitespace strips leading/trailing whitespace and collapses internal whitespace.
func normaliseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
