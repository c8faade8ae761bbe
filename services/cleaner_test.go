package services

import (
	"testing"

	"yacht-platform/models"
)

func TestParsePrice(t *testing.T) {
	c := NewCleaner(newTestLogger())

	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"€185,000", 185000, true},
		{"EUR 92.500", 92500, true},
		{"1.250.000", 1250000, true},
		{"$1,299.99", 1299.99, true},
		{"12.5", 12.5, true},
		{"on request", 0, false},
		{"0", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got := c.parsePrice(tt.raw)
		if (got != nil) != tt.ok {
			t.Errorf("parsePrice(%q) = %v; want ok=%v", tt.raw, got, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("parsePrice(%q) = %.2f; want %.2f", tt.raw, *got, tt.want)
		}
	}
}

func TestParseLength(t *testing.T) {
	c := NewCleaner(newTestLogger())

	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"14.27 m", 14.27, true},
		{"14,27", 14.27, true},
		{"46 ft", 14.02, true},
		{"46'", 14.02, true},
		{"", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		got := c.parseLength(tt.raw)
		if (got != nil) != tt.ok {
			t.Errorf("parseLength(%q) = %v; want ok=%v", tt.raw, got, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("parseLength(%q) = %.2f; want %.2f", tt.raw, *got, tt.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"2018", 2018, true},
		{"Built 1998, refit 2015", 1998, true},
		{"1750", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := parseYear(tt.raw)
		if (got != nil) != tt.ok || (got != nil && *got != tt.want) {
			t.Errorf("parseYear(%q) = %v; want %d (ok=%v)", tt.raw, got, tt.want, tt.ok)
		}
	}
}

func TestEncodeImages(t *testing.T) {
	c := NewCleaner(newTestLogger())

	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"a.jpg|b.jpg", `["a.jpg","b.jpg"]`},
		{"a.jpg b.jpg  c.jpg", `["a.jpg","b.jpg","c.jpg"]`},
		{`["x.jpg"]`, `["x.jpg"]`},
	}
	for _, tt := range tests {
		if got := c.encodeImages(tt.raw); got != tt.want {
			t.Errorf("encodeImages(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestClean(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawListing{
		{Title: "  Bavaria   46 Cruiser ", SourceURL: "https://boats.example/1", RawPrice: "€185,000",
			RawYear: "2018", SellerType: " Dealer ", HIN: "ger123", Currency: "eur", Images: "a.jpg|b.jpg"},
		{Title: "Repeat", SourceURL: "https://boats.example/1"},
		{Title: "", SourceURL: "https://boats.example/2"},
		{Title: "No URL"},
		{Title: "Hanse 388", SourceURL: "https://boats.example/3", SourcePlatform: "YachtWorld"},
	}

	got := c.Clean(raw)
	if len(got) != 2 {
		t.Fatalf("Clean: got %d listings, want 2", len(got))
	}

	first := got[0]
	if first.Title != "Bavaria 46 Cruiser" {
		t.Errorf("Title: got %q", first.Title)
	}
	if first.Price == nil || *first.Price != 185000 {
		t.Errorf("Price: got %v", first.Price)
	}
	if first.Year == nil || *first.Year != 2018 {
		t.Errorf("Year: got %v", first.Year)
	}
	if first.SellerType != "dealer" || first.HIN != "GER123" || first.Currency != "EUR" {
		t.Errorf("normalized fields: seller=%q hin=%q currency=%q", first.SellerType, first.HIN, first.Currency)
	}
	if first.SourcePlatform != "import" {
		t.Errorf("SourcePlatform: got %q, want import", first.SourcePlatform)
	}
	if urls, err := first.ImageURLs(); err != nil || len(urls) != 2 {
		t.Errorf("images: got %v (%v)", urls, err)
	}

	if got[1].SourcePlatform != "yachtworld" {
		t.Errorf("SourcePlatform: got %q, want yachtworld", got[1].SourcePlatform)
	}
	if got[1].Price != nil || got[1].Year != nil || got[1].Length != nil {
		t.Error("missing numeric cells should stay nil")
	}
}
