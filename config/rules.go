package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Rules is the tunable rule table for both batch engines. DefaultRules returns
// the production table; LoadRules overlays a YAML file on top of it.
type Rules struct {
	Matching Matching `yaml:"matching"`
	Scoring  Scoring  `yaml:"scoring"`
}

// Matching configures the duplicate grouper.
type Matching struct {
	Threshold float64 `yaml:"threshold"`
	Weights   Weights `yaml:"weights"`
}

// Weights of each composite similarity signal. Missing signals drop out of
// the denominator, so only relative sizes matter.
type Weights struct {
	Title      float64 `yaml:"title"`
	BrandModel float64 `yaml:"brand_model"`
	Year       float64 `yaml:"year"`
	Length     float64 `yaml:"length"`
	Price      float64 `yaml:"price"`
}

// Step awards Points once a value passes Limit. How the comparison is made
// depends on the rule that owns the step; the first matching step wins.
type Step struct {
	Limit  float64 `yaml:"limit"`
	Points float64 `yaml:"points"`
}

// Band awards Points for a value in [Min, Max]. Max == 0 leaves the band
// open-ended. The first matching band wins.
type Band struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Points float64 `yaml:"points"`
}

// Contains reports whether v falls inside the band.
func (b Band) Contains(v float64) bool {
	if v < b.Min {
		return false
	}
	return b.Max == 0 || v <= b.Max
}

// KeywordRule awards Points when any keyword occurs in the text.
type KeywordRule struct {
	Keywords []string `yaml:"keywords"`
	Points   float64  `yaml:"points"`
}

// Scoring configures the attractiveness scorer.
type Scoring struct {
	Base float64 `yaml:"base"`

	// Age steps match when age <= Limit.
	Age []Step `yaml:"age"`
	// PriceDensity bands are in price per meter.
	PriceDensity []Band `yaml:"price_density"`
	Length       []Band `yaml:"length"`

	PremiumBrands WordSet `yaml:"premium_brands"`
	BrandBonus    float64 `yaml:"brand_bonus"`
	DealerBonus   float64 `yaml:"dealer_bonus"`
	SailingHubs   WordSet `yaml:"sailing_hubs"`
	HubBonus      float64 `yaml:"hub_bonus"`

	// Description steps match when the character count is > Limit.
	Description []Step `yaml:"description"`
	// Images steps match when the image count is >= Limit.
	Images    []Step        `yaml:"images"`
	Condition []KeywordRule `yaml:"condition"`

	// MaxRaw maps raw scores onto the 0-10 scale. It must equal MaxPossible;
	// Validate enforces that, so rule edits have to update it too.
	MaxRaw float64 `yaml:"max_raw"`
}

// DefaultRules returns the production rule table.
func DefaultRules() Rules {
	return Rules{
		Matching: Matching{
			Threshold: 0.85,
			Weights: Weights{
				Title:      0.4,
				BrandModel: 0.3,
				Year:       0.1,
				Length:     0.1,
				Price:      0.1,
			},
		},
		Scoring: Scoring{
			Base: 1.0,
			Age: []Step{
				{Limit: 5, Points: 2.0},
				{Limit: 10, Points: 1.5},
				{Limit: 15, Points: 1.0},
				{Limit: 20, Points: 0.5},
			},
			PriceDensity: []Band{
				{Min: 10000, Max: 50000, Points: 2.0},
				{Min: 5000, Max: 80000, Points: 1.0},
				{Min: 0, Max: 5000, Points: 0.5},
			},
			Length: []Band{
				{Min: 10, Max: 15, Points: 1.5},
				{Min: 8, Max: 20, Points: 1.0},
				{Min: 20, Max: 0, Points: 0.5},
			},
			PremiumBrands: NewWordSet(
				"bavaria", "jeanneau", "beneteau", "hanse", "dehler",
				"x-yachts", "hallberg-rassy", "najad", "swan", "oyster",
			),
			BrandBonus:  1.0,
			DealerBonus: 0.5,
			SailingHubs: NewWordSet(
				"hamburg", "kiel", "bremen", "rostock", "flensburg",
				"lübeck", "stralsund", "greifswald",
			),
			HubBonus: 0.5,
			Description: []Step{
				{Limit: 500, Points: 1.0},
				{Limit: 200, Points: 0.5},
			},
			Images: []Step{
				{Limit: 5, Points: 1.0},
				{Limit: 2, Points: 0.5},
			},
			Condition: []KeywordRule{
				{Keywords: []string{"new"}, Points: 1.5},
				{Keywords: []string{"excellent", "very good"}, Points: 1.0},
				{Keywords: []string{"good"}, Points: 0.5},
			},
			MaxRaw: 12.0,
		},
	}
}

// LoadRules returns DefaultRules with the YAML file at path applied on top.
// An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("rules: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("rules: parse %q: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("rules: %q: %w", path, err)
	}
	return rules, nil
}

// Validate checks the invariants both engines rely on.
func (r Rules) Validate() error {
	var errs []error

	m := r.Matching
	if m.Threshold <= 0 || m.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matching threshold %.2f outside (0, 1]", m.Threshold))
	}
	w := m.Weights
	for name, v := range map[string]float64{
		"title": w.Title, "brand_model": w.BrandModel, "year": w.Year,
		"length": w.Length, "price": w.Price,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("matching weight %s is negative", name))
		}
	}
	if w.Title+w.BrandModel+w.Year+w.Length+w.Price == 0 {
		errs = append(errs, errors.New("matching weights are all zero"))
	}

	s := r.Scoring
	if want := s.MaxPossible(); math.Abs(s.MaxRaw-want) > 1e-9 {
		errs = append(errs, fmt.Errorf("scoring max_raw %.2f does not match rule table maximum %.2f", s.MaxRaw, want))
	}
	if s.MaxRaw <= 0 {
		errs = append(errs, errors.New("scoring max_raw must be positive"))
	}

	return errors.Join(errs...)
}

// MaxPossible sums the largest contribution of every scoring rule.
func (s Scoring) MaxPossible() float64 {
	total := s.Base + s.BrandBonus + s.DealerBonus + s.HubBonus
	total += maxStep(s.Age)
	total += maxBand(s.PriceDensity)
	total += maxBand(s.Length)
	total += maxStep(s.Description)
	total += maxStep(s.Images)

	var cond float64
	for _, k := range s.Condition {
		cond = math.Max(cond, k.Points)
	}
	return total + cond
}

func maxStep(steps []Step) float64 {
	var m float64
	for _, st := range steps {
		m = math.Max(m, st.Points)
	}
	return m
}

func maxBand(bands []Band) float64 {
	var m float64
	for _, b := range bands {
		m = math.Max(m, b.Points)
	}
	return m
}

// WordSet is an immutable, lower-cased list of needles matched as
// case-insensitive substrings.
type WordSet struct {
	words []string
}

// NewWordSet copies words into a set, lower-casing them and dropping blanks.
func NewWordSet(words ...string) WordSet {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return WordSet{words: out}
}

// MatchedIn reports whether any word occurs in text, ignoring case.
func (s WordSet) MatchedIn(text string) bool {
	if text == "" {
		return false
	}
	text = strings.ToLower(text)
	for _, w := range s.words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// Words returns a copy of the set's words.
func (s WordSet) Words() []string {
	return append([]string(nil), s.words...)
}

// Len returns the number of words in the set.
func (s WordSet) Len() int { return len(s.words) }

// UnmarshalYAML decodes a YAML sequence of strings.
func (s *WordSet) UnmarshalYAML(data []byte) error {
	var words []string
	if err := yaml.Unmarshal(data, &words); err != nil {
		return err
	}
	*s = NewWordSet(words...)
	return nil
}

// MarshalYAML encodes the set as a sequence of strings.
func (s WordSet) MarshalYAML() (interface{}, error) {
	return s.words, nil
}
