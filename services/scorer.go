package services

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"yacht-platform/config"
	"yacht-platform/models"
	"yacht-platform/utils"
)

// maxScore caps the normalized attractiveness score.
const maxScore = 10.0

// ScoreResult summarizes one scoring pass.
type ScoreResult struct {
	Processed int `json:"processed"`
	Scored    int `json:"scored"`
}

// Scorer computes a per-listing attractiveness score in [0, 10]. The score
// depends only on the listing's own fields and the current year.
type Scorer struct {
	rules  config.Scoring
	logger *utils.Logger
	now    func() time.Time
}

// NewScorer creates a Scorer with the given scoring rules.
func NewScorer(rules config.Scoring, logger *utils.Logger) *Scorer {
	return &Scorer{rules: rules, logger: logger, now: time.Now}
}

// WithClock returns a copy of the scorer that reads the current year from now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	c := *s
	c.now = now
	return &c
}

// Score returns the normalized score rounded to two decimals.
func (s *Scorer) Score(l *models.Listing) float64 {
	normalized := s.Raw(l) / s.rules.MaxRaw * maxScore
	normalized = math.Max(0, math.Min(maxScore, normalized))
	return math.Round(normalized*100) / 100
}

// Raw returns the additive score before normalization.
func (s *Scorer) Raw(l *models.Listing) float64 {
	r := s.rules
	score := r.Base

	if year, ok := l.YearValue(); ok {
		age := float64(s.now().Year() - year)
		score += firstStep(r.Age, func(limit float64) bool { return age <= limit })
	}

	length, hasLength := l.LengthValue()
	if price, ok := l.PriceValue(); ok && hasLength {
		score += firstBand(r.PriceDensity, price/length)
	}
	if hasLength {
		score += firstBand(r.Length, length)
	}

	if r.PremiumBrands.MatchedIn(l.Brand) {
		score += r.BrandBonus
	}
	if l.SellerType == "dealer" {
		score += r.DealerBonus
	}
	if r.SailingHubs.MatchedIn(l.Location) {
		score += r.HubBonus
	}

	if l.Description != "" {
		chars := float64(utf8.RuneCountInString(l.Description))
		score += firstStep(r.Description, func(limit float64) bool { return chars > limit })
	}

	if images := float64(s.imageCount(l)); images > 0 {
		score += firstStep(r.Images, func(limit float64) bool { return images >= limit })
	}

	if l.Condition != "" {
		score += conditionPoints(r.Condition, strings.ToLower(l.Condition))
	}

	return score
}

// imageCount treats an unreadable image list as no images.
func (s *Scorer) imageCount(l *models.Listing) int {
	urls, err := l.ImageURLs()
	if err != nil {
		s.logger.Debug("[scorer] ignoring image list: %v", err)
		return 0
	}
	return len(urls)
}

// ScoreAll scores every listing that is not flagged as a duplicate.
func (s *Scorer) ScoreAll(listings []*models.Listing) ScoreResult {
	res := ScoreResult{Processed: len(listings)}
	for _, l := range listings {
		if l.IsDuplicate {
			continue
		}
		l.Score = s.Score(l)
		res.Scored++
	}
	s.logger.Info("[scorer] %d listings processed, %d scored", res.Processed, res.Scored)
	return res
}

func firstStep(steps []config.Step, matches func(limit float64) bool) float64 {
	for _, st := range steps {
		if matches(st.Limit) {
			return st.Points
		}
	}
	return 0
}

func firstBand(bands []config.Band, v float64) float64 {
	for _, b := range bands {
		if b.Contains(v) {
			return b.Points
		}
	}
	return 0
}

func conditionPoints(rules []config.KeywordRule, condition string) float64 {
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(condition, strings.ToLower(kw)) {
				return rule.Points
			}
		}
	}
	return 0
}
