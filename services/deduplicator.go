package services

import (
	"strings"

	"yacht-platform/config"
	"yacht-platform/models"
	"yacht-platform/utils"
)

// MatchRule names the check that decided a pairwise comparison.
type MatchRule string

const (
	MatchHIN       MatchRule = "hin"
	MatchMMSI      MatchRule = "mmsi"
	MatchTitle     MatchRule = "title"
	MatchComposite MatchRule = "composite"
	MatchNone      MatchRule = "none"
)

// DedupResult summarizes one deduplication pass.
type DedupResult struct {
	Processed        int `json:"processed"`
	DuplicatesFound  int `json:"duplicates_found"`
	DuplicatesMarked int `json:"duplicates_marked"`
}

// Deduplicator groups listings that describe the same physical vessel.
type Deduplicator struct {
	rules  config.Matching
	logger *utils.Logger
}

// NewDeduplicator creates a Deduplicator with the given matching rules.
func NewDeduplicator(rules config.Matching, logger *utils.Logger) *Deduplicator {
	return &Deduplicator{rules: rules, logger: logger}
}

// signal is one weighted input of the composite similarity.
type signal struct {
	name       string
	similarity float64
	weight     float64
}

// AreDuplicates reports whether l1 and l2 describe the same vessel.
func (d *Deduplicator) AreDuplicates(l1, l2 *models.Listing) bool {
	rule, _ := d.match(l1, l2)
	return rule != MatchNone
}

// match applies the identifier and title short-circuits before falling back
// to the composite similarity. The composite value is only computed (and
// returned) when no short-circuit fired.
func (d *Deduplicator) match(l1, l2 *models.Listing) (MatchRule, float64) {
	if l1.HIN != "" && l2.HIN != "" && l1.HIN == l2.HIN {
		return MatchHIN, 0
	}
	if l1.MMSI != "" && l2.MMSI != "" && l1.MMSI == l2.MMSI {
		return MatchMMSI, 0
	}
	if l1.Title != "" && l2.Title != "" && Normalize(l1.Title) == Normalize(l2.Title) {
		return MatchTitle, 0
	}

	sim := d.Similarity(l1, l2)
	if sim >= d.rules.Threshold {
		return MatchComposite, sim
	}
	return MatchNone, sim
}

// Similarity is the weighted average of every signal both listings carry.
// Weights of missing signals are left out of the denominator; with no
// signals at all the similarity is 0.
func (d *Deduplicator) Similarity(l1, l2 *models.Listing) float64 {
	var sum, total float64
	for _, s := range d.signals(l1, l2) {
		sum += s.similarity * s.weight
		total += s.weight
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func (d *Deduplicator) signals(l1, l2 *models.Listing) []signal {
	w := d.rules.Weights
	out := make([]signal, 0, 5)

	if l1.Title != "" && l2.Title != "" {
		out = append(out, signal{
			name:       "title",
			similarity: TextSimilarity(Normalize(l1.Title), Normalize(l2.Title)),
			weight:     w.Title,
		})
	}

	bm1, bm2 := brandModel(l1), brandModel(l2)
	if bm1 != "" && bm2 != "" {
		out = append(out, signal{
			name:       "brand_model",
			similarity: TextSimilarity(Normalize(bm1), Normalize(bm2)),
			weight:     w.BrandModel,
		})
	}

	if y1, ok1 := l1.YearValue(); ok1 {
		if y2, ok2 := l2.YearValue(); ok2 {
			out = append(out, signal{name: "year", similarity: YearSimilarity(y1, y2), weight: w.Year})
		}
	}

	if len1, ok1 := l1.LengthValue(); ok1 {
		if len2, ok2 := l2.LengthValue(); ok2 {
			out = append(out, signal{name: "length", similarity: LengthSimilarity(len1, len2), weight: w.Length})
		}
	}

	if p1, ok1 := l1.PriceValue(); ok1 {
		if p2, ok2 := l2.PriceValue(); ok2 {
			out = append(out, signal{name: "price", similarity: PriceSimilarity(p1, p2), weight: w.Price})
		}
	}

	return out
}

func brandModel(l *models.Listing) string {
	return strings.TrimSpace(l.Brand + " " + l.Model)
}

// FindDuplicates partitions listings into duplicate groups in a single pass.
// Each unassigned listing becomes the anchor of a new group and collects
// every later unassigned listing that matches the anchor. Members are never
// compared with each other, so grouping is not transitive. Groups with no
// member besides the anchor are dropped. The anchor is always element 0.
func (d *Deduplicator) FindDuplicates(listings []*models.Listing) [][]*models.Listing {
	var groups [][]*models.Listing
	assigned := make([]bool, len(listings))

	for i, anchor := range listings {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []*models.Listing{anchor}

		for j := i + 1; j < len(listings); j++ {
			if assigned[j] {
				continue
			}
			rule, sim := d.match(anchor, listings[j])
			if rule == MatchNone {
				continue
			}
			d.logger.Debug("[dedup] listing %d duplicates anchor %d (rule=%s, similarity=%.3f)",
				listings[j].ID, anchor.ID, rule, sim)
			group = append(group, listings[j])
			assigned[j] = true
		}

		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}

// MarkDuplicates flags every non-anchor member of each group as a duplicate
// and returns the pass summary for processed input listings.
func (d *Deduplicator) MarkDuplicates(processed int, groups [][]*models.Listing) DedupResult {
	res := DedupResult{Processed: processed}
	for _, group := range groups {
		for _, l := range group[1:] {
			l.IsDuplicate = true
			res.DuplicatesMarked++
		}
		res.DuplicatesFound += len(group) - 1
	}
	return res
}

// Deduplicate groups listings and flags the duplicates in place.
func (d *Deduplicator) Deduplicate(listings []*models.Listing) ([][]*models.Listing, DedupResult) {
	groups := d.FindDuplicates(listings)
	res := d.MarkDuplicates(len(listings), groups)
	d.logger.Info("[dedup] %d listings processed, %d groups, %d duplicates marked",
		res.Processed, len(groups), res.DuplicatesMarked)
	return groups, res
}
