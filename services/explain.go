package services

import (
	"github.com/agnivade/levenshtein"

	"yacht-platform/models"
)

// SignalScore is one composite similarity input as seen by Explain.
type SignalScore struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Weight     float64 `json:"weight"`
}

// MatchExplanation breaks down why two listings were (or were not) judged
// duplicates.
type MatchExplanation struct {
	Rule          MatchRule     `json:"rule"`
	Duplicate     bool          `json:"duplicate"`
	Composite     float64       `json:"composite"`
	Threshold     float64       `json:"threshold"`
	Signals       []SignalScore `json:"signals"`
	TitleA        string        `json:"title_a"`
	TitleB        string        `json:"title_b"`
	TitleDistance int           `json:"title_distance"`
}

// Explain reports the deciding rule together with every composite signal,
// including when a short-circuit made the composite irrelevant.
func (d *Deduplicator) Explain(l1, l2 *models.Listing) MatchExplanation {
	rule, _ := d.match(l1, l2)

	signals := d.signals(l1, l2)
	scores := make([]SignalScore, 0, len(signals))
	for _, s := range signals {
		scores = append(scores, SignalScore{Name: s.name, Similarity: s.similarity, Weight: s.weight})
	}

	t1, t2 := Normalize(l1.Title), Normalize(l2.Title)
	return MatchExplanation{
		Rule:          rule,
		Duplicate:     rule != MatchNone,
		Composite:     d.Similarity(l1, l2),
		Threshold:     d.rules.Threshold,
		Signals:       scores,
		TitleA:        t1,
		TitleB:        t2,
		TitleDistance: levenshtein.ComputeDistance(t1, t2),
	}
}
