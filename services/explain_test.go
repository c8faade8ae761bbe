package services

import (
	"testing"

	"yacht-platform/models"
)

func TestExplain(t *testing.T) {
	d := newTestDeduplicator()

	l1 := &models.Listing{Title: "Bavaria 46", Brand: "Bavaria", HIN: "GER123", Year: models.Int(2018)}
	l2 := &models.Listing{Title: "Bavaria 50", Brand: "Bavaria", HIN: "GER123", Year: models.Int(2016)}

	ex := d.Explain(l1, l2)
	if ex.Rule != MatchHIN || !ex.Duplicate {
		t.Errorf("rule: got %s (duplicate=%v), want hin", ex.Rule, ex.Duplicate)
	}
	if ex.Threshold != 0.85 {
		t.Errorf("threshold: got %.2f", ex.Threshold)
	}
	if ex.TitleA != "bavaria 46" || ex.TitleB != "bavaria 50" {
		t.Errorf("titles: got %q / %q", ex.TitleA, ex.TitleB)
	}
	if ex.TitleDistance != 2 {
		t.Errorf("title distance: got %d, want 2", ex.TitleDistance)
	}

	names := make(map[string]SignalScore)
	for _, s := range ex.Signals {
		names[s.Name] = s
	}
	if len(names) != 3 {
		t.Errorf("signals: got %v, want title, brand_model and year", ex.Signals)
	}
	if !almostEqual(names["year"].Similarity, 0.6) {
		t.Errorf("year similarity: got %.3f, want 0.6", names["year"].Similarity)
	}
	if names["title"].Weight != 0.4 {
		t.Errorf("title weight: got %.2f", names["title"].Weight)
	}
	if !almostEqual(ex.Composite, d.Similarity(l1, l2)) {
		t.Errorf("composite: got %.4f, want %.4f", ex.Composite, d.Similarity(l1, l2))
	}
}

func TestExplainNoMatch(t *testing.T) {
	d := newTestDeduplicator()
	ex := d.Explain(&models.Listing{Title: "Swan 48"}, &models.Listing{})
	if ex.Rule != MatchNone || ex.Duplicate {
		t.Errorf("rule: got %s, want none", ex.Rule)
	}
	if len(ex.Signals) != 0 || ex.Composite != 0 {
		t.Errorf("signals: got %v composite %.3f", ex.Signals, ex.Composite)
	}
}
