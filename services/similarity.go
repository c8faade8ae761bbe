package services

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	// yearWindow is the year difference at which year similarity reaches 0.
	yearWindow = 5.0
	// lengthWindow is the length difference, in meters, at which length
	// similarity reaches 0.
	lengthWindow = 5.0
	// lengthTolerance treats hulls closer than this as the same length.
	lengthTolerance = 0.5
)

// TextSimilarity returns the Ratcliff/Obershelp ratio of a and b in [0,1]:
// twice the number of characters in matching blocks over the combined length.
// Callers normalize their inputs first.
//
// The block search breaks ties by position, so the ratio can depend on
// argument order; the larger of both directions is returned to keep the
// measure symmetric.
func TextSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := splitRunes(a), splitRunes(b)
	forward := difflib.NewMatcherWithJunk(ra, rb, false, nil).Ratio()
	backward := difflib.NewMatcherWithJunk(rb, ra, false, nil).Ratio()
	return math.Max(forward, backward)
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// YearSimilarity is 1 for equal years, falling linearly to 0 at a five year gap.
func YearSimilarity(y1, y2 int) float64 {
	diff := math.Abs(float64(y1 - y2))
	if diff == 0 {
		return 1.0
	}
	return math.Max(0, 1.0-diff/yearWindow)
}

// LengthSimilarity is 1 for hulls within half a meter, falling linearly to 0
// at a five meter gap.
func LengthSimilarity(l1, l2 float64) float64 {
	diff := math.Abs(l1 - l2)
	if diff < lengthTolerance {
		return 1.0
	}
	return math.Max(0, 1.0-diff/lengthWindow)
}

// PriceSimilarity is one minus the price gap relative to the higher price.
func PriceSimilarity(p1, p2 float64) float64 {
	high := math.Max(p1, p2)
	if high <= 0 {
		return 0
	}
	return math.Max(0, 1.0-math.Abs(p1-p2)/high)
}
