package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"yacht-platform/models"
	"yacht-platform/utils"
)

const topScoredCount = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarizes prices, scores and locations of the given listings.
// Duplicates are skipped.
func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByLocation: make(map[string]int),
		TopScored:          []*models.Listing{},
	}

	var active []*models.Listing
	for _, l := range listings {
		if !l.IsDuplicate {
			active = append(active, l)
		}
	}
	if len(active) == 0 {
		return report
	}
	report.TotalListings = len(active)

	var priceTotal, scoreTotal float64
	for _, l := range active {
		scoreTotal += l.Score
		if l.Location != "" {
			report.ListingsByLocation[l.Location]++
		}

		price, ok := l.PriceValue()
		if !ok {
			continue
		}
		report.PricedListings++
		priceTotal += price
		if report.PricedListings == 1 || price < report.MinPrice {
			report.MinPrice = price
		}
		if report.PricedListings == 1 || price > report.MaxPrice {
			report.MaxPrice = price
			report.MostExpensive = l
		}
	}

	report.AverageScore = round2(scoreTotal / float64(len(active)))
	if report.PricedListings > 0 {
		report.AveragePrice = round2(priceTotal / float64(report.PricedListings))
	}

	ranked := append([]*models.Listing(nil), active...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > topScoredCount {
		ranked = ranked[:topScoredCount]
	}
	report.TopScored = ranked

	s.logger.Debug("[insights] %d active listings, %d priced, average score %.2f",
		report.TotalListings, report.PricedListings, report.AverageScore)
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  ⛵ YACHT LISTING INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Active listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With a price    : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Fprintf(w, "  Average score   : \033[1m%.2f\033[0m\n", r.AverageScore)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Title, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.Location)
		fmt.Fprintf(w, "  Price    : \033[1;31m%.2f %s\033[0m\n", r.MaxPrice, r.MostExpensive.Currency)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top %d by Attractiveness\033[0m\n", topScoredCount)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopScored) == 0 {
		fmt.Fprintf(w, "  No listings scored yet\n")
	} else {
		for i, l := range r.TopScored {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%5.2f\033[0m\n",
				i+1, truncate(l.Title, 38), l.Score)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Location\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByLocation) == 0 {
		fmt.Fprintf(w, "  No location data\n")
	} else {
		type locCount struct {
			loc   string
			count int
		}
		locs := make([]locCount, 0, len(r.ListingsByLocation))
		for loc, cnt := range r.ListingsByLocation {
			locs = append(locs, locCount{loc, cnt})
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].count != locs[j].count {
				return locs[i].count > locs[j].count
			}
			return locs[i].loc < locs[j].loc
		})
		for _, lc := range locs {
			bar := strings.Repeat("█", lc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(lc.loc, 28), bar, lc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
