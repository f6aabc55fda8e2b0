package fusion

import (
	"sort"
	"strings"

	"github.com/openshelf/fedcat/models"
)

// relevanceScore implements the documented heuristic: 100 for an available
// item, 10 more when it is both physical and available, plus copy count
// capped at 10.
func relevanceScore(it models.UnifiedItem) int {
	score := 0
	if isAvailable(it) {
		score += 100
		if it.MediaType == models.MediaPhysical {
			score += 10
		}
	}
	copies := it.CopyCount
	if copies > 10 {
		copies = 10
	}
	return score + copies
}

// isAvailable applies the documented availability test: the availability
// text contains "available", case-insensitively.
func isAvailable(it models.UnifiedItem) bool {
	return strings.Contains(strings.ToLower(it.Availability), "available")
}

// sortItems orders the merged list in place. All orderings are stable, so
// ties preserve input order (legacy items precede ycl items).
func sortItems(items []models.UnifiedItem, key models.SortKey) {
	switch key {
	case models.SortTitle:
		sort.SliceStable(items, func(i, j int) bool {
			return lexLess(items[i].Title, items[j].Title)
		})
	case models.SortAuthor:
		sort.SliceStable(items, func(i, j int) bool {
			return lexLess(items[i].Author, items[j].Author)
		})
	case models.SortAvailability:
		sort.SliceStable(items, func(i, j int) bool {
			return isAvailable(items[i]) && !isAvailable(items[j])
		})
	case models.SortDate:
		// Newest first; items without a date sink to the end.
		sort.SliceStable(items, func(i, j int) bool {
			di, dj := items[i].Extra["publishedDate"], items[j].Extra["publishedDate"]
			if (di == "") != (dj == "") {
				return di != ""
			}
			return di > dj
		})
	default: // relevance
		sort.SliceStable(items, func(i, j int) bool {
			return relevanceScore(items[i]) > relevanceScore(items[j])
		})
	}
}

// lexLess is an ascending case-folded comparison with a raw tiebreak so the
// ordering stays total (and therefore idempotent under re-sorting).
func lexLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// pageWindow slices the merged list to the request's page window,
// clamping at the edges.
func pageWindow(items []models.UnifiedItem, page, pageSize int) []models.UnifiedItem {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
