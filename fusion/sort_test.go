package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/fedcat/models"
)

func item(title, author, availability string, copies int, media models.MediaType) models.UnifiedItem {
	return models.UnifiedItem{
		Title:        title,
		Author:       author,
		Availability: availability,
		CopyCount:    copies,
		MediaType:    media,
	}
}

func TestRelevanceScore(t *testing.T) {
	avail := item("a", "", "Available", 3, models.MediaDigital)
	assert.Equal(t, 103, relevanceScore(avail))

	physAvail := item("a", "", "Available", 3, models.MediaPhysical)
	assert.Equal(t, 113, relevanceScore(physAvail))

	unavail := item("a", "", "All copies in use", 3, models.MediaPhysical)
	assert.Equal(t, 3, relevanceScore(unavail))

	capped := item("a", "", "Available", 50, models.MediaDigital)
	assert.Equal(t, 110, relevanceScore(capped), "copy contribution caps at 10")
}

func TestRelevanceScore_AvailabilityOutranksCopies(t *testing.T) {
	lean := item("a", "", "1 copy available", 1, models.MediaDigital)
	rich := item("b", "", "All copies in use", 500, models.MediaPhysical)
	assert.Greater(t, relevanceScore(lean), relevanceScore(rich))
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, isAvailable(item("", "", "Available", 0, "")))
	assert.True(t, isAvailable(item("", "", "2 copies AVAILABLE", 0, "")))
	assert.False(t, isAvailable(item("", "", "All copies in use", 0, "")))
	assert.False(t, isAvailable(item("", "", "", 0, "")))
}

func TestSortItems_Relevance(t *testing.T) {
	items := []models.UnifiedItem{
		item("low", "", "checked out", 2, models.MediaDigital),
		item("high", "", "Available", 5, models.MediaPhysical),
		item("mid", "", "Available", 1, models.MediaDigital),
	}
	sortItems(items, models.SortRelevance)

	assert.Equal(t, "high", items[0].Title)
	assert.Equal(t, "mid", items[1].Title)
	assert.Equal(t, "low", items[2].Title)
}

func TestSortItems_TitleCaseFolded(t *testing.T) {
	items := []models.UnifiedItem{
		item("banana", "", "", 0, ""),
		item("Apple", "", "", 0, ""),
		item("cherry", "", "", 0, ""),
	}
	sortItems(items, models.SortTitle)

	assert.Equal(t, []string{"Apple", "banana", "cherry"},
		[]string{items[0].Title, items[1].Title, items[2].Title})
}

func TestSortItems_TitleIdempotent(t *testing.T) {
	items := []models.UnifiedItem{
		item("b", "", "", 0, ""),
		item("B", "", "", 0, ""),
		item("a", "", "", 0, ""),
	}
	sortItems(items, models.SortTitle)
	first := append([]models.UnifiedItem(nil), items...)
	sortItems(items, models.SortTitle)
	assert.Equal(t, first, items, "re-sorting an ordered list must not reorder it")
}

func TestSortItems_AvailabilityFirst(t *testing.T) {
	items := []models.UnifiedItem{
		item("out", "", "All copies in use", 0, ""),
		item("in", "", "Available", 0, ""),
	}
	sortItems(items, models.SortAvailability)
	assert.Equal(t, "in", items[0].Title)
}

func TestSortItems_DateNewestFirstEmptyLast(t *testing.T) {
	withDate := func(title, date string) models.UnifiedItem {
		it := item(title, "", "", 0, "")
		if date != "" {
			it.Extra = map[string]string{"publishedDate": date}
		}
		return it
	}
	items := []models.UnifiedItem{
		withDate("undated", ""),
		withDate("old", "1965"),
		withDate("new", "2019"),
	}
	sortItems(items, models.SortDate)

	assert.Equal(t, "new", items[0].Title)
	assert.Equal(t, "old", items[1].Title)
	assert.Equal(t, "undated", items[2].Title)
}

func TestSortItems_StableTiesKeepInputOrder(t *testing.T) {
	a := item("same", "", "Available", 2, models.MediaDigital)
	a.Source = models.SourceLegacy
	b := item("same", "", "Available", 2, models.MediaDigital)
	b.Source = models.SourceYCL

	items := []models.UnifiedItem{a, b}
	sortItems(items, models.SortRelevance)

	assert.Equal(t, models.SourceLegacy, items[0].Source)
	assert.Equal(t, models.SourceYCL, items[1].Source)
}

func TestPageWindow(t *testing.T) {
	items := make([]models.UnifiedItem, 25)
	for i := range items {
		items[i].CopyCount = i
	}

	first := pageWindow(items, 1, 10)
	require.Len(t, first, 10)
	assert.Equal(t, 0, first[0].CopyCount)

	last := pageWindow(items, 3, 10)
	require.Len(t, last, 5)
	assert.Equal(t, 20, last[0].CopyCount)

	assert.Nil(t, pageWindow(items, 4, 10), "window past the end is empty")
	assert.Nil(t, pageWindow(nil, 1, 10))
}
