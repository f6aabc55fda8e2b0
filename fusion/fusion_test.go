package fusion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/fedcat/config"
	"github.com/openshelf/fedcat/models"
)

type fakePages struct {
	err error
}

func (f *fakePages) Acquire() (*rod.Page, error) { return nil, f.err }
func (f *fakePages) Release(*rod.Page)           {}

type fakeLegacy struct {
	called bool
	fn     func(ctx context.Context) (*models.SourcePage, error)
}

func (f *fakeLegacy) Search(ctx context.Context, _ *rod.Page, _ string, _ int, _ models.Credentials) (*models.SourcePage, error) {
	f.called = true
	return f.fn(ctx)
}

type fakeDigital struct {
	called   bool
	searchFn func(ctx context.Context) ([]models.UnifiedItem, error)
	countFn  func(ctx context.Context) (int, error)
}

func (f *fakeDigital) Search(ctx context.Context, _ string, _, _ int, _, _ string) ([]models.UnifiedItem, error) {
	f.called = true
	return f.searchFn(ctx)
}

func (f *fakeDigital) TotalCount(ctx context.Context, _, _, _ string) (int, error) {
	return f.countFn(ctx)
}

type fakeSessions struct {
	cookie string
}

func (f *fakeSessions) Acquire(context.Context, string) string { return f.cookie }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.FusionConfig {
	return config.FusionConfig{
		BranchTimeout:  100 * time.Millisecond,
		OverallTimeout: time.Second,
	}
}

func newTestEngine(legacy LegacySearcher, digital DigitalSearcher, sessions SessionSource) *Engine {
	return NewEngine(&fakePages{}, legacy, digital, sessions, "https://auth.example.org/login", testConfig(), testLogger())
}

func physicalItems(n, startID int) []models.UnifiedItem {
	items := make([]models.UnifiedItem, n)
	for i := range items {
		id := fmt.Sprintf("b%04d", startID+i)
		items[i] = models.UnifiedItem{
			ID:           models.SourceLegacy + ":" + id,
			Title:        fmt.Sprintf("Physical %d", startID+i),
			MediaType:    models.MediaPhysical,
			Availability: "Available",
			CopyCount:    2,
			Source:       models.SourceLegacy,
			NativeID:     id,
		}
	}
	return items
}

func digitalItems(n, startID int) []models.UnifiedItem {
	items := make([]models.UnifiedItem, n)
	for i := range items {
		id := fmt.Sprintf("d%04d", startID+i)
		items[i] = models.UnifiedItem{
			ID:           models.SourceYCL + ":" + id,
			Title:        fmt.Sprintf("Digital %d", startID+i),
			MediaType:    models.MediaDigital,
			Availability: "Available",
			CopyCount:    1,
			Source:       models.SourceYCL,
			NativeID:     id,
		}
	}
	return items
}

func combinedRequest() *models.SearchRequest {
	req := &models.SearchRequest{
		Term:        "dune",
		Credentials: models.Credentials{Username: "patron", Password: "pw"},
	}
	req.Defaults()
	return req
}

func TestSearch_CombinedMergesBothSources(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		return &models.SourcePage{
			Items: physicalItems(6, 1), Page: 1, PageSize: 10,
			TotalResults: 40, TotalPages: 4,
		}, nil
	}}
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) { return digitalItems(4, 1), nil },
		countFn:  func(context.Context) (int, error) { return 12, nil },
	}
	e := newTestEngine(legacy, digital, &fakeSessions{cookie: "osess=tok"})

	result := e.Search(context.Background(), combinedRequest())

	assert.Equal(t, 52, result.Meta.TotalResults, "totals sum each source's claimed total")
	assert.Equal(t, 6, result.Meta.TotalPages)
	assert.Equal(t, 1, result.Meta.CurrentPage)
	assert.Equal(t, 40, result.Meta.PerSource[models.SourceLegacy])
	assert.Equal(t, 12, result.Meta.PerSource[models.SourceYCL])
	assert.Len(t, result.Items, 10)
}

func TestSearch_DigitalTimeoutDegradesToLegacyOnly(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		return &models.SourcePage{
			Items: physicalItems(6, 1), Page: 1, PageSize: 10,
			TotalResults: 40, TotalPages: 4,
		}, nil
	}}
	digital := &fakeDigital{
		searchFn: func(ctx context.Context) ([]models.UnifiedItem, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		countFn: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	e := newTestEngine(legacy, digital, &fakeSessions{cookie: "osess=tok"})

	result := e.Search(context.Background(), combinedRequest())

	assert.Equal(t, 40, result.Meta.TotalResults)
	assert.Equal(t, 0, result.Meta.PerSource[models.SourceYCL])
	assert.Len(t, result.Items, 6)
	for _, it := range result.Items {
		assert.Equal(t, models.MediaPhysical, it.MediaType)
	}
}

func TestSearch_LegacyErrorDegradesToDigitalOnly(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		return nil, models.NewFedError(models.KindStructuralScrape, "results layout unrecognized", nil)
	}}
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) { return digitalItems(4, 1), nil },
		countFn:  func(context.Context) (int, error) { return 12, nil },
	}
	e := newTestEngine(legacy, digital, &fakeSessions{cookie: "osess=tok"})

	result := e.Search(context.Background(), combinedRequest())

	assert.Equal(t, 12, result.Meta.TotalResults)
	assert.Equal(t, 0, result.Meta.PerSource[models.SourceLegacy])
	assert.Len(t, result.Items, 4)
}

func TestSearch_BranchPanicDegradesToEmpty(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		panic("selector gone")
	}}
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) { return digitalItems(2, 1), nil },
		countFn:  func(context.Context) (int, error) { return 2, nil },
	}
	e := newTestEngine(legacy, digital, &fakeSessions{cookie: "osess=tok"})

	result := e.Search(context.Background(), combinedRequest())

	assert.Equal(t, 2, result.Meta.TotalResults)
	assert.Len(t, result.Items, 2)
}

func TestSearch_SessionFailureEmptiesDigitalBranch(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		return &models.SourcePage{
			Items: physicalItems(3, 1), Page: 1, PageSize: 10,
			TotalResults: 3, TotalPages: 1,
		}, nil
	}}
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) { return digitalItems(4, 1), nil },
		countFn:  func(context.Context) (int, error) { return 12, nil },
	}
	e := newTestEngine(legacy, digital, &fakeSessions{cookie: ""})

	result := e.Search(context.Background(), combinedRequest())

	assert.False(t, digital.called, "digital calls must be skipped without a session")
	assert.Equal(t, 3, result.Meta.TotalResults)
	assert.Equal(t, 0, result.Meta.PerSource[models.SourceYCL])
}

func TestSearch_PhysicalFilterSkipsDigital(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		return &models.SourcePage{
			Items: physicalItems(5, 1), Page: 1, PageSize: 10,
			TotalResults: 5, TotalPages: 1,
		}, nil
	}}
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) { return digitalItems(4, 1), nil },
		countFn:  func(context.Context) (int, error) { return 12, nil },
	}
	e := newTestEngine(legacy, digital, &fakeSessions{cookie: "osess=tok"})

	req := combinedRequest()
	req.MediaFilter = models.FilterPhysical
	result := e.Search(context.Background(), req)

	assert.False(t, digital.called)
	assert.Equal(t, 5, result.Meta.TotalResults)
	assert.Equal(t, 1, result.Meta.TotalPages, "physical passthrough keeps the source's native page count")
	_, hasYCL := result.Meta.PerSource[models.SourceYCL]
	assert.False(t, hasYCL)
}

func TestSearch_DigitalFilterSkipsLegacy(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		return &models.SourcePage{Items: physicalItems(5, 1), TotalResults: 5}, nil
	}}
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) { return digitalItems(4, 1), nil },
		countFn:  func(context.Context) (int, error) { return 12, nil },
	}
	e := newTestEngine(legacy, digital, &fakeSessions{cookie: "osess=tok"})

	req := combinedRequest()
	req.MediaFilter = models.FilterDigital
	result := e.Search(context.Background(), req)

	assert.False(t, legacy.called)
	assert.Equal(t, 12, result.Meta.TotalResults)
	assert.Equal(t, 2, result.Meta.TotalPages)
	assert.Len(t, result.Items, 4)
}

func TestSearch_NoRecordsIsZeroPageNotError(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		return &models.SourcePage{Page: 1}, nil
	}}
	e := newTestEngine(legacy, nil, nil)

	req := combinedRequest()
	req.MediaFilter = models.FilterPhysical
	result := e.Search(context.Background(), req)

	assert.Equal(t, 0, result.Meta.TotalResults)
	assert.Equal(t, 0, result.Meta.TotalPages)
	assert.Empty(t, result.Items)
}

func TestSearch_UnconfiguredSourcesAreSkipped(t *testing.T) {
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) { return digitalItems(2, 1), nil },
		countFn:  func(context.Context) (int, error) { return 2, nil },
	}
	e := newTestEngine(nil, digital, &fakeSessions{cookie: "osess=tok"})

	result := e.Search(context.Background(), combinedRequest())

	assert.Equal(t, 2, result.Meta.TotalResults)
	assert.Equal(t, 0, result.Meta.PerSource[models.SourceLegacy])
	assert.Len(t, result.Items, 2)
}

func TestSearch_OverallTimeoutReturnsNeutralResponse(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		time.Sleep(300 * time.Millisecond)
		return &models.SourcePage{TotalResults: 99}, nil
	}}
	e := NewEngine(&fakePages{}, legacy, nil, nil, "", config.FusionConfig{
		BranchTimeout:  time.Second,
		OverallTimeout: 50 * time.Millisecond,
	}, testLogger())

	req := combinedRequest()
	start := time.Now()
	result := e.Search(context.Background(), req)

	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, 0, result.Meta.TotalResults)
	assert.Equal(t, req.Page, result.Meta.CurrentPage)
	assert.Empty(t, result.Items)
}

func TestSearch_PageAcquireFailureDegradesLegacy(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		return &models.SourcePage{Items: physicalItems(5, 1), TotalResults: 5}, nil
	}}
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) { return digitalItems(1, 1), nil },
		countFn:  func(context.Context) (int, error) { return 1, nil },
	}
	e := NewEngine(&fakePages{err: assert.AnError}, legacy, digital,
		&fakeSessions{cookie: "osess=tok"}, "", testConfig(), testLogger())

	result := e.Search(context.Background(), combinedRequest())

	assert.False(t, legacy.called, "search must not run without a tab")
	assert.Equal(t, 1, result.Meta.TotalResults)
	require.Len(t, result.Items, 1)
	assert.Equal(t, models.MediaDigital, result.Items[0].MediaType)
}

func TestSearch_CombinedSortAppliedToWindow(t *testing.T) {
	legacy := &fakeLegacy{fn: func(context.Context) (*models.SourcePage, error) {
		items := physicalItems(2, 1)
		items[0].Title = "Zebra"
		items[1].Title = "Apple"
		return &models.SourcePage{Items: items, Page: 1, PageSize: 10, TotalResults: 2, TotalPages: 1}, nil
	}}
	digital := &fakeDigital{
		searchFn: func(context.Context) ([]models.UnifiedItem, error) {
			items := digitalItems(1, 1)
			items[0].Title = "Mango"
			return items, nil
		},
		countFn: func(context.Context) (int, error) { return 1, nil },
	}
	e := newTestEngine(legacy, digital, &fakeSessions{cookie: "osess=tok"})

	req := combinedRequest()
	req.SortKey = models.SortTitle
	result := e.Search(context.Background(), req)

	require.Len(t, result.Items, 3)
	assert.Equal(t, "Apple", result.Items[0].Title)
	assert.Equal(t, "Mango", result.Items[1].Title)
	assert.Equal(t, "Zebra", result.Items[2].Title)
}
