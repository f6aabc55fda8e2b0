// Package fusion is the federated search engine: it fans a request out to
// the configured source adapters, boxes each branch with its own timeout,
// and folds the survivors into one sorted, paginated response.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"

	"github.com/openshelf/fedcat/config"
	"github.com/openshelf/fedcat/models"
)

// LegacySearcher is the browser-driven physical catalog branch.
type LegacySearcher interface {
	Search(ctx context.Context, page *rod.Page, term string, pageIndex int, creds models.Credentials) (*models.SourcePage, error)
}

// DigitalSearcher is the offset-paginated digital catalog branch.
type DigitalSearcher interface {
	Search(ctx context.Context, term string, offset, limit int, cookie, slug string) ([]models.UnifiedItem, error)
	TotalCount(ctx context.Context, term, cookie, slug string) (int, error)
}

// SessionSource acquires the digital catalog's per-request cookie.
// An empty return means no session could be captured.
type SessionSource interface {
	Acquire(ctx context.Context, authURL string) string
}

// PageProvider lends browser tabs to the legacy branch.
type PageProvider interface {
	Acquire() (*rod.Page, error)
	Release(page *rod.Page)
}

// Engine orchestrates one federated request. Any of legacy/digital may be
// nil when the corresponding source is unconfigured; its branch is then
// skipped, which is not an error.
type Engine struct {
	pages    PageProvider
	legacy   LegacySearcher
	digital  DigitalSearcher
	sessions SessionSource
	authURL  string
	cfg      config.FusionConfig
	log      *slog.Logger
}

// NewEngine wires the fusion engine.
func NewEngine(pages PageProvider, legacy LegacySearcher, digital DigitalSearcher, sessions SessionSource, authURL string, cfg config.FusionConfig, log *slog.Logger) *Engine {
	return &Engine{
		pages:    pages,
		legacy:   legacy,
		digital:  digital,
		sessions: sessions,
		authURL:  authURL,
		cfg:      cfg,
		log:      log,
	}
}

// Search runs the federated request. It never returns an error for source
// faults: degraded branches contribute empty pages and the response carries
// whatever the healthy branches produced. The whole call races the overall
// timeout and degrades to a neutral empty response on expiry.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) *models.SearchResult {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.OverallTimeout)
	defer cancel()

	done := make(chan *models.SearchResult, 1)
	go func() { done <- e.run(ctx, req) }()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		e.log.Warn("fusion: overall timeout expired, returning neutral response", "term", req.Term)
		return emptyResult(req)
	}
}

// run fans out the needed branches and joins them. The join always
// completes: every branch converts its own failure into an empty page.
func (e *Engine) run(ctx context.Context, req *models.SearchRequest) *models.SearchResult {
	wantLegacy := req.MediaFilter != models.FilterDigital && e.legacy != nil && e.pages != nil
	wantDigital := req.MediaFilter != models.FilterPhysical && e.digital != nil

	legacyPage := models.EmptySourcePage(req.Page, req.PageSize)
	digitalPage := models.EmptySourcePage(req.Page, req.PageSize)

	var wg sync.WaitGroup
	if wantLegacy {
		wg.Add(1)
		go func() {
			defer wg.Done()
			legacyPage = e.runBranch(ctx, "legacy", req, func(bctx context.Context) (*models.SourcePage, error) {
				return e.legacySearch(bctx, req)
			})
		}()
	}
	if wantDigital {
		wg.Add(1)
		go func() {
			defer wg.Done()
			digitalPage = e.digitalBranches(ctx, req)
		}()
	}
	wg.Wait()

	switch req.MediaFilter {
	case models.FilterPhysical:
		return passthrough(legacyPage, models.SourceLegacy)
	case models.FilterDigital:
		return passthrough(digitalPage, models.SourceYCL)
	}
	return e.combine(req, legacyPage, digitalPage)
}

// runBranch executes one source call under the branch timeout, converting
// any error, panic, or expiry into an empty page so the join never blocks
// on a sick source.
func (e *Engine) runBranch(ctx context.Context, name string, req *models.SearchRequest, fn func(context.Context) (*models.SourcePage, error)) *models.SourcePage {
	bctx, cancel := context.WithTimeout(ctx, e.cfg.BranchTimeout)
	defer cancel()

	type outcome struct {
		page *models.SourcePage
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: models.NewFedError(models.KindInternal, fmt.Sprintf("branch panic: %v", r), nil)}
			}
		}()
		page, err := fn(bctx)
		ch <- outcome{page: page, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			e.log.Warn("fusion: branch degraded to empty",
				"branch", name, "kind", models.KindOf(o.err), "error", o.err)
			return models.EmptySourcePage(req.Page, req.PageSize)
		}
		return o.page
	case <-bctx.Done():
		e.log.Warn("fusion: branch timed out", "branch", name, "timeout", e.cfg.BranchTimeout)
		return models.EmptySourcePage(req.Page, req.PageSize)
	}
}

// legacySearch borrows a tab for the duration of the branch.
func (e *Engine) legacySearch(ctx context.Context, req *models.SearchRequest) (*models.SourcePage, error) {
	page, err := e.pages.Acquire()
	if err != nil {
		return nil, models.NewFedError(models.KindTransient, "no browser tab available", err)
	}
	defer e.pages.Release(page)
	return e.legacy.Search(ctx, page, req.Term, req.Page, req.Credentials)
}

// digitalBranches acquires the session cookie once, then runs the search
// and count calls as two independently boxed branches sharing it.
func (e *Engine) digitalBranches(ctx context.Context, req *models.SearchRequest) *models.SourcePage {
	cookie := ""
	if e.sessions != nil {
		cookie = e.sessions.Acquire(ctx, e.authURL)
	}
	if cookie == "" {
		e.log.Warn("fusion: session acquisition yielded nothing, digital branch empty", "term", req.Term)
		return models.EmptySourcePage(req.Page, req.PageSize)
	}

	var (
		wg    sync.WaitGroup
		items *models.SourcePage
		count *models.SourcePage
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		items = e.runBranch(ctx, "ycl-search", req, func(bctx context.Context) (*models.SourcePage, error) {
			found, err := e.digital.Search(bctx, req.Term, req.Offset(), req.PageSize, cookie, req.YCLSlug)
			if err != nil {
				return nil, err
			}
			return &models.SourcePage{Items: found, Page: req.Page, PageSize: req.PageSize}, nil
		})
	}()
	go func() {
		defer wg.Done()
		count = e.runBranch(ctx, "ycl-count", req, func(bctx context.Context) (*models.SourcePage, error) {
			total, err := e.digital.TotalCount(bctx, req.Term, cookie, req.YCLSlug)
			if err != nil {
				return nil, err
			}
			return &models.SourcePage{Page: req.Page, PageSize: req.PageSize, TotalResults: total}, nil
		})
	}()
	wg.Wait()

	return &models.SourcePage{
		Items:        items.Items,
		Page:         req.Page,
		PageSize:     req.PageSize,
		TotalResults: count.TotalResults,
		TotalPages:   models.TotalPagesFor(count.TotalResults, req.PageSize),
	}
}

// combine merges, sorts, and re-paginates the two branches. Totals come from
// each source's own reported total, not the merged list length: neither
// branch fetched its full result set, so a combined page may carry fewer
// than pageSize items when one source ran short at this offset. The page's
// items likewise come only from the two single-page fetches, so for large
// pages or asymmetric distributions the window is an approximation of the
// true union-sorted one.
func (e *Engine) combine(req *models.SearchRequest, legacyPage, digitalPage *models.SourcePage) *models.SearchResult {
	merged := make([]models.UnifiedItem, 0, len(legacyPage.Items)+len(digitalPage.Items))
	merged = append(merged, legacyPage.Items...)
	merged = append(merged, digitalPage.Items...)

	sortItems(merged, req.SortKey)

	total := legacyPage.TotalResults + digitalPage.TotalResults
	return &models.SearchResult{
		Meta: models.PageMeta{
			CurrentPage:  req.Page,
			PageSize:     req.PageSize,
			TotalResults: total,
			TotalPages:   models.TotalPagesFor(total, req.PageSize),
			PerSource: map[string]int{
				models.SourceLegacy: legacyPage.TotalResults,
				models.SourceYCL:    digitalPage.TotalResults,
			},
		},
		Items: pageWindow(merged, req.Page, req.PageSize),
	}
}

// passthrough exposes a single source's native page and metadata unchanged.
func passthrough(page *models.SourcePage, source string) *models.SearchResult {
	return &models.SearchResult{
		Meta: models.PageMeta{
			CurrentPage:  page.Page,
			PageSize:     page.PageSize,
			TotalResults: page.TotalResults,
			TotalPages:   page.TotalPages,
			PerSource:    map[string]int{source: page.TotalResults},
		},
		Items: page.Items,
	}
}

func emptyResult(req *models.SearchRequest) *models.SearchResult {
	return &models.SearchResult{
		Meta: models.PageMeta{
			CurrentPage: req.Page,
			PageSize:    req.PageSize,
			PerSource:   map[string]int{},
		},
	}
}
