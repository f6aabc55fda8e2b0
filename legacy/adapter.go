// Package legacy drives the browser-only OPAC: authenticate, submit the
// search, walk the sequential pager, then hand the rendered page to the
// extraction collaborator.
package legacy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/openshelf/fedcat/config"
	"github.com/openshelf/fedcat/models"
)

// Page structure selectors. The OPAC's markup is stable but ancient; these
// are the canonical hooks it exposes.
const (
	selLoginForm    = `form[name="loginform"]`
	selUserInput    = `input[name="user_id"]`
	selPassInput    = `input[name="password"]`
	selLoginSubmit  = `input[type="submit"]`
	selAccountMark  = `a[href*="logout"]`
	selSearchInput  = `input[name="searcharg"]`
	selResultRows   = `.briefcit`
	selNoRecords    = `.noRecordsMsg`
	selNextPage     = `a.nextPage`
)

// Item is one source-native result row before normalization.
type Item struct {
	RecordID      string
	Title         string
	Author        string
	Summary       string
	Status        string
	Format        string
	CoverURL      string
	CallNumber    string
	PublishedDate string
	Copies        int
}

// Extraction is the DOM collaborator's output: the page's rows plus the
// "start - end of total" range legend the OPAC prints above them.
type Extraction struct {
	Items []Item
	Start int
	End   int
	Total int
}

// Extractor pulls structured rows out of a rendered results page. Any
// implementation satisfies it, whether a live goquery parse or fixture replay.
type Extractor interface {
	ExtractPage(page *rod.Page) (*Extraction, error)
}

// SessionStore persists a freshly authenticated browser session so future
// processes can skip the login form. Persistence failures are non-fatal.
type SessionStore interface {
	Persist(ctx context.Context, page *rod.Page) error
}

// Adapter is the legacy catalog's source adapter.
type Adapter struct {
	cfg       config.LegacyConfig
	extractor Extractor
	store     SessionStore
	log       *slog.Logger
}

// NewAdapter creates an Adapter. store may be nil when no persistence
// collaborator is wired.
func NewAdapter(cfg config.LegacyConfig, extractor Extractor, store SessionStore, log *slog.Logger) *Adapter {
	return &Adapter{cfg: cfg, extractor: extractor, store: store, log: log}
}

// Search runs the full state machine on the caller-provided tab and returns
// the page of results the OPAC actually reached. The source only exposes
// sequential "next" navigation, so reaching logical page N costs N-1
// confirmed clicks; running out of pager before N is a valid truncated
// outcome, not an error.
func (a *Adapter) Search(ctx context.Context, page *rod.Page, term string, pageIndex int, creds models.Credentials) (*models.SourcePage, error) {
	p := page.Context(ctx)

	if err := a.ensureAuthenticated(ctx, p, creds); err != nil {
		return nil, err
	}

	noRecords, err := a.submitSearch(p, term)
	if err != nil {
		return nil, err
	}
	if noRecords {
		return &models.SourcePage{Page: pageIndex}, nil
	}

	reached := a.navigateToPage(p, pageIndex)
	if reached != pageIndex {
		a.log.Debug("legacy: pager exhausted before requested page",
			"requested", pageIndex, "reached", reached)
	}

	ext, err := a.extractor.ExtractPage(p)
	if err != nil {
		return nil, models.NewFedError(models.KindStructuralScrape,
			"results page layout unrecognized", err)
	}

	pageSize := 0
	if ext.End >= ext.Start && ext.End > 0 {
		pageSize = ext.End - ext.Start + 1
	}

	items := make([]models.UnifiedItem, 0, len(ext.Items))
	for _, it := range ext.Items {
		items = append(items, normalize(it))
	}

	return &models.SourcePage{
		Items:        items,
		Page:         reached,
		PageSize:     pageSize,
		TotalResults: ext.Total,
		TotalPages:   models.TotalPagesFor(ext.Total, pageSize),
	}, nil
}

// ensureAuthenticated loads the home page and, when a login form is present,
// submits the patron credentials and waits for the account marker.
func (a *Adapter) ensureAuthenticated(ctx context.Context, p *rod.Page, creds models.Credentials) error {
	// Stealth must be injected before the first navigation to take effect.
	if _, evalErr := p.EvalOnNewDocument(stealth.JS); evalErr != nil {
		a.log.Warn("legacy: stealth injection failed, proceeding without", "error", evalErr)
	}

	if err := p.Navigate(a.cfg.BaseURL); err != nil {
		return models.NewFedError(models.KindTransient, "legacy home page unreachable", err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		a.log.Debug("legacy: home page DOM did not settle", "error", err)
	}

	hasForm, form, err := p.Has(selLoginForm)
	if err != nil || !hasForm {
		// Already authenticated, or the catalog runs without patron login.
		return nil
	}

	if err := fillInput(form, selUserInput, creds.Username); err != nil {
		return models.NewFedError(models.KindAuthFailure, "login form missing username field", err)
	}
	if err := fillInput(form, selPassInput, creds.Password); err != nil {
		return models.NewFedError(models.KindAuthFailure, "login form missing password field", err)
	}
	submit, err := form.Element(selLoginSubmit)
	if err != nil {
		return models.NewFedError(models.KindAuthFailure, "login form missing submit control", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return models.NewFedError(models.KindAuthFailure, "login submission failed", err)
	}

	if _, err := p.Timeout(a.cfg.LoginTimeout).Element(selAccountMark); err != nil {
		return models.NewFedError(models.KindAuthFailure, "post-login marker never appeared", err)
	}

	if a.store != nil {
		if persistErr := a.store.Persist(ctx, p); persistErr != nil {
			a.log.Warn("legacy: session persistence failed", "error", persistErr)
		}
	}
	return nil
}

// submitSearch types the term and waits for either results or the canonical
// no-records marker. noRecords=true short-circuits to a zero-result page.
func (a *Adapter) submitSearch(p *rod.Page, term string) (noRecords bool, err error) {
	field, err := p.Timeout(a.cfg.SearchTimeout).Element(selSearchInput)
	if err != nil {
		return false, models.NewFedError(models.KindStructuralScrape, "search field not found", err)
	}
	if err := field.SelectAllText(); err == nil {
		_ = field.Input("")
	}
	if err := field.Input(term); err != nil {
		return false, models.NewFedError(models.KindStructuralScrape, "search field rejected input", err)
	}
	if err := field.Type(input.Enter); err != nil {
		return false, models.NewFedError(models.KindStructuralScrape, "search submission failed", err)
	}

	if _, waitErr := p.Timeout(a.cfg.SearchTimeout).Element(selResultRows); waitErr != nil {
		// Timed out waiting for rows: an honest empty result set shows the
		// no-records marker instead.
		if has, _, hasErr := p.Has(selNoRecords); hasErr == nil && has {
			return true, nil
		}
		return false, models.NewFedError(models.KindStructuralScrape,
			"neither results nor no-records marker appeared", waitErr)
	}
	return false, nil
}

// navigateToPage clicks "next" until the target page or the pager's end,
// returning the page actually reached.
func (a *Adapter) navigateToPage(p *rod.Page, target int) int {
	reached := 1
	for reached < target {
		has, next, err := p.Has(selNextPage)
		if err != nil || !has {
			break
		}
		if clickErr := next.Click(proto.InputMouseButtonLeft, 1); clickErr != nil {
			break
		}
		if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
			a.log.Debug("legacy: page transition did not settle", "error", stableErr)
		}
		reached++
	}
	return reached
}

// normalize converts a source-native row into the unified shape at the
// adapter boundary, so optional OPAC fields never leak further in.
func normalize(it Item) models.UnifiedItem {
	extra := map[string]string{}
	if it.CallNumber != "" {
		extra["callNumber"] = it.CallNumber
	}
	if it.PublishedDate != "" {
		extra["publishedDate"] = it.PublishedDate
	}
	if len(extra) == 0 {
		extra = nil
	}
	return models.UnifiedItem{
		ID:           fmt.Sprintf("%s:%s", models.SourceLegacy, it.RecordID),
		Title:        it.Title,
		Author:       it.Author,
		Description:  it.Summary,
		MediaType:    models.MediaPhysical,
		ImageURL:     it.CoverURL,
		Availability: it.Status,
		CopyCount:    it.Copies,
		Format:       it.Format,
		Source:       models.SourceLegacy,
		NativeID:     it.RecordID,
		Extra:        extra,
	}
}

func fillInput(form *rod.Element, selector, value string) error {
	el, err := form.Element(selector)
	if err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return el.Input(value)
}
