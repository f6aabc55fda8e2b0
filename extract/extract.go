// Package extract is the default DOM-extraction collaborator for the legacy
// catalog: it parses the rendered results page into structured rows.
package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"github.com/openshelf/fedcat/legacy"
)

// reRange matches the OPAC's range legend, e.g. "Results 1 - 10 of 40".
var reRange = regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s+of\s+(\d+)`)

// reRecordID pulls the record identifier out of a title link href,
// e.g. "/record=b2151896" or "?recordId=b2151896".
var reRecordID = regexp.MustCompile(`record(?:=|Id=)(\w+)`)

// reCopies matches copy counts like "3 copies" or "3 of 7 copies".
var reCopies = regexp.MustCompile(`(\d+)(?:\s+of\s+\d+)?\s+cop`)

// Extractor parses rendered OPAC result pages with goquery.
type Extractor struct {
	log *slog.Logger
}

// New creates an Extractor.
func New(log *slog.Logger) *Extractor {
	return &Extractor{log: log}
}

// ExtractPage implements legacy.Extractor against a live tab.
func (e *Extractor) ExtractPage(page *rod.Page) (*legacy.Extraction, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("extract: read page html: %w", err)
	}
	return e.Parse(html)
}

// Parse extracts rows and the range legend from raw HTML. Split out from
// ExtractPage so fixtures can exercise it without a browser.
func (e *Extractor) Parse(html string) (*legacy.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	ext := &legacy.Extraction{}

	legend := strings.TrimSpace(doc.Find(".browseSearchtoolMessage").First().Text())
	if m := reRange.FindStringSubmatch(legend); m != nil {
		ext.Start, _ = strconv.Atoi(m[1])
		ext.End, _ = strconv.Atoi(m[2])
		ext.Total, _ = strconv.Atoi(m[3])
	}

	doc.Find(".briefcit").Each(func(_ int, row *goquery.Selection) {
		item := parseRow(row)
		if item.Title == "" {
			// Spacer rows and ads share the row class; skip anything
			// without a title cell.
			return
		}
		ext.Items = append(ext.Items, item)
	})

	if len(ext.Items) == 0 && ext.Total == 0 && legend == "" {
		return nil, fmt.Errorf("extract: no result rows and no range legend in page")
	}

	// When the legend is missing but rows exist, fall back to counting.
	if ext.Total == 0 && len(ext.Items) > 0 {
		e.log.Debug("extract: range legend missing, deriving range from row count",
			"rows", len(ext.Items))
		ext.Start = 1
		ext.End = len(ext.Items)
		ext.Total = len(ext.Items)
	}

	return ext, nil
}

func parseRow(row *goquery.Selection) legacy.Item {
	titleLink := row.Find(".briefcitTitle a").First()
	item := legacy.Item{
		Title:         strings.TrimSpace(titleLink.Text()),
		Author:        strings.TrimSpace(row.Find(".briefcitAuthor").First().Text()),
		Summary:       strings.TrimSpace(row.Find(".briefcitSummary").First().Text()),
		Status:        strings.TrimSpace(row.Find(".briefcitStatus").First().Text()),
		Format:        strings.TrimSpace(row.Find(".briefcitMedia").First().Text()),
		CallNumber:    strings.TrimSpace(row.Find(".briefcitCallnumber").First().Text()),
		PublishedDate: strings.TrimSpace(row.Find(".briefcitYear").First().Text()),
	}

	if href, ok := titleLink.Attr("href"); ok {
		if m := reRecordID.FindStringSubmatch(href); m != nil {
			item.RecordID = m[1]
		}
	}
	if item.RecordID == "" {
		// Some skins only expose the record id on the row itself.
		item.RecordID, _ = row.Attr("data-record")
	}

	if src, ok := row.Find("img.briefcitCover").First().Attr("src"); ok {
		item.CoverURL = src
	}

	copiesText := strings.ToLower(row.Find(".briefcitCopies").First().Text())
	if copiesText == "" {
		copiesText = strings.ToLower(item.Status)
	}
	if m := reCopies.FindStringSubmatch(copiesText); m != nil {
		item.Copies, _ = strconv.Atoi(m[1])
	} else if item.Status != "" {
		// A row with a status but no copy legend represents one holding.
		item.Copies = 1
	}

	return item
}
