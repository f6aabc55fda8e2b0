// Package ycl adapts the offset-paginated JSON catalog of digital items.
package ycl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/openshelf/fedcat/models"
	"github.com/openshelf/fedcat/transport"
)

// Requester is the wire-client surface the adapter needs; *transport.Client
// satisfies it, and tests stub it.
type Requester interface {
	Request(ctx context.Context, method, path string, overrides map[string]string) (*transport.Response, error)
}

// Client is the ycl source adapter.
type Client struct {
	rt   Requester
	slug string
	log  *slog.Logger
}

// NewClient creates a Client with the configured default library slug.
func NewClient(rt Requester, slug string, log *slog.Logger) *Client {
	return &Client{rt: rt, slug: slug, log: log}
}

// Search fetches one offset/limit window of results. A response whose body
// is an HTML document signals a redirect to the login page and is reported
// as an authentication failure, distinct from zero results. A 200 JSON body
// without the items path is zero results, not an error.
func (c *Client) Search(ctx context.Context, term string, offset, limit int, cookie, slugOverride string) ([]models.UnifiedItem, error) {
	js, err := c.fetch(ctx, term, offset, limit, cookie, slugOverride)
	if err != nil {
		return nil, err
	}

	itemsNode := js.Get("Items")
	if !itemsNode.IsArray() {
		c.log.Debug("ycl: response lacks items path, treating as zero results", "term", term)
		return nil, nil
	}

	items := make([]models.UnifiedItem, 0, len(itemsNode.Array()))
	for _, node := range itemsNode.Array() {
		items = append(items, normalize(node))
	}
	return items, nil
}

// TotalCount fetches the catalog's total match count via a minimal-limit
// request; the search path itself does not return pagination metadata.
func (c *Client) TotalCount(ctx context.Context, term, cookie, slugOverride string) (int, error) {
	js, err := c.fetch(ctx, term, 0, 1, cookie, slugOverride)
	if err != nil {
		return 0, err
	}
	return int(js.Get("TotalItems").Int()), nil
}

func (c *Client) fetch(ctx context.Context, term string, offset, limit int, cookie, slugOverride string) (gjson.Result, error) {
	slug := c.slug
	if slugOverride != "" {
		slug = slugOverride
	}

	query := url.Values{}
	query.Set("media", "all")
	query.Set("term", term)
	query.Set("offset", fmt.Sprint(offset))
	query.Set("limit", fmt.Sprint(limit))
	path := fmt.Sprintf("/catalog/%s/search?%s", url.PathEscape(slug), query.Encode())

	overrides := map[string]string{}
	if cookie != "" {
		overrides["cookie"] = cookie
	}

	resp, err := c.rt.Request(ctx, "GET", path, overrides)
	if err != nil {
		return gjson.Result{}, err
	}

	if resp.IsHTML() {
		return gjson.Result{}, models.NewFedError(models.KindAuthFailure,
			"catalog returned a login page instead of JSON", nil)
	}
	if resp.Status != 200 {
		return gjson.Result{}, models.NewFedError(models.KindTransient,
			fmt.Sprintf("catalog returned status %d", resp.Status), nil)
	}

	js, ok := resp.JSON()
	if !ok {
		// Advertised-JSON body that does not parse: no structured body,
		// which downstream treats the same as an absent items path.
		c.log.Debug("ycl: unparseable body on 200 response", "term", term)
		return gjson.Result{}, nil
	}
	return js, nil
}

// normalize maps one catalog item onto the unified shape at the adapter
// boundary.
func normalize(node gjson.Result) models.UnifiedItem {
	nativeID := node.Get("Id").String()
	available := node.Get("AvailableCopies").Int() > 0

	availability := "All copies in use"
	if available {
		availability = "Available"
	}

	extra := map[string]string{}
	if d := node.Get("PublishDate").String(); d != "" {
		extra["publishedDate"] = d
	}
	if isbn := node.Get("ISBN").String(); isbn != "" {
		extra["isbn"] = isbn
	}
	if len(extra) == 0 {
		extra = nil
	}

	return models.UnifiedItem{
		ID:           fmt.Sprintf("%s:%s", models.SourceYCL, nativeID),
		Title:        node.Get("Title").String(),
		Author:       node.Get("Authors").String(),
		Description:  node.Get("Description").String(),
		MediaType:    models.MediaDigital,
		ImageURL:     node.Get("CoverUrl").String(),
		Availability: availability,
		CopyCount:    int(node.Get("TotalCopies").Int()),
		Format:       node.Get("Format").String(),
		Source:       models.SourceYCL,
		NativeID:     nativeID,
		Extra:        extra,
	}
}
