// Package models holds the shared domain types: the unified item shape both
// source adapters normalize into, request/response forms, and the tagged
// error type the fusion join and API layer dispatch on.
package models

// MediaType classifies an item by its originating catalog kind.
type MediaType string

const (
	MediaPhysical MediaType = "physical"
	MediaDigital  MediaType = "digital"
)

// Source names. Used as unified-ID prefixes and as PerSource map keys.
const (
	SourceLegacy = "legacy"
	SourceYCL    = "ycl"
)

// UnifiedItem is the source-independent item shape. Adapters normalize
// native records into it at their boundary; nothing downstream sees a
// source-native field.
type UnifiedItem struct {
	// ID is globally unique across sources: "<source>:<nativeID>".
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Author       string            `json:"author"`
	Description  string            `json:"description,omitempty"`
	MediaType    MediaType         `json:"mediaType"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	Availability string            `json:"availabilityText"`
	CopyCount    int               `json:"copyCount"`
	Format       string            `json:"format,omitempty"`
	Source       string            `json:"sourceName"`
	NativeID     string            `json:"sourceNativeId"`
	Extra        map[string]string `json:"extension,omitempty"`
}

// Credentials authenticate a patron against the backends. The legacy OPAC
// requires both fields; ycl session acquisition is cookie-driven and
// ignores them.
type Credentials struct {
	Username string
	Password string
}

// SourcePage is one source's view of a single result page.
type SourcePage struct {
	Items        []UnifiedItem
	Page         int
	PageSize     int
	TotalResults int
	TotalPages   int
}

// EmptySourcePage is the degraded-branch placeholder: zero items, zero
// totals, the requested window echoed back.
func EmptySourcePage(page, pageSize int) *SourcePage {
	return &SourcePage{Page: page, PageSize: pageSize}
}

// PageMeta is the fused pagination metadata. PerSource records each
// source's own claimed total, keyed by source name.
type PageMeta struct {
	CurrentPage  int
	PageSize     int
	TotalResults int
	TotalPages   int
	PerSource    map[string]int
}

// TotalPagesFor computes the page count for total results at pageSize per
// page, rounding up. A non-positive pageSize yields 1 so callers never
// divide by zero.
func TotalPagesFor(total, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
