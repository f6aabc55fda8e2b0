package models

import "fmt"

// MediaFilter selects which sources a search fans out to.
type MediaFilter string

const (
	FilterPhysical MediaFilter = "physical"
	FilterDigital  MediaFilter = "digital"
	FilterCombined MediaFilter = "combined"
)

// SortKey selects the combined-mode ordering.
type SortKey string

const (
	SortRelevance    SortKey = "relevance"
	SortAvailability SortKey = "availability"
	SortTitle        SortKey = "title"
	SortAuthor       SortKey = "author"
	SortDate         SortKey = "date"
)

// ResponseVersion selects the wire shape of /search responses.
type ResponseVersion string

const (
	ResponseV1 ResponseVersion = "v1"
	ResponseV2 ResponseVersion = "v2"
)

// MaxPageSize caps the per-page item count.
const MaxPageSize = 50

// SearchRequest is a validated federated search request.
type SearchRequest struct {
	Term        string
	Credentials Credentials
	// YCLSlug optionally overrides the configured ycl library slug.
	YCLSlug     string
	Page        int
	PageSize    int
	MediaFilter MediaFilter
	SortKey     SortKey
	Version     ResponseVersion
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults() {
	if r.Page == 0 {
		r.Page = 1
	}
	if r.PageSize == 0 {
		r.PageSize = 10
	}
	if r.MediaFilter == "" {
		r.MediaFilter = FilterCombined
	}
	if r.SortKey == "" {
		r.SortKey = SortRelevance
	}
	if r.Version == "" {
		r.Version = ResponseV2
	}
}

// Validate rejects malformed requests before any backend call.
func (r *SearchRequest) Validate() error {
	if r.Term == "" {
		return NewFedError(KindValidation, "search term is required", nil)
	}
	if r.Credentials.Username == "" {
		return NewFedError(KindValidation, "username is required", nil)
	}
	if r.Page < 1 {
		return NewFedError(KindValidation, fmt.Sprintf("page must be >= 1, got %d", r.Page), nil)
	}
	if r.PageSize < 1 || r.PageSize > MaxPageSize {
		return NewFedError(KindValidation,
			fmt.Sprintf("pageSize must be in [1,%d], got %d", MaxPageSize, r.PageSize), nil)
	}
	switch r.MediaFilter {
	case FilterPhysical, FilterDigital, FilterCombined:
	default:
		return NewFedError(KindValidation, fmt.Sprintf("invalid mediaFilter %q", r.MediaFilter), nil)
	}
	switch r.SortKey {
	case SortRelevance, SortAvailability, SortTitle, SortAuthor, SortDate:
	default:
		return NewFedError(KindValidation, fmt.Sprintf("invalid sortKey %q", r.SortKey), nil)
	}
	switch r.Version {
	case ResponseV1, ResponseV2:
	default:
		return NewFedError(KindValidation, fmt.Sprintf("invalid responseVersion %q", r.Version), nil)
	}
	return nil
}

// Offset converts the request's page window into the ycl offset.
func (r *SearchRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}
