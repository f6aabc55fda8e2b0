package models

// SearchResult is the fusion engine's output, prior to version shaping.
type SearchResult struct {
	Meta  PageMeta
	Items []UnifiedItem
}

// MediaTypeCounts reports each source's own claimed total.
type MediaTypeCounts struct {
	Physical int `json:"physical"`
	Digital  int `json:"digital"`
}

// MetaV2 is the v2 response metadata block.
type MetaV2 struct {
	CurrentPage     int             `json:"currentPage"`
	PageSize        int             `json:"pageSize"`
	TotalResults    int             `json:"totalResults"`
	TotalPages      int             `json:"totalPages"`
	MediaTypeCounts MediaTypeCounts `json:"mediaTypeCounts"`
}

// SearchResponseV2 is the default /search wire shape.
type SearchResponseV2 struct {
	Meta    MetaV2        `json:"meta"`
	Results []UnifiedItem `json:"results"`
}

// MetaV1 is the legacy metadata block (no per-type counts).
type MetaV1 struct {
	CurrentPage  int `json:"currentPage"`
	PageSize     int `json:"pageSize"`
	TotalResults int `json:"totalResults"`
	TotalPages   int `json:"totalPages"`
}

// ItemV1 mirrors the legacy catalog's native field names. MediaType is
// populated only for ycl-origin items.
type ItemV1 struct {
	RecordID  string `json:"recordId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Summary   string `json:"summary,omitempty"`
	Status    string `json:"status"`
	Copies    int    `json:"copies"`
	Format    string `json:"format,omitempty"`
	CoverURL  string `json:"coverUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// SearchResponseV1 is the legacy /search and /scrape wire shape.
type SearchResponseV1 struct {
	Meta    MetaV1   `json:"meta"`
	Results []ItemV1 `json:"results"`
}

// ToV2 shapes a fusion result into the v2 wire form.
func (r *SearchResult) ToV2() SearchResponseV2 {
	results := r.Items
	if results == nil {
		results = []UnifiedItem{}
	}
	return SearchResponseV2{
		Meta: MetaV2{
			CurrentPage:  r.Meta.CurrentPage,
			PageSize:     r.Meta.PageSize,
			TotalResults: r.Meta.TotalResults,
			TotalPages:   r.Meta.TotalPages,
			MediaTypeCounts: MediaTypeCounts{
				Physical: r.Meta.PerSource[SourceLegacy],
				Digital:  r.Meta.PerSource[SourceYCL],
			},
		},
		Results: results,
	}
}

// ToV1 reshapes a fusion result into the legacy wire form.
func (r *SearchResult) ToV1() SearchResponseV1 {
	results := make([]ItemV1, 0, len(r.Items))
	for _, it := range r.Items {
		v1 := ItemV1{
			RecordID: it.NativeID,
			Title:    it.Title,
			Author:   it.Author,
			Summary:  it.Description,
			Status:   it.Availability,
			Copies:   it.CopyCount,
			Format:   it.Format,
			CoverURL: it.ImageURL,
		}
		if it.Source == SourceYCL {
			v1.MediaType = string(MediaDigital)
		}
		results = append(results, v1)
	}
	return SearchResponseV1{
		Meta: MetaV1{
			CurrentPage:  r.Meta.CurrentPage,
			PageSize:     r.Meta.PageSize,
			TotalResults: r.Meta.TotalResults,
			TotalPages:   r.Meta.TotalPages,
		},
		Results: results,
	}
}

// HealthResponse is the response for GET /api/v1/health.
// Service booleans reflect configuration presence, not live probes.
type HealthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
	Version  string          `json:"version"`
	Uptime   string          `json:"uptime"`
}

// ErrorResponse is the body for non-200 API responses.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
