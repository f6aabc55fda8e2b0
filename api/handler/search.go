package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/fedcat/models"
)

// Searcher is the fusion engine surface the handlers consume.
type Searcher interface {
	Search(ctx context.Context, req *models.SearchRequest) *models.SearchResult
}

// Search returns the handler for GET /api/v1/search.
//
// Validation failures are the only client-visible errors here: a degraded
// backend still produces a 200 with zeroed counts for its side.
func Search(engine Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := parseSearchRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}

		result := engine.Search(c.Request.Context(), req)

		if req.Version == models.ResponseV1 {
			c.JSON(http.StatusOK, result.ToV1())
			return
		}
		c.JSON(http.StatusOK, result.ToV2())
	}
}

// Scrape returns the handler for the legacy-only GET /api/v1/scrape
// endpoint, kept for pre-federation clients. It always answers in the v1
// shape and never touches the digital catalog.
func Scrape(engine Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := parseSearchRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		req.MediaFilter = models.FilterPhysical
		req.Version = models.ResponseV1

		result := engine.Search(c.Request.Context(), req)
		c.JSON(http.StatusOK, result.ToV1())
	}
}

// parseSearchRequest binds and validates the shared query parameters.
func parseSearchRequest(c *gin.Context) (*models.SearchRequest, error) {
	req := &models.SearchRequest{
		Term: c.Query("search"),
		Credentials: models.Credentials{
			Username: c.Query("username"),
			Password: c.Query("password"),
		},
		YCLSlug:     c.Query("sourceBSlug"),
		MediaFilter: models.MediaFilter(c.Query("mediaFilter")),
		SortKey:     models.SortKey(c.Query("sortKey")),
		Version:     models.ResponseVersion(c.Query("responseVersion")),
	}

	var err error
	if req.Page, err = intQuery(c, "page", 1); err != nil {
		return nil, err
	}
	if req.PageSize, err = intQuery(c, "pageSize", 10); err != nil {
		return nil, err
	}

	req.Defaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewFedError(models.KindValidation, name+" must be an integer", err)
	}
	return v, nil
}

// respondError maps a FedError to its HTTP status and writes the structured
// error body.
func respondError(c *gin.Context, err error) {
	fe, ok := err.(*models.FedError)
	if !ok {
		fe = models.NewFedError(models.KindInternal, err.Error(), err)
	}
	c.JSON(statusFor(fe.Kind), models.ErrorResponse{Error: fe.ToDetail()})
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
