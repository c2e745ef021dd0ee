package controllers

import (
	"net/url"
	"strconv"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

// Page sizes for paginated listings
const (
	DefaultPageSize = 6
	MaxPageSize     = 100
)

// PageRequest is the page window asked for with ?page=&limit=
type PageRequest struct {
	Page  int
	Limit int
}

// Paginated is the envelope of every paginated listing
type Paginated[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// parsePageRequest reads page and limit, falling back to the first page of DefaultPageSize
func parsePageRequest(c *gin.Context) (PageRequest, error) {
	req := PageRequest{Page: 1, Limit: DefaultPageSize}
	verr := &services.ValidationError{}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			verr.Add("page", "must be a positive integer")
		} else {
			req.Page = page
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			verr.Add("limit", "must be a positive integer")
		} else {
			req.Limit = min(limit, MaxPageSize)
		}
	}
	return req, verr.OrNil()
}

// paginate wraps a page of results with links to its neighbours
func paginate[T any](c *gin.Context, req PageRequest, page *models.Page[T]) Paginated[T] {
	out := Paginated[T]{Count: page.Count, Results: page.Results}
	if out.Results == nil {
		out.Results = []T{}
	}
	if lastPage := (page.Count + int64(req.Limit) - 1) / int64(req.Limit); int64(req.Page) < lastPage {
		out.Next = pageLink(c, req.Page+1)
	}
	if req.Page > 1 {
		out.Previous = pageLink(c, req.Page-1)
	}
	return out
}

func pageLink(c *gin.Context, page int) *string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	query := c.Request.URL.Query()
	if page == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	link := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path, RawQuery: query.Encode()}
	s := link.String()
	return &s
}
