package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var body models.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRespondError(t *testing.T) {
	verr := &services.ValidationError{}
	verr.Add("tags", "this field is required")

	testCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", verr, http.StatusBadRequest, models.ErrValidationFailed},
		{"wrapped validation", fmt.Errorf("create: %w", verr), http.StatusBadRequest, models.ErrValidationFailed},
		{"bad image", fmt.Errorf("%w: empty payload", storage.ErrInvalidImage), http.StatusBadRequest, models.ErrValidationFailed},
		{"already exists", fmt.Errorf("favorite: %w", services.ErrAlreadyExists), http.StatusBadRequest, models.ErrAlreadyExists},
		{"self reference", services.ErrSelfReference, http.StatusBadRequest, models.ErrSelfReference},
		{"bad credentials", services.ErrInvalidCredentials, http.StatusBadRequest, models.ErrInvalidGrant},
		{"not found", fmt.Errorf("recipe 9: %w", services.ErrNotFound), http.StatusNotFound, models.ErrNotFound},
		{"not authorized", fmt.Errorf("recipe 9: %w", services.ErrNotAuthorized), http.StatusForbidden, models.ErrRecipeForbidden},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, models.ErrInternalServer},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext("/")
			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeAPIError(t, w).Code)
		})
	}

	t.Run("validation details carry the fields", func(t *testing.T) {
		c, w := testContext("/")
		respondError(c, verr)
		assert.Equal(t, "this field is required", decodeAPIError(t, w).Details["tags"])
	})

	t.Run("unexpected errors reach the request log but not the client", func(t *testing.T) {
		c, w := testContext("/")
		respondError(c, errors.New("disk on fire"))
		assert.Len(t, c.Errors, 1)
		assert.NotContains(t, w.Body.String(), "disk on fire")
	})
}

func TestViewerFrom(t *testing.T) {
	c, _ := testContext("/")
	assert.True(t, viewerFrom(c).IsAnonymous())

	c.Set(middleware.ContextUserID, uint(4))
	c.Set(middleware.ContextUserRole, models.RoleUser)
	assert.Equal(t, services.Viewer{UserID: 4}, viewerFrom(c))

	c.Set(middleware.ContextUserRole, models.RoleAdmin)
	assert.True(t, viewerFrom(c).IsStaff)
}

func TestPathID(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-1", "99999999999"} {
		c, w := testContext("/")
		c.Params = gin.Params{{Key: "id", Value: raw}}
		_, ok := pathID(c, "id")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}

	c, _ := testContext("/")
	c.Params = gin.Params{{Key: "id", Value: "12"}}
	id, ok := pathID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(12), id)
}

func TestParsePageRequest(t *testing.T) {
	testCases := []struct {
		query    string
		expected PageRequest
		fails    bool
	}{
		{"", PageRequest{Page: 1, Limit: DefaultPageSize}, false},
		{"?page=3&limit=10", PageRequest{Page: 3, Limit: 10}, false},
		{"?limit=5000", PageRequest{Page: 1, Limit: MaxPageSize}, false},
		{"?page=0", PageRequest{}, true},
		{"?limit=abc", PageRequest{}, true},
	}

	for _, tt := range testCases {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := testContext("/api/v1/recipes" + tt.query)
			req, err := parsePageRequest(c)
			if tt.fails {
				var verr *services.ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req)
		})
	}
}

func TestPaginate(t *testing.T) {
	t.Run("middle page links both ways", func(t *testing.T) {
		c, _ := testContext("/api/v1/recipes?page=2&limit=2&tags=lunch")
		c.Request.Host = "api.test"

		out := paginate(c, PageRequest{Page: 2, Limit: 2}, &models.Page[int]{Count: 5, Results: []int{3, 4}})

		require.NotNil(t, out.Next)
		require.NotNil(t, out.Previous)
		assert.Equal(t, "http://api.test/api/v1/recipes?limit=2&page=3&tags=lunch", *out.Next)
		assert.Equal(t, "http://api.test/api/v1/recipes?limit=2&tags=lunch", *out.Previous)
		assert.Equal(t, int64(5), out.Count)
	})

	t.Run("last page has no next", func(t *testing.T) {
		c, _ := testContext("/api/v1/users?page=3&limit=2")
		out := paginate(c, PageRequest{Page: 3, Limit: 2}, &models.Page[int]{Count: 5, Results: []int{5}})
		assert.Nil(t, out.Next)
		assert.NotNil(t, out.Previous)
	})

	t.Run("page far past the end links back only", func(t *testing.T) {
		c, _ := testContext("/api/v1/recipes?page=" + strconv.Itoa(math.MaxInt) + "&limit=2")
		out := paginate(c, PageRequest{Page: math.MaxInt, Limit: 2}, &models.Page[int]{Count: 5})
		assert.Nil(t, out.Next)
		require.NotNil(t, out.Previous)
		assert.Contains(t, *out.Previous, "page="+strconv.Itoa(math.MaxInt-1))
	})

	t.Run("exact multiple of the limit ends on the last full page", func(t *testing.T) {
		c, _ := testContext("/api/v1/users?page=2&limit=2")
		out := paginate(c, PageRequest{Page: 2, Limit: 2}, &models.Page[int]{Count: 4, Results: []int{3, 4}})
		assert.Nil(t, out.Next)
	})

	t.Run("empty results serialise as a list", func(t *testing.T) {
		c, _ := testContext("/api/v1/users")
		out := paginate(c, PageRequest{Page: 1, Limit: 6}, &models.Page[int]{})
		body, err := json.Marshal(out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"count":0,"next":null,"previous":null,"results":[]}`, string(body))
	})
}

func TestParseRecipeFilter(t *testing.T) {
	c, _ := testContext("/api/v1/recipes?author=3&tags=breakfast&tags=lunch&is_favorited=1&is_in_shopping_cart=0")
	filter, err := parseRecipeFilter(c)
	require.NoError(t, err)
	assert.Equal(t, uint(3), filter.AuthorID)
	assert.Equal(t, []string{"breakfast", "lunch"}, filter.Tags)
	assert.True(t, filter.IsFavorited)
	assert.False(t, filter.IsInShoppingCart)

	c, _ = testContext("/api/v1/recipes?author=me&is_favorited=maybe")
	_, err = parseRecipeFilter(c)
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "author")
	assert.Contains(t, verr.Fields, "is_favorited")
}

func TestRecipesLimit(t *testing.T) {
	c, _ := testContext("/api/v1/users/subscriptions?recipes_limit=2")
	limit, ok := recipesLimit(c)
	assert.True(t, ok)
	assert.Equal(t, 2, limit)

	c, w := testContext("/api/v1/users/subscriptions?recipes_limit=-3")
	_, ok = recipesLimit(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
