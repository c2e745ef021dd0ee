package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("middleware-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func validClaims(uid interface{}, role string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"uid":  uid,
		"role": role,
		"aud":  "foodgram-web",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
}

// echoRouter returns the identity the middlewares put on the context
func echoRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		userID, _ := c.Get(ContextUserID)
		role, _ := c.Get(ContextUserRole)
		authType, _ := c.Get(ContextAuthType)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": role, "auth_type": authType})
	})
	r.GET("/", handlers...)
	return r
}

func doRequest(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOAuth2Auth(t *testing.T) {
	r := echoRouter(OAuth2Auth(testSecret))

	t.Run("accepts a valid token with a string uid", func(t *testing.T) {
		w := doRequest(r, "Bearer "+signToken(t, validClaims("7", "user"), jwt.SigningMethodHS256))
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, float64(7), body["user_id"])
		assert.Equal(t, "user", body["role"])
		assert.Equal(t, "jwt", body["auth_type"])
	})

	t.Run("accepts a numeric uid", func(t *testing.T) {
		w := doRequest(r, "Bearer "+signToken(t, validClaims(float64(3), "admin"), jwt.SigningMethodHS256))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("marks scoped tokens as oauth2", func(t *testing.T) {
		claims := validClaims("7", "user")
		claims["scope"] = "read"
		w := doRequest(r, "Bearer "+signToken(t, claims, jwt.SigningMethodHS256))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"auth_type":"oauth2"`)
	})

	rejected := []struct {
		name   string
		header func(t *testing.T) string
		code   string
	}{
		{"missing header", func(t *testing.T) string { return "" }, "authorization_required"},
		{"wrong scheme", func(t *testing.T) string { return "Basic abc" }, "invalid_request"},
		{"empty bearer", func(t *testing.T) string { return "Bearer  " }, "invalid_token"},
		{"garbage token", func(t *testing.T) string { return "Bearer not.a.jwt" }, "invalid_token"},
		{"expired token", func(t *testing.T) string {
			claims := validClaims("7", "user")
			claims["exp"] = time.Now().Add(-time.Minute).Unix()
			return "Bearer " + signToken(t, claims, jwt.SigningMethodHS256)
		}, "invalid_token"},
		{"missing exp", func(t *testing.T) string {
			claims := validClaims("7", "user")
			delete(claims, "exp")
			return "Bearer " + signToken(t, claims, jwt.SigningMethodHS256)
		}, "invalid_token"},
		{"missing uid", func(t *testing.T) string {
			claims := validClaims("7", "user")
			delete(claims, "uid")
			return "Bearer " + signToken(t, claims, jwt.SigningMethodHS256)
		}, "invalid_token"},
		{"zero uid", func(t *testing.T) string {
			return "Bearer " + signToken(t, validClaims("0", "user"), jwt.SigningMethodHS256)
		}, "invalid_token"},
		{"unknown role", func(t *testing.T) string {
			return "Bearer " + signToken(t, validClaims("7", "root"), jwt.SigningMethodHS256)
		}, "invalid_token"},
		{"wrong secret", func(t *testing.T) string {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("7", "user")).SignedString([]byte("other"))
			require.NoError(t, err)
			return "Bearer " + signed
		}, "invalid_token"},
	}

	for _, tt := range rejected {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			w := doRequest(r, tt.header(t))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Header().Get("WWW-Authenticate"), tt.code)

			var body models.OAuth2Error
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := echoRouter(OptionalAuth(testSecret))

	t.Run("lets anonymous requests through", func(t *testing.T) {
		w := doRequest(r, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"auth_type":"anonymous"`)
		assert.Contains(t, w.Body.String(), `"user_id":null`)
	})

	t.Run("authenticates when a token is sent", func(t *testing.T) {
		w := doRequest(r, "Bearer "+signToken(t, validClaims("9", "user"), jwt.SigningMethodHS256))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":9`)
	})

	t.Run("still rejects a bad token", func(t *testing.T) {
		w := doRequest(r, "Bearer broken")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	r := echoRouter(OptionalAuth(testSecret), RequireAuth())

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
	assert.Equal(t, http.StatusOK,
		doRequest(r, "Bearer "+signToken(t, validClaims("9", "user"), jwt.SigningMethodHS256)).Code)
}

func TestRequireRole(t *testing.T) {
	r := echoRouter(OptionalAuth(testSecret), RequireRole(models.RoleAdmin))

	t.Run("unauthenticated", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		w := doRequest(r, "Bearer "+signToken(t, validClaims("9", "user"), jwt.SigningMethodHS256))
		require.Equal(t, http.StatusForbidden, w.Code)

		var body models.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, models.ErrForbidden, body.Code)
		assert.Equal(t, "admin", body.Details["required_role"])
	})

	t.Run("admin", func(t *testing.T) {
		w := doRequest(r, "Bearer "+signToken(t, validClaims("1", "admin"), jwt.SigningMethodHS256))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequestLogger(t *testing.T) {
	logger := logrus.New()
	var captured []*logrus.Entry
	logger.AddHook(&captureHook{entries: &captured})

	r := echoRouter(OptionalAuth(testSecret), RequestLogger(logger))
	doRequest(r, "Bearer "+signToken(t, validClaims("5", "user"), jwt.SigningMethodHS256))

	require.Len(t, captured, 1)
	assert.Equal(t, http.MethodGet, captured[0].Data["method"])
	assert.Equal(t, "/", captured[0].Data["path"])
	assert.Equal(t, http.StatusOK, captured[0].Data["status"])
	assert.Equal(t, uint(5), captured[0].Data["user_id"])
	assert.Equal(t, logrus.InfoLevel, captured[0].Level)
}

type captureHook struct {
	entries *[]*logrus.Entry
}

func (h *captureHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *captureHook) Fire(e *logrus.Entry) error {
	*h.entries = append(*h.entries, e)
	return nil
}

// memoryCounter is an in-process Counter for exercising the limiter
type memoryCounter struct {
	counts map[string]int64
	keys   []string
	err    error
}

func (m *memoryCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	m.keys = append(m.keys, key)
	return m.counts[key], nil
}

func limitedRouter(limiter *RateLimiter) *gin.Engine {
	return echoRouter(OptionalAuth(testSecret), limiter.Middleware())
}

func TestRateLimiter(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	cfg := RateLimitConfig{Window: time.Hour, Limit: 2, KeyPrefix: "rate_limit:test"}
	token := "Bearer " + signToken(t, validClaims("4", "user"), jwt.SigningMethodHS256)

	t.Run("allows up to the limit then rejects", func(t *testing.T) {
		counter := &memoryCounter{}
		limiter := NewRateLimiter(counter, cfg, logrus.New())
		limiter.now = func() time.Time { return fixed }
		r := limitedRouter(limiter)

		first := doRequest(r, token)
		require.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

		second := doRequest(r, token)
		require.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

		third := doRequest(r, token)
		require.Equal(t, http.StatusTooManyRequests, third.Code)
		assert.Equal(t, "2700", third.Header().Get("Retry-After"))

		var body models.APIError
		require.NoError(t, json.Unmarshal(third.Body.Bytes(), &body))
		assert.Equal(t, models.ErrTooManyRequests, body.Code)

		assert.Equal(t, "rate_limit:test:4:"+
			strconv.FormatInt(fixed.Truncate(time.Hour).Unix(), 10), counter.keys[0])
	})

	t.Run("counts users separately", func(t *testing.T) {
		counter := &memoryCounter{}
		limiter := NewRateLimiter(counter, RateLimitConfig{Window: time.Hour, Limit: 1, KeyPrefix: "rl"}, nil)
		r := limitedRouter(limiter)

		other := "Bearer " + signToken(t, validClaims("5", "user"), jwt.SigningMethodHS256)
		assert.Equal(t, http.StatusOK, doRequest(r, token).Code)
		assert.Equal(t, http.StatusOK, doRequest(r, other).Code)
		assert.Equal(t, http.StatusTooManyRequests, doRequest(r, token).Code)
	})

	t.Run("requires an authenticated user", func(t *testing.T) {
		limiter := NewRateLimiter(&memoryCounter{}, cfg, nil)
		assert.Equal(t, http.StatusUnauthorized, doRequest(limitedRouter(limiter), "").Code)
	})

	t.Run("fails open when the counter errors", func(t *testing.T) {
		limiter := NewRateLimiter(&memoryCounter{err: errors.New("connection refused")}, cfg, logrus.New())
		w := doRequest(limitedRouter(limiter), token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Error"))
	})

	t.Run("fails open when redis is unreachable", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		})
		defer client.Close()

		limiter := NewRecipeCreationRateLimiter(client, 1, logrus.New())
		w := doRequest(limitedRouter(limiter), token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Error"))
	})
}
