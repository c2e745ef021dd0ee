package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/controllers"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds everything the HTTP surface is assembled from
type Router struct {
	JWTSecret   string
	CORSOrigins []string
	Logger      *logrus.Logger

	// MediaRoot and MediaURL serve locally stored images; leave MediaRoot empty when images live in S3
	MediaRoot string
	MediaURL  string

	Recipes *controllers.RecipeController
	Catalog *controllers.CatalogController
	Users   *controllers.UserController
	Auth    *controllers.AuthController
	Clients *controllers.ClientController

	// TokenHandler serves the client_credentials grant
	TokenHandler gin.HandlerFunc
	// RecipeRateLimit guards recipe creation; nil disables it
	RecipeRateLimit *middleware.RateLimiter
}

// Setup initializes the Gin router and registers every route
func (r *Router) Setup() *gin.Engine {
	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))
	router.Use(cors.New(r.corsConfig()))

	router.GET("/health", healthCheckHandler)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if r.MediaRoot != "" {
		router.Static(mediaPrefix(r.MediaURL), r.MediaRoot)
	}

	// Token endpoints carry client credentials in the Authorization header
	// (Basic), so they sit outside the bearer token check
	tokens := router.Group("/api/v1")
	{
		tokens.POST("/auth/token/login", r.Auth.Login)
		if r.TokenHandler != nil {
			tokens.POST("/oauth/token", r.TokenHandler)
		}
	}

	secret := []byte(r.JWTSecret)
	v1 := router.Group("/api/v1")
	v1.Use(middleware.OptionalAuth(secret))
	authenticated := middleware.RequireAuth()
	staff := middleware.RequireRole(models.RoleAdmin)

	users := v1.Group("/users")
	{
		users.GET("", r.Users.ListUsers)
		users.POST("", r.Users.Register)
		users.GET("/me", authenticated, r.Users.Me)
		users.POST("/set_password", authenticated, r.Users.SetPassword)
		users.GET("/subscriptions", authenticated, r.Users.Subscriptions)
		users.GET("/:id", r.Users.GetUser)
		users.POST("/:id/subscribe", authenticated, r.Users.Subscribe)
		users.DELETE("/:id/subscribe", authenticated, r.Users.Unsubscribe)
	}

	tags := v1.Group("/tags")
	{
		tags.GET("", r.Catalog.ListTags)
		tags.GET("/:id", r.Catalog.GetTag)
		tags.POST("", staff, r.Catalog.CreateTag)
	}

	ingredients := v1.Group("/ingredients")
	{
		ingredients.GET("", r.Catalog.ListIngredients)
		ingredients.GET("/:id", r.Catalog.GetIngredient)
		ingredients.POST("", staff, r.Catalog.CreateIngredient)
		ingredients.POST("/import", staff, r.Catalog.ImportIngredients)
	}

	recipes := v1.Group("/recipes")
	{
		create := []gin.HandlerFunc{authenticated}
		if r.RecipeRateLimit != nil {
			create = append(create, r.RecipeRateLimit.Middleware())
		}
		create = append(create, r.Recipes.CreateRecipe)

		recipes.GET("", r.Recipes.ListRecipes)
		recipes.POST("", create...)
		recipes.GET("/download_shopping_cart", authenticated, r.Recipes.DownloadShoppingCart)
		recipes.GET("/:id", r.Recipes.GetRecipe)
		recipes.PATCH("/:id", authenticated, r.Recipes.UpdateRecipe)
		recipes.DELETE("/:id", authenticated, r.Recipes.DeleteRecipe)
		recipes.POST("/:id/favorite", authenticated, r.Recipes.AddFavorite)
		recipes.DELETE("/:id/favorite", authenticated, r.Recipes.RemoveFavorite)
		recipes.POST("/:id/shopping_cart", authenticated, r.Recipes.AddToCart)
		recipes.DELETE("/:id/shopping_cart", authenticated, r.Recipes.RemoveFromCart)
	}

	clients := v1.Group("/clients", authenticated)
	{
		clients.POST("", r.Clients.CreateClient)
		clients.GET("", r.Clients.ListClients)
		clients.DELETE("/:id", r.Clients.DeleteClient)
	}

	return router
}

func (r *Router) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(r.CORSOrigins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = r.CORSOrigins
	}
	return cfg
}

// mediaPrefix turns MEDIA_URL into a route prefix; absolute URLs serve under their path
func mediaPrefix(mediaURL string) string {
	if i := strings.Index(mediaURL, "://"); i != -1 {
		rest := mediaURL[i+3:]
		if slash := strings.Index(rest, "/"); slash != -1 {
			mediaURL = rest[slash:]
		} else {
			mediaURL = "/"
		}
	}
	prefix := "/" + strings.Trim(mediaURL, "/")
	if prefix == "/" {
		return "/media"
	}
	return prefix
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "gin-foodgram-api",
	})
}
