package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/franciscosanchezn/gin-foodgram-api/docs" // Register swagger docs
	"github.com/franciscosanchezn/gin-foodgram-api/internal/auth"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/config"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/controllers"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/routes"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// @title Foodgram API
// @version 1.0
// @description Recipe sharing: recipes, tags, ingredients, favorites, shopping lists and subscriptions
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration
	configuration := loadConfig()
	if configuration.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Initialize database connection
	db := setupDatabase(configuration)

	images, mediaRoot := setupImageStore(ctx, configuration)

	users := services.NewUserService(db)
	bootstrapSuperuser(ctx, users)

	relations := services.NewRelationService(db)
	recipes := services.NewRecipeService(db, services.RecipeLimits{
		MaxCookingTime:      configuration.MaxCookingTime,
		MaxIngredientAmount: configuration.MaxIngredientAmount,
	}, images, log.StandardLogger())

	tokenTTL := time.Duration(configuration.TokenTTLHours) * time.Hour
	oauthService := auth.NewOAuthService(db, configuration.JWTSecret, tokenTTL)

	router := &routes.Router{
		JWTSecret:   configuration.JWTSecret,
		CORSOrigins: configuration.CORSOrigins,
		Logger:      log.StandardLogger(),
		MediaRoot:   mediaRoot,
		MediaURL:    configuration.MediaURL,

		Recipes: controllers.NewRecipeController(recipes, relations, services.NewShoppingListService(db), users, images),
		Catalog: controllers.NewCatalogController(services.NewCatalogService(db)),
		Users:   controllers.NewUserController(users, relations),
		Auth:    controllers.NewAuthController(users, auth.NewTokenIssuer(configuration.JWTSecret, tokenTTL)),
		Clients: controllers.NewClientController(services.NewClientService(db)),

		TokenHandler:    oauthService.HandleToken,
		RecipeRateLimit: setupRateLimiter(ctx, configuration),
	}

	// Start the server
	srv := &http.Server{
		Addr:              fmt.Sprintf("%v:%d", configuration.Host, configuration.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serve(srv)
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment
func setUpLogger() {
	level := config.LevelForEnvironment(config.GetEnvWithDefault("APP_ENV", "development"))
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := log.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(level)
	database.SetLogLevel(level)
	storage.SetLogLevel(level)
	auth.SetLogLevel(level)
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	return conf
}

// setupDatabase connects with retries and migrates the schema
func setupDatabase(conf *config.Config) *gorm.DB {
	db, err := database.InitDatabase(database.DatabaseConfig{
		Driver:   conf.DBDriver,
		Host:     conf.DBHost,
		Port:     conf.DBPort,
		User:     conf.DBUser,
		Password: conf.DBPassword,
		Name:     conf.DBName,
		SSLMode:  conf.DBSSLMode,
		Path:     conf.DBPath,
	})
	checkPanicErr(err)
	checkPanicErr(database.Migrate(db))
	return db
}

// setupImageStore picks local or S3 image storage. The media root is
// returned only for local storage, which the router then serves.
func setupImageStore(ctx context.Context, conf *config.Config) (storage.ImageStore, string) {
	if conf.ImageStorage == "s3" {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          conf.S3Bucket,
			Region:          conf.S3Region,
			Endpoint:        conf.S3Endpoint,
			AccessKeyID:     conf.S3AccessKeyID,
			SecretAccessKey: conf.S3SecretAccessKey,
		})
		checkPanicErr(err)
		checkPanicErr(store.EnsureBucket(ctx))
		log.WithField("bucket", conf.S3Bucket).Info("Storing recipe images in S3")
		return store, ""
	}

	store, err := storage.NewLocalStore(conf.MediaRoot, conf.MediaURL)
	checkPanicErr(err)
	log.WithField("media_root", conf.MediaRoot).Info("Storing recipe images on the local filesystem")
	return store, store.Root()
}

// setupRateLimiter returns nil, disabling the limit, when Redis is not configured or unreachable
func setupRateLimiter(ctx context.Context, conf *config.Config) *middleware.RateLimiter {
	if conf.RedisURL == "" {
		log.Info("REDIS_URL not set, recipe creation is not rate limited")
		return nil
	}
	client, err := database.NewRedisClient(ctx, conf.RedisURL)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, recipe creation is not rate limited")
		return nil
	}
	return middleware.NewRecipeCreationRateLimiter(client, conf.RateLimitRecipesPerHour, log.StandardLogger())
}

// bootstrapSuperuser creates the admin account described by SUPERUSER_* when it does not exist yet
func bootstrapSuperuser(ctx context.Context, users services.UserService) {
	email := config.GetEnvWithDefault("SUPERUSER_EMAIL", "")
	if email == "" {
		return
	}
	created, err := users.EnsureSuperuser(ctx, services.RegisterInput{
		Email:     email,
		Username:  config.GetEnvWithDefault("SUPERUSER_USERNAME", "admin"),
		FirstName: config.GetEnvWithDefault("SUPERUSER_FIRST_NAME", "Admin"),
		LastName:  config.GetEnvWithDefault("SUPERUSER_LAST_NAME", "Admin"),
		Password:  config.GetEnvWithDefault("SUPERUSER_PASSWORD", ""),
	})
	if err != nil {
		log.WithError(err).Error("Failed to create superuser")
		return
	}
	if created {
		log.WithField("email", email).Info("Superuser created")
	}
}

// serve runs the server until SIGINT or SIGTERM, then drains in-flight requests
func serve(srv *http.Server) {
	errChan := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.WithError(err).Fatal("Server error")
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("Server shutdown error")
	}
	log.Info("Server stopped")
}
