package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/weplay-app/weplay-backend/internal/auth"
	"github.com/weplay-app/weplay-backend/internal/game"
	"github.com/weplay-app/weplay-backend/internal/pkg/middleware"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/pubsub"
	"github.com/weplay-app/weplay-backend/internal/pkg/ratelimit"
	"github.com/weplay-app/weplay-backend/internal/pkg/scheduler"
	"github.com/weplay-app/weplay-backend/internal/pkg/security"
	"github.com/weplay-app/weplay-backend/internal/pkg/storage"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
	pkgws "github.com/weplay-app/weplay-backend/internal/pkg/ws"
	"github.com/weplay-app/weplay-backend/internal/post"
	"github.com/weplay-app/weplay-backend/internal/profile"
	"github.com/weplay-app/weplay-backend/internal/upload"
	"github.com/weplay-app/weplay-backend/internal/ws"
	"github.com/weplay-app/weplay-backend/pkg/firebase"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type limiters struct {
	general ratelimit.Limiter
	login   ratelimit.Limiter
	upload  ratelimit.Limiter
}

func main() {
	setupViper()
	setupZerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := setupDb(ctx)
	publisher := setupPubSub(ctx)

	registry := pkgws.NewRoomRegistry()
	dispatcher := pkgws.NewDispatcher(registry, pkgws.EchoPolicyFromFlag(viper.GetBool("WS_ECHO_TO_SENDER")))
	lanes := pkgws.NewLanes(viper.GetInt("WS_LANE_DEPTH"))

	games := game.NewGameService(db, publisher)
	posts := post.NewPostService(db, publisher)
	manager := ws.NewManager(ctx, registry, dispatcher, lanes, games, posts)

	apiRouter := setupApiRouter(ctx, db, games, posts, manager, dispatcher)

	jobs, err := scheduler.Start(scheduler.Job{
		Name:     "realtime-stats",
		Interval: viper.GetDuration("METRICS_INTERVAL"),
		Task:     manager.LogStats,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	server := &http.Server{
		Addr:        viper.GetString("PORT"),
		Handler:     apiRouter,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("WePlay server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Error shutting down server")
	}
	jobs.Stop()
	manager.Shutdown()
	if closer, ok := publisher.(*pubsub.Client); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing pubsub client")
		}
	}
	log.Info().Msg("Server stopped")
}

func setupDb(ctx context.Context) *gorm.DB {
	dbUrl := viper.GetString("DB_URL")
	if dbUrl == "" {
		log.Fatal().Msg("DB_URL is required")
	}

	dialector := postgres.Open(dbUrl)
	if viper.GetString("DB_DRIVER") == "sqlite" {
		dialector = sqlite.Open(dbUrl)
	}

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		db, err = gorm.Open(dialector, &gorm.Config{})
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("Database not reachable, retrying")
		select {
		case <-ctx.Done():
			log.Fatal().Msg("Interrupted while connecting to database")
		case <-time.After(b.Duration()):
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	sqlDb, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get database handle")
	}
	sqlDb.SetMaxOpenConns(50)
	sqlDb.SetConnMaxLifetime(time.Minute * 10)

	if err := model.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	return db
}

func setupPubSub(ctx context.Context) pubsub.Publisher {
	projectId := viper.GetString("GOOGLE_PROJECT_ID")
	if projectId == "" {
		log.Info().Msg("GOOGLE_PROJECT_ID not set, domain events disabled")
		return pubsub.NopPublisher{}
	}

	client, err := pubsub.NewClient(ctx, projectId)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pubsub client")
	}
	return client
}

func setupLimiters() limiters {
	redisUrl := viper.GetString("REDIS_URL")
	if redisUrl == "" {
		log.Info().Msg("REDIS_URL not set, rate limiting disabled")
		return limiters{}
	}

	client, err := ratelimit.NewRedisClient(redisUrl, viper.GetString("REDIS_PASSWORD"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize redis client")
	}
	return limiters{
		general: ratelimit.NewRedisLimiter(client, ratelimit.GeneralConfig()),
		login:   ratelimit.NewRedisLimiter(client, ratelimit.LoginConfig()),
		upload:  ratelimit.NewRedisLimiter(client, ratelimit.UploadConfig()),
	}
}

func setupStorage(ctx context.Context) storage.ObjectStore {
	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:          viper.GetString("AWS_REGION"),
		Bucket:          viper.GetString("AWS_S3_BUCKET"),
		AccessKeyId:     viper.GetString("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: viper.GetString("AWS_SECRET_ACCESS_KEY"),
		Endpoint:        viper.GetString("AWS_S3_ENDPOINT"),
		CdnBaseUrl:      viper.GetString("CDN_BASE_URL"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}
	return store
}

func setupApiRouter(
	ctx context.Context,
	db *gorm.DB,
	games *game.GameService,
	posts *post.PostService,
	manager *ws.Manager,
	dispatcher *pkgws.Dispatcher,
) *gin.Engine {
	startedAt := time.Now()
	utils.RegisterValidators()

	secret := viper.GetString("JWT_SECRET")
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}
	tokens := security.NewJWTManager(security.JWTConfig{
		SecretKey:            secret,
		AccessTokenDuration:  viper.GetDuration("JWT_ACCESS_TTL"),
		RefreshTokenDuration: viper.GetDuration("JWT_REFRESH_TTL"),
	})
	accounts := auth.NewAuthService(db, tokens, security.NewPasswordHasher())

	verifiers := []middleware.TokenVerifier{middleware.JWTVerifier{Manager: tokens}}
	var idTokens auth.IdTokenVerifier
	if viper.GetBool("FIREBASE_AUTH_ENABLED") {
		fb, err := firebase.NewVerifier(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize firebase")
		}
		idTokens = fb
		verifiers = append(verifiers, auth.FederatedVerifier{Service: accounts, Verifier: fb})
	}
	authenticator := middleware.NewAuthenticator(verifiers...)
	limits := setupLimiters()

	apiRouter := gin.New()
	middleware.RegisterGlobalMiddleware(apiRouter, viper.GetString("FRONTEND_URL"))

	apiRouter.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": "WePlay API", "version": "v1"})
	})
	apiRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"timestamp":   time.Now().UTC(),
			"uptime":      time.Since(startedAt).Round(time.Second).String(),
			"rooms":       manager.Stats().Rooms,
			"connections": manager.Stats().Connections,
		})
	})

	routerGroup := apiRouter.Group("/api/v1", middleware.ClientRateLimit(authenticator, limits.general)...)
	ws.RegisterRoutes(routerGroup, manager, authenticator, viper.GetString("FRONTEND_URL"), viper.GetInt("WS_SEND_QUEUE_SIZE"))
	auth.RegisterRoutes(routerGroup, accounts, authenticator, idTokens, limits.login)
	profile.RegisterRoutes(routerGroup, profile.NewProfileService(db), authenticator)
	game.RegisterRoutes(routerGroup, games, authenticator, dispatcher)
	post.RegisterRoutes(routerGroup, posts, authenticator, dispatcher)
	upload.RegisterRoutes(routerGroup, upload.NewUploadService(setupStorage(ctx), db), authenticator, limits.upload)

	return apiRouter
}

func setupViper() {
	viper.SetDefault("PORT", ":3001")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("JWT_ACCESS_TTL", "168h")
	viper.SetDefault("JWT_REFRESH_TTL", "720h")
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")
	viper.SetDefault("AWS_REGION", "ap-northeast-1")
	viper.SetDefault("FIREBASE_AUTH_ENABLED", false)
	viper.SetDefault("WS_ECHO_TO_SENDER", false)
	viper.SetDefault("WS_SEND_QUEUE_SIZE", 64)
	viper.SetDefault("WS_LANE_DEPTH", 128)
	viper.SetDefault("METRICS_INTERVAL", "30s")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.AutomaticEnv()
	viper.SetConfigFile("./.env")
	viper.SetConfigType("env")
	if err := viper.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Cannot read .env file, using environment only")
	}
}

func setupZerolog() {
	zerolog.LevelFieldName = "severity"
	zerolog.TimestampFieldName = "time"
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(viper.GetString("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if viper.GetBool("LOG_PRETTY") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
