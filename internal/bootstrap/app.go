package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"bjj-backend/internal/analyses"
	"bjj-backend/internal/frames"
	"bjj-backend/internal/queue"
	"bjj-backend/internal/shared/config"
	"bjj-backend/internal/shared/server"
	"bjj-backend/internal/shared/storage/db"
	"bjj-backend/internal/shared/storage/object"
	localstore "bjj-backend/internal/shared/storage/object/local"
	s3store "bjj-backend/internal/shared/storage/object/s3"
	"bjj-backend/internal/videos"
	"bjj-backend/internal/vision"
	"bjj-backend/internal/vision/gemini"
)

const redisPingTimeout = 3 * time.Second

// App holds the shared dependencies for the API server, the worker and the
// Lambda entrypoints.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Redis             *redis.Client
	Store             object.ObjectStore
	Queue             queue.Client
	VideosRepo        videos.Repo
	AnalysesRepo      analyses.Repo
	VideosService     *videos.Service
	AnalysesService   *analyses.Service
	AnalysisProcessor AnalysisProcessor
	VideoHandler      *videos.Handler
	AnalysisHandler   *analyses.Handler
}

// AnalysisProcessor allows callers to override analysis processing for tests.
type AnalysisProcessor interface {
	ProcessAnalysis(ctx context.Context, analysisID string) error
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Router: nil,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		VideoHandler:    app.VideoHandler,
		AnalysisHandler: app.AnalysisHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		// Memory and redis job stores run without Postgres; only an
		// explicit postgres job store demands a connection string.
		if cfg.JobStore == "postgres" && !isDevLike(cfg.Env) {
			return nil, fmt.Errorf("JOB_STORE=postgres requires DATABASE_URL")
		}
		return nil, nil
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func buildRedis(cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, fmt.Errorf("JOB_STORE=redis requires REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	var videoRepo videos.Repo
	if app.DB != nil {
		videoRepo = &videos.PGRepo{DB: app.DB}
	} else {
		videoRepo = videos.NewMemoryRepo()
	}

	var analysisRepo analyses.Repo
	switch cfg.JobStore {
	case "postgres":
		if app.DB == nil {
			log.Printf("bootstrap: no usable database; using in-memory analyses repository")
			analysisRepo = analyses.NewMemoryRepo()
			break
		}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
	case "redis":
		client, err := buildRedis(cfg)
		if err != nil {
			if isDevLike(cfg.Env) {
				log.Printf("bootstrap: redis connect failed; using in-memory analyses repository: %v", err)
				analysisRepo = analyses.NewMemoryRepo()
				break
			}
			return err
		}
		app.Redis = client
		analysisRepo = analyses.NewRedisRepo(client, time.Duration(cfg.JobTTLHours)*time.Hour)
	default:
		analysisRepo = analyses.NewMemoryRepo()
	}

	visionClient := vision.Client(vision.PlaceholderClient{})
	if strings.TrimSpace(cfg.GoogleAPIKey) != "" {
		geminiClient, err := gemini.NewClient(cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		visionClient = geminiClient
	}

	opener := frames.NewFFmpegOpener(
		cfg.FFmpegPath,
		cfg.FFprobePath,
		time.Duration(cfg.FrameTimeoutSeconds)*time.Second,
	)

	videoSvc := &videos.Service{
		Store: app.Store,
		Repo:  videoRepo,
	}

	analysisSvc := &analyses.Service{
		Repo:          analysisRepo,
		Videos:        videoRepo,
		Store:         app.Store,
		Vision:        visionClient,
		Opener:        opener,
		Queue:         app.Queue,
		RetryAttempts: cfg.VisionRetryAttempts,
	}

	maxUploadBytes := cfg.MaxUploadMB << 20

	app.VideosRepo = videoRepo
	app.AnalysesRepo = analysisRepo
	app.VideosService = videoSvc
	app.AnalysesService = analysisSvc
	app.AnalysisProcessor = analysisSvc
	app.VideoHandler = videos.NewHandler(videoSvc, maxUploadBytes)
	app.AnalysisHandler = analyses.NewHandler(analysisSvc, maxUploadBytes)

	if app.VideoHandler == nil || app.AnalysisHandler == nil {
		return errors.New("failed to initialize handlers")
	}

	return nil
}
