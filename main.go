package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/ocrs/internal/auth"
	"github.com/example/ocrs/internal/config"
	"github.com/example/ocrs/internal/engine"
	"github.com/example/ocrs/internal/grpcclient"
	"github.com/example/ocrs/internal/handlers"
	"github.com/example/ocrs/internal/logging"
	"github.com/example/ocrs/internal/repository"
	"github.com/example/ocrs/internal/tesseract"
	"github.com/example/ocrs/internal/usecase"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	eng, closeEngine := initEngine(ctx, cfg, logger)
	defer closeEngine()

	opts := []usecase.Option{usecase.WithMaxImageSize(cfg.MaxFileSize)}

	if cfg.Redis.Addr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient := initRedis(redisCtx, cfg.Redis.Addr, logger)
		redisCancel()
		defer redisClient.Close()
		opts = append(opts, usecase.WithCache(usecase.NewRedisCache(redisClient), cfg.Redis.TTL))
	}

	if cfg.Database.DSN != "" {
		db := initDatabase(ctx, cfg.Database.DSN, logger)
		repo := repository.NewRequestLogRepository(db, logger)
		if err := repo.AutoMigrate(ctx); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
		opts = append(opts, usecase.WithRequestLog(repo))
	}

	recognizer := usecase.NewRecognizer(eng, cfg.Engine.Timeout, logger)
	uc := usecase.NewOCRUseCase(recognizer, logger, opts...)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxFileSize

	var authMiddleware gin.HandlerFunc
	if cfg.Auth.JWTSecret != "" {
		authMiddleware = auth.JWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience)
	}

	handlers.RegisterRoutes(r, handlers.Options{
		UseCase: uc,
		Logger:  logger,
		Auth:    authMiddleware,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("OCR service listening",
		zap.String("addr", cfg.Addr()),
		zap.String("engine", uc.EngineName()),
		zap.Bool("cache", cfg.Redis.Addr != ""),
		zap.Bool("request_log", uc.RequestLogEnabled()),
		zap.Bool("auth", authMiddleware != nil),
	)
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engine.Engine, func()) {
	switch cfg.Engine.Kind {
	case config.EngineGRPC:
		eng, conn, err := grpcclient.Dial(ctx, cfg.Engine.Addr, logger)
		if err != nil {
			logger.Fatal("failed to connect to recognition engine", zap.Error(err), zap.String("addr", cfg.Engine.Addr))
		}
		return eng, func() { conn.Close() }
	default:
		eng := tesseract.New(tesseract.Config{TessdataDir: cfg.Engine.TessdataDir}, logger)
		return eng, func() {
			if err := eng.Close(); err != nil {
				logger.Warn("failed to remove tesseract config files", zap.Error(err))
			}
		}
	}
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
