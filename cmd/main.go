package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"atelier-backend/internal/clients"
	"atelier-backend/internal/config"
	"atelier-backend/internal/logger"
	"atelier-backend/internal/repository"
	"atelier-backend/internal/service"
	"atelier-backend/internal/transport/auth"
	"atelier-backend/internal/transport/rest"
	"atelier-backend/internal/transport/websocket"
	"atelier-backend/pkg/database/postgres"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	zl, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zl.Sync()

	db := mustInitPostgres(cfg.Postgres, zl)
	defer postgres.Close(db)

	redisClient := mustInitRedis(cfg.Redis, zl)
	defer redisClient.Close()

	exportStorage, localStorage := mustInitExportStorage(ctx, cfg, zl)

	wsHub := websocket.NewHub(zl)
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	debtRepo := repository.NewDebtRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	journalRepo := repository.NewJournalRepository(db)
	tokenRepo := repository.NewPersonalAccessTokenRepository(db)

	journalSvc := service.NewJournalService(journalRepo, zl)
	debtSvc := service.NewDebtService(debtRepo, paymentRepo, journalSvc, zl)
	paymentSvc := service.NewPaymentService(debtRepo, journalSvc, zl)
	metricsSvc := service.NewMetricsService(debtRepo, receiptRepo, redisClient, zl)
	exportSvc := service.NewExportService(
		redisClient,
		exportStorage,
		wsClient,
		debtRepo,
		paymentRepo,
		receiptRepo,
		journalRepo,
		zl,
	)

	tokenMiddleware := auth.TokenMiddleware(tokenRepo)

	handler := rest.NewHandler(debtSvc, paymentSvc, metricsSvc, receiptRepo, journalSvc, exportSvc, zl)
	router := handler.InitRouterWithAuth(tokenMiddleware)

	// public root router; /files and /health stay open, everything else sits
	// behind the token middleware
	root := chi.NewRouter()

	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if localStorage != nil {
		root.Get("/files/{file}", serveExportFile(localStorage))
	}

	// protected websocket endpoint; the token middleware already accepts the
	// token query parameter, so browser websocket clients can authenticate
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.GetUserID(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		zl.Info("websocket connected", zap.Int64("user_id", userID))
		wsHub.HandleWebSocket(w, r, userID)
	})

	root.Mount("/", router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(root),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		zl.Info("http server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// local export files are throwaway artifacts; sweep anything older than
	// 30 minutes
	if localStorage != nil {
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := localStorage.CleanupOlderThan(30 * time.Minute); err != nil {
						zl.Warn("storage cleanup error", zap.Error(err))
					}
				}
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			zl.Fatal("http server error", zap.Error(err))
		}
	case sig := <-stop:
		zl.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Warn("http server shutdown error", zap.Error(err))
		}

		// stop background services (websocket hub, cleanup ticker)
		cancel()

		postgres.Close(db)
		redisClient.Close()

		zl.Info("shutdown complete")
	}
}

func mustInitPostgres(cfg config.PostgresConfig, zl *zap.Logger) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		zl.Fatal("postgres init error", zap.Error(err))
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig, zl *zap.Logger) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		zl.Fatal("redis init error", zap.Error(err))
	}
	return client
}

// mustInitExportStorage picks the export backend. The local client is also
// returned separately because only it needs the /files route and the cleanup
// ticker.
func mustInitExportStorage(ctx context.Context, cfg config.AppConfig, zl *zap.Logger) (service.ExportStorage, *clients.StorageClient) {
	switch cfg.Export.Backend {
	case "s3":
		s3Client, err := clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			zl.Fatal("s3 init error", zap.Error(err))
		}
		return s3Client, nil
	case "local", "":
		localStorage, err := clients.NewLocalStorage(cfg.Export.Dir, cfg.Export.FilesPublicPrefix, cfg.Export.ExternalURL)
		if err != nil {
			zl.Fatal("storage init error", zap.Error(err))
		}
		return localStorage, localStorage
	default:
		zl.Fatal("unknown export storage backend", zap.String("backend", cfg.Export.Backend))
		return nil, nil
	}
}

func serveExportFile(storage *clients.StorageClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := filepath.Base(chi.URLParam(r, "file"))
		path := filepath.Join(storage.BaseDir, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to access file", http.StatusInternalServerError)
			return
		}

		// prefer the original filename in Content-Disposition, stripping the
		// random storage prefix
		orig := file
		if idx := strings.IndexByte(file, '_'); idx >= 0 {
			orig = file[idx+1:]
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", orig))

		http.ServeFile(w, r, path)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
