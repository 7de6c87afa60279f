package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitgram/internal/chat"
	"github.com/fitgram/internal/config"
	"github.com/fitgram/internal/handler"
	"github.com/fitgram/internal/logger"
	"github.com/fitgram/internal/middleware"
	"github.com/fitgram/internal/push"
	"github.com/fitgram/internal/repository"
	"github.com/fitgram/internal/startup"
	"github.com/fitgram/internal/storage"
	memorystorage "github.com/fitgram/internal/storage/memory"
	"github.com/fitgram/internal/ws"
	"github.com/fitgram/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory sessions (no external services required)")
	flag.Parse()

	logger.Info("starting messaging API")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	var sessions storage.SessionStore
	if *dev {
		sessions = memorystorage.New()
	} else {
		sessions = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
	}
	defer sessions.Close()

	userRepo := repository.NewUserRepository(pool)
	followRepo := repository.NewFollowRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	reactRepo := repository.NewReactionRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	pushRepo := repository.NewPushRepository(pool)

	vapidKeys, err := push.EnsureVAPIDKeys("")
	if err != nil {
		logger.Errorf("vapid keys: %v (push disabled)", err)
		vapidKeys = nil
	}
	var offline chat.OfflineNotifier
	if sender := push.NewSender(pushRepo, vapidKeys, os.Getenv("PUSH_SUBJECT")); sender != nil {
		offline = sender
	}

	hub := ws.NewHub(cfg.MaxWSConnections, cfg.WSSendBufferSize)
	svc := chat.NewService(pool, userRepo, msgRepo, reactRepo, convRepo,
		followRepo, hub, offline, cfg.DeleteForEveryoneWindow, cfg.OnlineWindow)
	hub.SetService(svc)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	convH := handler.NewConversationHandler(svc)
	msgH := handler.NewMessageHandler(svc)
	userH := handler.NewUserHandler(svc)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)
	pushH := handler.NewPushHandler(pushRepo, vapidKeys)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Skip compression for WebSocket: a wrapped ResponseWriter loses
	// http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/push", pushH.PublicKey)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(sessions))
		r.Get("/api/conversations", convH.List)
		r.Get("/api/conversations/{userID}/messages", msgH.History)
		r.Post("/api/conversations/{userID}/messages", msgH.Send)
		r.Post("/api/conversations/{userID}/read", msgH.MarkRead)
		r.Get("/api/conversations/{userID}/search", msgH.Search)
		r.Post("/api/conversations/{userID}/pin", convH.TogglePin)
		r.Post("/api/conversations/{userID}/mute", convH.ToggleMute)
		r.Post("/api/conversations/{userID}/wallpaper", convH.SetWallpaper)
		r.Post("/api/conversations/{userID}/tone", convH.SetTone)
		r.Post("/api/messages/{messageID}/reaction", msgH.ToggleReaction)
		r.Post("/api/messages/{messageID}/star", msgH.ToggleStar)
		r.Post("/api/messages/{messageID}/delete", msgH.Delete)
		r.Get("/api/users/{id}", userH.GetUser)
		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations dir: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "fitgram"
		password = "fitgram_secret"
		database = "fitgram"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
