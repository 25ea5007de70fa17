package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wander-stories-backend/config"
	"wander-stories-backend/controllers/authentication"
	"wander-stories-backend/controllers/httpCors"
	"wander-stories-backend/controllers/posts"
	"wander-stories-backend/controllers/ratelimit"
	"wander-stories-backend/models/post"
	"wander-stories-backend/models/users"
	"wander-stories-backend/services/blobstore"
	"wander-stories-backend/services/feed"
	"wander-stories-backend/services/imaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := config.InitDB(cfg); err != nil {
		log.Fatalf("database init: %v", err)
	}
	config.InitSessions(cfg)
	authentication.InitGoogleOauth(cfg)

	if err := config.DB.AutoMigrate(&users.User{}, &post.Post{}); err != nil {
		log.Fatalf("database migration: %v", err)
	}

	sqlDB, err := config.DB.DB()
	if err != nil {
		log.Fatalf("database handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("database ping: %v", err)
	}
	log.Println("database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var verifier authentication.Verifier
	switch cfg.AuthProvider {
	case "google":
		verifier = authentication.GoogleVerifier{}
	default:
		verifier = authentication.JWTVerifier{Secret: []byte(cfg.JWTSecret)}
	}

	var store blobstore.Store
	switch cfg.StorageBackend {
	case "drive":
		store, err = blobstore.NewDriveStore(ctx, os.Getenv("DRIVE_JSON"), cfg.DriveFolderID)
	default:
		store, err = blobstore.NewS3Store(cfg.StorageBucket, cfg.S3Region)
	}
	if err != nil {
		log.Fatalf("blob storage init: %v", err)
	}
	uploader := blobstore.NewUploader(store, cfg.MaxUploadBytes)

	repo := post.NewRepository(config.DB)

	loader := func(ctx context.Context, n int) ([]post.Post, error) {
		return repo.Recent(ctx, n)
	}
	var hub *feed.Hub
	if cfg.FeedMode == "poll" {
		hub = feed.NewPollHub(loader, cfg.FeedSize, cfg.FeedPollInterval)
	} else {
		hub = feed.NewPushHub(loader, cfg.FeedSize)
	}
	go hub.Run(ctx)

	handler := posts.NewHandler(repo, verifier, uploader, hub, imaging.Options{
		MaxWidth:  cfg.MaxImageWidth,
		Quality:   cfg.JPEGQuality,
		Threshold: cfg.NormalizeThreshold,
	})

	writeLimiter := ratelimit.NewLimiter(30, time.Minute)
	defer writeLimiter.Stop()
	jwtSecret := []byte(cfg.JWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/api/register", writeLimiter.Wrap(func(w http.ResponseWriter, r *http.Request) {
		authentication.Register(w, r, jwtSecret)
	}))
	mux.HandleFunc("/api/login", writeLimiter.Wrap(func(w http.ResponseWriter, r *http.Request) {
		authentication.Login(w, r, jwtSecret)
	}))
	mux.HandleFunc("/login/google", authentication.HandleGoogleLogin)
	mux.HandleFunc("/callback/google", func(w http.ResponseWriter, r *http.Request) {
		authentication.HandleGoogleCallback(w, r, jwtSecret)
	})

	// Only writes count against the quota; the public feed read on the
	// same route stays unthrottled.
	mux.HandleFunc("/api/posts", writeLimiter.WrapMethods(
		maxBytes(cfg.MaxUploadBytes+1<<20, handler.Posts),
		http.MethodPost, http.MethodDelete,
	))
	mux.HandleFunc("/api/posts/like", writeLimiter.Wrap(handler.Like))
	mux.HandleFunc("/api/posts/flag", writeLimiter.Wrap(handler.Flag))
	mux.HandleFunc("/api/feed/stream", handler.Stream)

	root := httpCors.CorsSettings(cfg.CORSOrigins).Handler(
		httpCors.RejectDisallowed(cfg.CORSOrigins, mux))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: the SSE feed stream is long-lived.
	}

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// maxBytes caps the request body before the handler runs, so an
// oversized upload fails at the transport boundary.
func maxBytes(limit int64, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next(w, r)
	}
}
