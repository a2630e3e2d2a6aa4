package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"novelhub/internal/auth"
	"novelhub/internal/chapter"
	"novelhub/internal/convert"
	"novelhub/internal/images"
	"novelhub/internal/markup"
	"novelhub/internal/notify"
	"novelhub/internal/upload"
	"novelhub/internal/work"
	"novelhub/pkg/database"
	"novelhub/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	contentCfg := utils.LoadContentConfig()

	typography := markup.Config{
		FontFamily: contentCfg.FontFamily,
		FontSize:   contentCfg.FontSize,
	}
	formatter := markup.NewFormatter(typography)
	converter := convert.New(convert.Config{Typography: typography, Logger: logger})
	extractor := images.New(images.Config{
		Dir:       contentCfg.ImageDir,
		URLPrefix: contentCfg.ImageURLPrefix,
		Logger:    logger,
	})

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// chapter event stream
	hub := notify.NewHub()
	router.GET("/ws", notify.WSHandler(hub))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": hub.Count(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_clients": hub.Count(),
		})
	})

	// stored media and externalized content images
	router.Static(contentCfg.ImageURLPrefix, contentCfg.ImageDir)
	router.Static("/media", contentCfg.MediaDir)

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Catalog (public reads)
	workRepo := work.NewRepo(db)
	workHandler := work.NewHandler(workRepo)
	worksGroup := router.Group("/works")
	workHandler.RegisterRoutes(worksGroup)

	chapterRepo := chapter.NewRepo(db, formatter, logger)
	chapterHandler := chapter.NewHandler(chapterRepo, extractor, hub)
	chaptersGroup := router.Group("/chapters")
	chapterHandler.RegisterRoutes(worksGroup, chaptersGroup)

	// Author-only writes
	authorWorks := router.Group("/works", auth.AuthMiddleware(tokenSvc), auth.RequireAuthor())
	authorChapters := router.Group("/chapters", auth.AuthMiddleware(tokenSvc), auth.RequireAuthor())
	workHandler.RegisterAuthorRoutes(authorWorks)
	chapterHandler.RegisterAuthorRoutes(authorWorks, authorChapters)

	uploadHandler := upload.NewHandler(converter, extractor, formatter, contentCfg, logger)
	uploadHandler.RegisterRoutes(router.Group("/upload", auth.AuthMiddleware(tokenSvc), auth.RequireAuthor()))

	httpSrv := &http.Server{
		Addr:    ":8080",
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("HTTP API server listening on :8080")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	log.Println("server stopped")
}
