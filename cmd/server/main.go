package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/app"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/config"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/handler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect the vector backend and build services
	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Initialize handlers
	chatHandler := handler.NewChatHandler(cfg, a.Templates, a.Assembler, a.Search, a.Builder, a.Summary, a.LLM)
	searchHandler := handler.NewSearchHandler(cfg, a.Assembler, a.Search, a.Builder, a.Summary)
	sourceHandler := handler.NewSourceHandler(a.Primary, a.Secondary)
	settingsHandler := handler.NewSettingsHandler(a.Templates)

	// Build router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Health(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"unhealthy","error":%q}`, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/settings", settingsHandler.Get)

		r.Post("/chat", chatHandler.Handle)
		r.Post("/search", searchHandler.Search)
		r.Post("/fit", searchHandler.Fit)

		r.Get("/sources", sourceHandler.List)
		r.Get("/sources/exists", sourceHandler.Exists)
		r.Put("/sources/upload", sourceHandler.Upload)
	})

	// Serve web UI (static files from /web directory if it exists)
	webDir := os.Getenv("WEB_DIR")
	if webDir == "" {
		webDir = "/web"
	}
	if info, err := os.Stat(webDir); err == nil && info.IsDir() {
		slog.Info("serving web UI", "dir", webDir)
		fs := http.FileServer(http.Dir(webDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				http.ServeFile(w, r, webDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
	} else {
		slog.Info("web UI not available", "dir", webDir, "reason", "directory not found")
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("shutting down server...")

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(cancelCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
