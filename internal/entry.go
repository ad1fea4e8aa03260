// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/assist"
	"github.com/starford/quill/internal/autosave"
	"github.com/starford/quill/internal/chatservice"
	"github.com/starford/quill/internal/chatstore"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/llm"
	"github.com/starford/quill/internal/mcpserver"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize storage (the directories are created if missing).
	noteFiles, err := storage.NewFS(cfg.Storage.NotesDir())
	if err != nil {
		return fmt.Errorf("init note storage: %w", err)
	}
	chatFiles, err := storage.NewFS(cfg.Storage.ChatsDir())
	if err != nil {
		return fmt.Errorf("init chat storage: %w", err)
	}

	// One-time migration: split embedded chat histories out of old note
	// documents into the chat directory.
	if err := chatstore.Migrate(noteFiles, chatFiles, logger); err != nil {
		logger.Warn("chat history migration failed", slog.String("error", err.Error()))
	}

	notes := notestore.New(noteFiles, logger)
	chats := chatstore.New(chatFiles, notes, logger)

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, noteFiles, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Debounced editor autosave. Flushes land on disk where the watcher
	// sees them; the flushed event tells clients their draft is durable.
	saver := autosave.New(notes, cfg.Autosave.Interval(), logger)
	saver.OnFlush(func(noteID string) {
		broker.PublishNoteEvent(sse.KindFlushed, noteID)
	})

	// AI services.
	provider := llm.NewOpenAI(cfg.Openai.Model)
	chatSvc := chatservice.New(provider, chats, logger)
	assistSvc := assist.New(provider, assist.Config{
		Model:          cfg.Openai.Model,
		ContextRadius:  cfg.Openai.ImproveContext,
		ApplyMinLength: cfg.Openai.ApplyMinLength,
		ApplyMinRatio:  cfg.Openai.ApplyMinRatio,
	}, logger)

	apiRouter := api.NewRouter(api.Deps{
		Notes:  notes,
		Chats:  chats,
		Saver:  saver,
		Chat:   chatSvc,
		Assist: assistSvc,
		Index:  db,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		index.Watch(gCtx, db, noteFiles, noteFiles.Root(), logger, func(kind, id string) {
			broker.PublishNoteEvent(kind, id)
		})
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Pending editor drafts must hit disk before we exit.
		if err := saver.Close(shutdownCtx); err != nil {
			logger.Error("final draft flush failed", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP stdio server against the same data directory the
// HTTP server uses. The caller owns process lifetime; ServeStdio returns
// when stdin closes.
func RunMCP(cfg *Config) error {
	noteFiles, err := storage.NewFS(cfg.Storage.NotesDir())
	if err != nil {
		return fmt.Errorf("init note storage: %w", err)
	}
	chatFiles, err := storage.NewFS(cfg.Storage.ChatsDir())
	if err != nil {
		return fmt.Errorf("init chat storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Stdio is the MCP transport; logs must stay off stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	if err := index.Sync(db, noteFiles, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	notes := notestore.New(noteFiles, logger)
	chats := chatstore.New(chatFiles, notes, logger)

	return mcpserver.New(notes, chats, db).ServeStdio()
}
