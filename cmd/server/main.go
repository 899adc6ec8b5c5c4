package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	chatwebui "github.com/queryhub/chat-web-ui"
	"github.com/queryhub/chat-web-ui/internal/handlers"
	"github.com/queryhub/chat-web-ui/internal/services"
	"github.com/queryhub/chat-web-ui/internal/session"
	"github.com/queryhub/chat-web-ui/internal/stream"
)

const errLoggerKey = "err"

func main() {
	// A missing .env file is fine; the environment and the config file still apply.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal(fmt.Errorf("error loading .env file: %w", err))
	}

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "chatwebui")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfg, err := loadConfig(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	api, err := services.NewAPIClient(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	if err != nil {
		log.Fatal(err)
	}

	sessions, closeSessions, err := cfg.Session.store(cfgPath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening session store: %w", err))
	}

	assembler := stream.NewAssembler(cfg.Stream.ChunkSize, cfg.Stream.CarryPartialMarkers)

	m, err := handlers.NewMain(api, sessions, assembler, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(chatwebui.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	protected := session.Protected(sessions)
	noAuth := session.NoAuth(sessions)

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.Handle("/login", noAuth.WrapFunc(m.HandleLogin))
	mux.Handle("/signup", noAuth.WrapFunc(m.HandleSignup))
	mux.Handle("/{$}", protected.WrapFunc(m.HandleHome))
	mux.Handle("/chats", protected.WrapFunc(m.HandleCreateChat))
	mux.Handle("/messages", protected.WrapFunc(m.HandleMessages))
	mux.Handle("GET /message", protected.WrapFunc(m.HandleMessage))
	mux.Handle("/logout", protected.WrapFunc(m.HandleLogout))
	mux.Handle("GET /sse", protected.WrapFunc(m.HandleSSE))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.LogRequests(logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String(errLoggerKey, err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("api", cfg.APIBaseURL))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String(errLoggerKey, err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String(errLoggerKey, err.Error()))
			}
		}
	}

	if err := closeSessions(); err != nil {
		logger.Error("Failed to close session store", slog.String(errLoggerKey, err.Error()))
	}
}
