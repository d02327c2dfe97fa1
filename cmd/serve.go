package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Vovarama1992/webchat-skin/internal/ai"
	"github.com/Vovarama1992/webchat-skin/internal/config"
	"github.com/Vovarama1992/webchat-skin/internal/nuance"
	"github.com/Vovarama1992/webchat-skin/internal/session"
	"github.com/Vovarama1992/webchat-skin/internal/telemetry"
	"github.com/Vovarama1992/webchat-skin/internal/transcript"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, nil, logger)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	// --- Store ---
	repo, closeRepo, err := transcript.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer closeRepo()

	// --- Vendor ---
	connect, err := newConnector(cfg, logger)
	if err != nil {
		return err
	}

	// --- Sessions ---
	hub := session.NewHub(logger)
	mgr := session.NewManager(connect, repo, hub, session.Options{
		RevealDelay:     cfg.Transcript.RevealDelay,
		TypingThreshold: cfg.Chat.TypingThreshold,
		SoundOn:         cfg.Chat.SoundOn,
	}, logger)
	defer mgr.Shutdown()

	// --- Router ---
	origins := cfg.Server.Origins()
	r := chi.NewRouter()
	r.Use(session.RequestIDMiddleware)
	r.Use(session.AccessLog(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}))

	session.RegisterRoutes(r, session.NewHandler(mgr, hub, origins, logger))

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	var handler http.Handler = r
	if cfg.Telemetry.Enabled {
		handler = otelhttp.NewHandler(r, "webchat")
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Str("backend", cfg.Vendor.Backend).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func newConnector(cfg *config.Config, logger zerolog.Logger) (session.ConnectFunc, error) {
	switch cfg.Vendor.Backend {
	case config.BackendNuance:
		ncfg := nuance.Config{
			URL:         cfg.Vendor.URL,
			HistoryURL:  cfg.Vendor.HistoryURL,
			Token:       cfg.Vendor.Token,
			DialTimeout: cfg.Vendor.DialTimeout,
		}
		return func(ctx context.Context, sessionID string) (session.Backend, error) {
			c, err := nuance.Dial(ctx, ncfg, sessionID, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		}, nil

	case config.BackendAssistant:
		model, err := ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return func(context.Context, string) (session.Backend, error) {
			return ai.NewAssistant(model, logger), nil
		}, nil
	}
	return nil, errors.Errorf("unknown vendor.backend %q", cfg.Vendor.Backend)
}
