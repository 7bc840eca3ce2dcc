package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/querydesk/backend/internal/ai"
	"github.com/querydesk/backend/internal/archive"
	"github.com/querydesk/backend/internal/classifier"
	"github.com/querydesk/backend/internal/config"
	"github.com/querydesk/backend/internal/db"
	httpapi "github.com/querydesk/backend/internal/http"
	"github.com/querydesk/backend/internal/limiter"
	"github.com/querydesk/backend/internal/mail"
	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "querydesk").Logger()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	providers, err := ai.NewProviders(ctx, ai.ProviderConfig{
		Provider:      cfg.AIProvider,
		OpenAIKey:     cfg.OpenAIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiKey:     cfg.GeminiKey,
		GeminiModel:   cfg.GeminiModel,
		MaxTokens:     cfg.AIMaxTokens,
	}, logger.With().Str("component", "ai").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure ai provider")
	}
	defer func() { _ = providers.Close() }()

	retry := classifier.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.ClassifierMaxAttempts
	retry.Backoff = classifier.LinearBackoff(cfg.ClassifierBackoff)
	clf := classifier.New(providers.Classify,
		classifier.WithRetryPolicy(retry),
		classifier.WithCache(cfg.ClassifierCacheTTL, 10_000),
		classifier.WithLogger(logger.With().Str("component", "classifier").Logger()),
	)

	policy, err := enrichPolicy(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid enrichment policy")
	}
	pipelineLogger := logger.With().Str("component", "pipeline").Logger()
	pipeline := &service.Pipeline{
		Queries:    store,
		Classifier: clf,
		Selector:   &service.Selector{Agents: store, Logger: pipelineLogger},
		Policy:     policy,
		Logger:     pipelineLogger,
	}
	enricher := service.NewEnricher(pipeline, cfg.EnrichWorkers, cfg.AITimeout*2, logger)
	if err := enricher.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start enricher")
	}
	pipeline.Dispatcher = enricher

	deps := httpapi.Deps{
		Store:     store,
		Pipeline:  pipeline,
		Assistant: ai.Assistant{Completer: providers.Reply, Timeout: cfg.AITimeout, Logger: logger},
	}
	if cfg.RedisURL != "" {
		rdb, err := limiter.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, rate limiting disabled")
		} else {
			defer func() { _ = rdb.Close() }()
			deps.Limiter = limiter.NewFixedWindow(rdb, cfg.RateLimit, cfg.RateWindow)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           http.TimeoutHandler(httpapi.Router(cfg, deps, logger), cfg.RequestTimeout, `{"error":{"code":"TIMEOUT","message":"request timed out"}}`),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if cerr := enricher.Close(shutdownCtx); cerr != nil {
			logger.Warn().Err(cerr).Msg("enricher did not drain")
		}
		return err
	})

	if cfg.IMAPEnabled() {
		reader := newMailReader(ctx, cfg, pipeline, logger)
		g.Go(func() error {
			// Mail failures stop ingestion from the mailbox but never the HTTP server.
			if err := reader.Run(gctx); err != nil {
				logger.Error().Err(err).Msg("mail reader stopped, email ingestion disabled until restart")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

func enrichPolicy(cfg config.Config) (service.Policy, error) {
	policy := service.Policy{}
	for src, raw := range map[models.Source]string{
		models.SourceEmail:    cfg.EnrichModeEmail,
		models.SourceWhatsApp: cfg.EnrichModeWhatsApp,
		models.SourceManual:   cfg.EnrichModeManual,
	} {
		mode, err := service.ParseMode(raw)
		if err != nil {
			return nil, err
		}
		policy[src] = mode
	}
	return policy, nil
}

func newMailReader(ctx context.Context, cfg config.Config, pipeline *service.Pipeline, logger zerolog.Logger) *mail.Reader {
	var archiver mail.Archiver
	if cfg.ArchiveBucket != "" {
		a, err := archive.NewS3Archive(ctx, archive.Config{
			Bucket:    cfg.ArchiveBucket,
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("mail archive disabled")
		} else {
			archiver = a
		}
	}
	return mail.NewReader(mail.Config{
		Addr:     net.JoinHostPort(cfg.IMAPHost, strconv.Itoa(cfg.IMAPPort)),
		Username: cfg.IMAPUser,
		Password: cfg.IMAPPassword,
		Mailbox:  cfg.IMAPMailbox,
		TLS:      cfg.IMAPTLS,
	}, pipeline, archiver, logger)
}
