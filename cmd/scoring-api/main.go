package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"credit-scoring/internal/cfg"
	"credit-scoring/internal/common"
	"credit-scoring/internal/metrics"
	"credit-scoring/internal/ml"
	"credit-scoring/internal/registry"
	"credit-scoring/internal/scoring"
	"credit-scoring/internal/server"
	"credit-scoring/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file; real environment variables win")
	flag.Parse()

	loadEnvFile(*envFile)

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	log.Info().
		Str("model_uri", c.ModelURI).
		Str("tracking_uri", c.TrackingURI).
		Str("git_commit", c.GitCommit).
		Int("port", c.Port).
		Msg("configuration loaded")

	// Metrics live on a dedicated registry served by /metrics
	reg := metrics.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	mw := metrics.NewWrapper(m)
	m.SetModelInfo(c.ModelURI, c.GitCommit)

	client := registry.NewClient(registry.ClientOptions{
		TrackingURI: c.TrackingURI,
		Token:       c.TrackingToken,
		Username:    c.TrackingUsername,
		Password:    c.TrackingPassword,
		Timeout:     c.ModelLoadTimeout,
	})

	model := loadModel(c, client)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}
	feed := server.NewFeed(c.FeedBufferSize, mw)

	sinks := []scoring.DecisionSink{feed}
	var decisions server.DecisionLog
	if store != nil {
		sinks = append(sinks, store)
		decisions = store
	}

	svc, err := scoring.NewService(scoring.Config{
		ModelURI:  c.ModelURI,
		Model:     model,
		Threshold: common.DecisionThreshold,
		NFeatures: common.ExpectedFeatures,
		GitCommit: c.GitCommit,
		Versions:  registry.NewVersionResolver(client, c.RegistryTimeout, mw),
		Recorder:  mw,
		Sinks:     sinks,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("scoring service init failed")
	}

	srv, err := server.New(server.Options{
		Port:      c.Port,
		Service:   svc,
		Gatherer:  reg,
		Recorder:  mw,
		Feed:      feed,
		Decisions: decisions,

		WriteTimeout:   c.WriteTimeout,
		PredictTimeout: c.PredictTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("server init failed")
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	waitForShutdown(c, srv, serveErr)
}

// loadEnvFile applies a dotenv file without overriding the real environment.
func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read env file")
		}
		return
	}
	log.Debug().Str("path", path).Msg("env file loaded")
}

func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = log.With().Str("service", "scoring-api").Logger()
}

// loadModel loads the model once before serving. Any failure is fatal.
func loadModel(c cfg.Settings, source ml.ArtifactSource) ml.Predictor {
	ctx, cancel := context.WithTimeout(context.Background(), c.ModelLoadTimeout)
	defer cancel()

	model, err := ml.NewLoader(source, common.ExpectedFeatures, c.PredictTimeout).Load(ctx, c.ModelURI)
	if err != nil {
		log.Fatal().Err(err).Str("model_uri", c.ModelURI).Msg("model load failed")
	}
	return model
}

// initializeStorage opens the decision log if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("decision log initialization failed, continuing without persistence")
		return nil
	}
	log.Info().Str("path", c.DataPath).Msg("decision log enabled")
	return store
}

func waitForShutdown(c cfg.Settings, srv *server.Server, serveErr <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
}
