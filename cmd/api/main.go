package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/http/handlers"
	httpapi "github.com/HMiranda00/kine-ai-anim-helper/internal/http/httpapi"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra/geoip"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/middleware"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var lookup middleware.CountryLookup
	if fn := resolver.Lookup(); fn != nil {
		lookup = fn
	}

	client := replicate.NewClient(replicate.Options{
		BaseURL: cfg.ReplicateBaseURL,
		Logger:  &logger,
	})
	runner, err := jobs.NewRunner(jobs.Options{
		Provider:     client,
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.JobTimeout,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build job runner")
	}

	app := handlers.NewApp(client, runner, &logger, cfg.MaxUploadBytes)
	router := httpapi.NewRouter(app, httpapi.Options{
		Config:        *cfg,
		Logger:        logger,
		CountryLookup: lookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Bool("server_token", cfg.HasServerToken()).
			Dur("poll_interval", cfg.PollInterval).
			Dur("job_timeout", cfg.JobTimeout).
			Msg("relay listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
