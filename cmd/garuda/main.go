package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/layer-3/garuda/adapters/cache"
	"github.com/layer-3/garuda/adapters/events"
	"github.com/layer-3/garuda/core"
	"github.com/layer-3/garuda/service"
	"github.com/layer-3/garuda/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultMaxExpirySeconds = 86_400

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := core.Config{
		APIURL:                 os.Getenv("API_URL"),
		AddressHRP:             os.Getenv("ADDRESS_HRP"),
		ValidateImpersonateURL: os.Getenv("IMPERSONATE_URL"),
		MaxExpirySeconds:       defaultMaxExpirySeconds,
	}

	if raw := os.Getenv("MAX_EXPIRY_SECONDS"); raw != "" {
		maxExpiry, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid MAX_EXPIRY_SECONDS")
		}
		cfg.MaxExpirySeconds = maxExpiry
	}

	rawOrigins := os.Getenv("ACCEPTED_ORIGINS")
	if rawOrigins == "" {
		logger.Fatal().Msg("ACCEPTED_ORIGINS is required (comma-separated allow-list)")
	}
	for _, origin := range strings.Split(rawOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AcceptedOrigins = append(cfg.AcceptedOrigins, origin)
		}
	}

	deps := service.Config{Logger: &logger}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		// Parse Redis URL and create client
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to parse Redis URL")
		}

		redisClient := redis.NewClient(opts)
		deps.Cache = cache.NewRedis(redisClient)

		// Initialize Watermill Redis publisher
		wmLogger := watermill.NewStdLogger(false, false)
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create Redis publisher")
		}
		deps.Events = events.NewWatermillPublisher(publisher)
	} else {
		memory, err := cache.NewMemory()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create in-memory cache")
		}
		deps.Cache = memory
	}

	validator, err := service.NewValidator(cfg, deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create validator")
	}

	// Setup Gin router
	router := http.SetupRouter(validator)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":9000"
	}

	logger.Info().Str("addr", addr).Msg("starting server")

	if err := router.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
