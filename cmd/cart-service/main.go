package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/fjod/go_cart/storefront-cart/internal/cache"
	"github.com/fjod/go_cart/storefront-cart/internal/config"
	"github.com/fjod/go_cart/storefront-cart/internal/guestcart"
	h "github.com/fjod/go_cart/storefront-cart/internal/http"
	"github.com/fjod/go_cart/storefront-cart/internal/logger"
	"github.com/fjod/go_cart/storefront-cart/internal/poller"
	"github.com/fjod/go_cart/storefront-cart/internal/repository"
	s "github.com/fjod/go_cart/storefront-cart/internal/service"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	repo := repository.NewMongoRepository(mongoDB)
	if ic, ok := repo.(repository.IndexCreator); ok {
		if err := ic.CreateIndexes(ctx); err != nil {
			log.Fatal("failed to create indexes", zap.Error(err))
		}
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.MongoDBName))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	guests := guestcart.NewRedisStore(redisClient, cfg.GuestCartTTL)
	service := s.NewCartService(repo, c.NewRedisCache(redisClient), guests, log)

	router := h.NewRouter(
		h.RouterConfig{RequestTimeout: cfg.RequestTimeout, AllowedOrigins: cfg.CORSAllowedOrigins},
		h.NewCartHandler(service, cfg.RequestTimeout, cfg.MaxRequestBodySize, log),
		h.NewGuestHandler(guests, cfg.RequestTimeout, cfg.MaxRequestBodySize, log),
		log,
	)

	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	var checkout *poller.Poller
	if len(cfg.KafkaBrokers) > 0 {
		checkout = poller.NewPoller(service, log, cfg.KafkaTopic, cfg.KafkaBrokers...)
		go checkout.Run(pollCtx)
		log.Info("checkout consumer started", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("cart service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down cart service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	stopPolling()
	if checkout != nil {
		checkout.Close()
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Warn("mongo disconnect failed", zap.Error(err))
	}
	log.Info("cart service stopped")
}
