package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/manxbiltong/checkout/internal/config"
	h "github.com/manxbiltong/checkout/internal/http"
	"github.com/manxbiltong/checkout/internal/logger"
	"github.com/manxbiltong/checkout/internal/notify"
	"github.com/manxbiltong/checkout/internal/payment"
	"github.com/manxbiltong/checkout/internal/publisher"
	"github.com/manxbiltong/checkout/internal/ratelimit"
	"github.com/manxbiltong/checkout/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			app, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, app.server, cfg.ShutdownTimeout, log)
		},
	}
}

type app struct {
	server  *http.Server
	closers []func() error
	log     *zap.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("failed to close resource", zap.Error(err))
		}
	}
}

// newApp wires the payment client, optional side effects and the HTTP router.
func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{log: log}

	sessions, err := payment.NewStripeSessions(payment.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		APIURL:    cfg.StripeAPIURL,
		Timeout:   cfg.PaymentTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("payment client: %w", err)
	}

	var events service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := publisher.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		a.closers = append(a.closers, kp.Close)
		events = kp
		log.Info("publishing checkout events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	var notifier service.Notifier
	if cfg.SendGridAPIKey != "" {
		sg, err := notify.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.SenderEmail, cfg.Storefront.AdminEmail)
		if err != nil {
			return nil, fmt.Errorf("notifier: %w", err)
		}
		notifier = sg
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		a.closers = append(a.closers, client.Close)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis ping failed, rate limiting will fail open", zap.Error(err))
		}
		cancel()
		limiter = ratelimit.NewRedisLimiter(client, "ratelimit:checkout", cfg.RateLimitPerMinute, time.Minute)
	}

	sf := cfg.Storefront
	checkoutService := service.NewCheckoutService(sf.Policy, service.Options{
		SuccessURL:             sf.SuccessURL,
		CancelURL:              sf.CancelURL,
		AllowedShippingCountry: sf.AllowedShippingCountry,
		AdminEmail:             sf.AdminEmail,
	}, sessions, events, notifier, log)
	// closers run in reverse, so pending side effects drain before the writer closes
	a.closers = append(a.closers, func() error {
		checkoutService.Wait()
		return nil
	})

	checkoutHandler := h.NewCheckoutHandler(checkoutService, sf.Policy, cfg.RequestTimeout, cfg.MaxRequestBodySize, log)
	router := h.NewRouter(checkoutHandler, h.RouterConfig{
		AllowedOrigin:  cfg.AllowedOrigin,
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		Log:            log,
	})

	a.server = &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("checkout API starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-errCh

	log.Info("server exited")
	return nil
}
