package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/auth"
	"github.com/PaulBabatuyi/coova/internal/booking"
	"github.com/PaulBabatuyi/coova/internal/chat"
	"github.com/PaulBabatuyi/coova/internal/config"
	"github.com/PaulBabatuyi/coova/internal/events"
	"github.com/PaulBabatuyi/coova/internal/httpapi"
	"github.com/PaulBabatuyi/coova/internal/listing"
	"github.com/PaulBabatuyi/coova/internal/logging"
	"github.com/PaulBabatuyi/coova/internal/middleware"
	"github.com/PaulBabatuyi/coova/internal/obs"
)

// tokenTTL is the lifetime of tokens minted by the service itself (tooling).
const tokenTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exit")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.Config{
		Endpoint:    cfg.OTel.Endpoint,
		ServiceName: cfg.OTel.ServiceName,
		Env:         cfg.OTel.Env,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = be.close(context.Background()) }()

	// Booking events go to the realtime hub and, when configured, the broker.
	hub := NewConnectionHub(logger)
	fanout := events.Fanout{hub}
	if cfg.Rabbit.URL != "" {
		pub, err := events.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.BookingExchange)
		if err != nil {
			return fmt.Errorf("booking publisher: %w", err)
		}
		defer func() { _ = pub.Close() }()
		fanout = append(fanout, pub)
	}

	policy := booking.Policy{
		MinDuration: cfg.Booking.MinDuration,
		MaxDuration: cfg.Booking.MaxDuration,
		AllowPast:   cfg.Booking.AllowPast,
	}
	bookings := booking.NewController(be.resources, be.bookings, policy, logger, booking.WithPublisher(fanout))
	chatSvc := chat.NewService(be.chat, logger, chat.WithNotifier(hub))
	listings := listing.NewService(be.resources, logger)

	jwtMgr, err := newJWTManager(cfg)
	if err != nil {
		return err
	}

	// Per-user limits on booking requests and message sends; a small burst
	// allows a couple of quick retries.
	limiterStore := middleware.NewLimiterStore(cfg.RateLimit.RPM, cfg.RateLimit.Burst, time.Minute)
	defer limiterStore.Stop()
	limited := map[string]bool{
		v1.RequestBookingMethod: true,
		v1.SendMessageMethod:    true,
	}

	var serverOpts []grpc.ServerOption
	if cfg.TLS.Cert != "" && cfg.TLS.Key != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			return fmt.Errorf("load TLS certs: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	// auth -> rate limiter -> error mapping
	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(
			authUnaryInterceptor(jwtMgr),
			middleware.RateLimitUnaryInterceptor(limiterStore, limited),
			errorsUnaryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			authStreamInterceptor(jwtMgr),
			errorsStreamInterceptor(logger),
		),
	)

	grpcServer := grpc.NewServer(serverOpts...)
	srv := newServer(bookings, chatSvc, listings, hub, logger)
	registerService(grpcServer, srv)

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Config{
			Service:       srv,
			Payments:      bookings,
			JWT:           jwtMgr,
			Limiter:       limiterStore,
			PaymentSecret: cfg.PaymentWebhookSecret,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenAddr := fmt.Sprintf(":%s", cfg.Port)
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", listenAddr).Info("gRPC server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP gateway listening")
		var err error
		if cfg.TLS.Cert != "" && cfg.TLS.Key != "" {
			err = httpServer.ListenAndServeTLS(cfg.TLS.Cert, cfg.TLS.Key)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	if cfg.Rabbit.URL != "" {
		consumer, err := events.NewConsumer(cfg.Rabbit.URL, cfg.Rabbit.PaymentExchange, cfg.Rabbit.PaymentQueue, []string{events.RKPaymentPaid})
		if err != nil {
			return fmt.Errorf("payment consumer: %w", err)
		}
		defer func() { _ = consumer.Close() }()
		g.Go(func() error {
			logger.WithField("queue", cfg.Rabbit.PaymentQueue).Info("payment consumer started")
			return events.NewPaymentConsumer(bookings, consumer, logger).Run(gctx)
		})
	}

	// Graceful shutdown on SIGINT/SIGTERM or when any component fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(sctx)

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-sctx.Done():
			// Subscribe streams only end when clients leave
			grpcServer.Stop()
		}
		return err
	})

	return g.Wait()
}

// newJWTManager builds the token verifier. JWT_KEYS enables rotation;
// otherwise the single JWT_SECRET is used.
func newJWTManager(cfg *config.Config) (*auth.JWTManager, error) {
	keys, err := cfg.JWTKeyMap()
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		return auth.NewJWTManagerFromKeys(keys, cfg.JWT.ActiveKid, tokenTTL), nil
	}
	return auth.NewJWTManager(cfg.JWT.Secret, tokenTTL), nil
}
