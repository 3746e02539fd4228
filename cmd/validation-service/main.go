// Command validation-service signs tickets and serves the verification key
// over gRPC, with an ops HTTP listener for probes, metrics and the key set.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	appService "github.com/ScalabilityIssues/validation-service/internal/application/service"
	"github.com/ScalabilityIssues/validation-service/internal/config"
	domainService "github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/audit"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/crypto"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/monitoring"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/qrcode"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/ratelimit"
	redisconn "github.com/ScalabilityIssues/validation-service/internal/infrastructure/redis"
	grpcserver "github.com/ScalabilityIssues/validation-service/internal/interfaces/grpc"
	httpserver "github.com/ScalabilityIssues/validation-service/internal/interfaces/http"
	"github.com/ScalabilityIssues/validation-service/internal/interfaces/http/handlers"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

func main() {
	fs := pflag.NewFlagSet(constants.ServiceName, pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	// Logger for startup
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})
	if err != nil {
		log.Fatalf("Failed to create startup logger: %v", err)
	}

	loader := config.NewLoader(startupLogger)
	if err := loader.BindFlags(fs); err != nil {
		log.Fatalf("Failed to bind flags: %v", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	logger.SetGlobalLogger(appLogger)
	loader.WatchLogLevel(appLogger.SetLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal(context.Background(), "Service stopped with error", err)
	}
	appLogger.Info(context.Background(), "Service stopped")
}

func run(ctx context.Context, cfg *config.Config, appLogger logger.Logger) error {
	// Observability
	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			appLogger.Warn(context.Background(), "Tracer shutdown failed", logger.Err(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)
	serviceMetrics := monitoring.NewMetricsAdapter(metrics)

	// Signing key. Without it nothing can be served.
	var vault crypto.VaultClient
	if constants.KeySource(cfg.Keys.Source) == constants.KeySourceVault {
		vault, err = crypto.NewVaultClient(&cfg.Vault, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "Failed to create Vault client", err)
		}
	}
	priv, err := crypto.NewKeyLoader(&cfg.Keys, vault, appLogger).Load(ctx)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to load signing key", err, logger.String("source", cfg.Keys.Source))
	}
	signer, err := crypto.NewSigner(priv)
	if err != nil {
		appLogger.Fatal(ctx, "Invalid signing key", err)
	}
	keys, err := appService.NewKeyPublisher(signer, serviceMetrics, appLogger)
	if err != nil {
		return err
	}

	// Redis is only needed for the shared rate limiter.
	var redisConn *redisconn.RedisConnection
	if cfg.RateLimit.Enabled && constants.RateLimitBackend(cfg.RateLimit.Backend) == constants.RateLimitBackendRedis {
		redisConn = redisconn.NewRedisConnection(&cfg.Redis, appLogger)
		if err := redisConn.Connect(ctx); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisConn.Close()
	}
	rateLimiter, err := ratelimit.NewRateLimitService(cfg, redisConn, appLogger)
	if err != nil {
		return err
	}

	publisher, err := audit.NewPublisher(&cfg.Audit, serviceMetrics, appLogger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Signing pipeline
	mode := constants.ResponseMode(cfg.Signing.ResponseMode)
	canonicalizer, err := domainService.NewCanonicalizer(constants.ClaimsPolicy(cfg.Signing.ClaimsPolicy), cfg.Signing.StrictClaims)
	if err != nil {
		return err
	}
	var encoder domainService.CodeEncoder
	if mode != constants.ResponseModePackage {
		qr, err := qrcode.NewEncoder(cfg.Signing.QRRecoveryLevel)
		if err != nil {
			return err
		}
		encoder = qr
	}
	signing, err := appService.NewSigningAppService(appService.SigningDeps{
		Canonicalizer: canonicalizer,
		Signer:        signer,
		Encoder:       encoder,
		Audit:         publisher,
		Metrics:       serviceMetrics,
		Tracer:        tracing.Tracer(),
		KeyID:         keys.ActiveKey().ID,
	}, mode, appLogger)
	if err != nil {
		return err
	}

	// gRPC
	trustedProxies, err := config.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	chain := grpcserver.NewInterceptorChain(appLogger, grpcserver.InterceptorOptions{
		RateLimitService: rateLimiter,
		Metrics:          serviceMetrics,
		RPCMetrics:       metrics,
		Tracer:           tracing.Tracer(),
		Timeout:          cfg.Server.RequestTimeout,
		TrustedProxies:   trustedProxies,
	})
	grpcSrv := grpcserver.NewServer(&cfg.Server,
		grpcserver.NewValidationGRPCService(signing, keys, mode, appLogger), chain, appLogger)
	grpcLis, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr(), err)
	}

	// Ops HTTP
	var serving atomic.Bool
	var router *httpserver.Router
	var httpLis net.Listener
	if cfg.HTTP.Enabled {
		health := handlers.NewHealthHandler(serving.Load, appLogger)
		if redisConn != nil {
			health.AddCheck("redis", redisConn.Ping)
		}
		router = httpserver.NewRouter(&cfg.HTTP, httpserver.RouterDeps{
			Health:      health,
			Keys:        handlers.NewKeysHandler(keys, serviceMetrics, appLogger),
			Gatherer:    registry,
			HTTPMetrics: metrics,
			Metrics:     serviceMetrics,
			Tracer:      tracing.Tracer(),
			RateLimiter: rateLimiter,
		}, appLogger)
		httpLis, err = net.Listen("tcp", cfg.HTTP.Addr())
		if err != nil {
			grpcLis.Close()
			return fmt.Errorf("listen on %s: %w", cfg.HTTP.Addr(), err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcSrv.Serve(grpcLis) })
	if router != nil {
		g.Go(func() error { return router.Serve(httpLis) })
	}

	grpcSrv.SetServing(true)
	serving.Store(true)
	appLogger.Info(ctx, "Validation service started",
		logger.String("grpc_addr", grpcLis.Addr().String()),
		logger.String("key_id", keys.ActiveKey().ID),
		logger.String("claims_policy", cfg.Signing.ClaimsPolicy),
		logger.String("response_mode", string(mode)),
	)

	g.Go(func() error {
		<-gctx.Done()
		serving.Store(false)
		appLogger.Info(context.Background(), "Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn(shutdownCtx, "gRPC shutdown incomplete", logger.Err(err))
		}
		if router != nil {
			if err := router.Stop(shutdownCtx); err != nil {
				appLogger.Warn(shutdownCtx, "HTTP shutdown incomplete", logger.Err(err))
			}
		}
		return nil
	})

	return g.Wait()
}
