package grpc

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// RPCMetrics records per-method request counts and latency.
type RPCMetrics interface {
	RecordGRPCRequest(method, code string, duration time.Duration)
}

// InterceptorChain builds the unary interceptors of the server.
type InterceptorChain struct {
	log              logger.Logger
	rateLimitService service.RateLimitService
	metrics          service.Metrics
	rpcMetrics       RPCMetrics
	tracer           trace.Tracer
	timeout          time.Duration
	trustedProxies   []netip.Prefix
}

// InterceptorOptions holds the optional collaborators of the chain. Nil
// fields disable the corresponding interceptor.
type InterceptorOptions struct {
	RateLimitService service.RateLimitService
	Metrics          service.Metrics
	RPCMetrics       RPCMetrics
	Tracer           trace.Tracer
	// Timeout bounds every call. Zero means no server side deadline.
	Timeout time.Duration
	// TrustedProxies are the peers allowed to report the client address in
	// x-forwarded-for. Other peers are their own client address.
	TrustedProxies []netip.Prefix
}

// NewInterceptorChain creates an interceptor chain.
func NewInterceptorChain(log logger.Logger, opts InterceptorOptions) *InterceptorChain {
	if opts.Metrics == nil {
		opts.Metrics = service.NewNoopMetrics()
	}
	return &InterceptorChain{
		log:              log.WithComponent("grpc"),
		rateLimitService: opts.RateLimitService,
		metrics:          opts.Metrics,
		rpcMetrics:       opts.RPCMetrics,
		tracer:           opts.Tracer,
		timeout:          opts.Timeout,
		trustedProxies:   opts.TrustedProxies,
	}
}

// UnaryRecoveryInterceptor turns a handler panic into an Internal status.
func (ic *InterceptorChain) UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				ic.log.Error(ctx, "gRPC handler panic recovered", fmt.Errorf("%v", r),
					logger.String("method", info.FullMethod),
				)
				err = status.Error(grpcCodes.Internal, internalMessage)
			}
		}()

		return handler(ctx, req)
	}
}

// UnaryRequestContextInterceptor stores the request id and client address in
// the context and echoes the request id back in the response header.
func (ic *InterceptorChain) UnaryRequestContextInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)

		requestID := first(md, constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
		ctx = context.WithValue(ctx, constants.ContextKeyClientIP, ic.clientIP(ctx, md))
		_ = grpc.SetHeader(ctx, metadata.Pairs(constants.HeaderRequestID, requestID))

		return handler(ctx, req)
	}
}

// UnaryTracingInterceptor starts a server span per call, continuing a trace
// propagated in the incoming metadata.
func (ic *InterceptorChain) UnaryTracingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if ic.tracer == nil {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))

		ctx, span := ic.tracer.Start(ctx, strings.TrimPrefix(info.FullMethod, "/"),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("rpc.system", "grpc"),
				attribute.String("rpc.method", info.FullMethod),
			),
		)
		defer span.End()

		resp, err := handler(ctx, req)
		code := status.Code(err)
		span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, code.String())
		}
		return resp, err
	}
}

// UnaryLoggingInterceptor logs every request and its outcome.
func (ic *InterceptorChain) UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()

		md, _ := metadata.FromIncomingContext(ctx)
		ic.log.Info(ctx, "gRPC request received",
			logger.String("method", info.FullMethod),
			logger.String("user_agent", first(md, "user-agent")),
		)

		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		fields := []logger.Field{
			logger.String("method", info.FullMethod),
			logger.Int64("duration_ms", time.Since(startTime).Milliseconds()),
			logger.String("status", st.Code().String()),
		}
		if err != nil {
			fields = append(fields, logger.String("error", st.Message()))
		}
		ic.log.Info(ctx, "gRPC request completed", fields...)

		return resp, err
	}
}

// UnaryMetricsInterceptor records request count and latency per method.
func (ic *InterceptorChain) UnaryMetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if ic.rpcMetrics == nil {
			return handler(ctx, req)
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		ic.rpcMetrics.RecordGRPCRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// UnaryErrorInterceptor converts application errors into gRPC statuses.
func (ic *InterceptorChain) UnaryErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		st := ToStatus(err)
		if _, ok := errors.AsAppError(err); !ok && status.Code(st) == grpcCodes.Internal {
			ic.log.Error(ctx, "Unclassified handler error", err, logger.String("method", info.FullMethod))
		}
		return nil, st
	}
}

// UnaryTimeoutInterceptor bounds each call by the configured timeout.
func (ic *InterceptorChain) UnaryTimeoutInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if ic.timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, ic.timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// UnaryRateLimitInterceptor rejects callers that exceed their request budget.
func (ic *InterceptorChain) UnaryRateLimitInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if ic.rateLimitService == nil {
			return handler(ctx, req)
		}

		dimension := service.RateLimitDimensionIP
		identifier, _ := ctx.Value(constants.ContextKeyClientIP).(string)
		if identifier == "" {
			dimension = service.RateLimitDimensionGlobal
			identifier = "global"
		}

		allowed, remaining, resetAt, err := ic.rateLimitService.Allow(ctx, dimension, identifier)
		if err != nil {
			ic.log.Error(ctx, "rate limit check failed", err,
				logger.String("identifier", identifier),
				logger.String("method", info.FullMethod),
			)
			// fail open
			return handler(ctx, req)
		}

		if !allowed {
			ic.metrics.RecordRateLimitHit(ic.rateLimitService.Backend())
			ic.log.Warn(ctx, "rate limit exceeded",
				logger.String("identifier", identifier),
				logger.String("method", info.FullMethod),
			)
			retryAfter := int(time.Until(resetAt).Seconds()) + 1
			_ = grpc.SetHeader(ctx, metadata.Pairs("retry-after", strconv.Itoa(retryAfter)))
			return nil, errors.ErrRateLimited("rate limit exceeded").WithMetadata("remaining", remaining)
		}

		return handler(ctx, req)
	}
}

// ChainUnaryInterceptors chains all interceptors, outermost first.
func (ic *InterceptorChain) ChainUnaryInterceptors() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(ic.Interceptors()...)
}

// Interceptors returns the chain in execution order.
func (ic *InterceptorChain) Interceptors() []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		ic.UnaryRecoveryInterceptor(),       // 1. panics
		ic.UnaryRequestContextInterceptor(), // 2. request id, client ip
		ic.UnaryTracingInterceptor(),        // 3. server span
		ic.UnaryLoggingInterceptor(),        // 4. request log
		ic.UnaryMetricsInterceptor(),        // 5. rpc metrics
		ic.UnaryErrorInterceptor(),          // 6. error translation
		ic.UnaryTimeoutInterceptor(),        // 7. deadline
		ic.UnaryRateLimitInterceptor(),      // 8. rate limit
	}
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// clientIP returns the transport peer unless the peer is a trusted proxy.
// Behind trusted proxies the x-forwarded-for chain is walked from the right
// and the first hop that is not itself a trusted proxy is the client.
func (ic *InterceptorChain) clientIP(ctx context.Context, md metadata.MD) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	remote := p.Addr.String()
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}

	if !ic.trusted(remote) {
		return remote
	}
	fwd := first(md, constants.HeaderForwardedFor)
	if fwd == "" {
		return remote
	}
	hops := strings.Split(fwd, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if _, err := netip.ParseAddr(hop); err != nil {
			return remote
		}
		if i == 0 || !ic.trusted(hop) {
			return hop
		}
	}
	return remote
}

func (ic *InterceptorChain) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range ic.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// metadataCarrier adapts incoming metadata for trace context extraction.
type metadataCarrier metadata.MD

var _ propagation.TextMapCarrier = metadataCarrier(nil)

func (c metadataCarrier) Get(key string) string {
	return first(metadata.MD(c), key)
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
