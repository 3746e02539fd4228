package grpc

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	appService "github.com/ScalabilityIssues/validation-service/internal/application/service"
	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	domainService "github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/internal/domain/service/mocks"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/crypto"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/monitoring"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/qrcode"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/ratelimit"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// signingFunc adapts a function to SigningAppService.
type signingFunc func(ctx context.Context, t *validationpb.Ticket) (*models.SigningResult, error)

func (f signingFunc) SignTicket(ctx context.Context, t *validationpb.Ticket) (*models.SigningResult, error) {
	return f(ctx, t)
}

type testEnv struct {
	client validationpb.ValidationClient
	conn   *grpc.ClientConn
	server *Server
	signer *crypto.Ed25519Signer
}

type envOptions struct {
	mode      constants.ResponseMode
	encoder   domainService.CodeEncoder
	signing   appService.SigningAppService
	chainOpts InterceptorOptions
}

func testSigner(t *testing.T) *crypto.Ed25519Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = 42
	}
	signer, err := crypto.NewSigner(ed25519.NewKeyFromSeed(seed))
	require.NoError(t, err)
	return signer
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	log := logger.NewNoopLogger()
	if opts.mode == "" {
		opts.mode = constants.ResponseModeQR
	}

	signer := testSigner(t)
	keys, err := appService.NewKeyPublisher(signer, nil, log)
	require.NoError(t, err)

	signing := opts.signing
	if signing == nil {
		canon, err := domainService.NewCanonicalizer(constants.ClaimsPolicyClaims, false)
		require.NoError(t, err)
		encoder := opts.encoder
		if encoder == nil {
			encoder, err = qrcode.NewEncoder("medium")
			require.NoError(t, err)
		}
		signing, err = appService.NewSigningAppService(appService.SigningDeps{
			Canonicalizer: canon,
			Signer:        signer,
			Encoder:       encoder,
		}, opts.mode, log)
		require.NoError(t, err)
	}

	chain := NewInterceptorChain(log, opts.chainOpts)
	svc := NewValidationGRPCService(signing, keys, opts.mode, log)
	server := NewServer(&config.ServerConfig{Reflection: true}, svc, chain, log)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.GRPCServer().Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{
		client: validationpb.NewValidationClient(conn),
		conn:   conn,
		server: server,
		signer: signer,
	}
}

func t1Request() *validationpb.SignTicketRequest {
	return &validationpb.SignTicketRequest{Ticket: &validationpb.Ticket{
		Id:                  "T1",
		FlightId:            "F1",
		Passenger:           "Alice",
		ReservationDatetime: timestamppb.New(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
	}}
}

func TestValidationGRPCService_SignTicket(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	var header metadata.MD
	resp, err := env.client.SignTicket(context.Background(), t1Request(), grpc.Header(&header))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Qr)
	assert.Nil(t, resp.SignedTicket, "qr mode carries only the image")
	assert.NotEmpty(t, header.Get(constants.HeaderRequestID))

	pkg, err := qrcode.DecodePNG(resp.Qr)
	require.NoError(t, err)
	assert.NoError(t, crypto.Verify(env.signer.PublicKey(), pkg.Payload, pkg.Signature))

	claims, err := validationpb.UnmarshalTicketClaims(pkg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "T1", claims.TicketId)
	assert.Equal(t, "F1", claims.FlightDetails.Id)
	assert.Equal(t, "Alice", claims.PassengerDetails)
}

func TestValidationGRPCService_SignTicket_ResponseModes(t *testing.T) {
	t.Run("both", func(t *testing.T) {
		env := newTestEnv(t, envOptions{mode: constants.ResponseModeBoth})
		resp, err := env.client.SignTicket(context.Background(), t1Request())
		require.NoError(t, err)
		require.NotNil(t, resp.SignedTicket)
		assert.NotEmpty(t, resp.Qr)

		decoded, err := qrcode.DecodePNG(resp.Qr)
		require.NoError(t, err)
		assert.Equal(t, models.SignedPackageFromWire(resp.SignedTicket), decoded)
	})

	t.Run("package", func(t *testing.T) {
		env := newTestEnv(t, envOptions{mode: constants.ResponseModePackage})
		resp, err := env.client.SignTicket(context.Background(), t1Request())
		require.NoError(t, err)
		assert.Empty(t, resp.Qr)
		require.NotNil(t, resp.SignedTicket)
		assert.NoError(t, crypto.Verify(env.signer.PublicKey(), resp.SignedTicket.Ticket, resp.SignedTicket.Signature))
	})
}

func TestValidationGRPCService_SignTicket_MissingTicket(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.client.SignTicket(context.Background(), &validationpb.SignTicketRequest{})
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, grpcCodes.InvalidArgument, st.Code())
	assert.Equal(t, "Ticket is required", st.Message())
}

func TestValidationGRPCService_SignTicket_EncodingFailureIsOpaque(t *testing.T) {
	encoder := new(mocks.MockCodeEncoder)
	encoder.On("Encode", mock.Anything).Return(nil,
		errors.ErrInternal("Error creating QR code").WithCause(fmt.Errorf("data too long for version 40"))).Once()
	env := newTestEnv(t, envOptions{encoder: encoder})

	_, err := env.client.SignTicket(context.Background(), t1Request())
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, grpcCodes.Internal, st.Code())
	assert.Equal(t, "Error creating QR code", st.Message())
	assert.NotContains(t, st.Message(), "version 40")
	encoder.AssertExpectations(t)
}

func TestValidationGRPCService_GetVerificationKeys(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	first, err := env.client.GetVerificationKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, first.VerificationKeys, 1)
	assert.Equal(t, env.signer.PublicKey(), first.VerificationKeys[0])

	second, err := env.client.GetVerificationKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.VerificationKeys, second.VerificationKeys)
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	health := healthpb.NewHealthClient(env.conn)

	resp, err := health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: validationpb.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	env.server.SetServing(true)
	resp, err = health.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestServer_Reflection(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	stream, err := reflectionpb.NewServerReflectionClient(env.conn).ServerReflectionInfo(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)

	var names []string
	for _, svc := range resp.GetListServicesResponse().GetService() {
		names = append(names, svc.GetName())
	}
	assert.Contains(t, names, validationpb.ServiceName)

	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{
			FileContainingSymbol: "validationsvc.TicketClaims",
		},
	}))
	resp, err = stream.Recv()
	require.NoError(t, err)
	assert.NotEmpty(t, resp.GetFileDescriptorResponse().GetFileDescriptorProto())
	require.NoError(t, stream.CloseSend())
}

func TestInterceptors_RateLimit(t *testing.T) {
	metrics := new(mocks.MockMetrics)
	metrics.On("RecordRateLimitHit", "memory").Once()
	env := newTestEnv(t, envOptions{chainOpts: InterceptorOptions{
		RateLimitService: ratelimit.NewMemoryRateLimiter(1, 1),
		Metrics:          metrics,
	}})

	_, err := env.client.GetVerificationKeys(context.Background())
	require.NoError(t, err)

	var header metadata.MD
	_, err = env.client.GetVerificationKeys(context.Background(), grpc.Header(&header))
	assert.Equal(t, grpcCodes.ResourceExhausted, status.Code(err))
	assert.NotEmpty(t, header.Get("retry-after"))
	metrics.AssertExpectations(t)
}

func TestInterceptors_RateLimitIgnoresForwardedFor(t *testing.T) {
	metrics := new(mocks.MockMetrics)
	metrics.On("RecordRateLimitHit", "memory").Once()
	env := newTestEnv(t, envOptions{chainOpts: InterceptorOptions{
		RateLimitService: ratelimit.NewMemoryRateLimiter(1, 1),
		Metrics:          metrics,
	}})

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-forwarded-for", "203.0.113.1")
	_, err := env.client.GetVerificationKeys(ctx)
	require.NoError(t, err)

	ctx = metadata.AppendToOutgoingContext(context.Background(), "x-forwarded-for", "203.0.113.2")
	_, err = env.client.GetVerificationKeys(ctx)
	assert.Equal(t, grpcCodes.ResourceExhausted, status.Code(err), "a forged header does not open a new bucket")
	metrics.AssertExpectations(t)
}

func TestInterceptors_PanicRecovery(t *testing.T) {
	env := newTestEnv(t, envOptions{signing: signingFunc(func(context.Context, *validationpb.Ticket) (*models.SigningResult, error) {
		panic("boom")
	})})

	_, err := env.client.SignTicket(context.Background(), t1Request())
	st, _ := status.FromError(err)
	assert.Equal(t, grpcCodes.Internal, st.Code())
	assert.NotContains(t, st.Message(), "boom")

	_, err = env.client.GetVerificationKeys(context.Background())
	assert.NoError(t, err, "the server survives a panic")
}

func TestInterceptors_Timeout(t *testing.T) {
	env := newTestEnv(t, envOptions{
		chainOpts: InterceptorOptions{Timeout: 20 * time.Millisecond},
		signing: signingFunc(func(ctx context.Context, _ *validationpb.Ticket) (*models.SigningResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})

	_, err := env.client.SignTicket(context.Background(), t1Request())
	assert.Equal(t, grpcCodes.DeadlineExceeded, status.Code(err))
}

func TestInterceptors_MetricsAndTracing(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	env := newTestEnv(t, envOptions{chainOpts: InterceptorOptions{
		RPCMetrics: m,
		Tracer:     provider.Tracer("test"),
	}})

	_, err := env.client.SignTicket(context.Background(), t1Request())
	require.NoError(t, err)
	_, err = env.client.SignTicket(context.Background(), &validationpb.SignTicketRequest{})
	require.Error(t, err)

	method := validationpb.Validation_SignTicket_FullMethodName
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GRPCRequests.WithLabelValues(method, "OK")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GRPCRequests.WithLabelValues(method, "InvalidArgument")))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "validationsvc.Validation/SignTicket", spans[0].Name())
}
