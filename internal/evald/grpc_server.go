package evald

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/converter-eval/internal/metrics"
	"github.com/GoSim-25-26J-441/converter-eval/internal/scoring"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/logger"
)

const (
	ScoringServiceName = "converter.eval.v1.ScoringService"
	scoreLogMethod     = "/" + ScoringServiceName + "/ScoreLog"
)

// ScoringServiceServer scores simulation logs sent by remote hosts.
// Messages are google.protobuf.Struct documents in the layout of
// DecodeScoreRequest and EncodeScoreResponse.
type ScoringServiceServer interface {
	ScoreLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ScoringServiceDesc describes the scoring service to grpc
var ScoringServiceDesc = grpc.ServiceDesc{
	ServiceName: ScoringServiceName,
	HandlerType: (*ScoringServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScoreLog", Handler: scoreLogHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "converter/eval/v1/scoring.proto",
}

// RegisterScoringServiceServer registers srv on s
func RegisterScoringServiceServer(s grpc.ServiceRegistrar, srv ScoringServiceServer) {
	s.RegisterService(&ScoringServiceDesc, srv)
}

func scoreLogHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScoringServiceServer).ScoreLog(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scoreLogMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScoringServiceServer).ScoreLog(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ScoringServiceClient calls a remote scoring service
type ScoringServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewScoringServiceClient(cc grpc.ClientConnInterface) *ScoringServiceClient {
	return &ScoringServiceClient{cc: cc}
}

func (c *ScoringServiceClient) ScoreLog(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, scoreLogMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ScoringGRPCServer implements ScoringServiceServer with the evaluator's
// scoring settings.
type ScoringGRPCServer struct {
	opts    scoring.Options
	metrics *metrics.Collector
}

// NewScoringGRPCServer creates the service. collector may be nil.
func NewScoringGRPCServer(opts scoring.Options, collector *metrics.Collector) *ScoringGRPCServer {
	return &ScoringGRPCServer{opts: opts, metrics: collector}
}

func (s *ScoringGRPCServer) ScoreLog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp, score, err := scoreStruct(req, s.opts)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.metrics.ObserveRemoteScore(metrics.TransportGRPC, score)
	logger.Debug("log scored (gRPC)", "score", score)
	return resp, nil
}

func scoreStruct(req *structpb.Struct, opts scoring.Options) (*structpb.Struct, float64, error) {
	decoded, err := DecodeScoreRequest(req)
	if err != nil {
		return nil, 0, err
	}
	score, report, err := scoring.ScoreLog(decoded.Log, decoded.NumOutputs, decoded.Source, opts)
	if err != nil {
		return nil, 0, err
	}
	resp, err := EncodeScoreResponse(score, report)
	if err != nil {
		return nil, 0, err
	}
	return resp, score, nil
}

// NewGRPCServer creates a grpc server exposing the scoring service and the
// standard health service, both reported as serving.
func NewGRPCServer(opts scoring.Options, collector *metrics.Collector, serverOpts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(serverOpts...)
	RegisterScoringServiceServer(srv, NewScoringGRPCServer(opts, collector))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ScoringServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}
