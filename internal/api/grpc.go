package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"corrboard/internal/dashboard"
	"corrboard/internal/domain"
)

const (
	serviceName    = "corrboard.v1.Correlation"
	rankFullMethod = "/" + serviceName + "/Rank"
)

// CorrelationServer is the server API for the Correlation service.
type CorrelationServer interface {
	Rank(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Ranker produces correlation reports.
type Ranker interface {
	Run(ctx context.Context, p dashboard.Params) (*dashboard.Report, error)
}

var correlationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CorrelationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Rank", Handler: rankHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "corrboard/v1/correlation.proto",
}

func rankHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CorrelationServer).Rank(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rankFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CorrelationServer).Rank(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterCorrelationServer registers srv on s.
func RegisterCorrelationServer(s grpc.ServiceRegistrar, srv CorrelationServer) {
	s.RegisterService(&correlationServiceDesc, srv)
}

// CorrelationService implements CorrelationServer over the dashboard
// service. Requests and responses are google.protobuf.Struct messages.
//
// Request fields: tickers (string or list), timeframe, method, lag, top.
// Response fields: pairs, lagged_pairs, missing, warnings, lag_steps,
// observations, timeframe, method.
type CorrelationService struct {
	ranker Ranker
	log    *slog.Logger
}

// NewCorrelationService creates a CorrelationService.
func NewCorrelationService(r Ranker) *CorrelationService {
	return &CorrelationService{ranker: r, log: slog.Default().With("component", "grpc")}
}

// Rank runs one ranking request.
func (s *CorrelationService) Rank(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := paramsFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rep, err := s.ranker.Run(ctx, p)
	if err != nil {
		code := codeFor(err)
		if code == codes.Unavailable {
			s.log.Error("ranking failed", "tickers", p.Tickers, "error", err)
		}
		return nil, status.Error(code, err.Error())
	}

	out, err := structpb.NewStruct(reportFields(rep))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidParams):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrNeedTwoAssets),
		errors.Is(err, domain.ErrNoData),
		errors.Is(err, domain.ErrInsufficientData),
		errors.Is(err, domain.ErrEmptyMatrix):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Unavailable
}

func paramsFromStruct(req *structpb.Struct) (dashboard.Params, error) {
	var p dashboard.Params
	fields := req.GetFields()

	switch v := fields["tickers"].GetKind().(type) {
	case nil:
	case *structpb.Value_StringValue:
		p.Tickers = v.StringValue
	case *structpb.Value_ListValue:
		for i, item := range v.ListValue.GetValues() {
			sym, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return p, fmt.Errorf("tickers[%d] is not a string", i)
			}
			if i > 0 {
				p.Tickers += ","
			}
			p.Tickers += sym.StringValue
		}
	default:
		return p, errors.New("tickers must be a string or a list of strings")
	}

	for name, dst := range map[string]*string{
		"timeframe": &p.Timeframe,
		"method":    &p.Method,
		"lag":       &p.Lag,
	} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return p, fmt.Errorf("%s must be a string", name)
		}
		*dst = s.StringValue
	}

	if v, ok := fields["top"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok || n.NumberValue != float64(int(n.NumberValue)) {
			return p, errors.New("top must be an integer")
		}
		p.TopN = dashboard.ClampTopN(int(n.NumberValue))
	}
	return p, nil
}

func pairsToList(pairs []domain.RankedPair) []any {
	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = map[string]any{
			"asset_a": p.AssetA,
			"asset_b": p.AssetB,
			"value":   p.Value,
		}
	}
	return out
}

func stringsToList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func reportFields(rep *dashboard.Report) map[string]any {
	return map[string]any{
		"pairs":        pairsToList(rep.Pairs),
		"lagged_pairs": pairsToList(rep.LaggedPairs),
		"missing":      stringsToList(rep.Missing),
		"warnings":     stringsToList(rep.Warnings),
		"lag":          rep.Lag,
		"lag_steps":    rep.LagSteps,
		"observations": rep.Observations,
		"timeframe":    rep.Timeframe.Name,
		"method":       string(rep.Method),
	}
}
