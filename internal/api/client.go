package api

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"corrboard/internal/dashboard"
	"corrboard/internal/domain"
)

// RankResult is the decoded response of a Rank call.
type RankResult struct {
	Pairs        []domain.RankedPair
	LaggedPairs  []domain.RankedPair
	Missing      []string
	Warnings     []string
	Lag          string
	LagSteps     int
	Observations int
	Timeframe    string
	Method       string
}

// Client calls the Correlation service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to a Correlation server without transport security.
func Dial(target string) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

// Rank sends one ranking request.
func (c *Client) Rank(ctx context.Context, p dashboard.Params) (*RankResult, error) {
	fields := map[string]any{
		"tickers":   stringsToList(dashboard.ParseTickers(p.Tickers)),
		"timeframe": p.Timeframe,
		"method":    p.Method,
		"lag":       p.Lag,
	}
	if p.TopN != 0 {
		fields["top"] = p.TopN
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, rankFullMethod, in, out); err != nil {
		return nil, err
	}

	f := out.GetFields()
	return &RankResult{
		Pairs:        pairsFromList(f["pairs"]),
		LaggedPairs:  pairsFromList(f["lagged_pairs"]),
		Missing:      stringsFromList(f["missing"]),
		Warnings:     stringsFromList(f["warnings"]),
		Lag:          f["lag"].GetStringValue(),
		LagSteps:     int(f["lag_steps"].GetNumberValue()),
		Observations: int(f["observations"].GetNumberValue()),
		Timeframe:    f["timeframe"].GetStringValue(),
		Method:       f["method"].GetStringValue(),
	}, nil
}

func pairsFromList(v *structpb.Value) []domain.RankedPair {
	var out []domain.RankedPair
	for _, item := range v.GetListValue().GetValues() {
		f := item.GetStructValue().GetFields()
		out = append(out, domain.RankedPair{
			AssetA: f["asset_a"].GetStringValue(),
			AssetB: f["asset_b"].GetStringValue(),
			Value:  f["value"].GetNumberValue(),
		})
	}
	return out
}

func stringsFromList(v *structpb.Value) []string {
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		if s := strings.TrimSpace(item.GetStringValue()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
