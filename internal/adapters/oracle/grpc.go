package oracle

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/okian/botscope/internal/domain/model"
	domain "github.com/okian/botscope/internal/domain/oracle"
)

const (
	serviceName    = "botscope.oracle.v1.Oracle"
	completeMethod = "/" + serviceName + "/Complete"
)

// GRPC completes prompts through an oracle sidecar. The wire contract is one unary
// method taking and returning google.protobuf.StringValue.
type GRPC struct {
	conn *grpc.ClientConn
}

// DialGRPC creates a client for addr. The connection is established lazily.
func DialGRPC(addr string, opts ...grpc.DialOption) (*GRPC, error) {
	if addr == "" {
		return nil, fmt.Errorf("grpc oracle: %w: address is required", model.ErrConfiguration)
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w: %w", addr, model.ErrConfiguration, err)
	}
	return &GRPC{conn: conn}, nil
}

// Complete invokes the sidecar.
func (g *GRPC) Complete(ctx context.Context, prompt string) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := g.conn.Invoke(ctx, completeMethod, wrapperspb.String(prompt), out); err != nil {
		return "", fmt.Errorf("complete rpc: %w", err)
	}
	return out.GetValue(), nil
}

// Close shuts down the connection.
func (g *GRPC) Close() error {
	return g.conn.Close()
}

// RegisterServer exposes o on s under the sidecar contract.
func RegisterServer(s grpc.ServiceRegistrar, o domain.TextOracle) {
	s.RegisterService(&serviceDesc, o)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*domain.TextOracle)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Complete", Handler: completeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "botscope/oracle/v1/oracle.proto",
}

func completeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	o, _ := srv.(domain.TextOracle)
	handle := func(ctx context.Context, req any) (any, error) {
		r, _ := req.(*wrapperspb.StringValue)
		text, err := o.Complete(ctx, r.GetValue())
		if err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.String(text), nil
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: completeMethod}
	return interceptor(ctx, in, info, handle)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, model.ErrConfiguration):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
