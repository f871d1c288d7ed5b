// Package mapsvc defines the map session service shared by the runner,
// the HTTP gateway, and their clients.
package mapsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "lezhure.maps.MapService"

// MapService is implemented by the runner and by Client.
type MapService interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error)
	Settle(ctx context.Context, req *SettleRequest) (*SettleResponse, error)
	Drain(ctx context.Context, req *DrainRequest) (*DrainResponse, error)
	Select(ctx context.Context, req *SelectRequest) (*SelectResponse, error)
	Summary(ctx context.Context, req *SummaryRequest) (*SummaryResponse, error)
	CloseSession(ctx context.Context, req *CloseSessionRequest) (*CloseSessionResponse, error)
	ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error)
}

// ServiceDesc describes MapService to grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MapService)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateSession", MapService.CreateSession),
		unary("Settle", MapService.Settle),
		unary("Drain", MapService.Drain),
		unary("Select", MapService.Select),
		unary("Summary", MapService.Summary),
		unary("CloseSession", MapService.CloseSession),
		unary("ListSessions", MapService.ListSessions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mapsvc/service.go",
}

// RegisterMapServiceServer registers srv on s.
func RegisterMapServiceServer(s grpc.ServiceRegistrar, srv MapService) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(MapService, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MapService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MapService), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client is a MapService backed by a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to a runner without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(addr, opts...)
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	return invoke[CreateSessionResponse](ctx, c, "CreateSession", req)
}

func (c *Client) Settle(ctx context.Context, req *SettleRequest) (*SettleResponse, error) {
	return invoke[SettleResponse](ctx, c, "Settle", req)
}

func (c *Client) Drain(ctx context.Context, req *DrainRequest) (*DrainResponse, error) {
	return invoke[DrainResponse](ctx, c, "Drain", req)
}

func (c *Client) Select(ctx context.Context, req *SelectRequest) (*SelectResponse, error) {
	return invoke[SelectResponse](ctx, c, "Select", req)
}

func (c *Client) Summary(ctx context.Context, req *SummaryRequest) (*SummaryResponse, error) {
	return invoke[SummaryResponse](ctx, c, "Summary", req)
}

func (c *Client) CloseSession(ctx context.Context, req *CloseSessionRequest) (*CloseSessionResponse, error) {
	return invoke[CloseSessionResponse](ctx, c, "CloseSession", req)
}

func (c *Client) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c, "ListSessions", req)
}
