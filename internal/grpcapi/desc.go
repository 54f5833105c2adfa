// Package grpcapi is the internal service-to-service API.
//
// Messages are google.protobuf.Struct, so no generated code is needed and
// any gRPC client can call it with JSON-shaped payloads.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "pulse.v1.PulseInternal"

const (
	MethodGetPair        = "GetPair"
	MethodSendLove       = "SendLove"
	MethodFulfillPayment = "FulfillPayment"
)

// InternalServer is implemented by Service.
type InternalServer interface {
	GetPair(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SendLove(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	FulfillPayment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type call func(s InternalServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(InternalServer)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes pulse.v1.PulseInternal for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InternalServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetPair, InternalServer.GetPair),
		unary(MethodSendLove, InternalServer.SendLove),
		unary(MethodFulfillPayment, InternalServer.FulfillPayment),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pulse/v1/internal.proto",
}

// Client calls PulseInternal over any connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) invoke(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPair(ctx context.Context, userID int64) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetPair, map[string]any{"user_id": userID})
}

func (c *Client) SendLove(ctx context.Context, userID int64, message string) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSendLove, map[string]any{"user_id": userID, "message": message})
}

func (c *Client) FulfillPayment(ctx context.Context, payload, chargeID string) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodFulfillPayment, map[string]any{"payload": payload, "charge_id": chargeID})
}
