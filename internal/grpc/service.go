package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// LabService messages are google.protobuf.Struct values; the field names
// of every request and response are listed next to each method.
const (
	serviceName = "lab.v1.LabService"

	// Login: {username, password} -> {token}
	MethodLogin = "/" + serviceName + "/Login"
	// CreateLab: {username, password, email} -> {id, username, email}
	MethodCreateLab = "/" + serviceName + "/CreateLab"
	// AddItem: {name, quantity, description?} -> {id}
	MethodAddItem = "/" + serviceName + "/AddItem"
	// SearchItems: {term} -> {items: [{id, name, quantity, description}]}
	MethodSearchItems = "/" + serviceName + "/SearchItems"
)

// LabServiceServer is the server API for lab.v1.LabService.
type LabServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateLab(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type labMethod func(LabServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// methodHandler is the signature grpc.MethodDesc.Handler expects.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unaryHandler adapts a LabServiceServer method to a MethodDesc handler in
// the same shape protoc-gen-go-grpc emits.
func unaryHandler(fullMethod string, call labMethod) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LabServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LabServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LabServiceDesc is the grpc.ServiceDesc for lab.v1.LabService.
var LabServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LabServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(MethodLogin, LabServiceServer.Login)},
		{MethodName: "CreateLab", Handler: unaryHandler(MethodCreateLab, LabServiceServer.CreateLab)},
		{MethodName: "AddItem", Handler: unaryHandler(MethodAddItem, LabServiceServer.AddItem)},
		{MethodName: "SearchItems", Handler: unaryHandler(MethodSearchItems, LabServiceServer.SearchItems)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lab/v1/lab.proto",
}

// RegisterLabServiceServer registers srv on s.
func RegisterLabServiceServer(s grpc.ServiceRegistrar, srv LabServiceServer) {
	s.RegisterService(&LabServiceDesc, srv)
}
