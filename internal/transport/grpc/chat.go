package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/confidant/internal/message"
	"github.com/nadzzz/confidant/internal/transport"
)

// ServiceName is the fully qualified name of the chat service.
const ServiceName = "confidant.v1.Chat"

const chatMethod = "/" + ServiceName + "/Chat"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals messages as JSON under the "json" content subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

// ChatServer is the server API for the Chat service.
type ChatServer interface {
	Chat(context.Context, *message.Request) (*message.Result, error)
}

// RegisterChatServer registers srv on s.
func RegisterChatServer(s *grpc.Server, srv ChatServer) {
	s.RegisterService(&chatServiceDesc, srv)
}

var chatServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Chat",
			Handler:    chatHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "confidant/v1/chat",
}

func chatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).Chat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: chatMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServer).Chat(ctx, req.(*message.Request))
	}
	return interceptor(ctx, in, info, handler)
}

type chatServer struct {
	handler transport.Handler
}

// Chat passes the request to the dispatcher. Turn failures travel in the
// Result; only a handler error becomes a gRPC status.
func (s *chatServer) Chat(ctx context.Context, req *message.Request) (*message.Result, error) {
	req.Source = "grpc"
	res, err := s.handler(ctx, req)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

// ChatClient calls the Chat service.
type ChatClient struct {
	cc grpc.ClientConnInterface
}

// NewChatClient wraps a client connection.
func NewChatClient(cc grpc.ClientConnInterface) *ChatClient {
	return &ChatClient{cc: cc}
}

// Chat sends one request.
func (c *ChatClient) Chat(ctx context.Context, in *message.Request, opts ...grpc.CallOption) (*message.Result, error) {
	out := new(message.Result)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype("json")}, opts...)
	if err := c.cc.Invoke(ctx, chatMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
