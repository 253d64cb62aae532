package focalservice

import (
	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const processMethod = "/focalservice.Focal/Process"

// FocalServer is the server API of the focal worker service.
type FocalServer interface {
	Process(context.Context, *FocalTask) (*FocalResult, error)
}

func RegisterFocalServer(s *grpc.Server, srv FocalServer) {
	s.RegisterService(&_Focal_serviceDesc, srv)
}

func _Focal_Process_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(FocalTask)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FocalServer).Process(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: processMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FocalServer).Process(ctx, req.(*FocalTask))
	}
	return interceptor(ctx, in, info, handler)
}

var _Focal_serviceDesc = grpc.ServiceDesc{
	ServiceName: "focalservice.Focal",
	HandlerType: (*FocalServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Process",
			Handler:    _Focal_Process_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "worker/focalservice",
}

// FocalClient is the client API of the focal worker service.
type FocalClient interface {
	Process(ctx context.Context, in *FocalTask, opts ...grpc.CallOption) (*FocalResult, error)
}

type focalClient struct {
	cc grpc.ClientConnInterface
}

func NewFocalClient(cc grpc.ClientConnInterface) FocalClient {
	return &focalClient{cc}
}

func (c *focalClient) Process(ctx context.Context, in *FocalTask, opts ...grpc.CallOption) (*FocalResult, error) {
	out := new(FocalResult)
	err := c.cc.Invoke(ctx, processMethod, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Server serves focal tasks from a ProcessPool. A nil Guard admits all tasks.
type Server struct {
	Pool  *ProcessPool
	Guard *MemoryGuard
}

func (s *Server) Process(ctx context.Context, in *FocalTask) (*FocalResult, error) {
	if err := s.Guard.Admit(in); err != nil {
		return nil, status.Error(codes.ResourceExhausted, err.Error())
	}
	task := NewTask(in)
	if err := s.Pool.AddQueue(task); err != nil {
		return nil, status.Error(codes.ResourceExhausted, err.Error())
	}

	select {
	case out := <-task.Resp:
		if out.Error != "OK" {
			code := codes.Internal
			if out.Precondition {
				code = codes.InvalidArgument
			}
			return nil, status.Error(code, out.Error)
		}
		return out, nil
	case err := <-task.Error:
		return nil, status.Errorf(codes.Internal, "Error in ops: %v", err)
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	}
}
