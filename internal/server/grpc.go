package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

const ServiceName = "docextract.v1.DocExtractService"

// DocExtractServer is the gRPC contract. Payloads are JSON-shaped structs
// mirroring the HTTP API bodies.
type DocExtractServer interface {
	Upload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExtractFields(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Highlight(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Locate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocExtractServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Upload", DocExtractServer.Upload),
		unaryMethod("ExtractFields", DocExtractServer.ExtractFields),
		unaryMethod("Highlight", DocExtractServer.Highlight),
		unaryMethod("Locate", DocExtractServer.Locate),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docextract/v1/docextract.proto",
}

func RegisterDocExtractServer(s grpc.ServiceRegistrar, srv DocExtractServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryCall func(DocExtractServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DocExtractServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DocExtractServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// DocExtractClient calls the service over a client connection.
type DocExtractClient struct {
	cc grpc.ClientConnInterface
}

func NewDocExtractClient(cc grpc.ClientConnInterface) *DocExtractClient {
	return &DocExtractClient{cc: cc}
}

func (c *DocExtractClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DocExtractClient) Upload(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Upload", in, opts...)
}

func (c *DocExtractClient) ExtractFields(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "ExtractFields", in, opts...)
}

func (c *DocExtractClient) Highlight(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Highlight", in, opts...)
}

func (c *DocExtractClient) Locate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Locate", in, opts...)
}

// GRPCService adapts Service to DocExtractServer.
type GRPCService struct {
	svc    *Service
	logger *slog.Logger
}

var _ DocExtractServer = (*GRPCService)(nil)

func NewGRPCService(svc *Service, logger *slog.Logger) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCService{svc: svc, logger: logger}
}

type uploadFile struct {
	FileName string `json:"file_name"`
	Content  []byte `json:"content"` // base64 in JSON
}

func (g *GRPCService) Upload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Files []uploadFile `json:"files"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, common.ToStatus(err)
	}
	uploads := make([]pipeline.Upload, 0, len(req.Files))
	for _, f := range req.Files {
		uploads = append(uploads, pipeline.Upload{FileName: f.FileName, Content: f.Content})
	}
	docs, err := g.svc.Upload(ctx, uploads)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct("documents", docs)
}

func (g *GRPCService) ExtractFields(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExtractFieldsRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.ToStatus(err)
	}
	out, err := g.svc.ExtractFields(ctx, req)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct("fields", out)
}

func (g *GRPCService) Highlight(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req HighlightRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.ToStatus(err)
	}
	out, err := g.svc.Highlight(ctx, req)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct("highlights", out)
}

func (g *GRPCService) Locate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LocateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.ToStatus(err)
	}
	out, err := g.svc.Locate(ctx, req)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct("boxes", out)
}

// UnaryInterceptor attaches the caller's x-request-id (or a fresh one) and logs each call.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" {
				ctx = common.WithRequestID(ctx, ids[0])
			}
		}
		ctx, rid := common.EnsureRequestID(ctx)

		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"req_id", rid,
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

func fromStruct(in *structpb.Struct, v any) error {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return common.InvalidInput("invalid request: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return common.InvalidInput("invalid request: %v", err)
	}
	return nil
}

func toStruct(key string, v any) (*structpb.Struct, error) {
	data, err := json.Marshal(map[string]any{key: v})
	if err != nil {
		return nil, common.ToStatus(common.WrapError(err, "encode response"))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, common.ToStatus(common.WrapError(err, "encode response"))
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.ToStatus(common.WrapError(err, "encode response"))
	}
	return out, nil
}
