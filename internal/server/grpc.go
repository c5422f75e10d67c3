package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/form-extractor/internal/common"
)

const (
	ExtractionServiceName = "formextract.v1.ExtractionService"
	processMethod         = "/" + ExtractionServiceName + "/Process"
)

// ExtractionServer is the gRPC surface of the pipeline. Requests and
// responses are google.protobuf.Struct values: the request carries
// "filename" and a base64 "image"; the response is the Result body.
type ExtractionServer interface {
	Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Process", Handler: processHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "formextract/v1/extraction.proto",
}

func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

func processHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Process(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: processMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Process(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ExtractionService adapts a Processor to ExtractionServer.
type ExtractionService struct {
	proc     Processor
	maxBytes int
	logger   *slog.Logger
}

func NewExtractionService(proc Processor, maxBytes int, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{proc: proc, maxBytes: maxBytes, logger: logger}
}

func (s *ExtractionService) Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	filename := strings.TrimSpace(fields["filename"].GetStringValue())
	encoded := fields["image"].GetStringValue()
	if encoded == "" {
		return nil, common.InvalidArgumentError("image is required")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("image must be base64: %v", err)
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return nil, common.InvalidArgumentErrorf("image exceeds %d bytes", s.maxBytes)
	}

	res := s.proc.Process(ctx, data, filename)
	body, err := json.Marshal(res)
	if err != nil {
		return nil, common.InternalErrorf("encode result: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(body, out); err != nil {
		return nil, common.InternalErrorf("encode result: %v", err)
	}
	return out, nil
}

// ProcessRemote calls ExtractionService/Process over conn.
func ProcessRemote(ctx context.Context, conn grpc.ClientConnInterface, filename string, data []byte) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{
		"filename": filename,
		"image":    base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, processMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnaryLogger tags each call with a request id (from x-request-id metadata
// when present) and logs its outcome.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, rid)

		start := time.Now()
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
