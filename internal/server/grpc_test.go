package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func dialBufconn(t *testing.T, srv ExtractionServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogger(quietLogger())))
	RegisterExtractionServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestExtractionService_Process(t *testing.T) {
	conn := dialBufconn(t, NewExtractionService(stubProcessor{}, 1<<10, quietLogger()))
	ctx := context.Background()

	out, err := ProcessRemote(ctx, conn, "form.png", []byte("img"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	m := out.AsMap()
	if m["status"] != "success" || m["filename"] != "form.png" {
		t.Errorf("response = %v", m)
	}
	data, _ := m["data"].(map[string]any)
	if data["document_type"] != "Intake" {
		t.Errorf("data = %v", data)
	}

	out, err = ProcessRemote(ctx, conn, "form.png", []byte("bad"))
	if err != nil {
		t.Fatalf("process bad: %v", err)
	}
	if got := out.AsMap()["status"]; got != "error" {
		t.Errorf("status = %v", got)
	}
}

func TestExtractionService_InvalidRequests(t *testing.T) {
	conn := dialBufconn(t, NewExtractionService(stubProcessor{}, 4, quietLogger()))
	ctx := context.Background()

	reqs := []map[string]any{
		{"filename": "a.png"},
		{"filename": "a.png", "image": "%%%not base64"},
	}
	for _, r := range reqs {
		in, _ := structpb.NewStruct(r)
		err := conn.Invoke(ctx, processMethod, in, new(structpb.Struct))
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("request %v: code = %v", r, status.Code(err))
		}
	}

	if _, err := ProcessRemote(ctx, conn, "a.png", []byte("too large")); status.Code(err) != codes.InvalidArgument {
		t.Errorf("oversized: code = %v", status.Code(err))
	}
}
