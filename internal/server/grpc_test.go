package server

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestClient(t *testing.T) (*DocExtractClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryInterceptor(nil)))
	RegisterDocExtractServer(srv, NewGRPCService(newTestService(t), nil))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewDocExtractClient(conn), conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPC_Health(t *testing.T) {
	_, conn := newTestClient(t)
	resp, err := healthpb.NewHealthClient(conn).Check(t.Context(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPC_Upload(t *testing.T) {
	client, _ := newTestClient(t)
	in := mustStruct(t, map[string]any{
		"files": []any{
			map[string]any{"file_name": "a.pdf", "content": base64.StdEncoding.EncodeToString([]byte("%PDF"))},
		},
	})
	ctx := metadata.AppendToOutgoingContext(t.Context(), "x-request-id", "grpc-req")
	out, err := client.Upload(ctx, in)
	require.NoError(t, err)

	docs := out.AsMap()["documents"].([]any)
	require.Len(t, docs, 1)
	doc := docs[0].(map[string]any)
	assert.Equal(t, "hash-a.pdf", doc["whisper_hash"])
	assert.Equal(t, sampleText, doc["text"])
}

func TestGRPC_ExtractFields(t *testing.T) {
	client, _ := newTestClient(t)
	in := mustStruct(t, map[string]any{
		"fullText":      "Invoice INV-001\nTotal 150.00",
		"templateName":  "invoice",
		"boundingBoxes": lineMetadataPayload(),
	})
	out, err := client.ExtractFields(t.Context(), in)
	require.NoError(t, err)

	fields := out.AsMap()["fields"].([]any)
	require.Len(t, fields, 2)
	first := fields[0].(map[string]any)
	assert.Equal(t, "invoice_number", first["key"])
	assert.Equal(t, "INV-001", first["value"])
	assert.Equal(t, []any{float64(1)}, first["line_indexes"])
}

func TestGRPC_HighlightAndLocate(t *testing.T) {
	client, _ := newTestClient(t)

	out, err := client.Highlight(t.Context(), mustStruct(t, map[string]any{
		"lineIndexes":   []any{1},
		"boundingBoxes": lineMetadataPayload(),
	}))
	require.NoError(t, err)
	hl := out.AsMap()["highlights"].([]any)
	require.Len(t, hl, 1)
	assert.Equal(t, float64(100), hl[0].(map[string]any)["y"])

	out, err = client.Locate(t.Context(), mustStruct(t, map[string]any{
		"indexes":       []any{0, 1},
		"boundingBoxes": wordPayload(),
	}))
	require.NoError(t, err)
	assert.Len(t, out.AsMap()["boxes"], 1)
}

func TestGRPC_ErrorCodes(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Highlight(t.Context(), mustStruct(t, map[string]any{
		"lineIndexes":   []any{},
		"boundingBoxes": lineMetadataPayload(),
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Locate(t.Context(), mustStruct(t, map[string]any{
		"indexes":       []any{7},
		"boundingBoxes": wordPayload(),
	}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.ExtractFields(t.Context(), mustStruct(t, map[string]any{
		"fullText":     "x",
		"templateName": "nope",
	}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}
