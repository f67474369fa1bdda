package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rzbill/haywire/pkg/message"
)

// grpcAddrFromEnv returns the gRPC server address from HAYWIRE_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("HAYWIRE_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPCContext dials the haywire gRPC endpoint with insecure transport for local/dev.
func dialGRPCContext(_ context.Context) (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// decodedMessage returns a printable view of m with one of body_json,
// body_text, or body_b64.
func decodedMessage(m *message.Message) map[string]any {
	out := map[string]any{
		"id":         m.ID,
		"sequence":   m.Sequence,
		"enqueuedAt": m.EnqueuedAt,
	}
	if m.CorrelationID != "" {
		out["correlationId"] = m.CorrelationID
	}
	if len(m.Headers) > 0 {
		out["headers"] = m.Headers
	}
	body := m.Body
	// Try JSON first if it looks like JSON
	if len(body) > 0 && (body[0] == '{' || body[0] == '[') {
		var v any
		if json.Unmarshal(body, &v) == nil {
			out["body_json"] = v
			return out
		}
	}
	if utf8.Valid(body) {
		out["body_text"] = string(body)
		return out
	}
	out["body_b64"] = body
	return out
}

// headerFlag collects repeated --header key=value flags.
type headerFlag map[string]string

var _ pflag.Value = headerFlag(nil)

func (h headerFlag) String() string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+h[k])
	}
	return strings.Join(parts, ",")
}

func (h headerFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("header must be key=value, got %q", v)
	}
	h[strings.TrimSpace(k)] = val
	return nil
}

func (h headerFlag) Type() string { return "key=value" }
