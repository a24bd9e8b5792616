package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}
	base := func(context.Context, any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil || resp != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}
	want := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order: got %v, want %v", order, want)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	boom := errors.New("boom")
	ep := Logging(logger, "audit_run")(func(context.Context, any) (any, error) { return nil, boom })

	ctx := WithRequestID(WithTransport(context.Background(), "mcp"), "req-7")
	if _, err := ep(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	out := buf.String()
	for _, want := range []string{"endpoint=audit_run", "transport=mcp", "request_id=req-7", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestGetTransport_Default(t *testing.T) {
	if got := GetTransport(context.Background()); got != "http" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeArgs(t *testing.T) {
	type req struct {
		URL string `json:"url"`
	}
	dec := DecodeArgs[req]()

	got, err := dec(&mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`{"url":"https://example.com"}`)}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r := got.(*req); r.URL != "https://example.com" {
		t.Fatalf("got %+v", r)
	}

	got, err = dec(&mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}})
	if err != nil || got.(*req).URL != "" {
		t.Fatalf("empty args: %v %v", got, err)
	}

	if _, err := dec(&mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`[`)}}); err == nil {
		t.Fatal("expected error for malformed arguments")
	}
}
