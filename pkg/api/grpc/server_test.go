package grpcapi

import (
	"context"
	"net"
	"slices"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
)

func startTestServer(t *testing.T) (string, func()) {
	t.Helper()
	s := store.New()
	if _, err := s.CreateSheet("Sheet1", 10, 5); err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	for addr, text := range map[string]string{"A1": "10", "A2": "32"} {
		p, _ := sheet.ParsePosition(addr, "Sheet1")
		if err := s.SetCell(p, sheet.CellSnapshot{Text: text, DataType: sheet.DataNumber}); err != nil {
			t.Fatalf("set %s: %v", addr, err)
		}
	}
	srv := New(s, calc.New())

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.grpc.Serve(lis)

	return lis.Addr().String(), func() {
		srv.grpc.Stop()
	}
}

func dial(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func TestEvaluate(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()
	client := NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name       string
		formula    string
		anchor     string
		resultType string
		check      func(t *testing.T, fields map[string]any)
	}{
		{
			name:       "sum",
			formula:    "=SUM(A1:A2)",
			resultType: "number",
			check: func(t *testing.T, f map[string]any) {
				if f["result"] != 42.0 {
					t.Errorf("result: got %v", f["result"])
				}
			},
		},
		{
			name:       "error",
			formula:    "=FOOBAR(1)",
			resultType: "error",
			check: func(t *testing.T, f map[string]any) {
				if f["error"] != "NameError" {
					t.Errorf("error: got %v", f["error"])
				}
				if _, ok := f["result"]; ok {
					t.Errorf("result should be absent: %v", f)
				}
			},
		},
		{
			name:       "array",
			formula:    "={1,2;3,4}",
			resultType: "array",
			check: func(t *testing.T, f map[string]any) {
				rows, _ := f["result"].([]any)
				if len(rows) != 2 {
					t.Errorf("result: got %v", f["result"])
				}
			},
		},
		{
			name:       "anchored",
			formula:    "=COLUMN()",
			anchor:     "Sheet1!D3",
			resultType: "number",
			check: func(t *testing.T, f map[string]any) {
				if f["result"] != 4.0 {
					t.Errorf("result: got %v", f["result"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := client.Evaluate(ctx, tt.formula, tt.anchor)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			fields := out.AsMap()
			if fields["resultType"] != tt.resultType {
				t.Fatalf("resultType: got %v, want %s", fields["resultType"], tt.resultType)
			}
			tt.check(t, fields)
		})
	}
}

func TestEvaluateInvalidAnchor(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	_, err := NewClient(conn).Evaluate(context.Background(), "=1", "Sheet1!??")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("got %v, want InvalidArgument", err)
	}
}

func TestDependencies(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()
	client := NewClient(conn)
	ctx := context.Background()

	deps, err := client.Dependencies(ctx, "=A1+Sheet2!B2:B4", "")
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	want := []string{"Sheet1!A1", "Sheet2!B2:B4"}
	if !slices.Equal(deps, want) {
		t.Errorf("got %v, want %v", deps, want)
	}

	_, err = client.Dependencies(ctx, "=(1", "")
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("malformed formula: got %v, want InvalidArgument", err)
	}
}
