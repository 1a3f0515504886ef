package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/onlyadaydreamer/grid/pkg/api"
	grpcapi "github.com/onlyadaydreamer/grid/pkg/api/grpc"
	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/workbook"
)

// stack is a gridcalc server pair running in-process on loopback ports.
type stack struct {
	baseURL  string
	grpcAddr string
}

// startStack loads a workbook from testdata and serves it over HTTP and
// gRPC until the test ends.
func startStack(t *testing.T, workbookName string) *stack {
	t.Helper()

	s, err := workbook.LoadFile(filepath.Join("testdata", workbookName))
	if err != nil {
		t.Fatalf("failed to load workbook %s: %v", workbookName, err)
	}
	c := calc.New(calc.WithCells(s))

	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	server := api.New(s, c)
	go server.Serve(httpLn)

	grpcLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	grpcServer := grpcapi.New(s, c)
	go grpcServer.ServeListener(grpcLn)

	t.Cleanup(func() {
		grpcServer.GracefulStop()
		server.Shutdown()
	})

	st := &stack{
		baseURL:  "http://" + httpLn.Addr().String(),
		grpcAddr: grpcLn.Addr().String(),
	}
	st.waitReady(t)
	return st
}

func (st *stack) waitReady(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(st.apiURL("functions"))
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s did not become ready", st.baseURL)
}

// apiURL builds a full URL for the given API path.
func (st *stack) apiURL(path string) string {
	return st.baseURL + "/v1/" + path
}

// doJSON sends body (if any) and decodes the JSON response.
func (st *stack) doJSON(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, st.apiURL(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, data, err)
		}
	}
	return resp.StatusCode, out
}

// evaluate posts a formula and fails the test on a non-200 response.
func (st *stack) evaluate(t *testing.T, formula, anchor string) map[string]any {
	t.Helper()
	code, out := st.doJSON(t, http.MethodPost, "formulas:evaluate", map[string]string{
		"formula": formula,
		"anchor":  anchor,
	})
	if code != http.StatusOK {
		t.Fatalf("evaluate %s: status %d: %v", formula, code, out)
	}
	return out
}

// cell fetches a stored cell.
func (st *stack) cell(t *testing.T, sheetName, addr string) map[string]any {
	t.Helper()
	code, out := st.doJSON(t, http.MethodGet, fmt.Sprintf("sheets/%s/cells/%s", sheetName, addr), nil)
	if code != http.StatusOK {
		t.Fatalf("get %s!%s: status %d: %v", sheetName, addr, code, out)
	}
	return out
}

func (st *stack) dialGRPC(t *testing.T) *grpcapi.Client {
	t.Helper()
	conn, err := grpc.NewClient(st.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return grpcapi.NewClient(conn)
}

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}
