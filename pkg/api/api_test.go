package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := store.New()
	if _, err := s.CreateSheet("Sheet1", 10, 5); err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	return New(s, calc.New())
}

func do(t *testing.T, srv *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decoding %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func errorStatus(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["status"].(string)
	return s
}

func TestEvaluate(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPut, "/v1/sheets/Sheet1/cells/A1", `{"text":"10"}`)
	do(t, srv, http.MethodPut, "/v1/sheets/Sheet1/cells/B1", `{"text":"32"}`)

	tests := []struct {
		name    string
		body    string
		want    map[string]any
		wantErr string
	}{
		{
			name: "number",
			body: `{"formula":"=A1+B1"}`,
			want: map[string]any{"result": 42.0, "resultType": "number"},
		},
		{
			name: "string",
			body: `{"formula":"=\"n=\"&A1"}`,
			want: map[string]any{"result": "n=10", "resultType": "string"},
		},
		{
			name: "error omits result",
			body: `{"formula":"=1/0"}`,
			want: map[string]any{"resultType": "error", "error": "DivByZero"},
		},
		{
			name: "hyperlink",
			body: `{"formula":"=HYPERLINK(\"https://x\",\"X\")"}`,
			want: map[string]any{
				"result":     "X",
				"resultType": "hyperlink",
				"hyperlink":  "https://x",
				"color":      calc.DefaultHyperlinkColor,
				"underline":  true,
			},
		},
		{
			name: "empty formula",
			body: `{"formula":""}`,
			want: map[string]any{},
		},
		{
			name: "anchor selects the row",
			body: `{"formula":"=ROW()","anchor":"Sheet1!C7"}`,
			want: map[string]any{"result": 7.0, "resultType": "number"},
		},
		{
			name:    "bad anchor",
			body:    `{"formula":"=1","anchor":"!!"}`,
			wantErr: "INVALID_ARGUMENT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, http.MethodPost, "/v1/formulas:evaluate", tt.body)
			if tt.wantErr != "" {
				if code != http.StatusBadRequest || errorStatus(body) != tt.wantErr {
					t.Fatalf("got %d %v, want %s", code, body, tt.wantErr)
				}
				return
			}
			if code != http.StatusOK {
				t.Fatalf("status %d: %v", code, body)
			}
			for k, want := range tt.want {
				if body[k] != want {
					t.Errorf("%s: got %v, want %v", k, body[k], want)
				}
			}
			if _, ok := body["errorMessage"]; tt.want["error"] == nil && ok {
				t.Errorf("errorMessage should be omitted: %v", body)
			}
			if _, ok := body["result"]; tt.want["result"] == nil && ok {
				t.Errorf("result should be omitted: %v", body)
			}
		})
	}
}

func TestDependencies(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/v1/formulas:dependencies", `{"formula":"=A1+Sheet2!B2:B4"}`)
	if code != http.StatusOK {
		t.Fatalf("status %d: %v", code, body)
	}
	deps, _ := body["dependencies"].([]any)
	if len(deps) != 2 {
		t.Fatalf("got %v, want 2 dependencies", deps)
	}
	want := []string{"Sheet1!A1", "Sheet2!B2:B4"}
	for i, d := range deps {
		ref, _ := d.(map[string]any)["reference"].(string)
		if ref != want[i] {
			t.Errorf("dependency %d: got %q, want %q", i, ref, want[i])
		}
	}

	code, body = do(t, srv, http.MethodPost, "/v1/formulas:dependencies", `{"formula":"=SUM("}`)
	if code != http.StatusBadRequest || errorStatus(body) != "INVALID_ARGUMENT" {
		t.Errorf("malformed formula: got %d %v", code, body)
	}
}

func TestSheetsAPI(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, http.MethodPost, "/v1/sheets", `{"name":"Data","rowCount":3,"columnCount":2}`)
	if code != http.StatusCreated {
		t.Fatalf("create: status %d", code)
	}
	code, body := do(t, srv, http.MethodPost, "/v1/sheets", `{"name":"Data"}`)
	if code != http.StatusConflict || errorStatus(body) != "ALREADY_EXISTS" {
		t.Errorf("duplicate: got %d %v", code, body)
	}
	code, body = do(t, srv, http.MethodPost, "/v1/sheets", `{"name":"  "}`)
	if code != http.StatusBadRequest {
		t.Errorf("blank name: got %d %v", code, body)
	}

	_, body = do(t, srv, http.MethodGet, "/v1/sheets", "")
	if sheets, _ := body["sheets"].([]any); len(sheets) != 2 {
		t.Errorf("list: got %v", body)
	}

	code, body = do(t, srv, http.MethodPatch, "/v1/sheets/Data", `{"rowCount":8,"columnCount":4}`)
	if code != http.StatusOK || body["rowCount"] != 8.0 {
		t.Errorf("resize: got %d %v", code, body)
	}

	if code, _ := do(t, srv, http.MethodDelete, "/v1/sheets/Data", ""); code != http.StatusOK {
		t.Errorf("delete: status %d", code)
	}
	code, body = do(t, srv, http.MethodGet, "/v1/sheets/Data", "")
	if code != http.StatusNotFound || errorStatus(body) != "NOT_FOUND" {
		t.Errorf("get deleted: got %d %v", code, body)
	}
}

func TestCellsAPI(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		addr string
		body string
		want sheet.DataType
	}{
		{"A1", `{"text":"12.5"}`, sheet.DataNumber},
		{"A2", `{"text":"true"}`, sheet.DataBoolean},
		{"A3", `{"text":"=A1*2"}`, sheet.DataFormula},
		{"A4", `{"text":"hello"}`, sheet.DataString},
		{"A5", `{"text":"7","datatype":"string"}`, sheet.DataString},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			code, body := do(t, srv, http.MethodPut, "/v1/sheets/Sheet1/cells/"+tt.addr, tt.body)
			if code != http.StatusOK {
				t.Fatalf("status %d: %v", code, body)
			}
			if body["datatype"] != string(tt.want) {
				t.Errorf("got %v, want %s", body["datatype"], tt.want)
			}
		})
	}

	_, body := do(t, srv, http.MethodGet, "/v1/sheets/Sheet1/cells", "")
	if cells, _ := body["cells"].([]any); len(cells) != len(tests) {
		t.Errorf("list: got %v", body)
	}

	if code, _ := do(t, srv, http.MethodDelete, "/v1/sheets/Sheet1/cells/A4", ""); code != http.StatusOK {
		t.Errorf("clear: status %d", code)
	}
	if code, _ := do(t, srv, http.MethodGet, "/v1/sheets/Sheet1/cells/A4", ""); code != http.StatusNotFound {
		t.Errorf("cleared cell: status %d, want 404", code)
	}
	if code, body := do(t, srv, http.MethodGet, "/v1/sheets/Nope/cells/A1", ""); code != http.StatusNotFound {
		t.Errorf("unknown sheet: got %d %v", code, body)
	}
	if code, _ := do(t, srv, http.MethodGet, "/v1/sheets/Sheet1/cells/1A", ""); code != http.StatusBadRequest {
		t.Errorf("bad address: status %d, want 400", code)
	}
}

func TestOverlayAPI(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPut, "/v1/sheets/Sheet1/cells/A1", `{"text":"10"}`)

	_, body := do(t, srv, http.MethodPost, "/v1/overlay:cache",
		`{"changes":{"Sheet1":{"1":{"1":{"text":"5","datatype":"number"}}}}}`)
	if body["pending"] != 1.0 {
		t.Fatalf("cache: got %v", body)
	}

	_, body = do(t, srv, http.MethodPost, "/v1/formulas:evaluate", `{"formula":"=A1"}`)
	if body["result"] != 5.0 {
		t.Errorf("overlay should win: got %v", body)
	}

	do(t, srv, http.MethodPost, "/v1/overlay:clear", "")
	_, body = do(t, srv, http.MethodGet, "/v1/overlay", "")
	if body["pending"] != 0.0 {
		t.Errorf("clear: got %v", body)
	}
	_, body = do(t, srv, http.MethodPost, "/v1/formulas:evaluate", `{"formula":"=A1"}`)
	if body["result"] != 10.0 {
		t.Errorf("store value after clear: got %v", body)
	}
}

func TestRecalculateAndExport(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPut, "/v1/sheets/Sheet1/cells/A1", `{"text":"4"}`)
	do(t, srv, http.MethodPut, "/v1/sheets/Sheet1/cells/A2", `{"text":"=A1^2"}`)
	do(t, srv, http.MethodPut, "/v1/sheets/Sheet1/cells/A3", `{"text":"=A2+A1"}`)

	code, body := do(t, srv, http.MethodPost, "/v1/workbook:recalculate", "")
	if code != http.StatusOK {
		t.Fatalf("status %d: %v", code, body)
	}
	if body["evaluated"] != 2.0 || body["levels"] != 2.0 {
		t.Errorf("report: %v", body)
	}

	_, body = do(t, srv, http.MethodGet, "/v1/sheets/Sheet1/cells/A3", "")
	if body["result"] != 20.0 || body["resultType"] != "number" {
		t.Errorf("A3: got %v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/workbook", nil)
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("content type: %q", ct)
	}
	if !strings.Contains(string(out), "A2:") || !strings.Contains(string(out), "=A1^2") {
		t.Errorf("export missing cells:\n%s", out)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	code, body := do(t, srv, http.MethodGet, "/v2/nothing", "")
	if code != http.StatusNotFound || errorStatus(body) != "NOT_FOUND" {
		t.Errorf("got %d %v", code, body)
	}
}
