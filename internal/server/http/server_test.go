package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DataDog/zstd"

	cfgpkg "github.com/Ovyl/zmod/internal/config"
	"github.com/Ovyl/zmod/internal/runtime"
	"github.com/Ovyl/zmod/pkg/log"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.SectorSize = 512
	cfg.Sectors = 4
	reg := log.NewRegistry(log.WithOutput(log.NewWriterOutput(io.Discard)))
	rt, err := runtime.Open(runtime.Options{Config: cfg, Registry: reg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() {
		_ = rt.Close()
		_ = reg.Close()
	})
	return New(rt)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/v1/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("body: %s", w.Body.String())
	}
}

func TestStatusHandler(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/v1/logs/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var resp statusResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Level != "inf" {
		t.Fatalf("level = %q", resp.Level)
	}
	if resp.SectorCount != 4 || resp.SectorSize != 512 {
		t.Fatalf("geometry = %+v", resp)
	}
	if resp.Exporting {
		t.Fatalf("exporting should be false at rest")
	}
	if resp.Entries == 0 {
		t.Fatalf("the runtime open line should be stored")
	}
}

func TestClearHandler(t *testing.T) {
	s := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/v1/logs/clear", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET clear status: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/v1/logs/clear", ""); w.Code != http.StatusNoContent {
		t.Fatalf("clear status: %d", w.Code)
	}
	w := do(t, s, http.MethodGet, "/v1/logs/status", "")
	var resp statusResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Entries != 0 {
		t.Fatalf("entries after clear = %d", resp.Entries)
	}
}

func TestExportHandlerPlain(t *testing.T) {
	s := newTestServer(t)
	s.rt.Registry().Register("app", log.Debug).Logger().Info("export me")

	w := do(t, s, http.MethodGet, "/v1/logs/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("content type: %q", got)
	}
	if w.Header().Get("X-Export-Session") == "" {
		t.Fatalf("missing export session header")
	}
	if !strings.Contains(w.Body.String(), "INF app: export me") {
		t.Fatalf("body: %q", w.Body.String())
	}
}

func TestExportHandlerZstd(t *testing.T) {
	s := newTestServer(t)
	s.rt.Registry().Register("app", log.Debug).Logger().Info("squeeze me")

	w := do(t, s, http.MethodGet, "/v1/logs/export?compress=zstd", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/zstd" {
		t.Fatalf("content type: %q", got)
	}
	rd := zstd.NewReader(bytes.NewReader(w.Body.Bytes()))
	defer rd.Close()
	plain, err := io.ReadAll(rd)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !strings.Contains(string(plain), "INF app: squeeze me") {
		t.Fatalf("decompressed: %q", plain)
	}
}

func TestExportRejectsUnknownCompression(t *testing.T) {
	s := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/v1/logs/export?compress=gzip", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestLevelsHandler(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/v1/logs/levels", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var resp levelsResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Active != "inf" || resp.Floor != "err" {
		t.Fatalf("active=%q floor=%q", resp.Active, resp.Floor)
	}
	if len(resp.Names) != 5 {
		t.Fatalf("names = %v", resp.Names)
	}
	found := false
	for _, src := range resp.Sources {
		if src.Source == "runtime" {
			found = true
		}
	}
	if !found {
		t.Fatalf("runtime source missing from %v", resp.Sources)
	}
}

func TestSetLevelHandler(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPut, "/v1/logs/level", `{"level":"dbg"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"dbg"`) {
		t.Fatalf("body: %s", w.Body.String())
	}

	// Numeric spelling.
	if w := do(t, s, http.MethodPut, "/v1/logs/level", `{"level":"2"}`); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"wrn"`) {
		t.Fatalf("numeric level: %d %s", w.Code, w.Body.String())
	}

	// Below the floor clamps; the response carries the effective level.
	if w := do(t, s, http.MethodPut, "/v1/logs/level", `{"level":"off"}`); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"err"`) {
		t.Fatalf("clamped level: %d %s", w.Code, w.Body.String())
	}

	if w := do(t, s, http.MethodPut, "/v1/logs/level", `{"level":"loud"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown level: %d", w.Code)
	}
	if w := do(t, s, http.MethodPut, "/v1/logs/level", `{"level":"9"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("out of range numeric: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/v1/logs/level", `{"level":"dbg"}`); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST level: %d", w.Code)
	}
}

func TestSettingsHandlers(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/v1/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var items []settingItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var level *settingItem
	for i := range items {
		if items[i].Key == "log_level" {
			level = &items[i]
		}
	}
	if level == nil {
		t.Fatalf("log_level missing from %v", items)
	}
	if !level.Stored {
		t.Fatalf("policy init should have persisted the default level")
	}

	if w := do(t, s, http.MethodPost, "/v1/settings/reset", ""); w.Code != http.StatusNoContent {
		t.Fatalf("reset status: %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/v1/settings", "")
	items = nil
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, it := range items {
		if it.Key == "log_level" && it.Stored {
			t.Fatalf("reset should drop the stored level")
		}
	}

	if w := do(t, s, http.MethodPost, "/v1/settings/reset?all=true", ""); w.Code != http.StatusNoContent {
		t.Fatalf("reset all status: %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodOptions, "/v1/logs/status", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS headers")
	}
}
