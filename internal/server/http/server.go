package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/zstd"

	"github.com/Ovyl/zmod/internal/loglevel"
	"github.com/Ovyl/zmod/internal/logstore"
	"github.com/Ovyl/zmod/internal/runtime"
	"github.com/Ovyl/zmod/pkg/log"
)

// Server is the REST operational surface over a runtime.
type Server struct {
	rt  *runtime.Runtime
	srv *http.Server
	lis net.Listener
}

// New builds the server and its routes.
func New(rt *runtime.Runtime) *Server {
	mux := http.NewServeMux()
	s := &Server{rt: rt, srv: &http.Server{Handler: cors(mux)}}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/logs/status", s.handleStatus)
	mux.HandleFunc("/v1/logs/clear", s.handleClear)
	mux.HandleFunc("/v1/logs/export", s.handleExport)
	mux.HandleFunc("/v1/logs/levels", s.handleLevels)
	mux.HandleFunc("/v1/logs/level", s.handleSetLevel)
	mux.HandleFunc("/v1/settings", s.handleSettings)
	mux.HandleFunc("/v1/settings/reset", s.handleSettingsReset)
	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the bound listen address, empty before ListenAndServe.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Close stops the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// storeError maps store sentinels onto HTTP statuses.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, logstore.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, "store busy")
	case errors.Is(err, logstore.ErrNotOpen):
		writeError(w, http.StatusServiceUnavailable, "store not open")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusResp struct {
	Exporting     bool   `json:"exporting"`
	ExportSession string `json:"exportSession,omitempty"`
	Level         string `json:"level"`
	SectorSize    int    `json:"sectorSize"`
	SectorCount   int    `json:"sectorCount"`
	UsedSectors   int    `json:"usedSectors"`
	Entries       int    `json:"entries"`
	Bytes         int64  `json:"bytes"`
	TailSeq       uint32 `json:"tailSeq"`
	HeadSeq       uint32 `json:"headSeq"`
	SinkAccepted  uint64 `json:"sinkAccepted"`
	SinkDropped   uint64 `json:"sinkDropped"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st, err := s.rt.Status()
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, statusResp{
		Exporting:     st.Stats.Exporting,
		ExportSession: st.ExportID,
		Level:         st.Level.Name(),
		SectorSize:    st.Stats.SectorSize,
		SectorCount:   st.Stats.SectorCount,
		UsedSectors:   st.Stats.UsedSectors,
		Entries:       st.Stats.Entries,
		Bytes:         st.Stats.Bytes,
		TailSeq:       st.Stats.TailSeq,
		HeadSeq:       st.Stats.HeadSeq,
		SinkAccepted:  st.SinkAccepted,
		SinkDropped:   st.SinkDropped,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.rt.Clear(); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lazyZstd defers frame creation to the first write, so an export that
// fails before producing any bytes can still send a JSON error body.
type lazyZstd struct {
	w  io.Writer
	zw *zstd.Writer
}

func (l *lazyZstd) Write(p []byte) (int, error) {
	if l.zw == nil {
		l.zw = zstd.NewWriter(l.w)
	}
	return l.zw.Write(p)
}

func (l *lazyZstd) Close() error {
	if l.zw == nil {
		return nil
	}
	return l.zw.Close()
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body io.Writer = w
	var z *lazyZstd
	switch r.URL.Query().Get("compress") {
	case "":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case "zstd":
		w.Header().Set("Content-Type", "application/zstd")
		z = &lazyZstd{w: w}
		body = z
	default:
		writeError(w, http.StatusBadRequest, "unknown compression")
		return
	}

	sid := s.rt.NewExportSession()
	w.Header().Set("X-Export-Session", sid)

	err := s.rt.Export(r.Context(), sid, body)
	if z != nil && err == nil {
		err = z.Close()
	}
	if err != nil {
		if errors.Is(err, logstore.ErrBusy) || errors.Is(err, logstore.ErrNotOpen) {
			// Nothing streamed yet; the error body is still deliverable.
			storeError(w, err)
			return
		}
		// Mid-stream failure. The truncated body is all the client gets;
		// the runtime has already logged the cause.
		return
	}
}

type levelInfo struct {
	Source  string `json:"source"`
	Level   string `json:"level"`
	Ceiling string `json:"ceiling"`
}

type levelsResp struct {
	Active  string      `json:"active"`
	Floor   string      `json:"floor"`
	Names   []string    `json:"names"`
	Sources []levelInfo `json:"sources"`
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := levelsResp{
		Active: s.rt.Policy().Level().Name(),
		Floor:  s.rt.Policy().Floor().Name(),
	}
	for _, l := range log.Levels() {
		resp.Names = append(resp.Names, l.Name())
	}
	for _, src := range s.rt.Registry().Sources() {
		resp.Sources = append(resp.Sources, levelInfo{
			Source:  src.Name(),
			Level:   src.Level().Name(),
			Ceiling: src.Ceiling().Name(),
		})
	}
	writeJSON(w, resp)
}

type setLevelReq struct {
	Level string `json:"level"`
}

func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req setLevelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	lvl, err := parseLevelArg(req.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.rt.Policy().Set(lvl); err != nil {
		switch {
		case errors.Is(err, loglevel.ErrInvalidLevel):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, loglevel.ErrPersist):
			// The level is live but will not survive a restart.
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, map[string]string{"level": s.rt.Policy().Level().Name()})
}

// parseLevelArg accepts severity names and their numeric spellings.
func parseLevelArg(arg string) (log.Level, error) {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.Atoi(arg); err == nil {
		return log.Level(n), nil
	}
	return log.ParseLevel(arg)
}

type settingItem struct {
	Key        string `json:"key"`
	Value      []byte `json:"value"`
	Default    []byte `json:"default"`
	Resettable bool   `json:"resettable"`
	Stored     bool   `json:"stored"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.rt.Settings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]settingItem, 0, len(items))
	for _, it := range items {
		out = append(out, settingItem{
			Key:        it.Key,
			Value:      it.Value,
			Default:    it.Default,
			Resettable: it.Resettable,
			Stored:     it.Stored,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleSettingsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var err error
	if r.URL.Query().Get("all") == "true" {
		err = s.rt.Settings().ResetAll()
	} else {
		err = s.rt.Settings().ResetDefaults()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
