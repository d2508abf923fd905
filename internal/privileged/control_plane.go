// Package privileged exposes the kernel to operators over HTTP.
package privileged

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"rosh/internal/kernel"
	"rosh/internal/logger"
	"rosh/internal/vfs"
)

// ===== Control Plane (HTTP) =====

type ControlPlane struct {
	kernel *kernel.Kernel
	log    *slog.Logger
}

func NewControlPlane(k *kernel.Kernel) *ControlPlane {
	return &ControlPlane{kernel: k, log: logger.For("control-plane")}
}

func (c *ControlPlane) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /processes", c.handleProcesses)
	mux.HandleFunc("GET /status", c.handleStatus)
	mux.HandleFunc("POST /send", c.handleSend)
	mux.HandleFunc("GET /fs", c.handleFS)
	return mux
}

// Serve listens on addr until ctx is done.
func (c *ControlPlane) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.log.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *ControlPlane) handleProcesses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.kernel.Processes())
}

type statusResp struct {
	Tick      uint64 `json:"tick"`
	Time      string `json:"time"`
	Processes int    `json:"processes"`
	Queued    int    `json:"queued"`
	Tasks     int    `json:"tasks"`
	Entries   int    `json:"entries"`
}

func (c *ControlPlane) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResp{
		Tick:      c.kernel.TickCount(),
		Time:      c.kernel.Timestamp(),
		Processes: len(c.kernel.Processes()),
		Queued:    c.kernel.Pending(),
		Tasks:     c.kernel.Tasks(),
		Entries:   c.kernel.FS().Len(),
	})
}

type sendReq struct {
	PID     kernel.PID `json:"pid"`
	Type    string     `json:"type"` // print, wait or kill
	Text    string     `json:"text,omitempty"`
	Waiting bool       `json:"waiting,omitempty"`
}

type sendResp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// handleSend queues a message as if another process had sent it. It is
// delivered on the next tick.
func (c *ControlPlane) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sendResp{OK: false, Error: err.Error()})
		return
	}

	var msg kernel.Message
	switch req.Type {
	case "print":
		msg = kernel.Print{Text: req.Text}
	case "wait":
		msg = kernel.SetWaitingForInput{Waiting: req.Waiting}
	case "kill":
		msg = kernel.Kill{}
	default:
		writeJSON(w, http.StatusBadRequest, sendResp{OK: false, Error: "unknown message type " + req.Type})
		return
	}

	c.kernel.Send(req.PID, msg)
	c.log.Info("message queued", "pid", req.PID, "msg", msg)
	writeJSON(w, http.StatusAccepted, sendResp{OK: true})
}

func (c *ControlPlane) handleFS(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		p = "/"
	}
	entries, err := c.kernel.FS().ReadFolder(r.Context(), p)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, vfs.ErrStorageUninitialized) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, sendResp{OK: false, Error: vfs.Describe(err)})
		return
	}
	if entries == nil {
		entries = []vfs.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
