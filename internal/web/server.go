// Package web provides the HTTP surface of the pothole-guard daemon: the
// status page, JSON snapshots, detector controls and the camera feed.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/status"
)

// Default push intervals.
const (
	DefaultWSInterval    = time.Second
	DefaultVideoInterval = 50 * time.Millisecond
)

const maxSetBody = 4 << 10

// Server serves the status page and controls over HTTP.
type Server struct {
	httpServer    *http.Server
	tracker       *status.Tracker
	upgrader      websocket.Upgrader
	wsInterval    time.Duration
	videoInterval time.Duration
}

// New creates a Server that reads state from and applies controls to the
// given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{
		tracker:       tracker,
		wsInterval:    DefaultWSInterval,
		videoInterval: DefaultVideoInterval,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/metrics", s.handleJSON)
	mux.HandleFunc("/toggle", s.handleToggle)
	mux.HandleFunc("/set", s.handleSet)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/snapshot.jpg", s.handleSnapshot)
	mux.HandleFunc("/video", s.handleVideo)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	on := s.tracker.ToggleDetect()
	log.Printf("web: detection %s", map[bool]string{true: "enabled", false: "disabled"}[on])
	writeJSON(w, http.StatusOK, map[string]bool{"detect_enabled": on})
}

// SetResponse is the body returned by POST /set.
type SetResponse struct {
	OK       bool    `json:"ok"`
	Msg      string  `json:"msg,omitempty"`
	Error    string  `json:"error,omitempty"`
	Conf     float64 `json:"conf"`
	ImgSz    int     `json:"imgsz"`
	ProcessN int     `json:"process_n"`
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var u logic.ParamsUpdate
	body := http.MaxBytesReader(w, r.Body, maxSetBody)
	if err := json.NewDecoder(body).Decode(&u); err != nil && !errors.Is(err, io.EOF) {
		p := s.tracker.RuntimeParams()
		writeJSON(w, http.StatusBadRequest, SetResponse{
			Error:    fmt.Sprintf("invalid body: %v", err),
			Conf:     p.Conf,
			ImgSz:    p.ImgSz,
			ProcessN: p.ProcessEveryN,
		})
		return
	}

	p, err := s.tracker.SetRuntimeParams(u)
	resp := SetResponse{Conf: p.Conf, ImgSz: p.ImgSz, ProcessN: p.ProcessEveryN}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	log.Printf("web: params conf=%v imgsz=%d process_n=%d", p.Conf, p.ImgSz, p.ProcessEveryN)
	resp.OK = true
	resp.Msg = "updated"
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	jpeg := s.tracker.LatestFrame()
	if jpeg == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	if r.URL.Path == "/snapshot" {
		w.Header().Set("Content-Disposition", `attachment; filename="snapshot.jpg"`)
	}
	w.Write(jpeg)
}

// sameFrame reports whether a and b are the same published frame.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Accel-Buffering", "no")

	ticker := time.NewTicker(s.videoInterval)
	defer ticker.Stop()

	var last []byte
	for {
		if f := s.tracker.LatestFrame(); f != nil && !sameFrame(f, last) {
			last = f
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(f)); err != nil {
				return
			}
			if _, err := w.Write(f); err != nil {
				return
			}
			if _, err := io.WriteString(w, "\r\n"); err != nil {
				return
			}
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// handleWS pushes the compact status JSON to the client every wsInterval
// until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: ws upgrade: %v", err)
		return
	}
	defer c.Close()

	// Drain client messages so control frames are handled and close is noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.wsInterval)
	defer ticker.Stop()
	for {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, status.FormatCompact(s.tracker.Snapshot())); err != nil {
			return
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
