package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"framecast/internal/hub"
	"framecast/internal/platform/logger"
	"framecast/internal/platform/metrics"
)

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(s.log))
	r.Use(metrics.RequestMiddleware(s.metrics))

	r.Get("/", s.handleIndex)
	r.Get("/ws", s.handleViewer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/viewers", s.handleViewers)
	if s.metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			s.metrics.Handler(s.cfg.UpdateGauges).ServeHTTP(w, r)
		})
	}
	if s.cfg.Routes != nil {
		s.cfg.Routes(r)
	}
	return r
}

// handleViewer upgrades the request and runs the viewer's read loop on this
// goroutine until the connection ends.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if !s.accepting.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.log.Debug("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	c, err := s.hub.Attach(ws, r.RemoteAddr)
	if err != nil {
		s.log.Warn("viewer attach failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		_ = ws.Close()
		return
	}

	// Stop may have swept the hub between the check above and Attach.
	if !s.accepting.Load() {
		_ = c.Close()
		return
	}
	c.ReadLoop()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"accepting": s.Running(),
		"clients":   s.hub.ClientCount(),
	})
}

func (s *Server) handleViewers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Viewers())
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(viewerPage))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// viewerPage is a minimal browser viewer for the wire protocol.
const viewerPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>framecast</title></head>
<body style="background:#111;color:#eee;font-family:monospace">
<img id="frame" alt="waiting for frames">
<pre id="status">connecting...</pre>
<script>
const img = document.getElementById("frame");
const status = document.getElementById("status");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (ev) => {
  const msg = JSON.parse(ev.data);
  if (msg.type === "` + hub.TypeWelcome + `") status.textContent = msg.message;
  if (msg.type === "` + hub.TypeFrame + `") img.src = "data:image/jpeg;base64," + msg.data;
  if (msg.type === "` + hub.TypeStats + `") status.textContent = JSON.stringify(msg.stats);
};
ws.onclose = () => { status.textContent = "disconnected"; };
</script>
</body>
</html>
`
