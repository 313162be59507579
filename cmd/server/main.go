package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/miretskiy/fireworks/internal/logging"
	"github.com/miretskiy/fireworks/simulator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// defaultViewport is used until the client reports its size
var defaultViewport = simulator.Viewport{Width: 1280, Height: 720}

// Client message types
type ClientMessage struct {
	Type     string                 `json:"type"` // launch, config_update, resize, stop, reset
	X        *float64               `json:"x,omitempty"`
	Config   *simulator.ConfigPatch `json:"config,omitempty"`
	Viewport *simulator.Viewport    `json:"viewport,omitempty"`
}

// Server message types
type ServerMessage struct {
	Type     string              `json:"type"` // status, frame, outcome, error
	Running  *bool               `json:"running,omitempty"`
	Disabled bool                `json:"disabled,omitempty"`
	Config   *simulator.Config   `json:"config,omitempty"`
	Stats    *simulator.Stats    `json:"stats,omitempty"`
	Metrics  *simulator.Metrics  `json:"metrics,omitempty"`
	Elements []simulator.Element `json:"elements,omitempty"`
	Outcome  string              `json:"outcome,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// safeConn wraps a WebSocket connection with a mutex to prevent concurrent writes
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}

// server holds what every connection shares
type server struct {
	cfg      *Config
	logger   *zap.Logger
	tmpl     *template.Template
	sessions *sessionStats
	nextID   atomic.Uint64
	quit     chan struct{}
	quitOnce sync.Once
}

// session is one connected client with its own simulation
type session struct {
	id     uint64
	conn   *safeConn
	runner *simulator.Runner
	scene  *simulator.Scene
	logger *zap.Logger
	stopCh chan struct{}
}

func (s *server) newSession(conn *safeConn) (*session, error) {
	id := s.nextID.Add(1)
	logger := s.logger.With(zap.Uint64("session", id))

	scene := simulator.NewScene()
	sim, err := simulator.NewSimulator(s.cfg.Fireworks, scene, defaultViewport,
		simulator.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	sim.OnEvent = recordEvent

	return &session{
		id:     id,
		conn:   conn,
		runner: simulator.NewRunner(sim, s.cfg.Server.FrameInterval()),
		scene:  scene,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

func (sess *session) sendStatus() error {
	running := sess.runner.IsRunning()
	cfg := sess.runner.Config()
	return sess.conn.WriteJSON(ServerMessage{
		Type:    "status",
		Running: &running,
		Config:  &cfg,
		Metrics: sess.runner.Metrics(),
	})
}

func (sess *session) sendError(err error) error {
	return sess.conn.WriteJSON(ServerMessage{Type: "error", Error: err.Error()})
}

// uiUpdateLoop periodically pushes the scene to the client and logs stats.
// This runs in its own goroutine; the simulation itself is paced by the runner.
func (s *server) uiUpdateLoop(sess *session) {
	ticker := time.NewTicker(s.cfg.Server.UIInterval)
	defer ticker.Stop()
	statsTicker := time.NewTicker(s.cfg.Server.StatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-sess.stopCh:
			sess.logger.Debug("UI update loop stopping")
			return

		case <-statsTicker.C:
			stats := sess.runner.Stats()
			sess.logger.Info("stats",
				zap.Int("rockets", stats.Rockets),
				zap.Int("particles", stats.Particles),
				zap.Int("queue", stats.QueueLength),
				zap.Int("totalActive", stats.TotalActive))

		case <-ticker.C:
			stats := sess.runner.Stats()
			s.sessions.update(sess.id, stats)
			frame := ServerMessage{
				Type:     "frame",
				Stats:    &stats,
				Elements: sess.scene.Snapshot(),
			}
			if err := sess.conn.WriteJSON(frame); err != nil {
				sess.logger.Warn("error sending frame", zap.Error(err))
				return
			}
		}
	}
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("error upgrading connection", zap.Error(err))
		return
	}
	defer conn.Close()

	// Wrap connection with mutex for safe concurrent writes
	sc := &safeConn{Conn: conn}

	if s.cfg.Server.isDisabled(r.UserAgent()) {
		promMetrics.rejected.Inc()
		s.logger.Info("fireworks disabled for client", zap.String("userAgent", r.UserAgent()))
		if err := sc.WriteJSON(ServerMessage{Type: "status", Disabled: true}); err != nil {
			s.logger.Warn("error sending status", zap.Error(err))
		}
		return
	}

	sess, err := s.newSession(sc)
	if err != nil {
		s.logger.Error("error creating simulator", zap.Error(err))
		return
	}
	sess.logger.Info("client connected", zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		// Clean up
		cancel()
		close(sess.stopCh)
		sess.runner.Stop()
		s.sessions.remove(sess.id)
		sess.logger.Info("client disconnected", zap.Uint64("frames", sess.runner.Metrics().Frames))
	}()

	sess.runner.Start(ctx)
	if err := sess.sendStatus(); err != nil {
		sess.logger.Warn("error sending status", zap.Error(err))
		return
	}

	// Start UI update loop
	go s.uiUpdateLoop(sess)

	// Handle messages from client
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Warn("error reading message", zap.Error(err))
			}
			return
		}
		if err := s.handleMessage(sess, msg); err != nil {
			sess.logger.Warn("error writing reply", zap.String("type", msg.Type), zap.Error(err))
			return
		}
	}
}

// handleMessage applies one client command. The returned error is a write
// failure; command errors are reported to the client.
func (s *server) handleMessage(sess *session, msg ClientMessage) error {
	sess.logger.Debug("received command", zap.String("type", msg.Type))

	switch msg.Type {
	case "launch":
		if msg.X == nil {
			return sess.sendError(fmt.Errorf("launch requires x"))
		}
		outcome := sess.runner.RequestFirework(*msg.X)
		promMetrics.launches.WithLabelValues(outcome.String()).Inc()
		return sess.conn.WriteJSON(ServerMessage{Type: "outcome", Outcome: outcome.String()})

	case "config_update":
		if msg.Config == nil {
			return sess.sendError(fmt.Errorf("config_update requires config"))
		}
		if err := sess.runner.UpdateConfig(*msg.Config); err != nil {
			sess.logger.Info("rejected config update", zap.Error(err))
			return sess.sendError(err)
		}
		return sess.sendStatus()

	case "resize":
		if msg.Viewport == nil {
			return sess.sendError(fmt.Errorf("resize requires viewport"))
		}
		if err := sess.runner.Resize(*msg.Viewport); err != nil {
			return sess.sendError(err)
		}
		return nil

	case "stop":
		sess.runner.Stop()
		sess.logger.Info("fireworks stopped")
		return sess.sendStatus()

	case "reset":
		sess.runner.Reset()
		sess.logger.Info("fireworks reset")
		return sess.sendStatus()

	default:
		return sess.sendError(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (s *server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := struct {
		Title    string
		Disabled bool
	}{
		Title:    s.cfg.Server.Title,
		Disabled: s.cfg.Server.isDisabled(r.UserAgent()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.logger.Error("error executing template", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *server) quitHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("shutdown requested via /quitquitquit")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Server shutting down...")
	s.quitOnce.Do(func() { close(s.quit) })
}

func (s *server) routes(reg prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHome)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/quitquitquit", s.quitHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func run() error {
	defaultPath := os.Getenv("FIREWORKS_CONFIG")
	if defaultPath == "" {
		defaultPath = "config/server.toml"
	}
	configPath := flag.String("config", defaultPath, "Path to server TOML config")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tmpl, err := template.ParseFiles(cfg.Server.TemplatePath)
	if err != nil {
		return fmt.Errorf("load template %s: %w", cfg.Server.TemplatePath, err)
	}
	logger.Info("loaded template", zap.String("path", cfg.Server.TemplatePath))

	reg := prometheus.NewRegistry()
	initPrometheusMetrics(reg)

	s := &server{
		cfg:      cfg,
		logger:   logger,
		tmpl:     tmpl,
		sessions: newSessionStats(),
		quit:     make(chan struct{}),
	}
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: s.routes(reg),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("websocket", "/ws"),
			zap.String("metrics", "/metrics"),
			zap.Int("maxActiveFireworks", cfg.Fireworks.MaxActiveFireworks),
			zap.Int("particlesPerFirework", cfg.Fireworks.ParticlesPerFirework))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case <-s.quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
