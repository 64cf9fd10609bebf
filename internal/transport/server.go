// Package transport wires the REST and WebSocket surfaces (spec §4.7, §6)
// to the session, resource, connection, and recording managers.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/config"
	"github.com/radiocontrol/simctrl/internal/connmgr"
	"github.com/radiocontrol/simctrl/internal/health"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
	"github.com/radiocontrol/simctrl/internal/logging"
	"github.com/radiocontrol/simctrl/internal/recording"
	"github.com/radiocontrol/simctrl/internal/resource"
	"github.com/radiocontrol/simctrl/internal/security"
	"github.com/radiocontrol/simctrl/internal/simsession"
)

// Server hosts the REST router and the six WebSocket endpoints.
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	sessions   *simsession.Manager
	resources  *resource.Manager
	conns      *connmgr.Registry
	recordings *recording.Manager
	driver     *hostdriver.Driver
	gate       *security.TokenGate
	health     *health.Aggregator
	deviceLock *deviceLocks

	router     *mux.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New builds a Server and its router; call Start to begin serving.
func New(
	cfg *config.Config,
	logger *logging.Logger,
	sessions *simsession.Manager,
	resources *resource.Manager,
	conns *connmgr.Registry,
	recordings *recording.Manager,
	driver *hostdriver.Driver,
	gate *security.TokenGate,
	healthAgg *health.Aggregator,
) *Server {
	s := &Server{
		cfg: cfg, logger: logger, sessions: sessions, resources: resources,
		conns: conns, recordings: recordings, driver: driver, gate: gate,
		health:     healthAgg,
		deviceLock: newDeviceLocks(),
		router:     mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.authMiddleware)

	r.HandleFunc("/api/sessions/configurations", s.handleConfigurations).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/create", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/", s.handleDeleteAllSessions).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/recover-orphaned", s.handleRecoverOrphaned).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/refresh", s.handleRefreshAll).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/cleanup-recordings", s.handleCleanupRecordings).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)

	r.HandleFunc("/api/sessions/{id}/apps/install", s.handleInstallApp).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/apps", s.handleListApps).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/apps/{bundle}/launch", s.handleLaunchApp).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/apps/{bundle}/terminate", s.handleTerminateApp).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/apps/{bundle}", s.handleUninstallApp).Methods(http.MethodDelete)

	r.HandleFunc("/api/sessions/{id}/screenshot", s.handleScreenshot).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/orientation", s.handleOrientation).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/url/open", s.handleOpenURL).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/location/set", s.handleSetLocation).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/location/clear", s.handleClearLocation).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/location/presets", s.handleLocationPresets).Methods(http.MethodGet)

	r.HandleFunc("/api/sessions/{id}/media/photos/add", s.handleAddPhotos).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/media/videos/add", s.handleAddVideos).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/files/push", s.handlePushFile).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/files/pull", s.handlePullFile).Methods(http.MethodPost)

	r.HandleFunc("/api/sessions/{id}/logs/processes", s.handleLogProcesses).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/logs/clear", s.handleLogsClear).Methods(http.MethodPost)

	r.HandleFunc("/api/sessions/{id}/recording/start", s.handleRecordingStart).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/recording/stop", s.handleRecordingStop).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/recording/status", s.handleRecordingStatus).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	r.HandleFunc("/ws/{session}/control", s.handleControlWS)
	r.HandleFunc("/ws/{session}/video", s.handleVideoWS(queueSizeStandard, 50*time.Millisecond))
	r.HandleFunc("/ws/{session}/ultra-low-latency", s.handleVideoWS(queueSizeUltra, time.Millisecond))
	r.HandleFunc("/ws/{session}/webrtc", s.handleWebRTCWS)
	r.HandleFunc("/ws/{session}/screenshot", s.handleScreenshotWS)
	r.HandleFunc("/ws/{session}/logs", s.handleLogsWS)
}

const (
	queueSizeStandard = 3
	queueSizeUltra    = 1
)

// Start begins serving HTTP on the configured bind address. It blocks
// until the server stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.BindHost + ":" + strconv.Itoa(s.cfg.Server.BindPort),
		Handler: s.router,
	}
	s.logger.WithField("addr", s.httpServer.Addr).Info("transport server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.gate.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.gate.Verify(r.Header.Get("Authorization")); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	writeJSON(w, apperrors.HTTPStatus(kind), map[string]string{
		"error":  string(kind),
		"reason": err.Error(),
	})
}
