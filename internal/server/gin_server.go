package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"matrixpanel/internal/assets"
	"matrixpanel/internal/console"
	"matrixpanel/internal/health"
	"matrixpanel/internal/mdns"
	"matrixpanel/internal/netinfo"
	"matrixpanel/internal/runtime/supervisor"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

const (
	// DefaultPort and DefaultBindAddress expose the panel on every interface.
	DefaultPort        = 3000
	DefaultBindAddress = "0.0.0.0"

	maxStaticAssetPathLen = 4 * 1024 // guard against path-based DoS

	envDisableMDNS = "MATRIX_DISABLE_MDNS"
)

// GinServer serves the matrix panel's static assets and a few operational
// endpoints.
type GinServer struct {
	router  *gin.Engine
	version string

	port        int
	bindAddress string

	assetRoot   string
	assetFS     fs.FS
	assetSource assets.Source

	mdnsEnabled bool
	mdnsName    string
	mdnsManager *mdns.Manager

	healthTracker *health.Tracker
	supervisor    *supervisor.Supervisor

	bannerOut         io.Writer
	resolveLANAddress func() string

	srv      *http.Server
	stopOnce sync.Once
	stopErr  error
	stopped  chan struct{}
}

// GinServerOption is a function that configures a GinServer.
type GinServerOption func(*GinServer)

// WithGinVersion sets the version reported by /version and response headers.
func WithGinVersion(version string) GinServerOption {
	return func(s *GinServer) {
		s.version = version
	}
}

// WithPort overrides DefaultPort. Zero asks the OS for a free port.
func WithPort(port int) GinServerOption {
	return func(s *GinServer) {
		s.port = port
	}
}

func WithBindAddress(addr string) GinServerOption {
	return func(s *GinServer) {
		s.bindAddress = addr
	}
}

// WithAssetRoot serves files from dir instead of assets.Root().
func WithAssetRoot(dir string) GinServerOption {
	return func(s *GinServer) {
		s.assetRoot = dir
	}
}

// WithAssetFS serves files from fsys. The tree is not watched.
func WithAssetFS(fsys fs.FS) GinServerOption {
	return func(s *GinServer) {
		s.assetFS = fsys
	}
}

// WithMDNS toggles advertising name over multicast DNS.
func WithMDNS(enabled bool, name string) GinServerOption {
	return func(s *GinServer) {
		s.mdnsEnabled = enabled
		s.mdnsName = name
	}
}

// WithBannerOutput redirects the startup banner (default stdout).
func WithBannerOutput(w io.Writer) GinServerOption {
	return func(s *GinServer) {
		s.bannerOut = w
	}
}

// WithLANResolver replaces the LAN address lookup used by the banner.
func WithLANResolver(fn func() string) GinServerOption {
	return func(s *GinServer) {
		s.resolveLANAddress = fn
	}
}

// NewGinServer creates the panel server and initializes its components.
func NewGinServer(opts ...GinServerOption) (*GinServer, error) {
	s := &GinServer{
		version:           "dev",
		port:              DefaultPort,
		bindAddress:       DefaultBindAddress,
		mdnsEnabled:       os.Getenv(envDisableMDNS) != "1",
		mdnsName:          mdns.DefaultName,
		healthTracker:     health.NewTracker(),
		supervisor:        supervisor.New(),
		bannerOut:         os.Stdout,
		resolveLANAddress: netinfo.ResolveLocalIPv4,
		stopped:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.assetFS == nil {
		if s.assetRoot == "" {
			s.assetRoot = assets.Root()
		}
		fsys, source, err := assets.Open(s.assetRoot)
		if err != nil {
			return nil, fmt.Errorf("asset root: %w", err)
		}
		s.assetFS = fsys
		s.assetSource = source
	}

	// Set Gin to release mode for production (can be overridden by GIN_MODE env var)
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.healthTracker.Setf(health.ComponentHTTP, health.LevelWarn, "not listening yet")
	s.refreshAssetHealth()

	if s.assetSource == assets.SourceDisk {
		s.supervisor.Register(s.newAssetWatcherComponent())
	}
	if s.mdnsEnabled {
		s.mdnsManager = mdns.NewManager(s.mdnsName)
		s.supervisor.Register(s.newMDNSComponent())
	} else {
		s.healthTracker.Setf(health.ComponentMDNS, health.LevelOK, "mdns disabled")
	}

	s.setupGinRoutes()
	s.srv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start binds the listening socket and serves until Stop. A bind failure
// is returned as *BindError before anything is printed.
func (s *GinServer) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Listen binds bindAddress:port.
func (s *GinServer) Listen() (net.Listener, error) {
	addr := net.JoinHostPort(s.bindAddress, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}
	s.healthTracker.Setf(health.ComponentHTTP, health.LevelOK, "listening on %s", ln.Addr())
	return ln, nil
}

// Serve starts background components, prints the banner and serves HTTP on
// ln until Stop. After a Stop it returns only once Stop has finished, so the
// caller may exit straight away.
func (s *GinServer) Serve(ln net.Listener) error {
	if err := s.supervisor.Start(context.Background()); err != nil {
		ln.Close()
		return fmt.Errorf("failed to start runtime components: %w", err)
	}

	s.printBanner()

	// Notify systemd that we're ready (for Type=notify services)
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("WARN: Failed to notify systemd of readiness: %v", err)
	} else if sent {
		log.Printf("INFO: Notified systemd that service is ready")
	}

	err := s.srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	<-s.stopped
	return nil
}

// Stop gracefully shuts down the HTTP server and all components. Calling it
// more than once returns the first result.
func (s *GinServer) Stop() error {
	s.stopOnce.Do(func() {
		if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
			log.Printf("WARN: Failed to notify systemd of shutdown: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WARN: HTTP shutdown failed: %v", err)
			s.stopErr = err
		}
		s.healthTracker.Setf(health.ComponentHTTP, health.LevelWarn, "stopped")

		if err := s.supervisor.Stop(ctx); err != nil {
			log.Printf("WARN: Failed to stop components cleanly: %v", err)
			if s.stopErr == nil {
				s.stopErr = err
			}
		}
		close(s.stopped)
	})
	return s.stopErr
}

// Handler exposes the router, mostly for tests.
func (s *GinServer) Handler() http.Handler {
	return s.router
}

// Port returns the configured port, or the bound one after Listen.
func (s *GinServer) Port() int {
	return s.port
}

// setupGinRoutes defines the operational endpoints and the static fallback.
func (s *GinServer) setupGinRoutes() {
	r := gin.New()

	r.Use(s.requestLoggingMiddleware())
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithCustomShouldCompressFn(shouldCompress)))
	r.Use(s.securityHeadersMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health/live", s.handleHealthLive)
		v1.GET("/health/ready", s.handleGinReadinessCheck)
		v1.GET("/health/detail", s.handleHealthDetail)
	}
	r.GET("/version", s.handleGinVersion)

	// Static file serving for the panel and the 404 fallback. The routes above
	// win over same-named files in the asset root.
	r.NoRoute(s.handleStatic)

	s.router = r
}

func (s *GinServer) printBanner() {
	b := console.Banner{
		Port:       s.port,
		LANAddress: s.resolveLANAddress(),
		AssetRoot:  s.assetRoot,
	}
	if s.assetSource == assets.SourceEmbedded {
		b.AssetRoot = "bundled panel"
	}
	if s.mdnsManager != nil && s.mdnsManager.InterfaceCount() > 0 {
		b.MDNSHost = s.mdnsManager.Hostname()
	}
	if err := console.Print(s.bannerOut, b); err != nil {
		log.Printf("WARN: %v", err)
	}
}

func (s *GinServer) refreshAssetHealth() {
	where := s.assetRoot
	if s.assetSource == assets.SourceEmbedded || where == "" {
		where = "bundled panel"
	}
	if assets.HasIndex(s.assetFS) {
		s.healthTracker.Setf(health.ComponentAssets, health.LevelOK, "serving %s from %s", assets.IndexFile, where)
		return
	}
	s.healthTracker.Setf(health.ComponentAssets, health.LevelWarn, "%s missing under %s", assets.IndexFile, where)
}

func (s *GinServer) newAssetWatcherComponent() supervisor.Component {
	w := assets.NewWatcher(s.assetRoot, assets.DefaultQuietPeriod, func(paths []string) {
		log.Printf("INFO: Asset change detected: %v", paths)
		s.refreshAssetHealth()
	})
	return supervisor.NewComponent(w.Name(), func(ctx context.Context) error {
		if err := w.Start(ctx); err != nil {
			// Serving still works without the watcher; only health goes stale.
			log.Printf("WARN: Asset watcher unavailable: %v", err)
			s.healthTracker.Setf(health.ComponentAssets, health.LevelWarn, "watcher unavailable: %v", err)
		}
		return nil
	}, w.Stop)
}

func (s *GinServer) newMDNSComponent() supervisor.Component {
	return supervisor.NewComponent("mdns", func(ctx context.Context) error {
		if err := s.mdnsManager.Start(); err != nil {
			log.Printf("WARN: mDNS advertising unavailable: %v", err)
			s.healthTracker.Setf(health.ComponentMDNS, health.LevelWarn, "mdns unavailable: %v", err)
			return nil
		}
		s.healthTracker.Setf(health.ComponentMDNS, health.LevelOK, "advertising %s", s.mdnsManager.Hostname())
		return nil
	}, func(ctx context.Context) error {
		return s.mdnsManager.Stop()
	})
}
