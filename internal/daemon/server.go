// Package daemon runs the search provider service on the session bus.
// It owns the well-known bus name, exports one provider per editor variant,
// keeps the index fresh and exits after an idle period.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/runger/wsprovider/internal/config"
	"github.com/runger/wsprovider/internal/index"
	"github.com/runger/wsprovider/internal/launch"
	"github.com/runger/wsprovider/internal/refresh"
	"github.com/runger/wsprovider/internal/searchprovider"
	"github.com/runger/wsprovider/internal/storage"
	"github.com/runger/wsprovider/internal/variant"
	"github.com/runger/wsprovider/internal/xdg"
)

// Version is set at build time
var Version = "dev"

// ErrNameTaken is returned when another process owns the bus name.
var ErrNameTaken = errors.New("bus name is already owned by another process")

// D-Bus coordinates of the daemon.
const (
	ObjectPathBase   = "/io/github/runger/WorkspaceSearchProvider"
	ControlInterface = "io.github.runger.WorkspaceSearchProvider.Control"
)

// Bus is the part of a bus connection the server uses. *dbus.Conn
// satisfies it.
type Bus interface {
	searchprovider.Exporter
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	Close() error
}

// Server is the daemon: bus name owner, providers, refresh machinery.
type Server struct {
	cfg      *config.Config
	paths    *config.Paths
	logger   *slog.Logger
	bus      Bus
	variants []*variant.Variant

	index     *index.Index
	refresher *refresh.Refresher
	trigger   *refresh.Trigger
	launcher  *launch.Launcher
	services  []*searchprovider.Service

	// Lifecycle
	startTime    time.Time
	lastActivity atomic.Int64 // unix nanoseconds
	idleTimeout  time.Duration
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// ServerConfig contains configuration options for the daemon server.
type ServerConfig struct {
	// Config is the loaded configuration (optional, defaults if nil)
	Config *config.Config

	// Paths is the path configuration (optional, uses defaults if nil)
	Paths *config.Paths

	// Logger is the structured logger (optional, uses default if nil)
	Logger *slog.Logger

	// Bus is the session bus connection (optional, connects if nil)
	Bus Bus

	// Starter starts editor processes (optional, launch.ExecStarter if nil)
	Starter launch.Starter

	// Scopes creates transient scopes (optional, systemd user manager if nil
	// unless launch.disable_scope is set)
	Scopes launch.ScopeManager

	// Load reads one variant's storage (optional, storage.Load if nil)
	Load refresh.LoadFunc
}

// NewServer creates a new daemon server with the given configuration.
func NewServer(sc *ServerConfig) (*Server, error) {
	if sc == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := sc.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	paths := sc.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}

	logger := sc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	variants := variant.FromConfig(cfg, paths)
	if len(variants) == 0 {
		return nil, errors.New("no editor variants enabled")
	}

	// Ids differing only in characters that object paths cannot hold would
	// share a path, and the second export would replace the first.
	exported := make(map[dbus.ObjectPath]string, len(variants))
	for _, v := range variants {
		path := searchprovider.ObjectPath(ObjectPathBase, v.ID)
		if other, dup := exported[path]; dup {
			return nil, fmt.Errorf("variants %s and %s map to the same object path %s", other, v.ID, path)
		}
		exported[path] = v.ID
	}

	idx := index.New(variant.IDs(variants)...)

	scopes := sc.Scopes
	if scopes == nil && !cfg.Launch.DisableScope {
		scopes = launch.SystemdScopes{}
	}
	if cfg.Launch.DisableScope {
		scopes = nil
	}

	s := &Server{
		cfg:      cfg,
		paths:    paths,
		logger:   logger,
		bus:      sc.Bus,
		variants: variants,
		index:    idx,
		refresher: refresh.NewRefresher(refresh.Config{
			Variants: variants,
			Index:    idx,
			Options:  storage.Options{IncludeFiles: cfg.Search.IncludeFiles},
			Load:     sc.Load,
			Logger:   logger,
		}),
		launcher: launch.New(launch.Config{
			Starter:      sc.Starter,
			Scopes:       scopes,
			Logger:       logger,
			UnitPrefix:   cfg.Launch.UnitPrefix,
			ScopeTimeout: cfg.ScopeTimeout(),
		}),
		startTime:    time.Now(),
		idleTimeout:  cfg.IdleTimeout(),
		shutdownChan: make(chan struct{}),
	}
	s.trigger = refresh.NewTrigger(s.refresher.Run, logger)
	s.touchActivity()

	icons := xdg.NewCatalog(paths.ApplicationDirs())
	for _, v := range variants {
		// Resolve the desktop entry now rather than on the first result-metas call.
		icons.Lookup(v.DesktopID)

		svc, err := searchprovider.New(searchprovider.Config{
			Variant:    v,
			Index:      idx,
			Launcher:   s.launcher,
			Icons:      icons,
			Home:       paths.Home,
			MaxResults: cfg.Search.MaxResults,
			Logger:     logger,
			OnActivity: s.touchActivity,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create provider for %s: %w", v.ID, err)
		}
		s.services = append(s.services, svc)
	}

	return s, nil
}

// Index returns the server's workspace index.
func (s *Server) Index() *index.Index {
	return s.index
}

// Start claims the bus name, loads the index, exports the providers and
// serves until ctx is done or the server shuts down.
func (s *Server) Start(ctx context.Context) error {
	if s.bus == nil {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		s.bus = conn
	}
	defer s.bus.Close()

	// Own the name before anything is exported, so a second instance never
	// exposes objects.
	if err := s.claimName(); err != nil {
		return err
	}

	if err := s.refresher.RefreshAll(ctx); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}

	if err := s.export(); err != nil {
		return err
	}

	s.logger.Info("daemon started",
		"bus_name", s.cfg.Daemon.BusName,
		"pid", os.Getpid(),
		"variants", len(s.variants),
		"records", s.index.Count(),
		"version", Version,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.trigger.Run(runCtx)
	}()

	if s.cfg.Watch.Enabled {
		s.startWatcher(runCtx)
	}

	if s.idleTimeout > 0 {
		s.wg.Add(1)
		go s.watchIdle(runCtx)
	}

	select {
	case <-ctx.Done():
	case <-s.shutdownChan:
	}

	cancel()
	s.Shutdown()
	return nil
}

func (s *Server) claimName() error {
	reply, err := s.bus.RequestName(s.cfg.Daemon.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name %s: %w", s.cfg.Daemon.BusName, err)
	}
	switch reply {
	case dbus.RequestNameReplyPrimaryOwner, dbus.RequestNameReplyAlreadyOwner:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrNameTaken, s.cfg.Daemon.BusName)
	}
}

func (s *Server) export() error {
	children := make([]introspect.Node, 0, len(s.services))
	for _, svc := range s.services {
		path := searchprovider.ObjectPath(ObjectPathBase, svc.Variant().ID)
		if err := searchprovider.Export(s.bus, path, svc); err != nil {
			return err
		}
		children = append(children, introspect.Node{Name: string(path)[len(ObjectPathBase)+1:]})
		s.logger.Debug("exported search provider", "variant", svc.Variant().ID, "path", path)
	}

	c := control{s: s}
	if err := s.bus.Export(c, ObjectPathBase, ControlInterface); err != nil {
		return fmt.Errorf("failed to export %s: %w", ControlInterface, err)
	}
	node := &introspect.Node{
		Name: ObjectPathBase,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: ControlInterface, Methods: introspect.Methods(c)},
		},
		Children: children,
	}
	if err := s.bus.Export(introspect.NewIntrospectable(node), ObjectPathBase, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}
	return nil
}

func (s *Server) startWatcher(ctx context.Context) {
	files := make([]string, 0, len(s.variants))
	for _, v := range s.variants {
		files = append(files, v.Backend.Path)
	}

	w, err := refresh.NewWatcher(files, s.cfg.Debounce(), s.trigger.Request, s.logger)
	if err != nil {
		// Reloads still work through SIGHUP and the control interface.
		s.logger.Warn("storage watcher unavailable", "error", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = w.Run(ctx)
	}()
	s.logger.Debug("watching storage", "directories", w.Watching())
}

// Reload schedules a refresh of all variants.
func (s *Server) Reload() {
	s.trigger.Request()
}

// Shutdown stops the server. Safe to call multiple times.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("daemon shutting down", "uptime", time.Since(s.startTime))

		close(s.shutdownChan)
		s.wg.Wait()

		// Let pending scope handoffs finish so editors are not left in our
		// own scope.
		s.launcher.Wait()

		s.logger.Info("daemon stopped")
	})
}

// touchActivity updates the last activity timestamp.
func (s *Server) touchActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// getLastActivity returns the last activity timestamp.
func (s *Server) getLastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// watchIdle monitors for idle timeout and initiates shutdown.
func (s *Server) watchIdle(ctx context.Context) {
	defer s.wg.Done()

	interval := time.Minute
	if s.idleTimeout < 4*interval {
		interval = s.idleTimeout / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			since := time.Since(s.getLastActivity())
			if since > s.idleTimeout {
				s.logger.Info("idle timeout reached",
					"idle_duration", since,
					"timeout", s.idleTimeout,
				)
				go s.Shutdown()
				return
			}
		}
	}
}

// control is the reload interface exported next to the providers.
type control struct {
	s *Server
}

// ReloadAll schedules a refresh of every variant.
func (c control) ReloadAll() *dbus.Error {
	c.s.touchActivity()
	c.s.logger.Debug("reload requested over D-Bus")
	c.s.Reload()
	return nil
}
