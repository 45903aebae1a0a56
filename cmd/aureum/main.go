package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/aureum/internal/app"
	"github.com/ayusman/aureum/internal/config"
	"github.com/ayusman/aureum/internal/logger"
	"github.com/ayusman/aureum/internal/server"
	"github.com/ayusman/aureum/internal/store"
	"github.com/ayusman/aureum/internal/tray"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "aureum: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "aureum: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Error("exiting", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.Named("main")

	if cfg.File == "" {
		path, created, err := config.WriteStarter()
		switch {
		case err != nil:
			log.Warn("write starter config", zap.String("path", path), zap.Error(err))
		case created:
			log.Info("wrote starter config", zap.String("path", path))
		}
	} else {
		log.Info("loaded config", zap.String("path", cfg.File))
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(filepath.Join(dataDir, "aureum.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	a, err := app.New(app.Options{Config: cfg, Store: st})
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.Info("serving static files", zap.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir:      staticDir,
		Engine:         a,
		Recorder:       a.Recorder(),
		MaxUploadBytes: cfg.Upload.MaxBytes * 8,
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Headless {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
		case err := <-serveErr:
			return err
		}
	} else {
		runTray(ctx, a, viewerURL(ln.Addr()), serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", zap.Error(err))
	}
	return nil
}

// runTray blocks in the tray event loop until Quit, a signal or a server
// failure.
func runTray(ctx context.Context, a *app.App, url string, serveErr <-chan error) {
	log := logger.Named("tray")
	t := tray.New()
	t.SetTracking(a.Tracking())
	t.OnToggle(func(enabled bool) error {
		if err := a.SetTracking(enabled); err != nil {
			log.Warn("toggle tracking", zap.Error(err))
			return err
		}
		return nil
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.Warn("open viewer", zap.String("url", url), zap.Error(err))
		}
	})

	frames, unsubscribe := a.Subscribe()
	defer unsubscribe()
	go func() {
		for f := range frames {
			t.Update(f)
			t.SetTracking(a.Tracking())
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			log.Error("server stopped", zap.Error(err))
		}
		t.Quit()
	}()

	t.Run()
}

func viewerURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the viewer assets in common locations.
// It checks: "web", "../web", "../../web", and <config dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	configWebDir := filepath.Join(config.ConfigDir(), "web")
	if info, err := os.Stat(configWebDir); err == nil && info.IsDir() {
		return configWebDir
	}

	return ""
}
