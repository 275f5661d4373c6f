package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/s22625/casetab/internal/config"
	"github.com/s22625/casetab/internal/jira"
	"github.com/s22625/casetab/internal/store/sqlite"
)

const shutdownTimeout = 5 * time.Second

// Daemon hosts the draft store and the HTTP API the editor talks to
type Daemon struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a new Daemon instance
func New(cfg *config.Config) *Daemon {
	return &Daemon{cfg: cfg}
}

// Run starts the daemon (blocking until signalled or the listener fails)
func (d *Daemon) Run() error {
	dataDir := d.cfg.DataDir
	if err := EnsureDataDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(ExportsDirPath(dataDir), 0755); err != nil {
		return fmt.Errorf("failed to create exports directory: %w", err)
	}

	logger, err := buildLogger(dataDir, d.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Sync()
	d.logger = logger

	if err := WritePID(dataDir); err != nil {
		return err
	}
	defer RemovePID(dataDir)

	st, err := sqlite.Open(DBFilePath(dataDir))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	jc := jira.NewClient(d.cfg.Jira, st)

	srv := &http.Server{
		Addr:    d.cfg.ListenAddr,
		Handler: NewServer(d.cfg, st, jc, ExportsDirPath(dataDir), logger).Handler(),
	}

	logger.Info("daemon started",
		zap.Int("pid", os.Getpid()),
		zap.String("addr", d.cfg.ListenAddr),
		zap.String("data_dir", dataDir))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		return err
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("daemon stopped")
	return nil
}

// buildLogger writes structured logs to the daemon log file
func buildLogger(dataDir, level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{LogFilePath(dataDir)}
	zcfg.ErrorOutputPaths = []string{LogFilePath(dataDir)}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}

// StartInBackground launches the daemon as a background process
// Returns the PID of the spawned process, or error
func StartInBackground(dataDir string) (int, error) {
	// Check if already running
	if IsRunning(dataDir) {
		return GetRunningPID(dataDir), nil
	}

	// Find the current executable
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to find executable: %w", err)
	}

	// Start daemon process
	// Use "serve" subcommand which will be handled by CLI
	cmd := &exec.Cmd{
		Path: executable,
		Args: []string{executable, "serve", "--data-dir", dataDir},
		// Detach from parent process group
		SysProcAttr: &syscall.SysProcAttr{
			Setsid: true,
		},
		// Redirect stdout/stderr to null (daemon logs to file)
		Stdout: nil,
		Stderr: nil,
		Stdin:  nil,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}

	// Don't wait for the process - let it run in background
	// The daemon will write its own PID file

	// Give it a moment to start and write PID
	time.Sleep(100 * time.Millisecond)

	return cmd.Process.Pid, nil
}

// Kill stops the daemon for the given data dir
func Kill(dataDir string) error {
	pid := GetRunningPID(dataDir)
	if pid == 0 {
		return nil // Not running
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	// Send SIGTERM for graceful shutdown
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	// Wait a bit for graceful shutdown
	time.Sleep(500 * time.Millisecond)

	// Clean up PID file if process didn't
	RemovePID(dataDir)

	return nil
}
