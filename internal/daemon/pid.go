package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

const (
	pidFile    = "daemon.pid"
	logFile    = "daemon.log"
	dbFile     = "casetab.db"
	exportsDir = "exports"
)

// PIDFilePath returns the path to the PID file
func PIDFilePath(dataDir string) string {
	return filepath.Join(dataDir, pidFile)
}

// LogFilePath returns the path to the daemon log file
func LogFilePath(dataDir string) string {
	return filepath.Join(dataDir, logFile)
}

// DBFilePath returns the path to the draft database
func DBFilePath(dataDir string) string {
	return filepath.Join(dataDir, dbFile)
}

// ExportsDirPath returns the directory holding exported CSV drafts
func ExportsDirPath(dataDir string) string {
	return filepath.Join(dataDir, exportsDir)
}

// EnsureDataDir creates the data directory if it doesn't exist
func EnsureDataDir(dataDir string) error {
	return os.MkdirAll(dataDir, 0755)
}

// WritePID writes the current process PID to the PID file
func WritePID(dataDir string) error {
	if err := EnsureDataDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	pidPath := PIDFilePath(dataDir)
	pid := os.Getpid()
	return os.WriteFile(pidPath, []byte(strconv.Itoa(pid)), 0644)
}

// ReadPID reads the PID from the PID file
func ReadPID(dataDir string) (int, error) {
	pidPath := PIDFilePath(dataDir)
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}

	return pid, nil
}

// RemovePID removes the PID file
func RemovePID(dataDir string) error {
	pidPath := PIDFilePath(dataDir)
	err := os.Remove(pidPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsProcessRunning checks if a process with the given PID is running
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0
	// to check if the process actually exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// IsRunning checks if the daemon is currently running for this data dir
func IsRunning(dataDir string) bool {
	pid, err := ReadPID(dataDir)
	if err != nil {
		return false
	}

	return IsProcessRunning(pid)
}

// GetRunningPID returns the PID of the running daemon, or 0 if not running
func GetRunningPID(dataDir string) int {
	pid, err := ReadPID(dataDir)
	if err != nil {
		return 0
	}

	if !IsProcessRunning(pid) {
		return 0
	}

	return pid
}
