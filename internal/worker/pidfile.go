// SPDX-License-Identifier: MIT

package worker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/renameio/v2"
)

// pidFile is the daemon-mode single-instance guard: an exclusive lock file
// plus a PID file readable by operators and other worker instances.
type pidFile struct {
	pidPath  string
	lockPath string
}

// acquirePIDFile takes the daemon lock. A stale lock left by a dead process
// is removed and acquisition retried once.
func acquirePIDFile(pidPath, lockPath string, pid int) (*pidFile, error) {
	if pidPath == "" || lockPath == "" {
		return nil, fmt.Errorf("worker: daemon mode requires pid and lock file paths")
	}
	for _, p := range []string{pidPath, lockPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("worker: create state dir: %w", err)
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			if werr := renameio.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0o644); werr != nil {
				_ = os.Remove(lockPath)
				return nil, fmt.Errorf("worker: write pid file: %w", werr)
			}
			return &pidFile{pidPath: pidPath, lockPath: lockPath}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("worker: acquire lock: %w", err)
		}

		holder, ok := readPID(pidPath)
		if ok && processAlive(holder) {
			return nil, fmt.Errorf("worker: another daemon is running (pid %d)", holder)
		}
		// Stale lock from a dead process.
		_ = os.Remove(lockPath)
		_ = os.Remove(pidPath)
	}
	return nil, fmt.Errorf("worker: could not acquire lock at %s", lockPath)
}

func (p *pidFile) release() {
	_ = os.Remove(p.pidPath)
	_ = os.Remove(p.lockPath)
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive reports whether a process with the given PID exists.
// Signal 0 probes existence without delivering anything; EPERM still
// means the process is there.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
