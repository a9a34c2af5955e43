package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/pollctl/internal/errors"
)

// Path returns the PID file location for the named program.
func Path(name string) string {
	return filepath.Join(os.TempDir(), name+".pid")
}

// Write records the current process ID for name. It fails with
// ErrAlreadyRunning when the file names a live process.
func Write(name string) error {
	errFactory := errors.New()
	path := Path(name)

	if bytes, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(bytes))); err == nil && alive(pid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove deletes the PID file for name, if any.
func Remove(name string) error {
	errFactory := errors.New()

	if err := os.Remove(Path(name)); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}
