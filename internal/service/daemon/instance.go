package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another daemon owns the device.
var ErrAlreadyRunning = errors.New("another instance is already running")

// commLen is the length Linux truncates process names to.
const commLen = 15

// processLister lists running processes; replaced in tests.
type processLister func() ([]ps.Process, error)

// exeResolver returns the full executable name of pid, if it can tell.
type exeResolver func(pid int) (string, bool)

// ensureSingleInstance fails if another process runs the same executable.
// Two daemons would fight over the RFCOMM channel and both fire alarms.
func ensureSingleInstance(list processLister, resolve exeResolver, executable string) error {
	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !sameExecutable(process.Executable(), executable) {
			continue
		}

		// A truncated name also matches the CLI; the full name settles it.
		if full, ok := resolve(process.Pid()); ok && !sameExecutable(full, executable) {
			continue
		}

		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, executable, process.Pid())
	}

	return nil
}

// currentExecutable is the base name this process runs as.
func currentExecutable() string {
	path, err := os.Executable()
	if err != nil {
		path = os.Args[0]
	}

	return filepath.Base(path)
}

// procExecutable reads the executable name from procfs.
func procExecutable(pid int) (string, bool) {
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "", false
	}

	return filepath.Base(strings.TrimSuffix(path, " (deleted)")), true
}

// sameExecutable compares names the way the OS reports them, which may be
// truncated on Linux and carry an .exe suffix on Windows.
func sameExecutable(running, want string) bool {
	running = strings.TrimSuffix(strings.ToLower(running), ".exe")
	want = strings.TrimSuffix(strings.ToLower(want), ".exe")

	if running == want {
		return true
	}

	return len(want) > commLen && running == want[:commLen]
}
