//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// SocketEnvVar overrides the socket location, e.g. for running several
// daemons side by side.
const SocketEnvVar = "MEDIASESSION_SOCKET"

// socketPath follows platform conventions:
//   - macOS: ~/Library/Caches/mediasession/mediasession.sock
//   - Linux/Unix: $XDG_RUNTIME_DIR/mediasession.sock
//
// falling back to /tmp/mediasession-{uid}.sock.
var socketPath = "/tmp/mediasession.sock"

func init() {
	socketPath = defaultSocketPath()
}

func defaultSocketPath() string {
	if p := os.Getenv(SocketEnvVar); p != "" {
		return p
	}
	if runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Caches", "mediasession", "mediasession.sock")
		}
	} else if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "mediasession.sock")
	}
	if u, err := user.Current(); err == nil {
		return fmt.Sprintf("/tmp/mediasession-%s.sock", u.Uid)
	}
	return "/tmp/mediasession.sock"
}

// Dial establishes a connection to the IPC socket.
func Dial() (net.Conn, error) {
	return net.Dial("unix", socketPath)
}

// Listen creates the socket, replacing one left behind by a daemon that
// did not shut down cleanly. Callers must check that no daemon is
// answering on it first.
func Listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, err
	}
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", socketPath)
}

// DestroyConn removes the socket file. Called during shutdown.
func DestroyConn() error {
	return os.Remove(socketPath)
}
