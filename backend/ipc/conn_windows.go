//go:build windows

package ipc

import (
	"net"
	"os"
	"os/user"
	"regexp"

	"github.com/Microsoft/go-winio"
)

// SocketEnvVar overrides the pipe name.
const SocketEnvVar = "MEDIASESSION_SOCKET"

var pipeName = defaultPipeName()

func defaultPipeName() string {
	if p := os.Getenv(SocketEnvVar); p != "" {
		return p
	}
	name := `\\.\pipe\mediasession`
	if u, err := user.Current(); err == nil {
		name += regexp.MustCompile(`[^a-zA-Z0-9]+`).ReplaceAllString(u.Username, "")
	}
	return name
}

func Dial() (net.Conn, error) {
	return winio.DialPipe(pipeName, nil)
}

func Listen() (net.Listener, error) {
	// only the current user may connect
	return winio.ListenPipe(pipeName, &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)",
	})
}

func DestroyConn() error {
	// named pipes are removed with their last handle
	return nil
}
