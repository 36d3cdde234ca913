package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strings"

	"github.com/encodeous/fuzzyrpl/state"
)

// Inspector is implemented by modules that can describe their state.
// Inspect runs on the main loop.
type Inspector interface {
	Inspect() string
}

// IPCGet asks the instance listening on sock for its state.
func IPCGet(sock string) (string, error) {
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	_, err = rw.WriteString("inspect\n")
	if err != nil {
		return "", err
	}
	err = rw.Flush()
	if err != nil {
		return "", err
	}

	res, err := rw.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSuffix(res, "\x00"), nil
}

// ServeIPC answers inspect requests on sock until the context of s is done.
func ServeIPC(s *state.State, sock string) error {
	_ = os.Remove(sock)
	l, err := net.Listen("unix", sock)
	if err != nil {
		return err
	}
	go func() {
		<-s.Context.Done()
		l.Close()
	}()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					s.Log.Warn("ipc accept failed", "error", err)
				}
				return
			}
			go func() {
				defer conn.Close()
				rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
				if err := HandleIPCGet(s.Env, rw); err != nil {
					s.Log.Debug("ipc request failed", "error", err)
				}
			}()
		}
	}()
	return nil
}

// HandleIPCGet serves one request. It may run on any goroutine.
func HandleIPCGet(e *state.Env, rw *bufio.ReadWriter) error {
	cmd, err := rw.ReadString('\n')
	if err != nil {
		return err
	}
	switch cmd {
	case "inspect\n":
		res, err := e.DispatchWait(func(s *state.State) (any, error) {
			return Inspect(s), nil
		})
		if err != nil {
			return err
		}
		_, err = rw.WriteString(res.(string) + "\x00")
		if err != nil {
			return err
		}
		return rw.Flush()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// Inspect concatenates the description of every inspectable module, in
// module name order.
func Inspect(s *state.State) string {
	names := make([]string, 0, len(s.Modules))
	for name, m := range s.Modules {
		if _, ok := m.(Inspector); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	sb := strings.Builder{}
	for _, name := range names {
		sb.WriteString(s.Modules[name].(Inspector).Inspect())
	}
	return sb.String()
}
