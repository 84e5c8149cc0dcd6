// Package control is the optional command listener: a thin text
// protocol over a local TCP socket so recording software can start
// and stop runs remotely. Runs are spawned as subprocesses of this
// binary so a crash of the presentation never takes the listener
// down.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Server accepts line-separated commands:
//
//	RUN [flags...]  start a run (flags passed to the run command)
//	STOP            terminate the running subprocess
//	GETSTATE        RUNNING or IDLE
//	CLOSE           drop this connection
//	STOPSERVER      shut the listener down
type Server struct {
	log      *slog.Logger
	bin      string
	baseArgs []string

	mu     sync.Mutex
	ln     net.Listener
	cancel context.CancelFunc
	child  *exec.Cmd
}

// New builds a server that spawns runs via bin (usually
// os.Executable()). baseArgs are prepended to every RUN, e.g. the
// config directory.
func New(bin string, baseArgs []string, log *slog.Logger) *Server {
	return &Server{log: log, bin: bin, baseArgs: baseArgs}
}

// ListenAndServe blocks accepting connections until the context is
// canceled or a STOPSERVER command arrives.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	ctx, cancel := context.WithCancel(ctx)

	// published under the lock so Addr and Shutdown are safe from
	// other goroutines
	s.mu.Lock()
	s.ln = ln
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("control server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.stopChild()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handle(conn)
	}
}

// Addr returns the bound address once listening, nil before.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting and terminates any running child.
func (s *Server) Shutdown() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.log.Debug("control connection opened", "remote", remote)

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToUpper(fields[0])
		s.log.Debug("control command", "remote", remote, "cmd", cmd)

		switch cmd {
		case "RUN":
			if err := s.startRun(fields[1:]); err != nil {
				fmt.Fprintf(conn, "ERR %v\n", err)
			} else {
				fmt.Fprintln(conn, "ACK RUN")
			}
		case "STOP":
			s.stopChild()
			fmt.Fprintln(conn, "ACK STOP")
		case "GETSTATE":
			if s.running() {
				fmt.Fprintln(conn, "RUNNING")
			} else {
				fmt.Fprintln(conn, "IDLE")
			}
		case "CLOSE":
			fmt.Fprintln(conn, "BYE")
			return
		case "STOPSERVER":
			fmt.Fprintln(conn, "ACK STOPSERVER")
			s.Shutdown()
			return
		default:
			fmt.Fprintf(conn, "ERR unknown command %q\n", cmd)
		}
	}
	s.log.Debug("control connection closed", "remote", remote)
}

func (s *Server) startRun(args []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.child != nil {
		return errors.New("a run is already in progress")
	}

	full := append([]string{"run"}, s.baseArgs...)
	full = append(full, args...)
	cmd := exec.Command(s.bin, full...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn run: %w", err)
	}
	s.log.Info("run subprocess started", "pid", cmd.Process.Pid, "args", full)
	s.child = cmd

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.child = nil
		s.mu.Unlock()
		s.log.Info("run subprocess finished", "err", err)
	}()
	return nil
}

func (s *Server) stopChild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child != nil && s.child.Process != nil {
		s.log.Info("terminating run subprocess", "pid", s.child.Process.Pid)
		s.child.Process.Kill()
	}
}

func (s *Server) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child != nil
}
