package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New("/nonexistent/stroop", nil, log)

	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(context.Background(), "127.0.0.1:0")
	}()
	t.Cleanup(func() {
		srv.Shutdown()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down")
		}
	})

	var addr net.Addr
	require.Eventually(t, func() bool {
		addr = srv.Addr()
		return addr != nil
	}, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func roundtrip(t *testing.T, conn net.Conn, r *bufio.Reader, cmd string) string {
	t.Helper()
	_, err := fmt.Fprintf(conn, "%s\n", cmd)
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestServerStateAndErrors(t *testing.T) {
	_, conn := startTestServer(t)
	r := bufio.NewReader(conn)

	assert.Equal(t, "IDLE\n", roundtrip(t, conn, r, "GETSTATE"))
	assert.Contains(t, roundtrip(t, conn, r, "FROBNICATE"), "ERR unknown command")

	// STOP without a child is a no-op but still acknowledged
	assert.Equal(t, "ACK STOP\n", roundtrip(t, conn, r, "STOP"))

	// commands are case-insensitive
	assert.Equal(t, "IDLE\n", roundtrip(t, conn, r, "getstate"))
}

func TestServerRunSpawnFailureIsReported(t *testing.T) {
	// the bin path does not exist, so RUN must fail without crashing
	// the listener
	_, conn := startTestServer(t)
	r := bufio.NewReader(conn)

	assert.Contains(t, roundtrip(t, conn, r, "RUN --n-trials 6"), "ERR")
	assert.Equal(t, "IDLE\n", roundtrip(t, conn, r, "GETSTATE"))
}

func TestServerClose(t *testing.T) {
	_, conn := startTestServer(t)
	r := bufio.NewReader(conn)

	assert.Equal(t, "BYE\n", roundtrip(t, conn, r, "CLOSE"))
	_, err := r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestServerAddrConcurrentWithStartup(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New("/nonexistent/stroop", nil, log)

	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(context.Background(), "127.0.0.1:0")
	}()

	// hammer Addr while the listener comes up and goes down again
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				srv.Addr()
			}
		}()
	}
	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, time.Millisecond)
	srv.Shutdown()
	wg.Wait()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerStopServer(t *testing.T) {
	srv, conn := startTestServer(t)
	r := bufio.NewReader(conn)

	assert.Equal(t, "ACK STOPSERVER\n", roundtrip(t, conn, r, "STOPSERVER"))

	// the listener must be gone: new dials fail
	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", srv.Addr().String())
		if err == nil {
			c.Close()
		}
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}
