package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestForwardWithoutOwner(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "shadow.sock")

	_, err := Forward(context.Background(), socketPath, "pause", 100*time.Millisecond)
	require.ErrorIs(t, err, ErrNoOwner)
}

func TestForwardAcceptedAndRejected(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "shadow.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == "pause" {
				return Response{OK: true, State: "paused", Elapsed: "00:12", Message: "pause accepted"}
			}
			return Response{OK: false, State: "paused", Error: "cannot resume from state recording"}
		}))
	}()

	resp, err := Forward(context.Background(), socketPath, "pause", time.Second)
	require.NoError(t, err)
	require.Equal(t, "paused", resp.State)
	require.Equal(t, "00:12", resp.Elapsed)

	resp, err = Forward(context.Background(), socketPath, "resume", time.Second)
	require.EqualError(t, err, "cannot resume from state recording")
	require.Equal(t, "paused", resp.State)

	cancel()
	require.NoError(t, <-serveDone)
}
