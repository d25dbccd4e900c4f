package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Send performs one request/response exchange with the owner on path. The
// whole exchange, dial included, is bounded by timeout.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Response{}, fmt.Errorf("set deadline: %w", err)
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}

	line, err := readLine(conn)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.ID != "" && resp.ID != req.ID {
		return Response{}, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	return resp, nil
}

// Probe reports whether a responsive owner is listening on path. A missing
// socket or a refused connection is a definite "no"; anything else is an error.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CommandStatus}, timeout)
	switch {
	case err == nil:
		return true, nil
	case isNoListener(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

func isNoListener(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
