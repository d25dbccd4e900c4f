package ipc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoOwner reports that no practice owner is listening on the socket.
var ErrNoOwner = errors.New("no active shadow practice")

// Forward sends one command to the socket owner. A rejected command comes
// back as an error carrying the owner's message; a missing owner is ErrNoOwner.
func Forward(ctx context.Context, path string, command string, timeout time.Duration) (Response, error) {
	resp, err := Send(ctx, path, Request{Command: command}, timeout)
	if err != nil {
		if isNoListener(err) {
			return Response{}, ErrNoOwner
		}
		return Response{}, fmt.Errorf("forward command %q: %w", command, err)
	}
	if !resp.OK {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}
