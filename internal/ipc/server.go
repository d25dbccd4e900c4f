package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
)

// Handler processes one control request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers one request per connection until ctx is cancelled or the
// listener is closed. In-flight connections finish before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var inflight sync.WaitGroup
	defer inflight.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer conn.Close()
			reply(conn, serveConn(ctx, conn, handler))
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) Response {
	line, err := readLine(conn)
	if err != nil {
		return Response{Error: fmt.Sprintf("read request: %v", err)}
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Error: fmt.Sprintf("decode request: %v", err)}
	}
	req.Command = strings.ToLower(strings.TrimSpace(req.Command))
	if req.Command == "" {
		return Response{ID: req.ID, Error: "missing command"}
	}

	resp := handler.Handle(ctx, req)
	resp.ID = req.ID
	return resp
}

func reply(conn net.Conn, resp Response) {
	_ = json.NewEncoder(conn).Encode(resp)
}
