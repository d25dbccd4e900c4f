package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Commands understood by a practice owner.
const (
	CommandStatus   = "status"
	CommandStart    = "start"
	CommandPause    = "pause"
	CommandResume   = "resume"
	CommandComplete = "complete"
	CommandFinish   = "finish"
)

// maxLineBytes bounds a single JSON line in either direction.
const maxLineBytes = 64 << 10

var errLineTooLong = errors.New("message exceeds line limit")

// Request is one control command. ID correlates the owner's log entry with
// the forwarding invocation.
type Request struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
}

// Response reports the owner's practice snapshot after handling a request.
type Response struct {
	ID        string `json:"id,omitempty"`
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Elapsed   string `json:"elapsed,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

func readLine(r io.Reader) ([]byte, error) {
	reader := bufio.NewReaderSize(r, 4096)
	var line []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxLineBytes {
			return nil, fmt.Errorf("%w (%d bytes)", errLineTooLong, maxLineBytes)
		}
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}
