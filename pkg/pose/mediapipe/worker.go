package mediapipe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// maxResponse bounds a single worker reply.
const maxResponse = 1 << 20

// worker is a Python pose process speaking a length-prefixed protocol.
// Requests go to stdin as [uint32 BE length][JPEG]. Replies come back on a
// dedicated pipe (FD 3 in the child) as [uint32 BE length][JSON], so stray
// prints from the model libraries cannot corrupt the stream.
type worker struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	stdin  io.WriteCloser
	data   io.ReadCloser
}

func startWorker(python, script string) (*worker, error) {
	cmd := exec.Command(python, "-u", script)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("start %s: %w", script, err)
	}

	// Only the child holds the write end
	w.Close()

	return &worker{cmd: cmd, stderr: stderr, stdin: stdin, data: r}, nil
}

// communicate sends one request and reads one reply.
func (w *worker) communicate(req []byte) ([]byte, error) {
	if err := binary.Write(w.stdin, binary.BigEndian, uint32(len(req))); err != nil {
		return nil, err
	}
	if _, err := w.stdin.Write(req); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.data, header); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header)
	if n > maxResponse {
		return nil, fmt.Errorf("reply of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(w.data, body); err != nil {
		return nil, err
	}
	return body, nil
}

// close ends the session and waits for the child to exit.
// The returned string holds the tail of the worker's stderr.
func (w *worker) close() string {
	w.stdin.Close()
	w.data.Close()
	if w.cmd == nil {
		return ""
	}
	w.cmd.Wait()
	return tail(w.stderr.String(), 20)
}

// kill stops a worker stuck mid-request.
func (w *worker) kill() {
	if w.cmd != nil && w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
}

func tail(s string, lines int) string {
	parts := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}
