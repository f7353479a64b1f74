package facemesh

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"
)

// Response status bytes written by the worker.
const (
	statusOK     byte = 0
	statusNoFace byte = 1
	statusError  byte = 2
)

// maxResponse bounds a single worker response.
const maxResponse = 1 << 20

// Worker drives an external landmark model over pipes.
//
// Requests go to the child's stdin as [uint32 length][JPEG bytes].
// Responses come back on file descriptor 3 as [uint32 length][body] where
// body is [status byte] followed by, for statusOK, [uint32 count] and count
// triples of big-endian float32 (x, y, z); for statusError, a UTF-8 message.
// Big-endian throughout. The child's stderr is kept for crash reports.
type Worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	data   io.ReadCloser
	stderr *stderrBuffer

	mu sync.Mutex
}

// stderrBuffer collects child stderr. exec copies into it from its own
// goroutine, so access is locked.
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() > 64<<10 {
		b.buf.Reset()
	}
	return b.buf.Write(p)
}

func (b *stderrBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// StartWorker launches name with args and wires up the pipes.
func StartWorker(name string, args ...string) (*Worker, error) {
	cmd := exec.Command(name, args...)
	stderr := new(stderrBuffer)
	cmd.Stderr = stderr

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("facemesh: create data pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("facemesh: stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("facemesh: start %s: %w", name, err)
	}
	// Only the child holds the write end now.
	w.Close()

	return &Worker{cmd: cmd, stdin: stdin, data: r, stderr: stderr}, nil
}

// newPipeWorker builds a Worker over existing streams, without a process.
func newPipeWorker(stdin io.WriteCloser, data io.ReadCloser) *Worker {
	return &Worker{stdin: stdin, data: data, stderr: new(stderrBuffer)}
}

// Detect sends frame and waits for the landmark response. Calls are
// serialized; the worker handles one frame at a time.
func (w *Worker) Detect(ctx context.Context, frame []byte) (LandmarkSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := binary.Write(w.stdin, binary.BigEndian, uint32(len(frame))); err != nil {
		return nil, w.exited(err)
	}
	if _, err := w.stdin.Write(frame); err != nil {
		return nil, w.exited(err)
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.data, header); err != nil {
		return nil, w.exited(err)
	}
	n := binary.BigEndian.Uint32(header)
	if n == 0 || n > maxResponse {
		return nil, fmt.Errorf("%w: length %d", ErrProtocol, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(w.data, body); err != nil {
		return nil, w.exited(err)
	}
	return decodeResponse(body)
}

func decodeResponse(body []byte) (LandmarkSet, error) {
	switch body[0] {
	case statusNoFace:
		return nil, ErrNoFace
	case statusError:
		return nil, fmt.Errorf("facemesh: worker error: %s", body[1:])
	case statusOK:
	default:
		return nil, fmt.Errorf("%w: status %d", ErrProtocol, body[0])
	}

	rest := body[1:]
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: missing count", ErrProtocol)
	}
	count := int(binary.BigEndian.Uint32(rest))
	rest = rest[4:]
	if len(rest) != count*12 {
		return nil, fmt.Errorf("%w: %d points need %d bytes, got %d", ErrProtocol, count, count*12, len(rest))
	}

	ls := make(LandmarkSet, count)
	for i := range ls {
		off := i * 12
		ls[i] = Point{
			X: float64(math.Float32frombits(binary.BigEndian.Uint32(rest[off:]))),
			Y: float64(math.Float32frombits(binary.BigEndian.Uint32(rest[off+4:]))),
			Z: float64(math.Float32frombits(binary.BigEndian.Uint32(rest[off+8:]))),
		}
	}
	return ls, nil
}

// EncodeResponse builds an OK response body for ls. Worker implementations
// written in Go and tests use it.
func EncodeResponse(ls LandmarkSet) []byte {
	if ls == nil {
		return []byte{statusNoFace}
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(statusOK)
	binary.Write(buf, binary.BigEndian, uint32(len(ls)))
	for _, p := range ls {
		binary.Write(buf, binary.BigEndian, [3]float32{float32(p.X), float32(p.Y), float32(p.Z)})
	}
	return buf.Bytes()
}

func (w *Worker) exited(err error) error {
	if msg := bytes.TrimSpace(w.stderr.Bytes()); len(msg) > 0 {
		return fmt.Errorf("%w: %v: %s", ErrWorkerExited, err, lastLine(msg))
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrWorkerExited
	}
	return fmt.Errorf("%w: %v", ErrWorkerExited, err)
}

func lastLine(b []byte) []byte {
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return b[i+1:]
	}
	return b
}

// Close shuts the worker down and waits for the process to exit.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stdin.Close()
	w.data.Close()
	if w.cmd == nil {
		return nil
	}
	return w.cmd.Wait()
}
