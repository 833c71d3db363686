// Package transport reaches the field controller's byte stream. Two address
// forms are supported: "tcp://host:port" (Wokwi's RFC2217 bridge speaks plain
// newline-terminated text over TCP) and a local device path such as
// /dev/ttyUSB0, opened as a serial port at the configured baud rate.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.bug.st/serial"
)

// ErrReadTimeout reports that no complete line arrived before the read
// timeout. Recoverable: the caller skips and keeps streaming.
var ErrReadTimeout = errors.New("transport: read timeout")

// StreamError is a fatal transport failure: the stream could not be opened,
// or it disconnected. Distinguished from per-line decode failures so a
// supervisor knows this run is over and the process should be restarted.
type StreamError struct {
	Addr string
	Err  error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("transport: stream %s: %v", e.Addr, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// deadliner is implemented by net.Conn; serial ports enforce their own
// read timeout instead.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// LineReader yields newline-terminated UTF-8 lines from a byte stream with a
// bounded per-read timeout. A line split across a timeout boundary is kept
// pending and completed on a later call, never truncated.
type LineReader struct {
	addr    string
	r       *bufio.Reader
	closer  io.Closer
	dl      deadliner
	timeout time.Duration
	pending strings.Builder
}

// Open connects to the stream at addr and returns a LineReader over it.
// Failure to open is fatal (*StreamError).
func Open(addr string, baud int, readTimeout time.Duration) (*LineReader, error) {
	switch {
	case strings.HasPrefix(addr, "tcp://"), strings.HasPrefix(addr, "rfc2217://"):
		hostport := addr[strings.Index(addr, "://")+3:]
		conn, err := net.DialTimeout("tcp", hostport, 10*time.Second)
		if err != nil {
			return nil, &StreamError{Addr: addr, Err: err}
		}
		return newLineReader(addr, conn, readTimeout), nil
	default:
		port, err := serial.Open(addr, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, &StreamError{Addr: addr, Err: err}
		}
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, &StreamError{Addr: addr, Err: err}
		}
		return newLineReader(addr, serialStream{port}, readTimeout), nil
	}
}

// NewLineReader wraps an already-open stream; exported for tests and for
// transports established elsewhere. If rc supports read deadlines they bound
// each read, otherwise the stream must enforce its own timeout.
func NewLineReader(addr string, rc io.ReadCloser, readTimeout time.Duration) *LineReader {
	return newLineReader(addr, rc, readTimeout)
}

func newLineReader(addr string, rc io.ReadCloser, readTimeout time.Duration) *LineReader {
	lr := &LineReader{
		addr:    addr,
		r:       bufio.NewReader(rc),
		closer:  rc,
		timeout: readTimeout,
	}
	if dl, ok := rc.(deadliner); ok {
		lr.dl = dl
	}
	return lr
}

// ReadLine returns the next complete line with the trailing newline trimmed.
// It returns ErrReadTimeout when no complete line arrived in time, and a
// *StreamError when the stream is gone.
func (lr *LineReader) ReadLine() (string, error) {
	if lr.dl != nil {
		if err := lr.dl.SetReadDeadline(time.Now().Add(lr.timeout)); err != nil {
			return "", &StreamError{Addr: lr.addr, Err: err}
		}
	}

	chunk, err := lr.r.ReadString('\n')
	lr.pending.WriteString(chunk)

	switch {
	case err == nil:
		line := strings.TrimRight(lr.pending.String(), "\r\n")
		lr.pending.Reset()
		return line, nil
	case isTimeout(err):
		// Partial line stays pending for the next call.
		return "", ErrReadTimeout
	default:
		return "", &StreamError{Addr: lr.addr, Err: err}
	}
}

// Close releases the underlying stream.
func (lr *LineReader) Close() error { return lr.closer.Close() }

func isTimeout(err error) bool {
	if errors.Is(err, ErrReadTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// serialStream adapts a serial port to the stream contract. The port's own
// read timeout yields (0, nil) reads, which it converts to ErrReadTimeout so
// bufio does not spin on empty reads.
type serialStream struct {
	port serial.Port
}

func (s serialStream) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if n == 0 && err == nil {
		return 0, ErrReadTimeout
	}
	return n, err
}

func (s serialStream) Close() error { return s.port.Close() }
