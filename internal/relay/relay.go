// Package relay moves a body from one stream to another without buffering it.
package relay

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"passthrough-proxy/internal/future"
)

// ChunkSize is the largest amount of data moved per read.
const ChunkSize = 32 * 1024

// Error reports a failed read from the source or write to the sink.
type Error struct {
	Op  string // "read" or "write"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsWrite reports whether err is a relay failure on the sink side.
func IsWrite(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Op == "write"
}

// Sink is the writable end of a relay. CloseWithError lets the reader on the
// other side observe the relay failure instead of a clean EOF.
type Sink interface {
	io.Writer
	Close() error
	CloseWithError(err error) error
}

// Copy transfers src to dst in order until src is exhausted and returns the
// number of bytes written. When dst is an http.Flusher it is flushed after
// every chunk.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	flusher, _ := dst.(http.Flusher)

	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr == nil && nw != nr {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return written, &Error{Op: "write", Err: werr}
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, &Error{Op: "read", Err: rerr}
		}
	}
}

// Start runs Copy from src into dst as its own task and closes dst when the
// source is exhausted. On failure dst is closed with the relay error. The
// returned future resolves with the byte count and error of the copy.
func Start(dst Sink, src io.Reader) *future.Future[int64] {
	f := future.New[int64]()
	go func() {
		n, err := Copy(dst, src)
		if err != nil {
			_ = dst.CloseWithError(err)
		} else {
			_ = dst.Close()
		}
		f.Resolve(n, err)
	}()
	return f
}
