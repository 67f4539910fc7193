package service

import (
	"io"

	"go.uber.org/multierr"

	"passthrough-proxy/internal/future"
	"passthrough-proxy/internal/relay"
)

// session owns the resources of one Forward call. Everything registered with
// own is closed, and every relay started through it is joined, when release
// runs; Forward defers release so this happens on every exit path.
type session struct {
	closers []io.Closer
	relays  []*future.Future[int64]
}

func (s *session) own(c io.Closer) {
	if c != nil {
		s.closers = append(s.closers, c)
	}
}

func (s *session) startRelay(dst relay.Sink, src io.Reader) *future.Future[int64] {
	task := relay.Start(dst, src)
	s.relays = append(s.relays, task)
	return task
}

// release closes owned resources in reverse order of registration, which
// unblocks any relay still moving bytes, then waits for all relays to stop.
func (s *session) release() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i].Close())
	}
	s.closers = nil

	for _, task := range s.relays {
		future.Block(task)
	}
	s.relays = nil
	return err
}
