package realtime

import "sync"

// stream is the channel-backed Stream shared by every transport.
// An implementation calls deliver for inbound payloads and fail when the
// underlying connection drops; Close is idempotent.
type stream struct {
	ch      chan []byte
	mu      sync.Mutex
	closed  bool
	err     error
	onClose func()
}

func newStream(buffer int, onClose func()) *stream {
	return &stream{
		ch:      make(chan []byte, buffer),
		onClose: onClose,
	}
}

func (s *stream) C() <-chan []byte { return s.ch }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// deliver enqueues payload without blocking. It reports false when the
// payload was dropped because the stream is closed or its buffer is full.
func (s *stream) deliver(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}

func (s *stream) fail(err error) {
	s.finish(err)
}

func (s *stream) Close() error {
	s.finish(nil)
	return nil
}

func (s *stream) finish(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}
