package link

import (
	"io"
	"sync"
	"sync/atomic"
)

// PacketReadWriter moves wire bytes in message sized chunks.
type PacketReadWriter interface {
	ReadPacket() ([]byte, error)
	WritePacket([]byte) error
}

// PacketStream presents a PacketReadWriter as a byte stream. Each Write is
// one packet; reads drain packets in order, across Read calls.
type PacketStream struct {
	rw     PacketReadWriter
	closer io.Closer

	lock    sync.Mutex
	pending []byte
	closed  atomic.Bool
}

// NewPacketStream wraps rw. If rw is also an io.Closer, Close closes it.
func NewPacketStream(rw PacketReadWriter) *PacketStream {
	s := &PacketStream{rw: rw}
	s.closer, _ = rw.(io.Closer)
	return s
}

// Read implements io.Reader.
func (s *PacketStream) Read(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for len(s.pending) == 0 {
		pkt, err := s.rw.ReadPacket()
		if s.closed.Load() {
			return 0, ErrLinkClosed
		}
		if err != nil {
			return 0, err
		}
		s.pending = pkt
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write implements io.Writer.
func (s *PacketStream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrLinkClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := s.rw.WritePacket(append([]byte(nil), p...)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer. Reads and writes fail with ErrLinkClosed
// afterwards.
func (s *PacketStream) Close() error {
	if s.closed.Swap(true) || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
