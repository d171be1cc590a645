package spjs

import (
	"io"
	"sync"
)

// Stream carries the raw data of one port.
type Stream struct {
	c    *Client
	port string

	mx     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

var _ io.ReadWriteCloser = &Stream{}

// Stream claims the data frames of port. Only one stream per port is active;
// a new call replaces the previous one.
func (c *Client) Stream(port string) *Stream {
	s := &Stream{c: c, port: port}
	s.cond = sync.NewCond(&s.mx)

	c.mx.Lock()
	if old := c.streams[port]; old != nil {
		old.shut()
	}
	c.streams[port] = s
	c.mx.Unlock()

	go func() {
		<-c.done
		s.shut()
	}()
	return s
}

func (s *Stream) deliver(data string) {
	s.mx.Lock()
	s.buf = append(s.buf, data...)
	s.mx.Unlock()
	s.cond.Broadcast()
}

func (s *Stream) shut() {
	s.mx.Lock()
	s.closed = true
	s.mx.Unlock()
	s.cond.Broadcast()
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Write queues p on the port behind any buffered data.
func (s *Stream) Write(p []byte) (int, error) {
	err := s.c.queue(s.port, string(p))
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteByte bypasses the server buffer; use for realtime commands.
func (s *Stream) WriteByte(b byte) error {
	return s.c.WriteString("sendnobuf " + s.port + " " + string(b))
}

// Close releases the port on the server.
func (s *Stream) Close() error {
	s.c.mx.Lock()
	if s.c.streams[s.port] == s {
		delete(s.c.streams, s.port)
	}
	s.c.mx.Unlock()
	s.shut()
	return s.c.WriteString("close " + s.port)
}
