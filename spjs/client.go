// Package spjs is a client for Serial Port JSON Server, used to reach a rig
// attached to another machine.
package spjs

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("spjs: closed")

// Client keeps a websocket to the server open until Close is called,
// redialing whenever the connection drops.
type Client struct {
	url    string
	log    logrus.FieldLogger
	dialer *websocket.Dialer
	retry  time.Duration

	mx      sync.RWMutex
	ports   []Port
	listed  chan struct{}
	streams map[string]*Stream

	outgoing  chan request
	unclaimed chan interface{}

	// pending survives a reconnect; only the run goroutine touches it.
	pending *request

	done      chan struct{}
	closeOnce sync.Once
}

type request struct {
	sent    chan struct{}
	payload []byte
}

// Options configure a client.
type Options struct {
	Logger logrus.FieldLogger
	Dialer *websocket.Dialer

	// RetryDelay is the wait between reconnect attempts, 3s if zero.
	RetryDelay time.Duration
}

// New starts a client for the websocket at url.
func New(url string, opts Options) *Client {
	c := &Client{
		url:       url,
		log:       opts.Logger,
		dialer:    opts.Dialer,
		retry:     opts.RetryDelay,
		listed:    make(chan struct{}),
		streams:   make(map[string]*Stream),
		outgoing:  make(chan request, 1000),
		unclaimed: make(chan interface{}, 1000),
		done:      make(chan struct{}),
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.retry == 0 {
		c.retry = 3 * time.Second
	}

	go c.run()

	return c
}

// Messages returns server messages no stream claimed: errors, command
// status and frames for ports without a stream. Nothing waits on a full channel.
func (c *Client) Messages() <-chan interface{} {
	return c.unclaimed
}

// Done is closed by Close.
func (c *Client) Done() <-chan struct{} { return c.done }

// Ports returns the last port list the server sent.
func (c *Client) Ports() []Port {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return append([]Port(nil), c.ports...)
}

// List asks the server for its ports and waits for the answer.
func (c *Client) List(ctx context.Context) ([]Port, error) {
	c.mx.RLock()
	ch := c.listed
	c.mx.RUnlock()

	err := c.WriteString("list")
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case <-ch:
	}
	return c.Ports(), nil
}

// Open asks the server to open a port.
func (c *Client) Open(port string, baud int) error {
	return c.WriteString("open " + port + " " + strconv.Itoa(baud) + " default")
}

// WriteString sends a raw server command and waits until it is on the wire.
func (c *Client) WriteString(cmd string) error {
	return c.send([]byte(cmd))
}

func (c *Client) queue(port, data string) error {
	payload, err := json.Marshal(sendJSON{Port: port, Data: []queued{{Data: data, ID: cmdID()}}})
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	return c.send(append([]byte("sendjson "), payload...))
}

func (c *Client) send(payload []byte) error {
	r := request{sent: make(chan struct{}), payload: payload}
	select {
	case <-c.done:
		return ErrClosed
	case c.outgoing <- r:
	}
	select {
	case <-c.done:
		return ErrClosed
	case <-r.sent:
		return nil
	}
}

// Close stops the client. Open streams read io.EOF.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Client) route(v interface{}) {
	switch msg := v.(type) {
	case *portList:
		c.mx.Lock()
		c.ports = msg.SerialPorts
		close(c.listed)
		c.listed = make(chan struct{})
		c.mx.Unlock()
		return
	case *Frame:
		c.mx.RLock()
		s := c.streams[msg.Port]
		c.mx.RUnlock()
		if s != nil {
			s.deliver(msg.Data)
			return
		}
	}

	select {
	case c.unclaimed <- v:
	default:
		c.log.Debug("dropped message, nobody listening")
	}
}

func (c *Client) run() {
	for {
		ws, err := c.dial()
		if err != nil {
			return
		}
		if !c.session(ws) {
			return
		}
	}
}

// dial retries until a connection is made or the client is closed.
func (c *Client) dial() (*websocket.Conn, error) {
	for {
		select {
		case <-c.done:
			return nil, ErrClosed
		default:
		}

		c.log.Info("connecting")
		ws, _, err := c.dialer.Dial(c.url, nil)
		if err == nil {
			c.log.Info("connected")
			return ws, nil
		}
		c.log.WithError(err).Error("connect")

		select {
		case <-c.done:
			return nil, ErrClosed
		case <-time.After(c.retry):
		}
	}
}

// session writes requests to ws until the connection drops. It returns false
// once the client is closed.
func (c *Client) session(ws *websocket.Conn) bool {
	defer ws.Close()

	lost := make(chan struct{})
	go c.readLoop(ws, lost)

	// ports may have changed while disconnected
	go c.WriteString("list")

	for {
		if c.pending != nil {
			err := ws.WriteMessage(websocket.TextMessage, c.pending.payload)
			if err != nil {
				c.log.WithError(err).Error("send")
				return true
			}
			close(c.pending.sent)
			c.pending = nil
		}

		select {
		case <-c.done:
			return false
		case <-lost:
			return true
		case r := <-c.outgoing:
			c.pending = &r
		}
	}
}

func (c *Client) readLoop(ws *websocket.Conn, lost chan struct{}) {
	defer close(lost)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.log.WithError(err).Warn("connection lost")
			return
		}
		// plain commands are echoed back as-is
		if len(data) == 0 || data[0] != '{' {
			continue
		}
		v, err := decode(data)
		if err != nil {
			c.log.WithError(err).Warn("ignored message")
			continue
		}
		c.route(v)
	}
}
