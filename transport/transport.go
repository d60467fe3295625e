// Package transport serves the provisioning UI and keeps a websocket to
// exactly one peer.
package transport

import (
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-errors/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"
)

// ErrNotConnected is returned by Push while no peer is tracked.
var ErrNotConnected = errors.New("no peer connected")

const defaultMaxMessageSize = 4096

// MessageSink receives the payload of every inbound text message.
type MessageSink interface {
	HandleMessage([]byte)
}

// MessageSinkFunc adapts a function to MessageSink.
type MessageSinkFunc func([]byte)

func (f MessageSinkFunc) HandleMessage(data []byte) {
	f(data)
}

type Config struct {
	// Listen is the address the UI is served on, e.g. ":80".
	Listen string
	// MaxClients caps simultaneous TCP connections, zero means no cap.
	MaxClients int
	// MaxMessageSize is the largest inbound payload a buffer is
	// allocated for. Larger messages are dropped.
	MaxMessageSize int64
	Logger         Logger
}

// Channel serves the UI document on / and the websocket on /ws.
type Channel struct {
	log            Logger
	listen         string
	maxClients     int
	maxMessageSize int64
	peer           atomic.Pointer[peer]
	wg             sync.WaitGroup

	mtx      sync.Mutex
	server   *http.Server
	listener net.Listener
	doc      []byte
	sink     MessageSink
}

type peer struct {
	conn net.Conn
	mtx  sync.Mutex
}

func (p *peer) writeFrame(f ws.Frame) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return ws.WriteFrame(p.conn, f)
}

func (p *peer) writeText(data []byte) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return wsutil.WriteServerMessage(p.conn, ws.OpText, data)
}

func NewChannel(config *Config) *Channel {
	c := &Channel{
		listen:         config.Listen,
		maxClients:     config.MaxClients,
		maxMessageSize: config.MaxMessageSize,
	}

	if config.Logger != nil {
		c.log = config.Logger
	} else {
		c.log = noopLogger{}
	}

	if c.maxMessageSize <= 0 {
		c.maxMessageSize = defaultMaxMessageSize
	}

	return c
}

// Start serves doc and hands inbound text messages to sink.
func (c *Channel) Start(doc []byte, sink MessageSink) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.server != nil {
		return errors.New("channel already started")
	}

	lis, err := net.Listen("tcp", c.listen)
	if err != nil {
		return errors.Errorf("could not listen on %v: %v", c.listen, err)
	}

	if c.maxClients > 0 {
		lis = netutil.LimitListener(lis, c.maxClients)
	}

	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)
	router.Path("/ws").Handler(c.handleHandshake()).Methods(http.MethodGet)
	router.Path("/").Handler(c.handleDocument()).Methods(http.MethodGet)

	c.doc = doc
	c.sink = sink
	c.listener = lis
	c.server = &http.Server{Handler: router}

	server := c.server

	go func() {
		err := server.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			c.log.Errorf("Could not serve on %v: %v", lis.Addr(), err)
		}
	}()

	c.log.Infof("Serving provisioning UI on %v", lis.Addr())

	return nil
}

// Stop closes the server and the tracked peer.
func (c *Channel) Stop() error {
	c.mtx.Lock()
	server := c.server
	c.server = nil
	c.listener = nil
	c.mtx.Unlock()

	if server == nil {
		return nil
	}

	err := server.Close()

	c.mtx.Lock()
	p := c.peer.Swap(nil)
	c.mtx.Unlock()

	if p != nil {
		_ = p.conn.Close()
	}

	c.wg.Wait()

	if err != nil {
		return errors.Errorf("could not close server: %v", err)
	}

	c.log.Infof("Stopped serving provisioning UI")

	return nil
}

// Push sends data as one text message to the tracked peer.
func (c *Channel) Push(data []byte) error {
	p := c.peer.Load()
	if p == nil {
		return ErrNotConnected
	}

	err := p.writeText(data)
	if err != nil {
		return errors.Errorf("could not push to %v: %v", p.conn.RemoteAddr(), err)
	}

	return nil
}

// Connected tells whether a peer is tracked.
func (c *Channel) Connected() bool {
	return c.peer.Load() != nil
}

// Addr is the listening address while started.
func (c *Channel) Addr() net.Addr {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.listener == nil {
		return nil
	}

	return c.listener.Addr()
}

func (c *Channel) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.log.Debugf("Accessing %v from %v", r.RequestURI, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (c *Channel) handleDocument() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mtx.Lock()
		doc := c.doc
		c.mtx.Unlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		_, err := w.Write(doc)
		if err != nil {
			c.log.Warnf("Could not write document: %v", err)
		}
	})
}

func (c *Channel) handleHandshake() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, rw, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			c.log.Warnf("Could not upgrade %v: %v", r.RemoteAddr, err)
			return
		}

		p := &peer{conn: conn}

		c.mtx.Lock()
		if c.server == nil {
			c.mtx.Unlock()
			_ = conn.Close()
			return
		}
		sink := c.sink
		c.wg.Add(1)
		// a newer handshake closes and replaces the tracked peer
		prev := c.peer.Swap(p)
		c.mtx.Unlock()

		if prev != nil {
			c.log.Infof("Replacing peer %v with %v", prev.conn.RemoteAddr(), conn.RemoteAddr())
			_ = prev.conn.Close()
		} else {
			c.log.Infof("Peer %v connected", conn.RemoteAddr())
		}

		go func() {
			defer c.wg.Done()

			c.serve(p, rw.Reader, sink)
		}()
	})
}

func (c *Channel) serve(p *peer, r io.Reader, sink MessageSink) {
	defer func() {
		c.peer.CompareAndSwap(p, nil)
		_ = p.conn.Close()

		c.log.Infof("Peer %v disconnected", p.conn.RemoteAddr())
	}()

	for {
		h, err := probe(r)
		if err != nil {
			if err != io.EOF {
				c.log.Debugf("Could not read frame header from %v: %v", p.conn.RemoteAddr(), err)
			}
			return
		}

		if h.Length > c.maxMessageSize {
			c.log.Warnf("Dropping message of %d bytes from %v", h.Length, p.conn.RemoteAddr())

			err := skipPayload(r, h)
			if err != nil {
				c.log.Warnf("Could not skip payload: %v", err)
			}

			continue
		}

		payload, err := readPayload(r, h)
		if err != nil {
			c.log.Warnf("Could not read payload of %d bytes: %v", h.Length, err)
			continue
		}

		switch {
		case h.OpCode == ws.OpClose:
			_ = p.writeFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
			return

		case h.OpCode == ws.OpPing:
			err := p.writeFrame(ws.NewPongFrame(payload))
			if err != nil {
				c.log.Warnf("Could not answer ping: %v", err)
			}

		case h.OpCode == ws.OpText && h.Fin:
			sink.HandleMessage(payload)

		default:
			c.log.Debugf("Discarding %v frame of %d bytes", h.OpCode, h.Length)
		}
	}
}
