// Package provision joins the link manager and the UI channel into one
// provisioning session.
package provision

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/provd/connectivity"
	"github.com/the-lightning-land/provd/protocol"
	"github.com/the-lightning-land/provd/transport"
	"github.com/the-lightning-land/provd/wifi"
)

const (
	defaultGracePeriod = 2 * time.Second
	defaultIdleTimeout = 10 * time.Second
)

// Link is the part of the link manager the coordinator drives.
type Link interface {
	StartAccessPoint() error
	StopAccessPoint() error
	Connect(ssid string, secret string) error
	Scan(sink wifi.ScanSink) error
	CurrentAddress() (netip.Addr, bool)
	Snapshot() wifi.LinkState
}

// Transport is the channel to the provisioning peer.
type Transport interface {
	Start(doc []byte, sink transport.MessageSink) error
	Stop() error
	Push(data []byte) error
}

// check Coordinator compliance to its interfaces during compile time
var _ wifi.EventSink = (*Coordinator)(nil)
var _ transport.MessageSink = (*Coordinator)(nil)

type Config struct {
	Link      Link
	Transport Transport
	// Observer sees every link transition, optional.
	Observer connectivity.Observer
	// Document is served on the root path of the channel.
	Document []byte
	// GracePeriod lets the success reply flush before teardown.
	GracePeriod time.Duration
	// IdleTimeout wakes the loop without any event.
	IdleTimeout time.Duration
	Logger      Logger
}

// Session is a copy of the provisioning state.
type Session struct {
	// Configuring is set from an accepted submission until its outcome
	// was reported.
	Configuring bool
	Credentials Credentials
	// Provisioning is set while the access point and channel are up.
	Provisioning bool
	Link         wifi.LinkState
}

type Coordinator struct {
	log         Logger
	link        Link
	transport   Transport
	observer    connectivity.Observer
	document    []byte
	gracePeriod time.Duration
	idleTimeout time.Duration
	events      *eventSet
	done        chan struct{}
	session     atomic.Value

	// serializes bringing provisioning up and down
	provMtx sync.Mutex

	// Configuring and Credentials are written by the coordinator loop only
	stateMtx sync.Mutex
	state    Session
}

func NewCoordinator(config *Config) *Coordinator {
	c := &Coordinator{
		link:        config.Link,
		transport:   config.Transport,
		observer:    config.Observer,
		document:    config.Document,
		gracePeriod: config.GracePeriod,
		idleTimeout: config.IdleTimeout,
		events:      newEventSet(),
		done:        make(chan struct{}),
	}

	if config.Logger != nil {
		c.log = config.Logger
	} else {
		c.log = noopLogger{}
	}

	if c.gracePeriod <= 0 {
		c.gracePeriod = defaultGracePeriod
	}

	if c.idleTimeout <= 0 {
		c.idleTimeout = defaultIdleTimeout
	}

	c.session.Store(Session{})

	return c
}

// StartProvisioning brings up the access point and then the channel.
func (c *Coordinator) StartProvisioning() error {
	c.provMtx.Lock()
	defer c.provMtx.Unlock()

	if c.current().Provisioning {
		c.log.Debugf("Provisioning already active")
		return nil
	}

	err := c.link.StartAccessPoint()
	if err != nil {
		return errors.Errorf("could not start access point: %v", err)
	}

	err = c.transport.Start(c.document, c)
	if err != nil {
		return errors.Errorf("could not start channel: %v", err)
	}

	c.update(func(s *Session) {
		s.Provisioning = true
	})

	c.log.Infof("Provisioning started")

	return nil
}

// StopProvisioning tears down the channel and then the access point.
func (c *Coordinator) StopProvisioning() error {
	c.provMtx.Lock()
	defer c.provMtx.Unlock()

	if !c.current().Provisioning {
		return nil
	}

	err := c.transport.Stop()
	if err != nil {
		c.log.Errorf("Could not stop channel: %v", err)
	}

	err = c.link.StopAccessPoint()
	if err != nil {
		return errors.Errorf("could not stop access point: %v", err)
	}

	c.update(func(s *Session) {
		s.Provisioning = false
	})

	c.log.Infof("Provisioning finished")

	return nil
}

// Run processes raised events until Shutdown is called.
func (c *Coordinator) Run() error {
	c.log.Infof("Starting coordinator...")

	for {
		select {
		case <-c.events.ready():
			c.process()

		case <-time.After(c.idleTimeout):
			// nothing to do, keeps the loop responsive

		case <-c.done:
			// finish loop when program is done
			return nil
		}
	}
}

func (c *Coordinator) Shutdown() {
	close(c.done)
}

// Session returns a copy of the current session.
func (c *Coordinator) Session() Session {
	session := c.current()
	session.Link = c.link.Snapshot()

	return session
}

// HandleLinkEvent is called from the link manager's event goroutine and
// only raises events.
func (c *Coordinator) HandleLinkEvent(ev wifi.LinkEvent) {
	c.log.Debugf("Link event %v", ev)

	switch ev {
	case wifi.EventConnected:
		c.observe(connectivity.Connected)
		c.events.raise(connectSucceeded)
	case wifi.EventDisconnected:
		c.observe(connectivity.Disconnected)
	case wifi.EventConnectFailed:
		c.observe(connectivity.ConnectFailed)
		c.events.raise(connectFailed)
	}
}

// HandleMessage is called for every text message of the peer.
func (c *Coordinator) HandleMessage(data []byte) {
	switch cmd := protocol.Decode(data).(type) {
	case protocol.ScanRequest:
		err := c.link.Scan(wifi.ScanSinkFunc(c.pushScanResult))
		if errors.Is(err, wifi.ErrBusy) {
			c.log.Infof("Ignoring scan request, a scan is already running")
		} else if err != nil {
			c.log.Errorf("Could not scan: %v", err)
		}

	case protocol.ConnectRequest:
		credentials := NewCredentials(cmd.SSID, cmd.Password)

		c.log.Infof("Received credentials %v", credentials)

		c.events.submit(credentials)

	case protocol.Unrecognized:
		c.log.Debugf("Dropping message: %v", cmd.Reason)
	}
}

func (c *Coordinator) pushScanResult(records []wifi.AccessPointRecord) {
	c.push(protocol.EncodeScanList(records))
}

func (c *Coordinator) observe(state connectivity.State) {
	if c.observer != nil {
		c.observer.HandleStateChange(state)
	}
}

// process handles outcomes before a new submission so a stale outcome
// never ends a newer cycle.
func (c *Coordinator) process() {
	pending, credentials := c.events.take()

	if pending&connectFailed != 0 {
		c.handleConnectFailed()
	}

	if pending&connectSucceeded != 0 {
		c.handleConnectSucceeded()
	}

	if pending&credentialsSubmitted != 0 {
		c.handleCredentialsSubmitted(credentials)
	}
}

func (c *Coordinator) handleCredentialsSubmitted(credentials Credentials) {
	c.update(func(s *Session) {
		s.Configuring = true
		s.Credentials = credentials
	})

	c.log.Infof("Connecting to %v", credentials.SSID)

	// a rejected attempt is reported as a failed link event
	err := c.link.Connect(credentials.SSID, credentials.Secret)
	if err != nil {
		c.log.Errorf("Could not connect: %v", err)
	}
}

func (c *Coordinator) handleConnectFailed() {
	session := c.current()
	if !session.Configuring {
		return
	}

	c.log.Warnf("Could not connect to %v", session.Credentials.SSID)

	c.push(protocol.EncodeStatus(protocol.Status{
		Connected: false,
		SSID:      session.Credentials.SSID,
	}))

	c.update(func(s *Session) {
		s.Configuring = false
	})
}

func (c *Coordinator) handleConnectSucceeded() {
	session := c.current()
	if !session.Configuring {
		return
	}

	addr, _ := c.link.CurrentAddress()

	c.log.Infof("Connected to %v with address %v", session.Credentials.SSID, addr)

	c.push(protocol.EncodeStatus(protocol.Status{
		Connected: true,
		SSID:      session.Credentials.SSID,
		Address:   addr,
	}))

	c.update(func(s *Session) {
		s.Configuring = false
	})

	select {
	case <-time.After(c.gracePeriod):
	case <-c.done:
		return
	}

	err := c.StopProvisioning()
	if err != nil {
		c.log.Errorf("Could not stop provisioning: %v", err)
	}
}

func (c *Coordinator) push(data []byte) {
	err := c.transport.Push(data)
	if err != nil {
		c.log.Warnf("Could not push reply: %v", err)
	}
}

func (c *Coordinator) current() Session {
	return c.session.Load().(Session)
}

// update applies fn and publishes the result as a new copy.
func (c *Coordinator) update(fn func(*Session)) {
	c.stateMtx.Lock()
	defer c.stateMtx.Unlock()

	fn(&c.state)
	c.session.Store(c.state)
}
