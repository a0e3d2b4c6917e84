package realtime

import (
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the underlying live connection. gorilla/websocket satisfies it
// through wsConn; tests substitute scripted connections.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

type Dialer interface {
	Dial(rawURL string) (Conn, error)
}

type WebsocketDialer struct{}

func (WebsocketDialer) Dial(rawURL string) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(v)
}

func (c *wsConn) Close() error { return c.ws.Close() }

// Handlers receives the typed messages for one device subscription. Nil
// callbacks skip their kind.
type Handlers struct {
	OnSensorUpdate     func(SensorUpdate)
	OnPumpStatus       func(PumpStatus)
	OnThresholdUpdated func(ThresholdUpdate)
}

type Options struct {
	URL    string
	Token  func() string
	Dialer Dialer

	RetryDelay          time.Duration
	MaxAttempts         int
	SubscribeRetryDelay time.Duration
}

type subscription struct {
	id       string
	deviceID int
	handlers Handlers
	sent     bool
}

// Channel multiplexes per-device update topics over one reconnecting
// connection. One active subscription per device; re-subscribing replaces
// the previous handle.
type Channel struct {
	mu   sync.Mutex
	opts Options

	state     State
	conn      Conn
	gen       int
	attempts  int
	exhausted bool
	closed    bool

	subsByID   map[string]*subscription
	idByDevice map[int]string

	reconnectTimer *time.Timer
}

func NewChannel(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.SubscribeRetryDelay <= 0 {
		opts.SubscribeRetryDelay = 500 * time.Millisecond
	}
	return &Channel{
		opts:       opts,
		subsByID:   make(map[string]*subscription),
		idByDevice: make(map[int]string),
	}
}

// Connect opens the live connection, attaching the session token as a
// connection-time credential. Already-connected calls just invoke the
// callback.
func (c *Channel) Connect(onConnected func()) {
	c.mu.Lock()
	c.closed = false
	if c.state == Connected {
		c.mu.Unlock()
		if onConnected != nil {
			onConnected()
		}
		return
	}
	if c.state == Connecting {
		c.mu.Unlock()
		return
	}
	c.state = Connecting
	target := c.dialURLLocked()
	c.mu.Unlock()

	conn, err := c.opts.Dialer.Dial(target)

	c.mu.Lock()
	if c.state != Connecting {
		// Closed while the handshake was in flight.
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.state = Disconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		log.Printf("realtime: connect failed: %v", err)
		return
	}

	c.conn = conn
	c.state = Connected
	c.attempts = 0
	c.exhausted = false
	c.gen++
	gen := c.gen
	c.flushSubscribesLocked()
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	if onConnected != nil {
		onConnected()
	}
}

func (c *Channel) dialURLLocked() string {
	target := c.opts.URL
	if c.opts.Token != nil {
		if tok := c.opts.Token(); tok != "" {
			sep := "?"
			if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
				sep = "&"
			}
			target += sep + "token=" + url.QueryEscape(tok)
		}
	}
	return target
}

func (c *Channel) scheduleReconnectLocked() {
	c.attempts++
	if c.attempts >= c.opts.MaxAttempts {
		c.exhausted = true
		log.Printf("realtime: giving up after %d attempts", c.attempts)
		return
	}
	c.reconnectTimer = time.AfterFunc(c.opts.RetryDelay, c.reconnect)
}

func (c *Channel) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.Connect(nil)
}

func (c *Channel) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(conn, gen, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) connectionLost(conn Conn, gen int, err error) {
	c.mu.Lock()
	if gen != c.gen || c.conn != conn {
		// A newer connection or an explicit Close superseded this one.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = Disconnected
	for _, sub := range c.subsByID {
		sub.sent = false
	}
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	log.Printf("realtime: connection lost: %v", err)
}

// dispatch routes one incoming message to the handler registered for its
// device. Handlers run on the read goroutine, so delivery order per
// device follows the transport.
func (c *Channel) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("realtime: dropping malformed message: %v", err)
		return
	}

	c.mu.Lock()
	var handlers Handlers
	found := false
	if id, ok := c.idByDevice[env.DeviceID]; ok {
		if sub, ok := c.subsByID[id]; ok {
			handlers = sub.handlers
			found = true
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}

	switch env.Type {
	case MessageSensorUpdate:
		var msg SensorUpdate
		if json.Unmarshal(data, &msg) == nil && handlers.OnSensorUpdate != nil {
			handlers.OnSensorUpdate(msg)
		}
	case MessagePumpStatus:
		var msg PumpStatus
		if json.Unmarshal(data, &msg) == nil && handlers.OnPumpStatus != nil {
			handlers.OnPumpStatus(msg)
		}
	case MessageThresholdUpdated:
		var msg ThresholdUpdate
		if json.Unmarshal(data, &msg) == nil && handlers.OnThresholdUpdated != nil {
			handlers.OnThresholdUpdated(msg)
		}
	default:
		// Unknown kind, ignored.
	}
}

// Subscribe registers handlers for one device's topic and returns the
// subscription handle. When the channel is not yet connected the request
// is queued: a connect is kicked off and the subscribe is retried after a
// short delay, ending up with exactly one subscription either way.
func (c *Channel) Subscribe(deviceID int, h Handlers) string {
	c.mu.Lock()
	if old, ok := c.idByDevice[deviceID]; ok {
		delete(c.subsByID, old)
	}
	sub := &subscription{id: uuid.NewString(), deviceID: deviceID, handlers: h}
	c.subsByID[sub.id] = sub
	c.idByDevice[deviceID] = sub.id
	connected := c.state == Connected
	if connected {
		c.sendSubscribeLocked(sub)
	}
	c.mu.Unlock()

	if !connected {
		go c.Connect(nil)
		time.AfterFunc(c.opts.SubscribeRetryDelay, func() { c.retrySubscribe(sub.id) })
	}
	return sub.id
}

func (c *Channel) retrySubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subsByID[id]
	if !ok || sub.sent {
		return
	}
	if c.state == Connected {
		c.sendSubscribeLocked(sub)
	}
	// Still connecting: the flush on connect covers it.
}

func (c *Channel) sendSubscribeLocked(sub *subscription) {
	if c.conn == nil {
		return
	}
	frame := Frame{Action: ActionSubscribe, Topic: TopicForDevice(sub.deviceID)}
	if err := c.conn.WriteJSON(frame); err == nil {
		sub.sent = true
	}
}

func (c *Channel) flushSubscribesLocked() {
	for _, sub := range c.subsByID {
		if !sub.sent {
			c.sendSubscribeLocked(sub)
		}
	}
}

// Unsubscribe releases one subscription. Unknown handles are a no-op.
func (c *Channel) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subsByID[id]
	if !ok {
		return
	}
	delete(c.subsByID, id)
	if c.idByDevice[sub.deviceID] == id {
		delete(c.idByDevice, sub.deviceID)
	}
	if c.state == Connected && c.conn != nil {
		_ = c.conn.WriteJSON(Frame{Action: ActionUnsubscribe, Topic: TopicForDevice(sub.deviceID)})
	}
}

// Close drops the connection, clears the whole subscription map, and
// resets the reconnect state. Safe to call when already disconnected.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.subsByID = make(map[string]*subscription)
	c.idByDevice = make(map[int]string)
	c.attempts = 0
	c.exhausted = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Offline reports that the reconnect policy has been exhausted and the
// channel has stopped retrying.
func (c *Channel) Offline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}
