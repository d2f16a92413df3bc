package stompy

import (
	"io"
	"sync"
	"time"

	"github.com/batchcorp/stompy/frame"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// State is the connection lifecycle state of a Client.
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unconnected"
	}
}

// Client is a session with a STOMP broker. Create one with Connect or
// ConnectConn; the zero value is not usable.
//
// All state (subscriptions, pending receipts, lifecycle) is guarded by a
// single mutex per session. Frame writes are serialized separately so a
// send from one goroutine never waits on a reader blocked in Receive.
type Client struct {
	opts   *Options
	conn   io.ReadWriteCloser
	reader *frame.Reader
	writer *frame.Writer

	state        State
	serverHeader *frame.Header

	// Heart-beat terms negotiated in the CONNECTED frame.
	sendHeartBeat time.Duration
	recvHeartBeat time.Duration

	subscriptions map[string]*Subscription
	receipts      map[string]time.Time

	mu      sync.Mutex // lifecycle, subscriptions, receipts
	writeMu sync.Mutex // transport writes

	log *logrus.Entry
}

func newClient(conn io.ReadWriteCloser, opts *Options, log *logrus.Entry) *Client {
	reader := frame.NewReader(conn)
	if opts.ReadBufferSize > 0 {
		reader = frame.NewReaderSize(conn, opts.ReadBufferSize)
	}

	writer := frame.NewWriter(conn)
	if opts.WriteBufferSize > 0 {
		writer = frame.NewWriterSize(conn, opts.WriteBufferSize)
	}

	return &Client{
		opts:          opts,
		conn:          conn,
		reader:        reader,
		writer:        writer,
		state:         StateUnconnected,
		subscriptions: make(map[string]*Subscription),
		receipts:      make(map[string]time.Time),
		log:           log,
	}
}

// handshake sends CONNECT and blocks for the broker's answer. On a
// CONNECTED frame the session transitions to StateConnected; on an ERROR
// frame it transitions to StateFailed and a *BrokerError is returned.
func (c *Client) handshake(host string) error {
	c.mu.Lock()
	c.state = StateConnecting
	c.mu.Unlock()

	f := frame.New(frame.CONNECT,
		frame.AcceptVersion, acceptedVersions,
		frame.Host, host,
		frame.HeartBeat, frame.FormatHeartBeat(c.opts.SendHeartBeat, c.opts.RecvHeartBeat),
	)

	if c.opts.Login != "" {
		f.Header.Add(frame.Login, c.opts.Login)
	}
	if c.opts.Passcode != "" {
		f.Header.Add(frame.Passcode, c.opts.Passcode)
	}
	f.Header.AddHeader(c.opts.Header)

	if err := c.writer.Write(f); err != nil {
		c.setState(StateFailed)
		return errors.Wrap(err, "unable to send CONNECT frame")
	}

	// Bound the wait for the broker's answer: a broker that accepts the
	// connection but never speaks STOMP must not hang the connect.
	if d, ok := c.conn.(deadlineReader); ok {
		_ = d.SetReadDeadline(time.Now().Add(c.opts.ConnectTimeout))
		defer d.SetReadDeadline(time.Time{})
	}

	response, err := c.readFrame()
	if err != nil {
		c.setState(StateFailed)
		return errors.Wrap(err, "unable to read connect response")
	}

	switch response.Command {
	case frame.CONNECTED:
		// fallthrough to below
	case frame.ERROR:
		c.setState(StateFailed)
		return &BrokerError{Frame: response}
	default:
		c.setState(StateFailed)
		return errors.Errorf("unexpected connect response command %q", response.Command)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.serverHeader = response.Header

	if hb, ok := response.Header.Contains(frame.HeartBeat); ok {
		tx, rx, err := frame.ParseHeartBeat(hb)
		if err != nil {
			c.state = StateFailed
			return errors.Wrap(err, "unable to parse negotiated heart-beat")
		}
		c.sendHeartBeat, c.recvHeartBeat = tx, rx
	}

	c.state = StateConnected
	return nil
}

// readFrame reads the next frame, skipping heart-beats.
func (c *Client) readFrame() (*frame.Frame, error) {
	for {
		f, err := c.reader.Read()
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the session id assigned by the broker, or "".
func (c *Client) Session() string {
	return c.serverHeaderValue(frame.Session)
}

// Server returns the broker's server identification header, or "".
func (c *Client) Server() string {
	return c.serverHeaderValue(frame.Server)
}

// Version returns the protocol version negotiated with the broker. An
// absent version header means STOMP 1.0.
func (c *Client) Version() string {
	if v := c.serverHeaderValue(frame.Version); v != "" {
		return v
	}
	return "1.0"
}

// ServerHeader returns the full header of the CONNECTED frame, or nil
// before a session is established.
func (c *Client) ServerHeader() *frame.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverHeader
}

// HeartBeat returns the heart-beat terms negotiated with the broker: the
// interval at which the client may send and the interval at which the
// broker will send. The engine retains the terms but does not emit timed
// heart-beats itself.
func (c *Client) HeartBeat() (send, receive time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendHeartBeat, c.recvHeartBeat
}

func (c *Client) serverHeaderValue(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serverHeader == nil {
		return ""
	}
	return c.serverHeader.Get(key)
}

// Send sends a frame to the broker. The session must be connected.
func (c *Client) Send(f *frame.Frame) error {
	return c.sendFrame(f)
}

// SendWithReceipt attaches a receipt request to the frame, sends it, and
// returns the receipt id. The broker's RECEIPT frame is matched by the
// receive path; wait for it with Loop and WaitForReceipt.
func (c *Client) SendWithReceipt(f *frame.Frame) (string, error) {
	receiptID := c.requestReceipt(f)

	if err := c.sendFrame(f); err != nil {
		c.forgetReceipt(receiptID)
		return "", err
	}

	return receiptID, nil
}

// Message sends a SEND frame with the given body to a destination. Extra
// headers can be applied through opts:
//
//	err := c.Message("/queue/orders", body,
//		stompy.WithHeader("content-type", "application/json"))
func (c *Client) Message(destination string, body []byte, opts ...func(*frame.Frame) error) error {
	f, err := buildSendFrame(destination, body, opts)
	if err != nil {
		return err
	}
	return c.sendFrame(f)
}

// MessageWithReceipt is Message with a receipt request; it returns the
// receipt id to wait on.
func (c *Client) MessageWithReceipt(destination string, body []byte, opts ...func(*frame.Frame) error) (string, error) {
	f, err := buildSendFrame(destination, body, opts)
	if err != nil {
		return "", err
	}
	return c.SendWithReceipt(f)
}

// WithHeader returns a frame option that adds a header entry.
func WithHeader(key, value string) func(*frame.Frame) error {
	return func(f *frame.Frame) error {
		if key == "" {
			return errors.New("header key cannot be empty")
		}
		f.Header.Add(key, value)
		return nil
	}
}

func buildSendFrame(destination string, body []byte, opts []func(*frame.Frame) error) (*frame.Frame, error) {
	if destination == "" {
		return nil, errors.New("destination cannot be empty")
	}

	f := frame.New(frame.SEND, frame.Destination, destination)
	f.Body = body

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(f); err != nil {
			return nil, errors.Wrap(err, "unable to apply frame option")
		}
	}

	return f, nil
}

// Ack acknowledges a message by its ack id (the value of the MESSAGE
// frame's "ack" header).
func (c *Client) Ack(ackID string) error {
	return c.ack(ackID, "")
}

// Nack negatively acknowledges a message by its ack id.
func (c *Client) Nack(ackID string) error {
	return c.nack(ackID, "")
}

func (c *Client) ack(ackID, transaction string) error {
	return c.sendFrame(ackNackFrame(frame.ACK, ackID, transaction))
}

func (c *Client) nack(ackID, transaction string) error {
	return c.sendFrame(ackNackFrame(frame.NACK, ackID, transaction))
}

func ackNackFrame(command, ackID, transaction string) *frame.Frame {
	f := frame.New(command, frame.Id, ackID)
	if transaction != "" {
		f.Header.Add(frame.Transaction, transaction)
	}
	return f
}

// Disconnect sends a DISCONNECT frame and closes the transport. It does
// not wait for the broker's receipt; use DisconnectWithReceipt for a
// graceful shutdown. Calling Disconnect on a session that is already
// closed is a no-op.
func (c *Client) Disconnect() error {
	return c.disconnect(false)
}

// DisconnectWithReceipt sends a receipted DISCONNECT frame and reads
// until the broker confirms it (or closes the stream), then closes the
// transport. It must be called from the goroutine driving the receive
// path; the client supports a single logical reader.
func (c *Client) DisconnectWithReceipt() error {
	return c.disconnect(true)
}

func (c *Client) disconnect(awaitReceipt bool) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil
	}
	// Mark the session closed up front so concurrent senders are cut off
	// and a second Disconnect is a no-op.
	c.state = StateDisconnected
	c.subscriptions = make(map[string]*Subscription)
	c.receipts = make(map[string]time.Time)
	c.mu.Unlock()

	f := frame.New(frame.DISCONNECT)
	receiptID := newID("r")
	f.Header.Add(frame.Receipt, receiptID)

	c.writeMu.Lock()
	writeErr := c.writer.Write(f)
	c.writeMu.Unlock()

	if writeErr == nil && awaitReceipt {
		c.awaitReceipt(receiptID)
	}

	if err := c.conn.Close(); err != nil {
		c.log.Warnf("Error closing transport: %s", err)
	}

	return errors.Wrap(writeErr, "unable to send DISCONNECT frame")
}

// awaitReceipt drains the stream until the given receipt arrives or the
// broker closes the connection. Frames received in between are dropped:
// the session is already closed from the application's point of view.
func (c *Client) awaitReceipt(receiptID string) {
	for {
		f, err := c.reader.Read()
		if err != nil {
			return
		}
		if f == nil {
			continue
		}
		if f.Command == frame.RECEIPT && f.Header.Get(frame.ReceiptId) == receiptID {
			return
		}
	}
}

// sendFrame is the single write path. Every outbound frame from every
// goroutine funnels through here, which is what guarantees send ordering
// (a transaction's COMMIT can never overtake the sends that precede it).
func (c *Client) sendFrame(f *frame.Frame) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return errors.Wrapf(ErrNotConnected, "state is %s", c.state)
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.writer.Write(f); err != nil {
		c.fail()
		return errors.Wrap(err, "unable to write frame")
	}

	c.log.Debugf("Sent %s frame", f.Command)

	return nil
}

// fail transitions an open session to StateFailed and closes the
// transport. Safe to call more than once.
func (c *Client) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected || c.state == StateFailed {
		return
	}

	c.state = StateFailed
	c.subscriptions = make(map[string]*Subscription)
	c.receipts = make(map[string]time.Time)
	_ = c.conn.Close()
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// newID generates a prefixed unique identifier for subscriptions ("s"),
// transactions ("t") and receipts ("r").
func newID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
